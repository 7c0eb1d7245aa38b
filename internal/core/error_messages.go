// error_messages.go maps technical errors to user-facing messages with
// codes for support reference.
//
// Error codes are grouped by category:
//
//	FILE001-FILE004 - file problems (wrong type, empty, malformed, missing columns)
//	EDIT001-EDIT005 - rejected edits (immutable year, bad column, bad row, duplicate or empty year)
//	SES001-SES002   - session problems (expired or unknown session, too many loads)
//	REM001-REM006   - remote storage problems (unconfigured, missing file, bad path, no target, failure)
//	SYS001-SYS002   - cancelled or timed-out requests
//	ERR000          - fallback for anything unmatched
//
// Known sentinel errors are matched with errors.Is; errors from outside the
// module (HTTP transport, context) fall back to case-insensitive substring
// matching, first match wins. When users report ERR000, check the server
// logs for the original technical error.
package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mkitahara/idreg/internal/registry"
	"github.com/mkitahara/idreg/internal/storage"
)

// UserMessage is user-facing error information with actionable guidance.
type UserMessage struct {
	Message string // what happened
	Action  string // what to do about it
	Code    string // support reference code
}

// errorPattern matches an error either by sentinel (errors.Is) or by
// substring when target is nil.
type errorPattern struct {
	target  error
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// File problems.
	{
		target: ErrNotCSV,
		msg: UserMessage{
			Message: "CSVファイルではありません",
			Action:  "拡張子が .csv のファイルを選択してください",
			Code:    "FILE001",
		},
	},
	{
		target: registry.ErrEmptyInput,
		msg: UserMessage{
			Message: "ファイルにデータがありません",
			Action:  "ヘッダー行とデータ行を含むCSVファイルを読み込んでください",
			Code:    "FILE002",
		},
	},
	{
		target: registry.ErrMalformedInput,
		msg: UserMessage{
			Message: "CSVの形式が正しくありません",
			Action:  "引用符の対応や区切り文字を確認してください",
			Code:    "FILE003",
		},
	},
	{
		target: registry.ErrDegradedTable,
		msg: UserMessage{
			Message: "列が不足しているため編集できません",
			Action:  "年度・分配PID・分配ID・整備結果IDの4列を持つファイルを使用してください",
			Code:    "FILE004",
		},
	},

	// Rejected edits.
	{
		target: registry.ErrYearImmutable,
		msg: UserMessage{
			Message: "年度は変更できません",
			Action:  "年度を変えるには行を削除してから追加し直してください",
			Code:    "EDIT001",
		},
	},
	{
		target: registry.ErrUnknownColumn,
		msg: UserMessage{
			Message: "編集できない列です",
			Action:  "分配PID・分配ID・整備結果IDのみ編集できます",
			Code:    "EDIT002",
		},
	},
	{
		target: registry.ErrRowRange,
		msg: UserMessage{
			Message: "指定された行が見つかりません",
			Action:  "画面を再読み込みして最新の状態を確認してください",
			Code:    "EDIT003",
		},
	},
	{
		target: registry.ErrDuplicateYear,
		msg: UserMessage{
			Message: "その年度は既に存在します",
			Action:  "別の年度を指定してください",
			Code:    "EDIT004",
		},
	},
	{
		target: registry.ErrEmptyYear,
		msg: UserMessage{
			Message: "年度が入力されていません",
			Action:  "追加する年度を入力してください",
			Code:    "EDIT005",
		},
	},

	// Session problems.
	{
		target: ErrSessionNotFound,
		msg: UserMessage{
			Message: "編集セッションが見つかりません",
			Action:  "有効期限が切れた可能性があります。ファイルを読み込み直してください",
			Code:    "SES001",
		},
	},
	{
		target: ErrTooManyLoads,
		msg: UserMessage{
			Message: "読み込みが混み合っています",
			Action:  "しばらく待ってから再試行してください",
			Code:    "SES002",
		},
	},

	// Remote storage problems.
	{
		target: ErrRemoteUnconfigured,
		msg: UserMessage{
			Message: "Dropbox連携が設定されていません",
			Action:  "DROPBOX_APP_KEY などの環境変数を設定してサーバーを再起動してください",
			Code:    "REM001",
		},
	},
	{
		target: storage.ErrNotFound,
		msg: UserMessage{
			Message: "ファイルが見つかりません",
			Action:  "パスを確認するか、フォルダ一覧からファイルを選択してください",
			Code:    "REM002",
		},
	},
	{
		target: storage.ErrInvalidPath,
		msg: UserMessage{
			Message: "パスの形式が正しくありません",
			Action:  "「/」から始まるパスを指定してください",
			Code:    "REM003",
		},
	},
	{
		target: ErrNoSavePath,
		msg: UserMessage{
			Message: "保存先が指定されていません",
			Action:  "保存先のパスを入力してください",
			Code:    "REM004",
		},
	},
	{
		target: ErrStorage,
		msg: UserMessage{
			Message: "Dropboxとの通信に失敗しました",
			Action:  "時間をおいて再試行してください",
			Code:    "REM005",
		},
	},
	{
		pattern: "token refresh",
		msg: UserMessage{
			Message: "Dropboxの認証に失敗しました",
			Action:  "リフレッシュトークンが有効か確認してください",
			Code:    "REM006",
		},
	},

	// Cancellation and timeouts. Substring matching catches these whether
	// they arrive as sentinels or wrapped transport errors.
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "処理が中断されました",
			Action:  "もう一度お試しください",
			Code:    "SYS001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "処理がタイムアウトしました",
			Action:  "時間をおいて再試行してください",
			Code:    "SYS002",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "処理がタイムアウトしました",
			Action:  "時間をおいて再試行してください",
			Code:    "SYS002",
		},
	},
}

// defaultMessage is the ERR000 fallback for unmatched errors.
var defaultMessage = UserMessage{
	Message: "予期しないエラーが発生しました",
	Action:  "もう一度お試しください。解決しない場合は管理者に連絡してください",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. Sentinel
// matches are checked first, then substring patterns; no match returns the
// generic ERR000 message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if ep.target != nil {
			if errors.Is(err, ep.target) {
				return ep.msg
			}
			continue
		}
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a display string: "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether an error matched a known pattern rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing mapping; the
// technical error stays reachable for logging via Unwrap.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err and wraps it. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
