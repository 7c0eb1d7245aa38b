// Package charset converts registry file bytes to text and back.
//
// The registry file's encoding is inconsistent across its history: legacy
// systems export Shift_JIS, manual edits may arrive as UTF-8, and copies
// written by this tool's own fallback carry a UTF-8 BOM. Decoding is a
// fixed-priority cascade that never fails outright, and encoding mirrors
// it with a marked fallback so readers can tell the two formats apart.
package charset

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/japanese"
)

// Encoding labels reported in results and surfaced in user messages.
const (
	LabelShiftJIS  = "shift_jis"
	LabelUTF8      = "utf-8"
	LabelUTF8BOM   = "utf-8 (bom)"
	LabelUTF8Lossy = "utf-8 (lossy)"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeResult is the outcome of a Decode call.
type DecodeResult struct {
	Text     string
	Encoding string   // label of the encoding that produced Text
	Attempts []string // labels tried and rejected before Encoding
	Lossy    bool     // invalid bytes were discarded to produce Text
}

// Decode converts raw registry file bytes to text. It tries, in order:
// UTF-8 behind a byte-order mark (the format Encode falls back to),
// strict Shift_JIS, strict UTF-8, the best guess of an automatic charset
// detector, and finally UTF-8 with invalid bytes discarded. The last step
// cannot fail, so Decode always returns text; worst case it is lossy.
func Decode(raw []byte) DecodeResult {
	if rest, ok := bytes.CutPrefix(raw, utf8BOM); ok && utf8.Valid(rest) {
		return DecodeResult{Text: string(rest), Encoding: LabelUTF8BOM}
	}

	var attempts []string

	if text, ok := decodeShiftJIS(raw); ok {
		return DecodeResult{Text: text, Encoding: LabelShiftJIS}
	}
	attempts = append(attempts, LabelShiftJIS)

	if utf8.Valid(raw) {
		return DecodeResult{Text: string(raw), Encoding: LabelUTF8, Attempts: attempts}
	}
	attempts = append(attempts, LabelUTF8)

	text, name, ok := decodeDetected(raw)
	if ok {
		return DecodeResult{Text: text, Encoding: name, Attempts: attempts}
	}
	if name != "" {
		attempts = append(attempts, name)
	}

	return DecodeResult{
		Text:     decodeLossyUTF8(raw),
		Encoding: LabelUTF8Lossy,
		Attempts: attempts,
		Lossy:    true,
	}
}

// decodeShiftJIS decodes raw strictly. x/text decoders substitute U+FFFD
// for undecodable bytes instead of returning an error, and Shift_JIS has
// no encoding for U+FFFD, so a replacement rune in the output always
// marks invalid input.
func decodeShiftJIS(raw []byte) (string, bool) {
	out, err := japanese.ShiftJIS.NewDecoder().Bytes(raw)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// decodeDetected asks chardet for its best guess and decodes with the
// matching x/text encoding. The guessed name is returned even on failure
// so callers can report what was attempted.
func decodeDetected(raw []byte) (text, name string, ok bool) {
	best, err := chardet.NewTextDetector().DetectBest(raw)
	if err != nil || best == nil || best.Charset == "" {
		return "", "", false
	}
	name = strings.ToLower(best.Charset)

	enc, err := ianaindex.IANA.Encoding(best.Charset)
	if err != nil || enc == nil {
		return "", name, false
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", name, false
	}
	return string(out), name, true
}

// decodeLossyUTF8 keeps every valid UTF-8 sequence and drops invalid
// bytes, mirroring a decode that ignores errors rather than replacing
// them, so no replacement-character noise lands in the registry.
func decodeLossyUTF8(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRune(raw[i:])
		if r == utf8.RuneError && size == 1 {
			i++
			continue
		}
		b.Write(raw[i : i+size])
		i += size
	}
	return b.String()
}
