// Package dropbox implements the storage client over the Dropbox HTTP
// API: content endpoints for download/upload, the RPC endpoint for
// directory listings, and an OAuth2 refresh-token flow for auth.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/mkitahara/idreg/internal/storage"
)

const (
	defaultAPIBase     = "https://api.dropboxapi.com"
	defaultContentBase = "https://content.dropboxapi.com"

	defaultTimeout = 30 * time.Second
)

// Config carries the app credentials and client options.
type Config struct {
	AppKey       string
	AppSecret    string
	RefreshToken string
	Timeout      time.Duration
}

// Client talks to one Dropbox app folder. It implements storage.Client.
type Client struct {
	http        *http.Client
	tokens      *TokenManager
	apiBase     string
	contentBase string
}

var _ storage.Client = (*Client)(nil)

// New builds a client from app credentials.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	hc := &http.Client{Timeout: timeout}
	return &Client{
		http:        hc,
		tokens:      NewTokenManager(cfg.AppKey, cfg.AppSecret, cfg.RefreshToken, hc),
		apiBase:     defaultAPIBase,
		contentBase: defaultContentBase,
	}
}

// Fetch downloads the file at path.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	arg, err := headerSafeJSON(struct {
		Path string `json:"path"`
	}{Path: path})
	if err != nil {
		return nil, fmt.Errorf("dropbox download %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentBase+"/2/files/download", nil)
	if err != nil {
		return nil, fmt.Errorf("dropbox download %q: %w", path, err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	req.Header.Set("Dropbox-API-Arg", arg)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox download %q: %w", path, err)
	}
	defer resp.Body.Close()

	if err := apiCallError(resp, "download", path); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("dropbox download %q: %w", path, err)
	}
	return data, nil
}

// Store uploads data to path, overwriting any existing file.
func (c *Client) Store(ctx context.Context, path string, data []byte) error {
	arg, err := headerSafeJSON(struct {
		Path       string `json:"path"`
		Mode       string `json:"mode"`
		Autorename bool   `json:"autorename"`
		Mute       bool   `json:"mute"`
	}{Path: path, Mode: "overwrite", Mute: true})
	if err != nil {
		return fmt.Errorf("dropbox upload %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentBase+"/2/files/upload", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("dropbox upload %q: %w", path, err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	req.Header.Set("Dropbox-API-Arg", arg)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("dropbox upload %q: %w", path, err)
	}
	defer resp.Body.Close()

	return apiCallError(resp, "upload", path)
}

// List enumerates the directory at path, following pagination, with
// folders sorted before files and names ordered within each group.
func (c *Client) List(ctx context.Context, path string) ([]storage.Entry, error) {
	// The API addresses the root as "", never "/".
	path = storage.Normalize(path)

	var entries []storage.Entry
	page, err := c.listPage(ctx, path, c.apiBase+"/2/files/list_folder", struct {
		Path string `json:"path"`
	}{Path: path})
	for {
		if err != nil {
			return nil, err
		}
		for _, e := range page.Entries {
			entries = append(entries, storage.Entry{
				Name:  e.Name,
				IsDir: e.Tag == "folder",
				Size:  e.Size,
			})
		}
		if !page.HasMore {
			break
		}
		page, err = c.listPage(ctx, path, c.apiBase+"/2/files/list_folder/continue", struct {
			Cursor string `json:"cursor"`
		}{Cursor: page.Cursor})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}

type listFolderPage struct {
	Entries []struct {
		Tag  string `json:".tag"`
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"entries"`
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"has_more"`
}

func (c *Client) listPage(ctx context.Context, path, url string, body any) (*listFolderPage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("dropbox list %q: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("dropbox list %q: %w", path, err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox list %q: %w", path, err)
	}
	defer resp.Body.Close()

	if err := apiCallError(resp, "list", path); err != nil {
		return nil, err
	}
	var page listFolderPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("dropbox list %q: %w", path, err)
	}
	return &page, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

// apiCallError interprets a non-200 response. Error bodies whose summary
// names not_found map to storage.ErrNotFound; everything else surfaces
// with the API's own summary so the user sees what the service said.
func apiCallError(resp *http.Response, op, path string) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<12))

	var apiErr struct {
		Summary string `json:"error_summary"`
	}
	_ = json.Unmarshal(body, &apiErr)
	summary := apiErr.Summary
	if summary == "" {
		summary = strings.TrimSpace(string(body))
	}

	if strings.Contains(summary, "not_found") {
		return fmt.Errorf("dropbox %s %q: %w", op, path, storage.ErrNotFound)
	}
	return fmt.Errorf("dropbox %s %q: status %d: %s", op, path, resp.StatusCode, summary)
}

// headerSafeJSON marshals v and escapes every non-ASCII rune, because the
// Dropbox-API-Arg header only admits printable ASCII and registry paths
// routinely carry Japanese folder names.
func headerSafeJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range string(raw) {
		switch {
		case r >= 0x20 && r <= 0x7E:
			b.WriteRune(r)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	return b.String(), nil
}
