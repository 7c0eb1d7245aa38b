package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mkitahara/idreg/internal/charset"
	"github.com/mkitahara/idreg/internal/config"
	"github.com/mkitahara/idreg/internal/core"
	"github.com/mkitahara/idreg/internal/session"
	"github.com/mkitahara/idreg/internal/storage"
)

const sampleCSV = "年度,分配PID,分配ID,整備結果ID\n2020,P1,D1,R1\n2021,P2,D2,R2\n"

// fakeStorage is an in-memory storage.Client for handler tests.
type fakeStorage struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string][]storage.Entry
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		files: make(map[string][]byte),
		dirs:  make(map[string][]storage.Entry),
	}
}

func (f *fakeStorage) Fetch(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("fetch %q: %w", path, storage.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeStorage) Store(ctx context.Context, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStorage) List(ctx context.Context, dir string) ([]storage.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, ok := f.dirs[dir]
	if !ok {
		return nil, fmt.Errorf("list %q: %w", dir, storage.ErrNotFound)
	}
	return entries, nil
}

func (f *fakeStorage) stored(path string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files[path]
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.RequestTimeout = time.Minute
	cfg.Load.MaxFileSize = 1 << 20
	cfg.Security.EnableCSP = true
	return cfg
}

func newTestServer(remote storage.Client) (*Server, *core.Service) {
	sessions := session.NewStore(time.Minute, time.Minute)
	svc := core.NewService(remote, sessions, core.NewLoadLimiter(2, time.Second))
	return NewServer(svc, testConfig()), svc
}

func sjisCSV(t *testing.T, text string) []byte {
	t.Helper()
	enc := charset.Encode(text)
	if enc.Fallback {
		t.Fatalf("fixture %q is not Shift_JIS encodable", text)
	}
	return enc.Data
}

// doJSON performs a request with an optional JSON body against the router.
func doJSON(t *testing.T, srv *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) core.SessionView {
	t.Helper()
	var v core.SessionView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding view: %v\n%s", err, rec.Body.String())
	}
	return v
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decoding error body: %v\n%s", err, rec.Body.String())
	}
	return e
}

// uploadSession opens a session through the upload endpoint.
func uploadSession(t *testing.T, srv *Server, name string, data []byte) core.SessionView {
	t.Helper()
	rec := doUpload(t, srv, name, data)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d: %s", rec.Code, rec.Body.String())
	}
	return decodeView(t, rec)
}

func doUpload(t *testing.T, srv *Server, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestIndexServesEditorPage(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec := doJSON(t, srv, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "ID採番管理") {
		t.Error("page does not contain the editor title")
	}
}

func TestSecurityHeaders(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("CSP header missing with EnableCSP set")
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(newFakeStorage())

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Status           string `json:"status"`
		Sessions         int    `json:"sessions"`
		RemoteConfigured bool   `json:"remoteConfigured"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q", body.Status)
	}
	if !body.RemoteConfigured {
		t.Error("remoteConfigured = false with a client set")
	}
}

func TestUploadOpensSession(t *testing.T) {
	srv, _ := newTestServer(nil)

	view := uploadSession(t, srv, "registry.csv", sjisCSV(t, sampleCSV))
	if view.ID == "" {
		t.Fatal("no session ID in response")
	}
	if view.RowCount != 2 {
		t.Errorf("rowCount = %d, want 2", view.RowCount)
	}
	if view.Encoding != charset.LabelShiftJIS {
		t.Errorf("encoding = %q", view.Encoding)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/sessions/"+view.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("view status = %d", rec.Code)
	}
	if got := decodeView(t, rec); got.ID != view.ID {
		t.Errorf("view ID = %q, want %q", got.ID, view.ID)
	}
}

func TestUploadRejectsNonCSV(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec := doUpload(t, srv, "notes.txt", []byte("a,b,c,d\n1,2,3,4\n"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "FILE001" {
		t.Errorf("code = %q, want FILE001", e.Code)
	}
}

func TestUploadWithoutFile(t *testing.T) {
	srv, _ := newTestServer(nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("name", "registry.csv")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLoadRemote(t *testing.T) {
	fake := newFakeStorage()
	fake.files["/dir/registry.csv"] = sjisCSV(t, sampleCSV)
	srv, _ := newTestServer(fake)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/remote", map[string]string{"path": "/dir/registry.csv"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	view := decodeView(t, rec)
	if view.RemotePath != "/dir/registry.csv" {
		t.Errorf("remotePath = %q", view.RemotePath)
	}
}

func TestLoadRemoteDefaultsToRegistryPath(t *testing.T) {
	fake := newFakeStorage()
	fake.files["/id_management_file.csv"] = sjisCSV(t, sampleCSV)
	srv, svc := newTestServer(fake)
	svc.SetDefaultRemotePath("/id_management_file.csv")

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/remote", map[string]string{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if view := decodeView(t, rec); view.RemotePath != "/id_management_file.csv" {
		t.Errorf("remotePath = %q, want the configured default", view.RemotePath)
	}
}

func TestLoadRemoteMissingCarriesListing(t *testing.T) {
	fake := newFakeStorage()
	fake.dirs["/dir"] = []storage.Entry{
		{Name: "backup", IsDir: true},
		{Name: "registry.csv", Size: 64},
	}
	srv, _ := newTestServer(fake)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/remote", map[string]string{"path": "/dir/wrong.csv"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
	e := decodeError(t, rec)
	if e.Code != "REM002" {
		t.Errorf("code = %q, want REM002", e.Code)
	}
	if e.Listing == nil || len(e.Listing.Entries) != 2 {
		t.Fatalf("listing = %+v, want the parent directory", e.Listing)
	}
	if e.Listing.Path != "/dir" {
		t.Errorf("listing path = %q", e.Listing.Path)
	}
}

func TestLoadRemoteUnconfigured(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/remote", map[string]string{"path": "/a.csv"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "REM001" {
		t.Errorf("code = %q, want REM001", e.Code)
	}
}

func TestStorageEntries(t *testing.T) {
	fake := newFakeStorage()
	fake.dirs["/dir"] = []storage.Entry{{Name: "registry.csv", Size: 10}}
	srv, _ := newTestServer(fake)

	rec := doJSON(t, srv, http.MethodGet, "/api/storage/entries?path=%2Fdir", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var listing core.Listing
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if len(listing.Entries) != 1 || listing.Entries[0].Name != "registry.csv" {
		t.Errorf("entries = %+v", listing.Entries)
	}
}

func TestEditFlow(t *testing.T) {
	srv, _ := newTestServer(nil)
	view := uploadSession(t, srv, "r.csv", sjisCSV(t, sampleCSV))
	base := "/api/sessions/" + view.ID

	// Edit a cell.
	rec := doJSON(t, srv, http.MethodPatch, base+"/cells",
		map[string]any{"row": 0, "column": "distributedPid", "value": "PX"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cell edit status = %d: %s", rec.Code, rec.Body.String())
	}
	edited := decodeView(t, rec)
	if !edited.Modified || edited.Rows[0].DistributedPid != "PX" {
		t.Errorf("edit not applied: %+v", edited.Rows[0])
	}

	// The year column is immutable.
	rec = doJSON(t, srv, http.MethodPatch, base+"/cells",
		map[string]any{"row": 0, "column": "year", "value": "1999"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("year edit status = %d, want 422", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "EDIT001" {
		t.Errorf("code = %q, want EDIT001", e.Code)
	}

	// Add a year, then a duplicate.
	rec = doJSON(t, srv, http.MethodPost, base+"/years", map[string]string{"year": "2019"})
	if rec.Code != http.StatusOK {
		t.Fatalf("add year status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv, http.MethodPost, base+"/years", map[string]string{"year": "2019"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate year status = %d, want 409", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "EDIT004" {
		t.Errorf("code = %q, want EDIT004", e.Code)
	}

	// Delete the added row.
	rec = doJSON(t, srv, http.MethodPost, base+"/rows/delete", map[string][]int{"rows": {0}})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeView(t, rec); got.RowCount != 2 {
		t.Errorf("rowCount after delete = %d, want 2", got.RowCount)
	}

	// Reset drops the cell edit.
	rec = doJSON(t, srv, http.MethodPost, base+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	if got := decodeView(t, rec); got.Modified || got.Rows[0].DistributedPid != "P1" {
		t.Errorf("reset did not restore: %+v", got.Rows[0])
	}
}

func TestDeleteRowsValidation(t *testing.T) {
	srv, _ := newTestServer(nil)
	view := uploadSession(t, srv, "r.csv", sjisCSV(t, sampleCSV))
	base := "/api/sessions/" + view.ID

	rec := doJSON(t, srv, http.MethodPost, base+"/rows/delete", map[string][]int{"rows": {}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty rows status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodPost, base+"/rows/delete", map[string][]int{"rows": {99}})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("out-of-range status = %d, want 422", rec.Code)
	}
}

func TestDiffAndSave(t *testing.T) {
	fake := newFakeStorage()
	fake.files["/dir/r.csv"] = sjisCSV(t, sampleCSV)
	srv, _ := newTestServer(fake)

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/remote", map[string]string{"path": "/dir/r.csv"})
	view := decodeView(t, rec)
	base := "/api/sessions/" + view.ID

	doJSON(t, srv, http.MethodPatch, base+"/cells",
		map[string]any{"row": 0, "column": "distributedId", "value": "DX"})

	rec = doJSON(t, srv, http.MethodGet, base+"/diff", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("diff status = %d", rec.Code)
	}
	var diff core.DiffView
	if err := json.Unmarshal(rec.Body.Bytes(), &diff); err != nil {
		t.Fatal(err)
	}
	if !diff.Changed || len(diff.Spans) < 2 {
		t.Errorf("diff = %+v, want changed spans", diff)
	}

	// Save with no body falls back to the session's origin.
	rec = doJSON(t, srv, http.MethodPost, base+"/save", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body.String())
	}
	var result core.SaveResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatal(err)
	}
	if result.Path != "/dir/r.csv" {
		t.Errorf("saved path = %q", result.Path)
	}

	dec := charset.Decode(fake.stored("/dir/r.csv"))
	if !strings.Contains(dec.Text, "2020,P1,DX,R1") {
		t.Errorf("stored text missing the edit:\n%s", dec.Text)
	}

	// After the save the session reports clean.
	rec = doJSON(t, srv, http.MethodGet, base, nil)
	if got := decodeView(t, rec); got.Modified {
		t.Error("session still modified after save")
	}
}

func TestSaveWithoutPath(t *testing.T) {
	srv, _ := newTestServer(newFakeStorage())
	view := uploadSession(t, srv, "r.csv", sjisCSV(t, sampleCSV))

	rec := doJSON(t, srv, http.MethodPost, "/api/sessions/"+view.ID+"/save", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "REM004" {
		t.Errorf("code = %q, want REM004", e.Code)
	}
}

func TestExportDownload(t *testing.T) {
	srv, _ := newTestServer(nil)
	view := uploadSession(t, srv, "台帳.csv", sjisCSV(t, sampleCSV))

	rec := doJSON(t, srv, http.MethodGet, "/api/sessions/"+view.ID+"/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, "attachment") {
		t.Errorf("Content-Disposition = %q", disposition)
	}
	// Non-ASCII names ride in the RFC 2231 extended form.
	if !strings.Contains(disposition, "utf-8''") {
		t.Errorf("Content-Disposition = %q, want an extended filename", disposition)
	}
	if got := rec.Header().Get("X-Registry-Encoding"); got != charset.LabelShiftJIS {
		t.Errorf("X-Registry-Encoding = %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), sjisCSV(t, sampleCSV)) {
		t.Error("exported bytes differ from the loaded file")
	}
}

func TestCloseSession(t *testing.T) {
	srv, _ := newTestServer(nil)
	view := uploadSession(t, srv, "r.csv", sjisCSV(t, sampleCSV))

	rec := doJSON(t, srv, http.MethodDelete, "/api/sessions/"+view.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("close status = %d", rec.Code)
	}

	rec = doJSON(t, srv, http.MethodGet, "/api/sessions/"+view.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("view after close = %d, want 404", rec.Code)
	}
	if e := decodeError(t, rec); e.Code != "SES001" {
		t.Errorf("code = %q, want SES001", e.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	srv, _ := newTestServer(nil)

	rec := doJSON(t, srv, http.MethodGet, "/api/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestInvalidJSONBody(t *testing.T) {
	srv, _ := newTestServer(nil)
	view := uploadSession(t, srv, "r.csv", sjisCSV(t, sampleCSV))

	req := httptest.NewRequest(http.MethodPatch, "/api/sessions/"+view.ID+"/cells",
		strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStatusForMapsSentinels(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrSessionNotFound, http.StatusNotFound},
		{storage.ErrNotFound, http.StatusNotFound},
		{core.ErrTooManyLoads, http.StatusTooManyRequests},
		{core.ErrRemoteUnconfigured, http.StatusServiceUnavailable},
		{core.ErrStorage, http.StatusBadGateway},
		{core.ErrNotCSV, http.StatusUnprocessableEntity},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(fmt.Errorf("wrapped: %w", tt.err)); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)

	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Error("third request should be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("a different IP has its own bucket")
	}
}

func TestRateLimitedEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	cfg.Rate.LoadsPerMinute = 2

	sessions := session.NewStore(time.Minute, time.Minute)
	svc := core.NewService(nil, sessions, core.NewLoadLimiter(2, time.Second))
	srv := NewServer(svc, cfg)

	for i := 0; i < 2; i++ {
		if rec := doJSON(t, srv, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}
	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}
