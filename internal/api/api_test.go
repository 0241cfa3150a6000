package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/amirk1998/daybook/internal/database"
	"github.com/amirk1998/daybook/internal/mailer"
	"github.com/amirk1998/daybook/internal/ratelimit"
	"github.com/amirk1998/daybook/internal/repository"
	"github.com/amirk1998/daybook/internal/security"
	"github.com/amirk1998/daybook/internal/service"
	"github.com/amirk1998/daybook/internal/session"
	"github.com/amirk1998/daybook/internal/storage"
)

type testClient struct {
	t      *testing.T
	server *Server
	cookie *http.Cookie
}

type apiResponse struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

func setupServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(testDeps(t))
}

func testDeps(t *testing.T) Deps {
	t.Helper()

	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tm := database.NewTransactionManager(db)
	users := repository.NewUserRepository(db, tm)
	notes := repository.NewNoteRepository(db)
	categories := repository.NewCategoryRepository(db)
	hasher := security.NewFastSecretHasher()

	encryptor, err := security.NewFieldEncryptor(security.DeriveKey("api-test-app-key-0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewFieldEncryptor failed: %v", err)
	}
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	sessions := session.NewManager(session.NewMemoryStore(time.Hour), []byte("api-test-session-secret-0123456789"), "", false)

	return Deps{
		DB: db,
		Auth: service.NewAuthService(users, hasher, ratelimit.NewRateLimiter(1000, 1000), nil,
			service.LoginPolicy{MaxAttempts: 5, LockDuration: time.Minute}),
		Notes:      service.NewNoteService(notes, categories, nil),
		Todos:      service.NewTodoService(repository.NewTodoRepository(db, tm), categories, nil),
		Categories: service.NewCategoryService(categories, nil),
		Diary: service.NewDiaryService(users, repository.NewDiaryRepository(db), encryptor, hasher, sessions,
			mailer.NewLogSender(), nil, service.DiaryPolicy{
				UnlockTTL: time.Hour, OTPTTL: 10 * time.Minute,
				PinMaxAttempts: 5, PinLockout: 15 * time.Minute, OTPRequestsPerHour: 5,
			}),
		Images:    service.NewImageService(repository.NewImageRepository(db), notes, users, files, 1<<16, nil),
		Sessions:  sessions,
		Limiter:   ratelimit.NewRateLimiter(1000, 1000),
		UploadMax: 1 << 16,
	}
}

func (c *testClient) do(method, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, apiResponse) {
	c.t.Helper()

	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.server.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == session.DefaultCookieName {
			if ck.MaxAge < 0 {
				c.cookie = nil
			} else {
				c.cookie = ck
			}
		}
	}

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			c.t.Fatalf("%s %s: invalid envelope %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, resp
}

func (c *testClient) json(method, path string, payload any) (int, apiResponse) {
	c.t.Helper()
	var body io.Reader
	if payload != nil {
		switch p := payload.(type) {
		case string:
			body = strings.NewReader(p)
		default:
			b, err := json.Marshal(p)
			if err != nil {
				c.t.Fatalf("marshal: %v", err)
			}
			body = bytes.NewReader(b)
		}
	}
	rec, resp := c.do(method, path, body, "application/json")
	return rec.Code, resp
}

func (c *testClient) expect(method, path string, payload any, want int) apiResponse {
	c.t.Helper()
	code, resp := c.json(method, path, payload)
	if code != want {
		c.t.Fatalf("%s %s: want %d, got %d (%s)", method, path, want, code, resp.Message)
	}
	if resp.Success != (want < 400) {
		c.t.Fatalf("%s %s: success=%v for status %d", method, path, resp.Success, code)
	}
	if _, err := time.Parse(time.RFC3339, resp.Timestamp); err != nil {
		c.t.Fatalf("%s %s: bad timestamp %q", method, path, resp.Timestamp)
	}
	return resp
}

func decodeData(t *testing.T, resp apiResponse, dst any) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, dst); err != nil {
		t.Fatalf("decode data %s: %v", resp.Data, err)
	}
}

func register(t *testing.T, srv *Server, username string) *testClient {
	t.Helper()
	c := &testClient{t: t, server: srv}
	c.expect("POST", "/api/auth/register", map[string]string{
		"username": username, "email": username + "@example.com", "password": "secret123",
	}, http.StatusCreated)
	if c.cookie == nil {
		t.Fatal("register should set a session cookie")
	}
	return c
}

func TestAPI_AuthFlow(t *testing.T) {
	srv := setupServer(t)
	alice := register(t, srv, "alice")

	resp := alice.expect("GET", "/api/auth/me", nil, http.StatusOK)
	var me struct {
		Username    string `json:"username"`
		HasDiaryPin bool   `json:"has_diary_pin"`
		Password    string `json:"password_hash"`
	}
	decodeData(t, resp, &me)
	if me.Username != "alice" || me.HasDiaryPin || me.Password != "" {
		t.Errorf("unexpected me payload %s", resp.Data)
	}

	anon := &testClient{t: t, server: srv}
	resp = anon.expect("GET", "/api/notes", nil, http.StatusUnauthorized)
	if resp.Message != "authentication required" {
		t.Errorf("unexpected message %q", resp.Message)
	}

	tampered := &testClient{t: t, server: srv, cookie: &http.Cookie{
		Name: alice.cookie.Name, Value: "x" + alice.cookie.Value,
	}}
	tampered.expect("GET", "/api/auth/me", nil, http.StatusUnauthorized)

	alice.expect("POST", "/api/auth/register", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "secret123",
	}, http.StatusConflict)

	alice.expect("POST", "/api/auth/logout", nil, http.StatusOK)
	alice.expect("GET", "/api/auth/me", nil, http.StatusUnauthorized)

	alice.expect("POST", "/api/auth/login", map[string]string{"username": "alice", "password": "nope"}, http.StatusUnauthorized)
	alice.expect("POST", "/api/auth/login", map[string]string{"username": "alice", "password": "secret123"}, http.StatusOK)
	alice.expect("GET", "/api/auth/me", nil, http.StatusOK)
}

func TestAPI_EnvelopeErrors(t *testing.T) {
	srv := setupServer(t)
	alice := register(t, srv, "alice")

	resp := alice.expect("POST", "/api/notes", "{not json", http.StatusBadRequest)
	if resp.Message != "invalid JSON body" {
		t.Errorf("unexpected message %q", resp.Message)
	}

	alice.expect("GET", "/api/does-not-exist", nil, http.StatusNotFound)
	alice.expect("PATCH", "/api/notes", nil, http.StatusMethodNotAllowed)
	alice.expect("GET", "/api/notes/abc", nil, http.StatusBadRequest)
	alice.expect("GET", "/api/notes?page=x", nil, http.StatusBadRequest)
}

func TestAPI_NotesTodosCategories(t *testing.T) {
	srv := setupServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	var cats []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	decodeData(t, alice.expect("GET", "/api/categories", nil, http.StatusOK), &cats)
	if len(cats) != 4 {
		t.Fatalf("expected 4 default categories, got %d", len(cats))
	}
	var work struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	for _, c := range cats {
		if c.Name == "Work" {
			work = c
		}
	}
	if work.ID == 0 {
		t.Fatal("Work category missing")
	}

	var note struct {
		ID           int      `json:"id"`
		Tags         []string `json:"tags"`
		IsPinned     bool     `json:"is_pinned"`
		CategoryName *string  `json:"category_name"`
	}
	decodeData(t, alice.expect("POST", "/api/notes", map[string]any{
		"title": "Groceries", "category_id": work.ID, "unknown_field": true,
	}, http.StatusCreated), &note)
	if note.Tags == nil || len(note.Tags) != 0 {
		t.Errorf("tags should serialise as [], got %v", note.Tags)
	}

	notePath := fmt.Sprintf("/api/notes/%d", note.ID)
	alice.expect("PUT", notePath, map[string]any{}, http.StatusBadRequest)
	bob.expect("GET", notePath, nil, http.StatusNotFound)
	bob.expect("DELETE", notePath, nil, http.StatusNotFound)
	bob.expect("DELETE", "/api/notes/99999", nil, http.StatusNotFound)

	decodeData(t, alice.expect("POST", notePath+"/pin", nil, http.StatusOK), &note)
	if !note.IsPinned {
		t.Error("pin toggle should pin the note")
	}

	resp := alice.expect("DELETE", fmt.Sprintf("/api/categories/%d", work.ID), nil, http.StatusConflict)
	if !strings.Contains(resp.Message, "it is used by 1 item(s)") {
		t.Errorf("unexpected conflict message %q", resp.Message)
	}

	resp = bob.expect("GET", "/api/notes", nil, http.StatusOK)
	if string(resp.Data) != "[]" {
		t.Errorf("empty list should be [], got %s", resp.Data)
	}

	var ids []int
	for _, title := range []string{"a", "b", "c"} {
		var todo struct {
			ID int `json:"id"`
		}
		decodeData(t, alice.expect("POST", "/api/todos", map[string]string{"title": title}, http.StatusCreated), &todo)
		ids = append(ids, todo.ID)
	}
	alice.expect("PUT", "/api/todos/reorder", map[string]any{
		"todos": []map[string]int{{"id": ids[1]}, {"id": ids[2]}, {"id": ids[0]}},
	}, http.StatusOK)

	var todos []struct {
		ID int `json:"id"`
	}
	decodeData(t, alice.expect("GET", "/api/todos", nil, http.StatusOK), &todos)
	if len(todos) != 3 || todos[0].ID != ids[1] || todos[2].ID != ids[0] {
		t.Errorf("unexpected order %+v", todos)
	}

	var done struct {
		Status      string  `json:"status"`
		CompletedAt *string `json:"completed_at"`
	}
	decodeData(t, alice.expect("PUT", fmt.Sprintf("/api/todos/%d", ids[0]), map[string]string{"status": "completed"}, http.StatusOK), &done)
	if done.Status != "completed" || done.CompletedAt == nil {
		t.Errorf("expected completed_at to be set, got %+v", done)
	}
}

func TestAPI_DiaryGate(t *testing.T) {
	srv := setupServer(t)
	alice := register(t, srv, "alice")

	resp := alice.expect("GET", "/api/diary/entries", nil, http.StatusForbidden)
	if resp.Message != "diary is locked" {
		t.Errorf("unexpected message %q", resp.Message)
	}

	alice.expect("POST", "/api/diary/verify", map[string]string{"pin": "1234"}, http.StatusNotFound)
	alice.expect("POST", "/api/diary/pin", map[string]string{"new_pin": "1234", "confirm_pin": "1234"}, http.StatusOK)

	resp = alice.expect("GET", "/api/diary/entries", nil, http.StatusOK)
	if string(resp.Data) != "[]" {
		t.Errorf("expected empty list, got %s", resp.Data)
	}

	var entry struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
	}
	decodeData(t, alice.expect("POST", "/api/diary/entries", map[string]string{"content": "today was good"}, http.StatusCreated), &entry)
	if entry.Content != "today was good" {
		t.Errorf("unexpected entry %+v", entry)
	}

	alice.expect("POST", "/api/diary/lock", nil, http.StatusOK)
	alice.expect("GET", fmt.Sprintf("/api/diary/entries/%d", entry.ID), nil, http.StatusForbidden)

	alice.expect("POST", "/api/diary/verify", map[string]string{"pin": "0000"}, http.StatusUnauthorized)
	alice.expect("POST", "/api/diary/verify", map[string]string{"pin": "1234"}, http.StatusOK)
	alice.expect("GET", fmt.Sprintf("/api/diary/entries/%d", entry.ID), nil, http.StatusOK)

	alice.expect("POST", "/api/diary/otp/confirm", map[string]string{"otp": "123456", "new_pin": "1111", "confirm_pin": "1111"}, http.StatusBadRequest)
	alice.expect("POST", "/api/diary/otp/request", nil, http.StatusOK)

	var status struct {
		HasPin   bool `json:"has_pin"`
		Unlocked bool `json:"unlocked"`
	}
	decodeData(t, alice.expect("GET", "/api/diary/status", nil, http.StatusOK), &status)
	if !status.HasPin || !status.Unlocked {
		t.Errorf("unexpected status %+v", status)
	}

	// logging out drops the unlock with the session
	alice.expect("POST", "/api/auth/logout", nil, http.StatusOK)
	alice.expect("POST", "/api/auth/login", map[string]string{"username": "alice", "password": "secret123"}, http.StatusOK)
	alice.expect("GET", "/api/diary/entries", nil, http.StatusForbidden)
}

func TestAPI_ImageUpload(t *testing.T) {
	srv := setupServer(t)
	alice := register(t, srv, "alice")
	bob := register(t, srv, "bob")

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("image_type", "profile")
	fw, err := mw.CreateFormFile("image", "me.png")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(png)
	mw.Close()

	rec, resp := alice.do("POST", "/api/images", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: want 201, got %d (%s)", rec.Code, resp.Message)
	}
	var img struct {
		ID       int    `json:"id"`
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	decodeData(t, resp, &img)
	if img.MimeType != "image/png" {
		t.Errorf("unexpected mime type %q", img.MimeType)
	}

	rec, _ = alice.do("GET", img.URL, nil, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" || !bytes.Equal(rec.Body.Bytes(), png) {
		t.Errorf("file download: code=%d type=%q len=%d", rec.Code, rec.Header().Get("Content-Type"), rec.Body.Len())
	}
	rec, _ = bob.do("GET", img.URL, nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign file download should be 404, got %d", rec.Code)
	}

	var me struct {
		ProfileIcon string `json:"profile_icon"`
	}
	decodeData(t, alice.expect("GET", "/api/auth/me", nil, http.StatusOK), &me)
	if me.ProfileIcon != img.URL {
		t.Errorf("profile_icon = %q, want %q", me.ProfileIcon, img.URL)
	}

	alice.expect("DELETE", fmt.Sprintf("/api/images/%d", img.ID), nil, http.StatusOK)
	alice.expect("GET", fmt.Sprintf("/api/images/%d", img.ID), nil, http.StatusNotFound)

	rec, _ = alice.do("POST", "/api/images", strings.NewReader("nope"), "text/plain")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart upload should be 400, got %d", rec.Code)
	}
}

func TestAPI_RegisterThenPatchNote(t *testing.T) {
	srv := setupServer(t)
	alice := &testClient{t: t, server: srv}

	var user struct {
		ID int `json:"id"`
	}
	decodeData(t, alice.expect("POST", "/api/auth/register", map[string]string{
		"username": "alice", "email": "alice@x.com", "password": "password1",
	}, http.StatusCreated), &user)
	if user.ID == 0 || alice.cookie == nil {
		t.Fatalf("expected a user id and a session, got %d", user.ID)
	}

	if resp := alice.expect("GET", "/api/notes", nil, http.StatusOK); string(resp.Data) != "[]" {
		t.Fatalf("expected [], got %s", resp.Data)
	}

	type note struct {
		ID       int      `json:"id"`
		Title    string   `json:"title"`
		Content  string   `json:"content"`
		IsPinned bool     `json:"is_pinned"`
		Tags     []string `json:"tags"`
	}
	var created note
	decodeData(t, alice.expect("POST", "/api/notes", map[string]string{"title": "T", "content": "C"}, http.StatusCreated), &created)
	if created.ID == 0 || created.IsPinned || created.Tags == nil || len(created.Tags) != 0 {
		t.Fatalf("unexpected note %+v", created)
	}

	var patched note
	decodeData(t, alice.expect("PUT", fmt.Sprintf("/api/notes/%d", created.ID), map[string]bool{"is_pinned": true}, http.StatusOK), &patched)
	if patched.ID != created.ID || !patched.IsPinned || patched.Title != "T" || patched.Content != "C" {
		t.Errorf("unexpected patched note %+v", patched)
	}
}

func TestRateLimit_ForwardedForNeedsTrustedProxy(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		wantThird  int
	}{
		{"direct clients cannot rotate forwarded addresses", false, http.StatusTooManyRequests},
		{"trusted proxy keys by forwarded address", true, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(t)
			deps.Limiter = ratelimit.NewRateLimiter(1, 2)
			deps.TrustProxy = tt.trustProxy
			server := NewServer(deps)

			var last int
			for i := 0; i < 3; i++ {
				req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
				req.RemoteAddr = "198.51.100.7:4000"
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
				rec := httptest.NewRecorder()
				server.ServeHTTP(rec, req)
				last = rec.Code
			}
			if last != tt.wantThird {
				t.Errorf("third request status = %d, want %d", last, tt.wantThird)
			}
		})
	}
}
