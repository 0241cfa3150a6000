package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirk1998/daybook/pkg/errors"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestSession_DiaryUnlockWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &Session{}

	if s.IsDiaryUnlocked(now, time.Hour) {
		t.Fatalf("new session must start locked")
	}

	s.MarkDiaryUnlocked(now)
	if !s.IsDiaryUnlocked(now.Add(59*time.Minute), time.Hour) {
		t.Errorf("expected unlocked inside the window")
	}
	if s.IsDiaryUnlocked(now.Add(time.Hour), time.Hour) {
		t.Errorf("expected locked once the window has elapsed")
	}
	if exp, ok := s.DiaryUnlockExpiry(now, time.Hour); !ok || !exp.Equal(now.Add(time.Hour)) {
		t.Errorf("DiaryUnlockExpiry = %v, %v", exp, ok)
	}

	s.LockDiary()
	if s.IsDiaryUnlocked(now, time.Hour) {
		t.Errorf("LockDiary should lock immediately")
	}
}

func TestSession_PendingOTPIsSingleSlot(t *testing.T) {
	s := &Session{}
	exp := time.Now().Add(10 * time.Minute)

	s.SetPendingOTP("111111", exp, 1)
	s.SetPendingOTP("222222", exp, 1)

	if s.PendingOTP == nil || s.PendingOTP.Code != "222222" {
		t.Fatalf("expected the newest code to replace the old one, got %+v", s.PendingOTP)
	}
	s.ClearPendingOTP()
	if s.PendingOTP != nil {
		t.Errorf("expected slot to be empty")
	}
}

func TestMemoryStore_IdleTimeout(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	store.Put("a", &Session{ID: "a", UserID: 1, LastActivity: now})
	store.Put("b", &Session{ID: "b", UserID: 2, LastActivity: now.Add(-time.Hour)})

	if _, ok := store.Get("a"); !ok {
		t.Errorf("fresh session should be found")
	}
	if _, ok := store.Get("b"); ok {
		t.Errorf("idle session should be expired")
	}

	now = now.Add(31 * time.Minute)
	if removed := store.Cleanup(); removed != 1 {
		t.Errorf("expected 1 session cleaned up, got %d", removed)
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore(0)
	store.Put("a", &Session{ID: "a", LastActivity: time.Now()})

	s, _ := store.Get("a")
	s.MarkDiaryUnlocked(time.Now())
	s.SetPendingOTP("123456", time.Now(), 1)

	again, _ := store.Get("a")
	if again.DiaryUnlocked || again.PendingOTP != nil {
		t.Errorf("mutating a fetched session must not change the stored one before Put")
	}
}

func cookieRequest(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestManager_CreateLoadDestroy(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	m := NewManager(store, testKey, "", false)

	rec := httptest.NewRecorder()
	s, err := m.Create(rec, httptest.NewRequest(http.MethodPost, "/", nil), 7, "alice")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode {
		t.Fatalf("expected one http-only SameSite cookie, got %+v", cookies)
	}
	if cookies[0].Value == s.ID {
		t.Errorf("cookie must be signed, not the raw id")
	}

	loaded, err := m.Load(cookieRequest(rec))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.UserID != 7 || loaded.Username != "alice" {
		t.Errorf("unexpected session %+v", loaded)
	}

	loaded.MarkDiaryUnlocked(time.Now())
	m.Save(loaded)
	again, _ := m.Load(cookieRequest(rec))
	if !again.DiaryUnlocked {
		t.Errorf("Save should persist diary state")
	}

	m.Destroy(httptest.NewRecorder(), cookieRequest(rec))
	if _, err := m.Load(cookieRequest(rec)); !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized after Destroy, got %v", err)
	}
}

func TestManager_RejectsTamperedCookie(t *testing.T) {
	m := NewManager(NewMemoryStore(time.Hour), testKey, "sid", false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "forged"})
	if _, err := m.Load(req); !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	if _, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil)); !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized without cookie, got %v", err)
	}
}

func TestManager_CreateReplacesPreviousSession(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	m := NewManager(store, testKey, "", false)

	first := httptest.NewRecorder()
	m.Create(first, httptest.NewRequest(http.MethodPost, "/", nil), 1, "alice")

	second := httptest.NewRecorder()
	if _, err := m.Create(second, cookieRequest(first), 1, "alice"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if store.Len() != 1 {
		t.Errorf("expected the old session to be dropped, store has %d", store.Len())
	}
	if _, err := m.Load(cookieRequest(first)); err == nil {
		t.Errorf("old cookie should no longer resolve")
	}
}

func TestMemoryStore_UpdateOnlyReplacesLiveSessions(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	if store.Update("missing", &Session{ID: "missing", LastActivity: now}) {
		t.Errorf("Update must not create a session")
	}
	if store.Len() != 0 {
		t.Errorf("expected empty store, got %d", store.Len())
	}

	store.Put("a", &Session{ID: "a", LastActivity: now})
	if !store.Update("a", &Session{ID: "a", UserID: 9, LastActivity: now}) {
		t.Fatalf("Update of a live session should succeed")
	}
	if s, _ := store.Get("a"); s.UserID != 9 {
		t.Errorf("Update did not replace the session: %+v", s)
	}

	now = now.Add(time.Hour)
	if store.Update("a", &Session{ID: "a", LastActivity: now}) {
		t.Errorf("Update must not revive an expired session")
	}
	if store.Len() != 0 {
		t.Errorf("expired session should have been dropped, store has %d", store.Len())
	}
}

func TestManager_SaveAfterDestroyKeepsSessionGone(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	m := NewManager(store, testKey, "", false)

	rec := httptest.NewRecorder()
	if _, err := m.Create(rec, httptest.NewRequest(http.MethodPost, "/", nil), 1, "alice"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// a request that loaded the session before logout and saves after it
	inflight, err := m.Load(cookieRequest(rec))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	m.Destroy(httptest.NewRecorder(), cookieRequest(rec))

	inflight.MarkDiaryUnlocked(time.Now())
	if m.Save(inflight) {
		t.Errorf("Save should report the session as gone")
	}
	if _, err := m.Load(cookieRequest(rec)); !errors.Is(err, errors.ErrUnauthorized) {
		t.Errorf("old cookie must stay invalid after logout, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Save recreated the session, store has %d", store.Len())
	}
}
