package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/catalog/internal/model"
)

type mockSessionManager struct {
	findSessionFn  func(ctx context.Context, id string) (*model.Session, error)
	startSessionFn func(ctx context.Context) (*model.Session, error)
}

func (m *mockSessionManager) FindSession(ctx context.Context, id string) (*model.Session, error) {
	if m.findSessionFn != nil {
		return m.findSessionFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionManager) StartSession(ctx context.Context) (*model.Session, error) {
	if m.startSessionFn != nil {
		return m.startSessionFn(ctx)
	}
	return nil, nil
}

var _ SessionManager = (*mockSessionManager)(nil)

func TestSessionMiddleware_NoCookie_StartsNewSessionAndSetsCookie(t *testing.T) {
	manager := &mockSessionManager{
		startSessionFn: func(_ context.Context) (*model.Session, error) {
			return &model.Session{ID: "new-session-id"}, nil
		},
	}
	mw := NewSessionMiddleware(manager, SessionConfig{MaxAge: 86400})

	var injected *model.Session
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		injected, _ = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if injected == nil || injected.ID != "new-session-id" {
		t.Fatalf("expected new session in context, got %+v", injected)
	}

	cookies := w.Result().Cookies()
	var sessionCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == "session_id" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be set")
	}
	if sessionCookie.Value != "new-session-id" {
		t.Errorf("cookie value = %q, want %q", sessionCookie.Value, "new-session-id")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}
	if sessionCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie SameSite = %v, want Lax", sessionCookie.SameSite)
	}
}

func TestSessionMiddleware_ValidCookie_InjectsExistingSession(t *testing.T) {
	started := false
	manager := &mockSessionManager{
		findSessionFn: func(_ context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, LoggedIn: true, UserID: "user-1"}, nil
		},
		startSessionFn: func(_ context.Context) (*model.Session, error) {
			started = true
			return &model.Session{ID: "should-not-happen"}, nil
		},
	}
	mw := NewSessionMiddleware(manager, SessionConfig{MaxAge: 86400})

	var injected *model.Session
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		injected, _ = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "existing-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if injected == nil || injected.ID != "existing-id" {
		t.Fatalf("expected existing session in context, got %+v", injected)
	}
	if !injected.LoggedIn {
		t.Error("expected logged-in session")
	}
	if started {
		t.Error("a new session must not be started when the cookie is valid")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("no new cookie should be set for an existing session")
	}
}

// 期限切れセッションはFindSessionがnilを返すので、新規セッションが作られる
func TestSessionMiddleware_ExpiredSession_StartsNewSession(t *testing.T) {
	manager := &mockSessionManager{
		findSessionFn: func(_ context.Context, _ string) (*model.Session, error) {
			return nil, nil
		},
		startSessionFn: func(_ context.Context) (*model.Session, error) {
			return &model.Session{ID: "replacement-id"}, nil
		},
	}
	mw := NewSessionMiddleware(manager, SessionConfig{MaxAge: 86400})

	var injected *model.Session
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		injected, _ = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "expired-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if injected == nil || injected.ID != "replacement-id" {
		t.Fatalf("expected replacement session, got %+v", injected)
	}
}

func TestSessionFromContext_NoSession_ReturnsError(t *testing.T) {
	if _, err := SessionFromContext(context.Background()); err == nil {
		t.Fatal("expected error for context without session")
	}
}
