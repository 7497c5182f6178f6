package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/catalog/internal/model"
)

func newLimitedRequest(sessionID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	session := &model.Session{ID: sessionID}
	return req.WithContext(ContextWithSession(req.Context(), session))
}

func TestGeneralMiddleware_WithinBurst_AllowsRequests(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    3,
		MutationRate:    rate.Limit(1),
		MutationBurst:   1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newLimitedRequest("sess-1"))
		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
}

func TestGeneralMiddleware_BurstExceeded_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.5),
		GeneralBurst:    1,
		MutationRate:    rate.Limit(1),
		MutationBurst:   1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newLimitedRequest("sess-1"))
	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("first request: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newLimitedRequest("sess-1"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
	if w.Result().Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

// セッションごとに独立したリミッターが割り当てられる
func TestGeneralMiddleware_SeparateSessions_AreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.5),
		GeneralBurst:    1,
		MutationRate:    rate.Limit(1),
		MutationBurst:   1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newLimitedRequest("sess-1"))

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newLimitedRequest("sess-2"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("other session: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("limiter count = %d, want 2", rl.GeneralLimiterCount())
	}
}

// 変更操作リミッターはAPI全般リミッターとは独立に動作する
func TestMutationMiddleware_IndependentOfGeneralLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.5),
		GeneralBurst:    1,
		MutationRate:    rate.Limit(0.5),
		MutationBurst:   1,
		CleanupInterval: time.Minute,
	})
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	mutation := rl.MutationMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// API全般を使い切っても変更操作には影響しない
	w := httptest.NewRecorder()
	general.ServeHTTP(w, newLimitedRequest("sess-1"))
	w = httptest.NewRecorder()
	general.ServeHTTP(w, newLimitedRequest("sess-1"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Fatalf("general limiter should be exhausted, got %d", w.Result().StatusCode)
	}

	w = httptest.NewRecorder()
	mutation.ServeHTTP(w, newLimitedRequest("sess-1"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("mutation: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestNewRateLimiterConfig_ConvertsPerMinuteRates(t *testing.T) {
	cfg := NewRateLimiterConfig(120, 20)

	if cfg.GeneralRate != rate.Limit(2) {
		t.Errorf("generalRate = %v, want 2 req/sec", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("generalBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.MutationBurst != 20 {
		t.Errorf("mutationBurst = %d, want 20", cfg.MutationBurst)
	}
}

func TestCleanup_RemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1),
		GeneralBurst:    1,
		MutationRate:    rate.Limit(1),
		MutationBurst:   1,
		CleanupInterval: time.Millisecond,
	})
	defer rl.Stop()

	rl.getOrCreateGeneralLimiter("sess-1")

	// 最終アクセスを過去に偽装してクリーンアップ対象にする
	rl.generalMu.Lock()
	rl.generalLimiters["sess-1"].lastAccess = time.Now().Add(-time.Hour)
	rl.generalMu.Unlock()

	rl.cleanup()

	if rl.GeneralLimiterCount() != 0 {
		t.Errorf("limiter count = %d, want 0 after cleanup", rl.GeneralLimiterCount())
	}
}
