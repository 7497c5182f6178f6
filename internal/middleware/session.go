// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/catalog/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionManager はセッションの検索・作成に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionManager interface {
	FindSession(ctx context.Context, id string) (*model.Session, error)
	StartSession(ctx context.Context) (*model.Session, error)
}

// SessionConfig はセッションミドルウェアのCookie設定。
type SessionConfig struct {
	CookieSecure bool
	CookieDomain string
	MaxAge       int // セッションCookieの有効期間（秒）
}

// NewSessionMiddleware は訪問者ごとのサーバーサイドセッションを用意するミドルウェアを返す。
// HTTP Only CookieのセッションIDから既存セッションを読み取り、
// Cookie未設定または期限切れの場合は未認証状態の新規セッションを作成する。
// セッションはリクエストコンテキストに注入され、以降のハンドラーから参照できる。
// このミドルウェアより後段では、同一セッションの状態変更はそのリクエスト内で完結する。
func NewSessionMiddleware(manager SessionManager, config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var session *model.Session

			// 1. Cookieから既存セッションを取得
			cookie, err := r.Cookie(sessionCookieName)
			if err == nil && cookie.Value != "" {
				session, err = manager.FindSession(r.Context(), cookie.Value)
				if err != nil {
					slog.Error("failed to find session",
						slog.String("error", err.Error()),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}
			}

			// 2. セッションがない（Cookie未設定・期限切れ）場合は新規作成
			if session == nil {
				session, err = manager.StartSession(r.Context())
				if err != nil {
					slog.Error("failed to start session",
						slog.String("error", err.Error()),
					)
					http.Error(w, "internal server error", http.StatusInternalServerError)
					return
				}

				http.SetCookie(w, &http.Cookie{
					Name:     sessionCookieName,
					Value:    session.ID,
					Path:     "/",
					Domain:   config.CookieDomain,
					MaxAge:   config.MaxAge,
					HttpOnly: true,
					Secure:   config.CookieSecure,
					SameSite: http.SameSiteLaxMode,
				})
			}

			// 3. セッションをコンテキストに注入
			ctx := context.WithValue(r.Context(), sessionContextKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, error) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || session == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return session, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
