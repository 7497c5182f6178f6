package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/catalog/internal/metrics"
	"github.com/hitoshi/catalog/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// インフラ依存
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer

	// ミドルウェア依存
	SessionManager    middleware.SessionManager
	SessionConfig     middleware.SessionConfig
	CSRFConfig        middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HTTPMetrics       middleware.HTTPMetricsRecorder
	Logger            *slog.Logger

	// サービス
	AuthService    AuthServiceInterface
	SignInMetrics  SignInMetrics
	CatalogService CatalogServiceInterface
	ItemService    ItemServiceInterface
	Ownership      OwnershipChecker
	SessionState   SessionStateService
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Logging → Metrics → RateLimit(General)
//
// Sessionより内側でのみセッションがコンテキストから参照できる。
// /health と /metrics は機械向けエンドポイントのためセッションチェーンの外に置く。
// 変更系ルートには変更操作専用レート制限とCSRF検証を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.SignInMetrics)
	catalogHandler := NewCatalogHandler(deps.CatalogService, deps.SessionState)
	itemHandler := NewItemHandler(deps.ItemService, deps.Ownership, deps.SessionState)

	// --- セッション不要の機械向けルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))
	r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))

	// --- セッション付きルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionManager, deps.SessionConfig))
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		mutation := deps.RateLimiter.MutationMiddleware()
		csrf := middleware.NewCSRFMiddleware(deps.CSRFConfig)

		// 機械向けカタログ出力
		r.Get("/catalog.json", catalogHandler.CatalogJSON)

		// 認証（サインインはstate検証がCSRF対策を兼ねる）
		r.Route("/auth", func(r chi.Router) {
			r.With(mutation).Post("/google/connect", authHandler.Connect)
			r.With(mutation).Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// カテゴリ閲覧とアイテム作成
		r.Route("/api/categories", func(r chi.Router) {
			r.Get("/", catalogHandler.Overview)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", catalogHandler.GetCategory)
				r.Get("/items/new", catalogHandler.NewItemForm)
				r.With(mutation, csrf).Post("/items", itemHandler.CreateItem)
			})
		})

		// アイテム閲覧と編集・削除
		r.Route("/api/items/{id}", func(r chi.Router) {
			r.Get("/", itemHandler.GetItem)
			r.Get("/edit", itemHandler.EditItemForm)
			r.With(mutation, csrf).Post("/", itemHandler.UpdateItem)
			r.With(mutation, csrf).Post("/delete", itemHandler.DeleteItem)
		})

		// アイテム画像のバイナリ配信
		r.Get("/items/{id}/image", itemHandler.GetItemImage)
	})

	return r
}

// newHealthHandler はDB接続を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
