package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/catalog/internal/model"
)

const (
	// csrfFormField はフォーム送信からCSRFトークンを読み取る際のフィールド名。
	csrfFormField = "csrf_token"

	// csrfHeaderName はリクエストヘッダーからCSRFトークンを読み取る際のヘッダー名。
	csrfHeaderName = "X-CSRF-Token"
)

// CSRFConfig はCSRF検証ミドルウェアの設定。
type CSRFConfig struct {
	// MaxBodySize はフォームボディ読み取りの上限バイト数。
	// 画像アップロードを含むmultipartフォームもこの上限に収まる必要がある。
	MaxBodySize int64
}

// NewCSRFMiddleware は変更系リクエストのCSRFトークンを検証するミドルウェアを返す。
// 提示トークンは X-CSRF-Token ヘッダーまたはフォームフィールド csrf_token から
// 読み取り、セッションに保存された発行済みトークンと厳密比較する。
// 検証はハンドラーの実行前に行われ、不一致の場合はいかなるデータ変更も起こらない。
// トークンの比較はここが唯一の箇所であり、ハンドラー側での再検証はしない。
// 変更系ルートにのみ適用すること。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := SessionFromContext(r.Context())
			if err != nil {
				slog.Error("CSRF validation without session", slog.String("path", r.URL.Path))
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			// フォーム読み取り前にボディサイズの上限を適用する
			if config.MaxBodySize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, config.MaxBodySize)
			}

			submitted := r.Header.Get(csrfHeaderName)
			if submitted == "" {
				// FormValueはmultipart/urlencodedの両方を透過的にパースする
				submitted = r.FormValue(csrfFormField)
			}

			if submitted == "" || session.CSRFToken == "" || submitted != session.CSRFToken {
				slog.Warn("CSRF validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidCSRFTokenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
