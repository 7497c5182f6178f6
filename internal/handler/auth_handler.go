// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/catalog/internal/auth"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/model"
)

// maxAuthCodeSize は認可コードボディの読み取り上限バイト数。
const maxAuthCodeSize = 4096

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// SignIn はGoogleサインインのコールバック（stateと認可コード）を処理する。
	SignIn(ctx context.Context, session *model.Session, state, code string) (*auth.SignInResult, error)
	// Logout はセッションを未認証状態に戻す。
	Logout(ctx context.Context, session *model.Session) error
}

// SignInMetrics はサインイン結果のメトリクス記録インターフェース。
type SignInMetrics interface {
	RecordSignInSuccess()
	RecordSignInFailure(reason string)
}

// AuthHandler はGoogleサインイン関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	metrics SignInMetrics
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, metrics SignInMetrics) *AuthHandler {
	return &AuthHandler{
		service: service,
		metrics: metrics,
	}
}

// connectResponse はサインイン成功時のレスポンス。
type connectResponse struct {
	Message          string `json:"message"`
	AlreadyConnected bool   `json:"already_connected"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Picture          string `json:"picture"`
}

// Connect はGoogleサインインのコールバックを処理する。
// stateはクエリパラメータ、認可コードはリクエストボディで渡される。
// POST /auth/google/connect?state=xxx
func (h *AuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("connect without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	state := r.URL.Query().Get("state")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxAuthCodeSize))
	if err != nil {
		slog.Warn("failed to read authorization code", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("認可コードの読み取りに失敗しました。"))
		return
	}
	code := strings.TrimSpace(string(body))

	result, err := h.service.SignIn(r.Context(), session, state, code)
	if err != nil {
		h.metrics.RecordSignInFailure(signInFailureReason(err))
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordSignInSuccess()

	resp := connectResponse{
		Message:          "Successfully connected.",
		AlreadyConnected: result.AlreadyConnected,
		Name:             result.Name,
		Email:            result.Email,
		Picture:          result.Picture,
	}
	if result.AlreadyConnected {
		resp.Message = "Current user is already connected."
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Logout はサインアウトを処理する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("logout without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if !session.LoggedIn {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.service.Logout(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "Successfully disconnected.",
	})
}

// Me は現在のサインイン状態とプロフィールを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("me without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if !session.LoggedIn {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"user_id": session.UserID,
		"name":    session.Name,
		"email":   session.Email,
		"picture": session.Picture,
	})
}

// signInFailureReason はメトリクスのラベルに使うサインイン失敗理由を返す。
func signInFailureReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "INTERNAL_ERROR"
}
