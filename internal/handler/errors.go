package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/catalog/internal/model"
)

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// validationErrorResponse はフォーム検証エラーのレスポンス。
// 入力値をエコーバックし、再入力用フォームへのリダイレクト先を示す。
type validationErrorResponse struct {
	apiErrorResponse
	Errors   []string     `json:"errors"`
	Input    itemFormEcho `json:"input"`
	Redirect string       `json:"redirect"`
}

// itemFormEcho は検証エラー時にエコーバックするフォーム入力値。
type itemFormEcho struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CategoryID  string `json:"category_id"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeValidationErrorResponse はフォーム検証エラーのレスポンスを書き込む。
// データは一切変更されておらず、入力値はそのままエコーバックされる。
func writeValidationErrorResponse(w http.ResponseWriter, messages []string, echo itemFormEcho, redirect string) {
	apiErr := model.NewValidationError(messages[0])
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(validationErrorResponse{
		apiErrorResponse: apiErrorResponse{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		},
		Errors:   messages,
		Input:    echo,
		Redirect: redirect,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
// FORBIDDENは403ではなく401を返す（従来のクライアントが期待する挙動）。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeCategoryNotFound, model.ErrCodeItemNotFound, model.ErrCodeImageNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized, model.ErrCodeForbidden,
		model.ErrCodeInvalidState, model.ErrCodeExchangeFailed,
		model.ErrCodeTokenMismatch, model.ErrCodeInvalidCSRFToken:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
