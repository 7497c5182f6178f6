// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeCategoryNotFound = "CATEGORY_NOT_FOUND"
	ErrCodeItemNotFound     = "ITEM_NOT_FOUND"
	ErrCodeImageNotFound    = "IMAGE_NOT_FOUND"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInvalidState     = "INVALID_STATE"
	ErrCodeExchangeFailed   = "EXCHANGE_FAILED"
	ErrCodeTokenMismatch    = "TOKEN_MISMATCH"
	ErrCodeInvalidCSRFToken = "INVALID_CSRF_TOKEN"
	ErrCodeValidation       = "VALIDATION_ERROR"
)

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(categoryID string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", categoryID),
		Category: "catalog",
		Action:   "カテゴリIDを確認してください。",
	}
}

// NewItemNotFoundError はアイテム未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたアイテムが見つかりません: %s", itemID),
		Category: "catalog",
		Action:   "アイテムIDを確認してください。",
	}
}

// NewImageNotFoundError はアイテム画像未検出エラーを生成する。
// アイテム自体が存在しない場合と画像未登録の場合の両方で使用する。
func NewImageNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeImageNotFound,
		Message:  fmt.Sprintf("指定されたアイテムの画像が見つかりません: %s", itemID),
		Category: "catalog",
		Action:   "アイテムIDを確認してください。",
	}
}

// NewUnauthorizedError は未サインインエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "サインインが必要です。",
		Category: "auth",
		Action:   "Googleアカウントでサインインしてください。",
	}
}

// NewForbiddenError はアイテム所有者以外による変更操作のエラーを生成する。
// オリジナルの挙動に合わせてHTTPステータスは403ではなく401にマッピングされる。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "自分が作成したアイテムのみ編集・削除できます。",
	}
}

// NewInvalidStateError はサインインstate不一致エラーを生成する。
func NewInvalidStateError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidState,
		Message:  "サインインstateが一致しません。",
		Category: "auth",
		Action:   "ページを再読み込みしてからサインインをやり直してください。",
	}
}

// NewExchangeFailedError は認可コード交換失敗エラーを生成する。
func NewExchangeFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeExchangeFailed,
		Message:  "認可コードの交換に失敗しました。",
		Category: "auth",
		Action:   "サインインをやり直してください。",
	}
}

// NewTokenMismatchError はトークン検証失敗エラーを生成する。
// トークンのsubjectまたはaudienceがアプリケーションの期待値と一致しない場合に使用する。
func NewTokenMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenMismatch,
		Message:  "アクセストークンの検証に失敗しました。",
		Category: "auth",
		Action:   "サインインをやり直してください。",
	}
}

// NewInvalidCSRFTokenError はCSRFトークン不一致エラーを生成する。
func NewInvalidCSRFTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCSRFToken,
		Message:  "不正なフォームデータが送信されました。",
		Category: "auth",
		Action:   "フォームを開き直してから再度送信してください。",
	}
}

// NewValidationError はフォーム入力の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を修正してから再度送信してください。",
	}
}
