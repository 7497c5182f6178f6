package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/catalog/internal/catalog"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/model"
)

// ItemServiceInterface はアイテムハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	// GetItem はアイテムを取得する。
	GetItem(ctx context.Context, itemID string) (*model.Item, error)
	// GetItemImage はアイテムの画像blobを取得する。
	GetItemImage(ctx context.Context, itemID string) ([]byte, error)
	// CreateItem は新規アイテムを作成する。
	CreateItem(ctx context.Context, userID string, input catalog.ItemInput, image []byte) (*model.Item, error)
	// UpdateItem は既存アイテムを更新する。
	UpdateItem(ctx context.Context, itemID string, input catalog.ItemInput, image []byte, deleteImage bool) (*model.Item, error)
	// DeleteItem はアイテムを削除する。
	DeleteItem(ctx context.Context, itemID string) (*model.Item, error)
}

// OwnershipChecker はアイテム所有者判定のインターフェース。
// auth.Serviceの部分集合として定義する。
type OwnershipChecker interface {
	IsOwner(ctx context.Context, session *model.Session, itemID string) bool
}

// ItemHandler はアイテムCRUDのHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
	owner   OwnershipChecker
	state   SessionStateService
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface, owner OwnershipChecker, state SessionStateService) *ItemHandler {
	return &ItemHandler{
		service: service,
		owner:   owner,
		state:   state,
	}
}

// itemViewResponse はアイテム閲覧データのレスポンス。
type itemViewResponse struct {
	Item          itemResponse  `json:"item"`
	OwnedByViewer bool          `json:"owned_by_viewer"`
	SigninState   string        `json:"signin_state"`
	Flash         []model.Flash `json:"flash"`
}

// editItemFormResponse はアイテム編集フォームデータのレスポンス。
type editItemFormResponse struct {
	Item      itemResponse  `json:"item"`
	CSRFToken string        `json:"csrf_token"`
	Flash     []model.Flash `json:"flash"`
}

// GetItem はアイテム閲覧データを返す。
// 閲覧者が作成者の場合のみowned_by_viewerがtrueになる。
// ページデータのGETとしてサインイン検証用stateを発行し直す。
// GET /api/items/{id}
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("item view without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	itemID := chi.URLParam(r, "id")

	item, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	flash := session.DrainFlash()
	if err := h.state.RefreshSigninState(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(itemViewResponse{
		Item:          toItemResponse(item),
		OwnedByViewer: h.owner.IsOwner(r.Context(), session, itemID),
		SigninState:   session.SigninState,
		Flash:         flash,
	})
}

// EditItemForm はアイテム編集フォームのデータを返す。所有者のみ。
// GET /api/items/{id}/edit
func (h *ItemHandler) EditItemForm(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("edit form without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if !session.LoggedIn {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	itemID := chi.URLParam(r, "id")

	item, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !h.owner.IsOwner(r.Context(), session, itemID) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewForbiddenError())
		return
	}

	flash := session.DrainFlash()
	token, err := h.state.IssueCSRFToken(r.Context(), session)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(editItemFormResponse{
		Item:      toItemResponse(item),
		CSRFToken: token,
		Flash:     flash,
	})
}

// CreateItem は新規アイテムの作成を処理する。
// multipartフォームのname、description、および任意のimageファイルを受け取る。
// 検証に失敗した場合はデータを一切変更せず、入力値をエコーバックする。
// POST /api/categories/{id}/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("create item without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if !session.LoggedIn {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	categoryID := chi.URLParam(r, "id")
	formRoute := fmt.Sprintf("/api/categories/%s/items/new", categoryID)

	input := catalog.ItemInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		CategoryID:  categoryID,
	}

	image, messages, err := h.readImageFile(r)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	messages = append(messages, catalog.ValidateItemInput(input)...)

	if len(messages) > 0 {
		h.rejectInvalidForm(w, r, session, messages, input, formRoute)
		return
	}

	item, err := h.service.CreateItem(r.Context(), session.UserID, input, image)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session.AddFlash(model.FlashSuccess, fmt.Sprintf("New Item %s Successfully Created", item.Name))
	if err := h.state.SaveSession(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/api/items/"+item.ID, http.StatusSeeOther)
}

// UpdateItem は既存アイテムの更新を処理する。所有者のみ。
// imageファイルで画像を差し替え、delete_imageフィールドで画像を削除する。
// POST /api/items/{id}
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("update item without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if !session.LoggedIn {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	itemID := chi.URLParam(r, "id")
	formRoute := fmt.Sprintf("/api/items/%s/edit", itemID)

	current, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if !h.owner.IsOwner(r.Context(), session, itemID) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewForbiddenError())
		return
	}

	input := catalog.ItemInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		CategoryID:  r.FormValue("category_id"),
	}
	// カテゴリ未指定の場合は現在の所属を維持する
	if input.CategoryID == "" {
		input.CategoryID = current.CategoryID
	}

	deleteImage := r.FormValue("delete_image") != ""

	image, messages, err := h.readImageFile(r)
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	messages = append(messages, catalog.ValidateItemInput(input)...)

	if len(messages) > 0 {
		h.rejectInvalidForm(w, r, session, messages, input, formRoute)
		return
	}

	item, err := h.service.UpdateItem(r.Context(), itemID, input, image, deleteImage)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session.AddFlash(model.FlashSuccess, fmt.Sprintf("Item %s Successfully Updated", item.Name))
	if err := h.state.SaveSession(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/api/items/"+item.ID, http.StatusSeeOther)
}

// DeleteItem はアイテムの削除を処理する。所有者のみ。
// POST /api/items/{id}/delete
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("delete item without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if !session.LoggedIn {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	itemID := chi.URLParam(r, "id")

	if _, err := h.service.GetItem(r.Context(), itemID); err != nil {
		handleServiceError(w, err)
		return
	}

	if !h.owner.IsOwner(r.Context(), session, itemID) {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewForbiddenError())
		return
	}

	item, err := h.service.DeleteItem(r.Context(), itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session.AddFlash(model.FlashSuccess, fmt.Sprintf("Item %s Successfully Deleted", item.Name))
	if err := h.state.SaveSession(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}

	http.Redirect(w, r, "/api/categories/"+item.CategoryID, http.StatusSeeOther)
}

// GetItemImage はアイテム画像のバイナリを返す。
// Content-Typeはblobの先頭バイトから推定する。
// GET /items/{id}/image
func (h *ItemHandler) GetItemImage(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "id")

	image, err := h.service.GetItemImage(r.Context(), itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(image))
	w.Write(image)
}

// readImageFile はmultipartフォームのimageファイルを読み取る。
// ファイルが添付されていない場合は(nil, nil, nil)を返す。
// 拡張子が許可されていない場合は検証メッセージを返し、blobは読み取らない。
func (h *ItemHandler) readImageFile(r *http.Request) ([]byte, []string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to read image file: %w", err)
	}
	defer file.Close()

	// ファイル選択なしで送信されたフォームパートは無視する
	if header.Filename == "" {
		return nil, nil, nil
	}

	if msg := catalog.ValidateImageFilename(header.Filename); msg != "" {
		return nil, []string{msg}, nil
	}

	image, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read image file: %w", err)
	}

	return image, nil, nil
}

// rejectInvalidForm は検証エラーをフラッシュとして記録し、
// 入力値のエコーバックとフォームへのリダイレクト先を返す。
func (h *ItemHandler) rejectInvalidForm(w http.ResponseWriter, r *http.Request, session *model.Session, messages []string, input catalog.ItemInput, formRoute string) {
	for _, msg := range messages {
		session.AddFlash(model.FlashError, msg)
	}
	if err := h.state.SaveSession(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}

	writeValidationErrorResponse(w, messages, itemFormEcho{
		Name:        input.Name,
		Description: input.Description,
		CategoryID:  input.CategoryID,
	}, formRoute)
}
