package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/catalog/internal/catalog"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/model"
)

// CatalogServiceInterface はカタログの読み取り系ハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	// GetOverview はカテゴリサマリー一覧と最新アイテムを取得する。
	GetOverview(ctx context.Context) (*catalog.Overview, error)
	// GetCategory はカテゴリとその所属アイテムを取得する。
	GetCategory(ctx context.Context, categoryID string) (*catalog.CategoryDetail, error)
	// ListCatalog は全カテゴリを所属アイテム付きで返す。
	ListCatalog(ctx context.Context) ([]model.CategoryWithItems, error)
}

// SessionStateService はページデータ応答時のセッション状態の更新に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionStateService interface {
	// RefreshSigninState はサインイン検証用stateを新規発行して保存する。
	RefreshSigninState(ctx context.Context, session *model.Session) error
	// IssueCSRFToken は新規CSRFトークンを発行して保存する。
	IssueCSRFToken(ctx context.Context, session *model.Session) (string, error)
	// SaveSession はセッションの現在の状態を保存する。
	SaveSession(ctx context.Context, session *model.Session) error
}

// CatalogHandler はカタログ閲覧のHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
	state   SessionStateService
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface, state SessionStateService) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		state:   state,
	}
}

// categoryResponse はカテゴリのAPIレスポンス。
type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// categorySummaryResponse はカテゴリ一覧のAPIレスポンス。
type categorySummaryResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ItemCount int    `json:"item_count"`
}

// itemResponse はアイテムのAPIレスポンス。画像blobは含まれない。
type itemResponse struct {
	ID          string    `json:"id"`
	CategoryID  string    `json:"category_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	HasImage    bool      `json:"has_image"`
}

// profileResponse はサインイン済み利用者のプロフィール。未サインイン時はnull。
type profileResponse struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// overviewResponse はトップページデータのレスポンス。
type overviewResponse struct {
	Categories  []categorySummaryResponse `json:"categories"`
	LatestItems []itemResponse            `json:"latest_items"`
	SigninState string                    `json:"signin_state"`
	Profile     *profileResponse          `json:"profile"`
	Flash       []model.Flash             `json:"flash"`
}

// categoryDetailResponse はカテゴリ詳細データのレスポンス。
type categoryDetailResponse struct {
	Category    categoryResponse `json:"category"`
	Items       []itemResponse   `json:"items"`
	ItemCount   int              `json:"item_count"`
	SigninState string           `json:"signin_state"`
	Flash       []model.Flash    `json:"flash"`
}

// newItemFormResponse はアイテム作成フォームデータのレスポンス。
type newItemFormResponse struct {
	Category  categoryResponse `json:"category"`
	CSRFToken string           `json:"csrf_token"`
	Flash     []model.Flash    `json:"flash"`
}

// Overview はトップページのデータを返す。
// サインインを開始しうるページのため、サインイン検証用stateを毎回発行する。
// GET /api/categories
func (h *CatalogHandler) Overview(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("overview without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	overview, err := h.service.GetOverview(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// フラッシュの取り出しとstateの発行は同じ保存で永続化される
	flash := session.DrainFlash()
	if err := h.state.RefreshSigninState(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}

	resp := overviewResponse{
		Categories:  make([]categorySummaryResponse, 0, len(overview.Categories)),
		LatestItems: toItemResponses(overview.LatestItems),
		SigninState: session.SigninState,
		Flash:       flash,
	}
	for _, c := range overview.Categories {
		resp.Categories = append(resp.Categories, categorySummaryResponse{
			ID:        c.ID,
			Name:      c.Name,
			ItemCount: c.ItemCount,
		})
	}
	if session.LoggedIn {
		resp.Profile = &profileResponse{
			Name:    session.Name,
			Email:   session.Email,
			Picture: session.Picture,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetCategory はカテゴリ詳細データを返す。
// ページデータのGETとしてサインイン検証用stateを発行し直す。
// GET /api/categories/{id}
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("category detail without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	categoryID := chi.URLParam(r, "id")

	detail, err := h.service.GetCategory(r.Context(), categoryID)
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
	json.NewEncoder(w).Encode(categoryDetailResponse{
		Category: categoryResponse{
			ID:   detail.Category.ID,
			Name: detail.Category.Name,
		},
		Items:       toItemResponses(detail.Items),
		ItemCount:   detail.ItemCount,
		SigninState: session.SigninState,
		Flash:       flash,
	})
}

// NewItemForm はアイテム作成フォームのデータを返す。
// フォーム送信の検証に使うCSRFトークンをここで発行する。
// GET /api/categories/{id}/items/new
func (h *CatalogHandler) NewItemForm(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		slog.Error("new item form without session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	if !session.LoggedIn {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	categoryID := chi.URLParam(r, "id")

	detail, err := h.service.GetCategory(r.Context(), categoryID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	flash := session.DrainFlash()
	token, err := h.state.IssueCSRFToken(r.Context(), session)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newItemFormResponse{
		Category: categoryResponse{
			ID:   detail.Category.ID,
			Name: detail.Category.Name,
		},
		CSRFToken: token,
		Flash:     flash,
	})
}

// CatalogJSON は全カタログのシリアライズ済みJSONを返す。
// GET /catalog.json
func (h *CatalogHandler) CatalogJSON(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCatalog(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]catalog.CategoryJSON{
		"categories": catalog.SerializeCatalog(categories),
	})
}

// toItemResponses はアイテムのリストをAPIレスポンスに変換する。
func toItemResponses(items []*model.Item) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	return out
}

// toItemResponse はアイテムをAPIレスポンスに変換する。
func toItemResponse(item *model.Item) itemResponse {
	return itemResponse{
		ID:          item.ID,
		CategoryID:  item.CategoryID,
		Name:        item.Name,
		Description: item.Description,
		CreatedAt:   item.CreatedAt,
		HasImage:    item.HasImage,
	}
}
