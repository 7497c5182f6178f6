package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/catalog/internal/catalog"
	"github.com/hitoshi/catalog/internal/middleware"
	"github.com/hitoshi/catalog/internal/model"
)

// mockItemService はItemServiceInterfaceのモック実装。
type mockItemService struct {
	GetItemFunc      func(ctx context.Context, itemID string) (*model.Item, error)
	GetItemImageFunc func(ctx context.Context, itemID string) ([]byte, error)
	CreateItemFunc   func(ctx context.Context, userID string, input catalog.ItemInput, image []byte) (*model.Item, error)
	UpdateItemFunc   func(ctx context.Context, itemID string, input catalog.ItemInput, image []byte, deleteImage bool) (*model.Item, error)
	DeleteItemFunc   func(ctx context.Context, itemID string) (*model.Item, error)
}

var _ ItemServiceInterface = (*mockItemService)(nil)

func (m *mockItemService) GetItem(ctx context.Context, itemID string) (*model.Item, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, itemID)
	}
	return nil, model.NewItemNotFoundError(itemID)
}

func (m *mockItemService) GetItemImage(ctx context.Context, itemID string) ([]byte, error) {
	if m.GetItemImageFunc != nil {
		return m.GetItemImageFunc(ctx, itemID)
	}
	return nil, model.NewImageNotFoundError(itemID)
}

func (m *mockItemService) CreateItem(ctx context.Context, userID string, input catalog.ItemInput, image []byte) (*model.Item, error) {
	if m.CreateItemFunc != nil {
		return m.CreateItemFunc(ctx, userID, input, image)
	}
	return nil, nil
}

func (m *mockItemService) UpdateItem(ctx context.Context, itemID string, input catalog.ItemInput, image []byte, deleteImage bool) (*model.Item, error) {
	if m.UpdateItemFunc != nil {
		return m.UpdateItemFunc(ctx, itemID, input, image, deleteImage)
	}
	return nil, nil
}

func (m *mockItemService) DeleteItem(ctx context.Context, itemID string) (*model.Item, error) {
	if m.DeleteItemFunc != nil {
		return m.DeleteItemFunc(ctx, itemID)
	}
	return nil, nil
}

// mockOwnership はOwnershipCheckerのモック実装。
type mockOwnership struct {
	IsOwnerFunc func(ctx context.Context, session *model.Session, itemID string) bool
}

var _ OwnershipChecker = (*mockOwnership)(nil)

func (m *mockOwnership) IsOwner(ctx context.Context, session *model.Session, itemID string) bool {
	if m.IsOwnerFunc != nil {
		return m.IsOwnerFunc(ctx, session, itemID)
	}
	return false
}

// newFormRequest はurlencodedフォームのPOSTリクエストを生成する。
func newFormRequest(target string, form url.Values, session *model.Session) *http.Request {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req.WithContext(middleware.ContextWithSession(req.Context(), session))
}

// newMultipartRequest はimageファイル付きのmultipartフォームリクエストを生成する。
func newMultipartRequest(t *testing.T, target string, fields map[string]string, filename string, fileBody []byte, session *model.Session) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if filename != "" {
		part, err := mw.CreateFormFile("image", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write(fileBody); err != nil {
			t.Fatalf("failed to write file body: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req.WithContext(middleware.ContextWithSession(req.Context(), session))
}

func ownerOf(userID string) *mockOwnership {
	return &mockOwnership{
		IsOwnerFunc: func(ctx context.Context, session *model.Session, itemID string) bool {
			return session.LoggedIn && session.UserID == userID
		},
	}
}

func existingItemService(item *model.Item) *mockItemService {
	return &mockItemService{
		GetItemFunc: func(ctx context.Context, itemID string) (*model.Item, error) {
			if itemID == item.ID {
				return item, nil
			}
			return nil, model.NewItemNotFoundError(itemID)
		},
	}
}

func TestGetItem_OwnedByViewer(t *testing.T) {
	item := sampleItem("item-1", "cat-1")

	tests := []struct {
		name    string
		session *model.Session
		want    bool
	}{
		{
			name:    "作成者本人",
			session: &model.Session{ID: "s1", LoggedIn: true, UserID: "user-1"},
			want:    true,
		},
		{
			name:    "別の利用者",
			session: &model.Session{ID: "s2", LoggedIn: true, UserID: "user-2"},
			want:    false,
		},
		{
			name:    "未サインイン",
			session: &model.Session{ID: "s3"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewItemHandler(existingItemService(item), ownerOf("user-1"), &mockSessionState{})

			req := withRouteParam(newSessionRequest("GET", "/api/items/item-1", "", tt.session), "id", "item-1")
			w := httptest.NewRecorder()

			h.GetItem(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}

			var resp itemViewResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.OwnedByViewer != tt.want {
				t.Errorf("owned_by_viewer = %v, want %v", resp.OwnedByViewer, tt.want)
			}
			if resp.Item.ID != "item-1" {
				t.Errorf("item id = %q, want item-1", resp.Item.ID)
			}
			// ページデータのGETはstateを発行し直す
			if resp.SigninState != "fresh-signin-state" {
				t.Errorf("signin_state = %q, want fresh-signin-state", resp.SigninState)
			}
		})
	}
}

func TestGetItem_NotFound_Returns404(t *testing.T) {
	session := &model.Session{ID: "session-1"}
	h := NewItemHandler(&mockItemService{}, &mockOwnership{}, &mockSessionState{})

	req := withRouteParam(newSessionRequest("GET", "/api/items/missing", "", session), "id", "missing")
	w := httptest.NewRecorder()

	h.GetItem(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestEditItemForm_NotLoggedIn_ReturnsUnauthorized(t *testing.T) {
	session := &model.Session{ID: "session-1"}
	h := NewItemHandler(existingItemService(sampleItem("item-1", "cat-1")), ownerOf("user-1"), &mockSessionState{})

	req := withRouteParam(newSessionRequest("GET", "/api/items/item-1/edit", "", session), "id", "item-1")
	w := httptest.NewRecorder()

	h.EditItemForm(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeUnauthorized {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeUnauthorized)
	}
}

func TestEditItemForm_OtherUsersItem_ReturnsForbidden(t *testing.T) {
	// user-2がuser-1のアイテムの編集フォームを開こうとするケース
	session := &model.Session{ID: "session-2", LoggedIn: true, UserID: "user-2"}
	h := NewItemHandler(existingItemService(sampleItem("item-1", "cat-1")), ownerOf("user-1"), &mockSessionState{})

	req := withRouteParam(newSessionRequest("GET", "/api/items/item-1/edit", "", session), "id", "item-1")
	w := httptest.NewRecorder()

	h.EditItemForm(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeForbidden)
	}
}

func TestEditItemForm_Owner_IssuesCSRFToken(t *testing.T) {
	session := &model.Session{ID: "session-1", LoggedIn: true, UserID: "user-1"}
	h := NewItemHandler(existingItemService(sampleItem("item-1", "cat-1")), ownerOf("user-1"), &mockSessionState{})

	req := withRouteParam(newSessionRequest("GET", "/api/items/item-1/edit", "", session), "id", "item-1")
	w := httptest.NewRecorder()

	h.EditItemForm(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp editItemFormResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CSRFToken != "fresh-csrf-token" {
		t.Errorf("csrf_token = %q", resp.CSRFToken)
	}
	if resp.Item.ID != "item-1" {
		t.Errorf("item id = %q, want item-1", resp.Item.ID)
	}
}

func TestCreateItem_NotLoggedIn_Returns401(t *testing.T) {
	session := &model.Session{ID: "session-1"}
	created := false
	service := &mockItemService{
		CreateItemFunc: func(ctx context.Context, userID string, input catalog.ItemInput, image []byte) (*model.Item, error) {
			created = true
			return nil, nil
		},
	}
	h := NewItemHandler(service, &mockOwnership{}, &mockSessionState{})

	form := url.Values{"name": {"Ball"}, "description": {"A ball"}}
	req := withRouteParam(newFormRequest("/api/categories/cat-1/items", form, session), "id", "cat-1")
	w := httptest.NewRecorder()

	h.CreateItem(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if created {
		t.Error("CreateItem should not be called")
	}
}

func TestCreateItem_ValidationError_EchoesInputAndRedirects(t *testing.T) {
	session := &model.Session{ID: "session-1", LoggedIn: true, UserID: "user-1"}
	created := false
	service := &mockItemService{
		CreateItemFunc: func(ctx context.Context, userID string, input catalog.ItemInput, image []byte) (*model.Item, error) {
			created = true
			return nil, nil
		},
	}
	state := &mockSessionState{}
	h := NewItemHandler(service, &mockOwnership{}, state)

	// 名前が空のフォーム送信
	form := url.Values{"name": {""}, "description": {"A round ball"}}
	req := withRouteParam(newFormRequest("/api/categories/cat-1/items", form, session), "id", "cat-1")
	w := httptest.NewRecorder()

	h.CreateItem(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if created {
		t.Error("CreateItem should not be called on validation failure")
	}

	var resp validationErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeValidation {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeValidation)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("errors = %v, want 1 message", resp.Errors)
	}
	if resp.Input.Description != "A round ball" || resp.Input.CategoryID != "cat-1" {
		t.Errorf("unexpected input echo: %+v", resp.Input)
	}
	if resp.Redirect != "/api/categories/cat-1/items/new" {
		t.Errorf("redirect = %q", resp.Redirect)
	}

	// エラーフラッシュがセッションに保存されていること
	if len(session.Flash) != 1 || session.Flash[0].Level != model.FlashError {
		t.Errorf("unexpected session flash: %+v", session.Flash)
	}
	if state.saveCount != 1 {
		t.Errorf("save count = %d, want 1", state.saveCount)
	}
}

func TestCreateItem_DisallowedImageExtension_Returns400(t *testing.T) {
	session := &model.Session{ID: "session-1", LoggedIn: true, UserID: "user-1"}
	created := false
	service := &mockItemService{
		CreateItemFunc: func(ctx context.Context, userID string, input catalog.ItemInput, image []byte) (*model.Item, error) {
			created = true
			return nil, nil
		},
	}
	h := NewItemHandler(service, &mockOwnership{}, &mockSessionState{})

	fields := map[string]string{"name": "Ball", "description": "A ball"}
	req := newMultipartRequest(t, "/api/categories/cat-1/items", fields, "payload.exe", []byte("MZ"), session)
	req = withRouteParam(req, "id", "cat-1")
	w := httptest.NewRecorder()

	h.CreateItem(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if created {
		t.Error("CreateItem should not be called for a rejected image")
	}
}

func TestCreateItem_Success_RedirectsWithFlash(t *testing.T) {
	session := &model.Session{ID: "session-1", LoggedIn: true, UserID: "user-1"}
	service := &mockItemService{
		CreateItemFunc: func(ctx context.Context, userID string, input catalog.ItemInput, image []byte) (*model.Item, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want user-1", userID)
			}
			if input.CategoryID != "cat-1" {
				t.Errorf("category = %q, want cat-1", input.CategoryID)
			}
			if image == nil {
				t.Error("image should be passed through")
			}
			return &model.Item{ID: "item-new", CategoryID: "cat-1", Name: input.Name}, nil
		},
	}
	state := &mockSessionState{}
	h := NewItemHandler(service, &mockOwnership{}, state)

	fields := map[string]string{"name": "Ball", "description": "A round ball"}
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	req := newMultipartRequest(t, "/api/categories/cat-1/items", fields, "ball.png", png, session)
	req = withRouteParam(req, "id", "cat-1")
	w := httptest.NewRecorder()

	h.CreateItem(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/api/items/item-new" {
		t.Errorf("location = %q, want /api/items/item-new", loc)
	}
	if len(session.Flash) != 1 || session.Flash[0].Message != "New Item Ball Successfully Created" {
		t.Errorf("unexpected flash: %+v", session.Flash)
	}
	if state.saveCount != 1 {
		t.Errorf("save count = %d, want 1", state.saveCount)
	}
}

func TestUpdateItem_OtherUsersItem_ReturnsForbidden(t *testing.T) {
	// user-2がuser-1のアイテムを更新しようとするケース
	session := &model.Session{ID: "session-2", LoggedIn: true, UserID: "user-2"}
	updated := false
	service := existingItemService(sampleItem("item-1", "cat-1"))
	service.UpdateItemFunc = func(ctx context.Context, itemID string, input catalog.ItemInput, image []byte, deleteImage bool) (*model.Item, error) {
		updated = true
		return nil, nil
	}
	h := NewItemHandler(service, ownerOf("user-1"), &mockSessionState{})

	form := url.Values{"name": {"Hacked"}, "description": {"irrelevant"}}
	req := withRouteParam(newFormRequest("/api/items/item-1", form, session), "id", "item-1")
	w := httptest.NewRecorder()

	h.UpdateItem(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeForbidden {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeForbidden)
	}
	if updated {
		t.Error("UpdateItem should not be called")
	}
}

func TestUpdateItem_MissingItem_Returns404(t *testing.T) {
	session := &model.Session{ID: "session-1", LoggedIn: true, UserID: "user-1"}
	h := NewItemHandler(&mockItemService{}, ownerOf("user-1"), &mockSessionState{})

	form := url.Values{"name": {"Ball"}, "description": {"A ball"}}
	req := withRouteParam(newFormRequest("/api/items/missing", form, session), "id", "missing")
	w := httptest.NewRecorder()

	h.UpdateItem(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestUpdateItem_EmptyCategoryID_KeepsCurrentCategory(t *testing.T) {
	session := &model.Session{ID: "session-1", LoggedIn: true, UserID: "user-1"}
	service := existingItemService(sampleItem("item-1", "cat-1"))
	service.UpdateItemFunc = func(ctx context.Context, itemID string, input catalog.ItemInput, image []byte, deleteImage bool) (*model.Item, error) {
		if input.CategoryID != "cat-1" {
			t.Errorf("category = %q, want cat-1", input.CategoryID)
		}
		return &model.Item{ID: itemID, CategoryID: input.CategoryID, Name: input.Name}, nil
	}
	h := NewItemHandler(service, ownerOf("user-1"), &mockSessionState{})

	form := url.Values{"name": {"Ball"}, "description": {"Updated description"}}
	req := withRouteParam(newFormRequest("/api/items/item-1", form, session), "id", "item-1")
	w := httptest.NewRecorder()

	h.UpdateItem(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/api/items/item-1" {
		t.Errorf("location = %q, want /api/items/item-1", loc)
	}
	if len(session.Flash) != 1 || session.Flash[0].Message != "Item Ball Successfully Updated" {
		t.Errorf("unexpected flash: %+v", session.Flash)
	}
}

func TestUpdateItem_DeleteImageField_PassesFlag(t *testing.T) {
	session := &model.Session{ID: "session-1", LoggedIn: true, UserID: "user-1"}
	service := existingItemService(sampleItem("item-1", "cat-1"))
	var gotDeleteImage bool
	service.UpdateItemFunc = func(ctx context.Context, itemID string, input catalog.ItemInput, image []byte, deleteImage bool) (*model.Item, error) {
		gotDeleteImage = deleteImage
		return &model.Item{ID: itemID, CategoryID: input.CategoryID, Name: input.Name}, nil
	}
	h := NewItemHandler(service, ownerOf("user-1"), &mockSessionState{})

	form := url.Values{
		"name":         {"Ball"},
		"description":  {"A ball"},
		"delete_image": {"1"},
	}
	req := withRouteParam(newFormRequest("/api/items/item-1", form, session), "id", "item-1")
	w := httptest.NewRecorder()

	h.UpdateItem(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if !gotDeleteImage {
		t.Error("deleteImage flag should be true")
	}
}

func TestDeleteItem_OtherUsersItem_ReturnsForbidden(t *testing.T) {
	session := &model.Session{ID: "session-2", LoggedIn: true, UserID: "user-2"}
	deleted := false
	service := existingItemService(sampleItem("item-1", "cat-1"))
	service.DeleteItemFunc = func(ctx context.Context, itemID string) (*model.Item, error) {
		deleted = true
		return nil, nil
	}
	h := NewItemHandler(service, ownerOf("user-1"), &mockSessionState{})

	req := withRouteParam(newSessionRequest("POST", "/api/items/item-1/delete", "", session), "id", "item-1")
	w := httptest.NewRecorder()

	h.DeleteItem(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if deleted {
		t.Error("DeleteItem should not be called")
	}
}

func TestDeleteItem_Owner_RedirectsToCategory(t *testing.T) {
	session := &model.Session{ID: "session-1", LoggedIn: true, UserID: "user-1"}
	item := sampleItem("item-1", "cat-1")
	service := existingItemService(item)
	service.DeleteItemFunc = func(ctx context.Context, itemID string) (*model.Item, error) {
		return item, nil
	}
	state := &mockSessionState{}
	h := NewItemHandler(service, ownerOf("user-1"), state)

	req := withRouteParam(newSessionRequest("POST", "/api/items/item-1/delete", "", session), "id", "item-1")
	w := httptest.NewRecorder()

	h.DeleteItem(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/api/categories/cat-1" {
		t.Errorf("location = %q, want /api/categories/cat-1", loc)
	}
	if len(session.Flash) != 1 || session.Flash[0].Message != "Item Ball Successfully Deleted" {
		t.Errorf("unexpected flash: %+v", session.Flash)
	}
}

func TestGetItemImage_SniffsContentType(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	service := &mockItemService{
		GetItemImageFunc: func(ctx context.Context, itemID string) ([]byte, error) {
			return png, nil
		},
	}
	h := NewItemHandler(service, &mockOwnership{}, &mockSessionState{})

	req := withRouteParam(httptest.NewRequest("GET", "/items/item-1/image", nil), "id", "item-1")
	w := httptest.NewRecorder()

	h.GetItemImage(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("content-type = %q, want image/png", ct)
	}
	if !bytes.Equal(w.Body.Bytes(), png) {
		t.Error("body should be the raw image bytes")
	}
}

func TestGetItemImage_NotFound_Returns404(t *testing.T) {
	h := NewItemHandler(&mockItemService{}, &mockOwnership{}, &mockSessionState{})

	req := withRouteParam(httptest.NewRequest("GET", "/items/missing/image", nil), "id", "missing")
	w := httptest.NewRecorder()

	h.GetItemImage(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Code != model.ErrCodeImageNotFound {
		t.Errorf("code = %q, want %q", resp.Code, model.ErrCodeImageNotFound)
	}
}
