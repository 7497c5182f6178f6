// Package catalog はカタログ（カテゴリとアイテム）のドメインロジックを提供する。
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/catalog/internal/model"
	"github.com/hitoshi/catalog/internal/repository"
	"github.com/hitoshi/catalog/internal/security"
)

const (
	// maxNameLength はアイテム名の最大文字数。
	maxNameLength = 80
	// maxDescriptionLength はアイテム説明文の最大文字数。
	maxDescriptionLength = 500
	// latestItemsLimit はトップページに表示する最新アイテムの件数。
	latestItemsLimit = 10
)

// allowedImageExtensions はアップロードを許可する画像ファイルの拡張子。
// ファイル名の最後の拡張子を小文字化して比較する。
var allowedImageExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// MetricsRecorder はカタログ操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordItemCreated()
	RecordItemUpdated()
	RecordItemDeleted()
	RecordImageServed(bytes int)
}

// Service はカタログに関するビジネスロジックを提供する。
type Service struct {
	categoryRepo repository.CategoryRepository
	itemRepo     repository.ItemRepository
	sanitizer    security.TextSanitizerService
	metrics      MetricsRecorder
}

// NewService はServiceを生成する。
func NewService(
	categoryRepo repository.CategoryRepository,
	itemRepo repository.ItemRepository,
	sanitizer security.TextSanitizerService,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		categoryRepo: categoryRepo,
		itemRepo:     itemRepo,
		sanitizer:    sanitizer,
		metrics:      metrics,
	}
}

// Overview はトップページのデータ（カテゴリサマリーと最新アイテム）を返す。
type Overview struct {
	Categories  []model.CategorySummary
	LatestItems []*model.Item
}

// GetOverview はカテゴリサマリー一覧と最新アイテムを取得する。
func (s *Service) GetOverview(ctx context.Context) (*Overview, error) {
	categories, err := s.categoryRepo.ListSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list category summaries: %w", err)
	}

	items, err := s.itemRepo.ListLatest(ctx, latestItemsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest items: %w", err)
	}

	return &Overview{Categories: categories, LatestItems: items}, nil
}

// CategoryDetail はカテゴリ詳細ページのデータ。
type CategoryDetail struct {
	Category  *model.Category
	Items     []*model.Item
	ItemCount int
}

// GetCategory はカテゴリとその所属アイテム、アイテム数を取得する。
// カテゴリが存在しない場合は*model.APIErrorを返す。
func (s *Service) GetCategory(ctx context.Context, categoryID string) (*CategoryDetail, error) {
	category, err := s.categoryRepo.FindByID(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	if category == nil {
		return nil, model.NewCategoryNotFoundError(categoryID)
	}

	items, err := s.itemRepo.ListByCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list category items: %w", err)
	}

	count, err := s.itemRepo.CountByCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to count category items: %w", err)
	}

	return &CategoryDetail{Category: category, Items: items, ItemCount: count}, nil
}

// ListCatalog は全カテゴリを所属アイテム付きで返す。catalog.json用。
func (s *Service) ListCatalog(ctx context.Context) ([]model.CategoryWithItems, error) {
	categories, err := s.categoryRepo.ListWithItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return categories, nil
}

// GetItem は指定IDのアイテムを取得する。
// 存在しない場合は*model.APIErrorを返す。
func (s *Service) GetItem(ctx context.Context, itemID string) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}
	return item, nil
}

// GetItemImage はアイテムの画像blobを返す。
// アイテムが存在しない場合と画像未登録の場合はどちらも*model.APIErrorを返す。
func (s *Service) GetItemImage(ctx context.Context, itemID string) ([]byte, error) {
	image, err := s.itemRepo.FindImage(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find item image: %w", err)
	}
	if image == nil {
		return nil, model.NewImageNotFoundError(itemID)
	}

	s.metrics.RecordImageServed(len(image))
	return image, nil
}

// ItemInput はアイテム作成・更新フォームの入力。
type ItemInput struct {
	Name        string
	Description string
	CategoryID  string
}

// ValidateItemInput はアイテムフォームの入力を検証し、違反メッセージを返す。
// すべて妥当な場合は空のスライスを返す。
func ValidateItemInput(input ItemInput) []string {
	var messages []string

	if strings.TrimSpace(input.Name) == "" {
		messages = append(messages, "Name field is required")
	} else if len([]rune(input.Name)) > maxNameLength {
		messages = append(messages, fmt.Sprintf("Name must be %d characters or fewer", maxNameLength))
	}

	if strings.TrimSpace(input.Description) == "" {
		messages = append(messages, "Description field is required")
	} else if len([]rune(input.Description)) > maxDescriptionLength {
		messages = append(messages, fmt.Sprintf("Description must be %d characters or fewer", maxDescriptionLength))
	}

	if strings.TrimSpace(input.CategoryID) == "" {
		messages = append(messages, "Category field is required")
	}

	return messages
}

// ValidateImageFilename はアップロードされた画像ファイル名の拡張子を検証する。
// 拡張子が許可リストにない場合は違反メッセージを返し、妥当な場合は空文字列を返す。
func ValidateImageFilename(filename string) string {
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = strings.ToLower(filename[i+1:])
	}
	if !allowedImageExtensions[ext] {
		return "Only image files (extensions jpg, jpeg, png, gif) are allowed for item images"
	}
	return ""
}

// CreateItem は新規アイテムを作成する。
// created_atはサーバー側で1回だけ設定される。
// カテゴリが存在しない場合は*model.APIErrorを返す。
// 入力のフォーム検証は呼び出し側（ハンドラー）で済んでいる前提だが、
// 名前・説明は永続化前に必ずサニタイズされる。
func (s *Service) CreateItem(ctx context.Context, userID string, input ItemInput, image []byte) (*model.Item, error) {
	category, err := s.categoryRepo.FindByID(ctx, input.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	if category == nil {
		return nil, model.NewCategoryNotFoundError(input.CategoryID)
	}

	item := &model.Item{
		ID:          uuid.New().String(),
		CategoryID:  category.ID,
		UserID:      userID,
		Name:        s.sanitizer.Sanitize(input.Name),
		Description: s.sanitizer.Sanitize(input.Description),
		CreatedAt:   time.Now(),
		HasImage:    image != nil,
	}

	if err := s.itemRepo.Create(ctx, item, image); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.metrics.RecordItemCreated()
	slog.Info("item created",
		slog.String("item_id", item.ID),
		slog.String("category_id", item.CategoryID),
		slog.String("user_id", userID),
	)

	return item, nil
}

// UpdateItem は既存アイテムの可変フィールドを更新する。
// imageがnilでない場合は画像を差し替え、deleteImageがtrueの場合は画像を削除する。
// 両方指定された場合は差し替えよりも削除が優先される。
// アイテムまたは移動先カテゴリが存在しない場合は*model.APIErrorを返す。
func (s *Service) UpdateItem(ctx context.Context, itemID string, input ItemInput, image []byte, deleteImage bool) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}

	category, err := s.categoryRepo.FindByID(ctx, input.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	if category == nil {
		return nil, model.NewCategoryNotFoundError(input.CategoryID)
	}

	item.Name = s.sanitizer.Sanitize(input.Name)
	item.Description = s.sanitizer.Sanitize(input.Description)
	item.CategoryID = category.ID

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	switch {
	case deleteImage:
		if err := s.itemRepo.UpdateImage(ctx, itemID, nil); err != nil {
			return nil, fmt.Errorf("failed to delete item image: %w", err)
		}
		item.HasImage = false
	case image != nil:
		if err := s.itemRepo.UpdateImage(ctx, itemID, image); err != nil {
			return nil, fmt.Errorf("failed to update item image: %w", err)
		}
		item.HasImage = true
	}

	s.metrics.RecordItemUpdated()
	slog.Info("item updated", slog.String("item_id", item.ID))

	return item, nil
}

// DeleteItem は指定IDのアイテムを削除する。
// 存在しない場合は*model.APIErrorを返す。
func (s *Service) DeleteItem(ctx context.Context, itemID string) (*model.Item, error) {
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}

	if err := s.itemRepo.DeleteByID(ctx, itemID); err != nil {
		return nil, fmt.Errorf("failed to delete item: %w", err)
	}

	s.metrics.RecordItemDeleted()
	slog.Info("item deleted", slog.String("item_id", itemID))

	return item, nil
}
