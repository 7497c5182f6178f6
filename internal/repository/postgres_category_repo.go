package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/catalog/internal/model"
)

// PostgresCategoryRepo はPostgreSQLを使用したカテゴリリポジトリ。
// カテゴリはシードでのみ作成されるため、読み取り専用のメソッドのみを提供する。
type PostgresCategoryRepo struct {
	db *sql.DB
}

// NewPostgresCategoryRepo はPostgresCategoryRepoを生成する。
func NewPostgresCategoryRepo(db *sql.DB) *PostgresCategoryRepo {
	return &PostgresCategoryRepo{db: db}
}

// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
func (r *PostgresCategoryRepo) FindByID(ctx context.Context, id string) (*model.Category, error) {
	category := &model.Category{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE id = $1`,
		id,
	).Scan(&category.ID, &category.Name)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}

	return category, nil
}

// ListSummaries は全カテゴリのサマリー（ID、名前、アイテム数）を名前順で返す。
// LEFT JOINによりアイテムが0件のカテゴリも含まれる。
func (r *PostgresCategoryRepo) ListSummaries(ctx context.Context) ([]model.CategorySummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, COUNT(i.id)
		 FROM categories c
		 LEFT JOIN items i ON i.category_id = c.id
		 GROUP BY c.id, c.name
		 ORDER BY c.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list category summaries: %w", err)
	}
	defer rows.Close()

	summaries := []model.CategorySummary{}
	for rows.Next() {
		var s model.CategorySummary
		if err := rows.Scan(&s.ID, &s.Name, &s.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan category summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate category summaries: %w", err)
	}

	return summaries, nil
}

// ListWithItems は全カテゴリを所属アイテム付きで名前順に返す。
// カテゴリとアイテムを別クエリで取得してメモリ上で結合する。
func (r *PostgresCategoryRepo) ListWithItems(ctx context.Context) ([]model.CategoryWithItems, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM categories ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []model.CategoryWithItems{}
	index := map[string]int{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		index[c.ID] = len(categories)
		categories = append(categories, model.CategoryWithItems{Category: c, Items: []*model.Item{}})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}

	itemRows, err := r.db.QueryContext(ctx,
		`SELECT id, category_id, user_id, name, description, created_at,
		        image_blob IS NOT NULL
		 FROM items
		 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item := &model.Item{}
		if err := itemRows.Scan(&item.ID, &item.CategoryID, &item.UserID,
			&item.Name, &item.Description, &item.CreatedAt, &item.HasImage); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if i, ok := index[item.CategoryID]; ok {
			categories[i].Items = append(categories[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return categories, nil
}

// compile-time interface check
var _ CategoryRepository = (*PostgresCategoryRepo)(nil)
