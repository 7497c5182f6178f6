package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/catalog/internal/model"
)

// itemColumns はアイテム取得系クエリの共通SELECT句。
// 一覧取得で画像blob本体を引き回さないよう、存在フラグのみを選択する。
const itemColumns = `id, category_id, user_id, name, description, created_at, image_blob IS NOT NULL`

// PostgresItemRepo はPostgreSQLを使用したアイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	item := &model.Item{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.CategoryID, &item.UserID,
		&item.Name, &item.Description, &item.CreatedAt, &item.HasImage)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}

	return item, nil
}

// ListByCategory はカテゴリに属するアイテム一覧を作成日時昇順で返す。
func (r *PostgresItemRepo) ListByCategory(ctx context.Context, categoryID string) ([]*model.Item, error) {
	return r.list(ctx,
		`SELECT `+itemColumns+` FROM items WHERE category_id = $1 ORDER BY created_at`,
		categoryID,
	)
}

// ListLatest は全カテゴリ横断で最新のアイテムを作成日時降順にlimit件返す。
func (r *PostgresItemRepo) ListLatest(ctx context.Context, limit int) ([]*model.Item, error) {
	return r.list(ctx,
		`SELECT `+itemColumns+` FROM items ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
}

func (r *PostgresItemRepo) list(ctx context.Context, query string, arg any) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []*model.Item{}
	for rows.Next() {
		item := &model.Item{}
		if err := rows.Scan(&item.ID, &item.CategoryID, &item.UserID,
			&item.Name, &item.Description, &item.CreatedAt, &item.HasImage); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	return items, nil
}

// CountByCategory はカテゴリに属するアイテム数を返す。
func (r *PostgresItemRepo) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE category_id = $1`,
		categoryID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// FindImage はアイテムの画像blobを返す。
// アイテムが存在しない場合と画像未登録の場合はどちらもnilを返す。
func (r *PostgresItemRepo) FindImage(ctx context.Context, id string) ([]byte, error) {
	var image []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT image_blob FROM items WHERE id = $1`,
		id,
	).Scan(&image)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item image: %w", err)
	}

	return image, nil
}

// Create はアイテムを作成する。imageがnilでない場合は画像blobも保存する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item, image []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, category_id, user_id, name, description, created_at, image_blob)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.CategoryID, item.UserID, item.Name, item.Description, item.CreatedAt, image,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// Update はアイテムの可変フィールド（name, description, category_id）を更新する。
// created_atと作成者は変更されない。
func (r *PostgresItemRepo) Update(ctx context.Context, item *model.Item) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET name = $1, description = $2, category_id = $3 WHERE id = $4`,
		item.Name, item.Description, item.CategoryID, item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item not found: %s", item.ID)
	}
	return nil
}

// UpdateImage はアイテムの画像blobを更新する。nilを渡すと画像を削除する。
func (r *PostgresItemRepo) UpdateImage(ctx context.Context, itemID string, image []byte) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET image_blob = $1 WHERE id = $2`,
		image, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item image: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item not found: %s", itemID)
	}
	return nil
}

// DeleteByID は指定IDのアイテムを削除する。
func (r *PostgresItemRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
