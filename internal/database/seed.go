package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// defaultCategories はシードコマンドで投入するカテゴリ名の一覧。
// カテゴリはリクエスト経由では作成できないため、ここが唯一の投入経路となる。
var defaultCategories = []string{
	"Soccer",
	"Basketball",
	"Baseball",
	"Frisbee",
	"Snowboarding",
	"Rock Climbing",
	"Foosball",
	"Skating",
	"Hockey",
}

// SeedCategories はデフォルトカテゴリを投入する。
// name列のUNIQUE制約を利用したON CONFLICT DO NOTHINGにより冪等に実行できる。
// 新規に投入された件数を返す。
func SeedCategories(ctx context.Context, db *sql.DB) (int, error) {
	inserted := 0
	for _, name := range defaultCategories {
		result, err := db.ExecContext(ctx,
			`INSERT INTO categories (id, name) VALUES ($1, $2)
			 ON CONFLICT (name) DO NOTHING`,
			uuid.New().String(), name,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed category %q: %w", name, err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(rows)
	}
	return inserted, nil
}
