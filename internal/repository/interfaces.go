// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/catalog/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーは初回サインイン時に作成された後は変更・削除されないため、
// 更新系メソッドは提供しない。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByGoogleID はGoogle IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error
}

// CategoryRepository はカテゴリデータの永続化インターフェース。
// カテゴリの作成はシード経由のみで、更新・削除は提供しない。
type CategoryRepository interface {
	// FindByID は指定IDのカテゴリを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Category, error)

	// ListSummaries は全カテゴリのサマリー（ID、名前、アイテム数）を名前順で返す。
	// アイテムが0件のカテゴリも含まれる。
	ListSummaries(ctx context.Context) ([]model.CategorySummary, error)

	// ListWithItems は全カテゴリを所属アイテム付きで名前順に返す。
	// catalog.jsonのシリアライズ入力として使用される。
	ListWithItems(ctx context.Context) ([]model.CategoryWithItems, error)
}

// ItemRepository はアイテムデータの永続化インターフェース。
type ItemRepository interface {
	// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
	// 画像blob本体は含まれない（HasImageフラグのみ）。
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// ListByCategory はカテゴリに属するアイテム一覧を作成日時昇順で返す。
	ListByCategory(ctx context.Context, categoryID string) ([]*model.Item, error)

	// ListLatest は全カテゴリ横断で最新のアイテムを作成日時降順にlimit件返す。
	ListLatest(ctx context.Context, limit int) ([]*model.Item, error)

	// CountByCategory はカテゴリに属するアイテム数を返す。
	CountByCategory(ctx context.Context, categoryID string) (int, error)

	// FindImage はアイテムの画像blobを返す。
	// アイテムが存在しない場合と画像未登録の場合はどちらもnilを返す。
	FindImage(ctx context.Context, id string) ([]byte, error)

	// Create はアイテムを作成する。imageがnilでない場合は画像blobも保存する。
	Create(ctx context.Context, item *model.Item, image []byte) error

	// Update はアイテムの可変フィールド（name, description, category_id）を更新する。
	// created_atと作成者は変更されない。
	Update(ctx context.Context, item *model.Item) error

	// UpdateImage はアイテムの画像blobを更新する。nilを渡すと画像を削除する。
	UpdateImage(ctx context.Context, itemID string, image []byte) error

	// DeleteByID は指定IDのアイテムを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// Update はセッションの状態（認証情報、トークン、フラッシュ）を上書き保存する。
	Update(ctx context.Context, session *model.Session) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int, error)
}
