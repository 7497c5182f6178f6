// Package model はドメインモデルを定義する。
package model

import "time"

// Category はカタログのカテゴリを表す。
// シードコマンドでのみ作成され、リクエスト経由の作成・編集・削除は提供しない。
type Category struct {
	ID   string
	Name string
}

// CategorySummary はカテゴリ一覧表示用のサマリー。
// アイテム数はアイテムが0件のカテゴリも含めて集計される。
type CategorySummary struct {
	ID        string
	Name      string
	ItemCount int
}

// Item はカタログのアイテムを表す。
// 必ず1つのカテゴリと1人の作成ユーザーに属する。
// CreatedAtは作成時にサーバーが1回だけ設定し、以後更新されない。
type Item struct {
	ID          string
	CategoryID  string
	UserID      string // 作成者。作成後に変わることはない。
	Name        string
	Description string
	CreatedAt   time.Time
	HasImage    bool // 画像blobが保存されているかどうか。blob本体はItemRepository.FindImageで取得する。
}

// CategoryWithItems はカテゴリと所属アイテムを結合したモデル。
// catalog.jsonエンドポイントのシリアライズ入力として使用される。
type CategoryWithItems struct {
	Category
	Items []*Item
}
