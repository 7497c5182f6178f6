package catalog

import "github.com/hitoshi/catalog/internal/model"

// ItemJSON はcatalog.jsonにおけるアイテムの表現。
// 画像データと作成日時は意図的に含まれない。
type ItemJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CategoryJSON はcatalog.jsonにおけるカテゴリの表現。
type CategoryJSON struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []ItemJSON `json:"items"`
}

// SerializeItems はアイテムのリストをJSON表現に変換する。
// 副作用のない純粋な変換で、入力の順序を保持する。
// 空のリストはエラーではなく空のシーケンスになる。
func SerializeItems(items []*model.Item) []ItemJSON {
	out := make([]ItemJSON, 0, len(items))
	for _, item := range items {
		out = append(out, ItemJSON{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
		})
	}
	return out
}

// SerializeCatalog はカテゴリとその所属アイテムのグラフをJSON表現に変換する。
// カテゴリ・アイテムとも入力の順序を保持する。
func SerializeCatalog(categories []model.CategoryWithItems) []CategoryJSON {
	out := make([]CategoryJSON, 0, len(categories))
	for _, c := range categories {
		out = append(out, CategoryJSON{
			ID:    c.ID,
			Name:  c.Name,
			Items: SerializeItems(c.Items),
		})
	}
	return out
}
