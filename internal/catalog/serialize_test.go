package catalog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/hitoshi/catalog/internal/model"
)

func TestSerializeItems_PreservesOrderAndFields(t *testing.T) {
	items := []*model.Item{
		{ID: "item-1", Name: "Ball", Description: "A soccer ball", CategoryID: "cat-1", CreatedAt: time.Now(), HasImage: true},
		{ID: "item-2", Name: "Goal", Description: "A goal net", CategoryID: "cat-1"},
	}

	got := SerializeItems(items)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "item-1" || got[1].ID != "item-2" {
		t.Errorf("order not preserved: %v", got)
	}
	if got[0].Name != "Ball" {
		t.Errorf("name = %q, want %q", got[0].Name, "Ball")
	}
	if got[0].Description != "A soccer ball" {
		t.Errorf("description = %q, want %q", got[0].Description, "A soccer ball")
	}
}

func TestSerializeItems_EmptyInput_ReturnsEmptyNonNilSlice(t *testing.T) {
	got := SerializeItems(nil)

	if got == nil {
		t.Fatal("expected non-nil slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

// TestItemJSON_FieldsAreExactlyIDNameDescription はシリアライズ結果の
// JSONフィールドがid、name、descriptionのみであることを検証する。
func TestItemJSON_FieldsAreExactlyIDNameDescription(t *testing.T) {
	items := []*model.Item{
		{ID: "item-1", Name: "Ball", Description: "A ball", CategoryID: "cat-1", HasImage: true},
	}

	data, err := json.Marshal(SerializeItems(items))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if len(decoded[0]) != 3 {
		t.Errorf("field count = %d, want 3: %v", len(decoded[0]), decoded[0])
	}
	for _, key := range []string{"id", "name", "description"} {
		if _, ok := decoded[0][key]; !ok {
			t.Errorf("missing field %q", key)
		}
	}
}

func TestSerializeCatalog_PreservesCategoryAndItemOrder(t *testing.T) {
	categories := []model.CategoryWithItems{
		{
			Category: model.Category{ID: "cat-1", Name: "Soccer"},
			Items: []*model.Item{
				{ID: "item-1", Name: "Ball"},
				{ID: "item-2", Name: "Goal"},
			},
		},
		{
			Category: model.Category{ID: "cat-2", Name: "Hockey"},
		},
	}

	got := SerializeCatalog(categories)

	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != "cat-1" || got[1].ID != "cat-2" {
		t.Errorf("category order not preserved: %v", got)
	}
	if got[0].Name != "Soccer" {
		t.Errorf("category name = %q, want %q", got[0].Name, "Soccer")
	}
	if len(got[0].Items) != 2 || got[0].Items[0].ID != "item-1" {
		t.Errorf("item order not preserved: %v", got[0].Items)
	}

	// アイテムが無いカテゴリは空のシーケンスになる
	if got[1].Items == nil {
		t.Error("expected non-nil items for empty category")
	}
	if len(got[1].Items) != 0 {
		t.Errorf("items len = %d, want 0", len(got[1].Items))
	}
}

func TestSerializeCatalog_EmptyInput_ReturnsEmptyNonNilSlice(t *testing.T) {
	got := SerializeCatalog(nil)

	if got == nil {
		t.Fatal("expected non-nil slice")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}
