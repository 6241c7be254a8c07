package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"recently-viewed/server/internal/storage"
)

func newTestCatalog(t *testing.T) *SQLCatalog {
	t.Helper()
	store, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("init sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	for _, p := range []storage.Product{
		{ID: 1, Name: "Mug", Permalink: "/products/1", PriceCents: 1200, Visible: true},
		{ID: 2, Name: "Draft", Visible: false},
	} {
		if err := store.UpsertProduct(context.Background(), p); err != nil {
			t.Fatalf("upsert product: %v", err)
		}
	}
	return NewSQLCatalog(store)
}

func TestItem(t *testing.T) {
	c := newTestCatalog(t)
	item, err := c.Item(context.Background(), 1)
	if err != nil {
		t.Fatalf("item: %v", err)
	}
	if item.Name != "Mug" || item.PriceCents != 1200 || !c.IsVisible(item) {
		t.Fatalf("unexpected item: %+v", item)
	}

	draft, err := c.Item(context.Background(), 2)
	if err != nil {
		t.Fatalf("hidden item should still be found: %v", err)
	}
	if c.IsVisible(draft) {
		t.Fatalf("draft should not be visible")
	}

	if _, err := c.Item(context.Background(), 3); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing item: got %v", err)
	}
}

func TestLookupVisibleFiltersHidden(t *testing.T) {
	c := newTestCatalog(t)
	items, err := c.LookupVisible(context.Background(), []int64{2, 1, 0})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(items) != 1 || items[0].ID != 1 {
		t.Fatalf("lookup result: %+v", items)
	}
}
