package recent

import (
	"bytes"
	"context"
	"testing"

	"recently-viewed/server/internal/catalog"
	"recently-viewed/server/internal/logging"
	"recently-viewed/server/internal/visitor"
)

func newRenderer(h *harness, tmpl Template) *Renderer {
	return NewRenderer(h.resolver, h.store, h.catalog, tmpl, RendererOptions{Logger: logging.Discard()})
}

func ids(items []catalog.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out
}

func TestRendererKeepsStoredOrder(t *testing.T) {
	h := newHarness(0, item(1), item(2), item(3))
	key := visitor.AnonymousKey(visitor.EncodeAddress("1.2.3.4"))
	if err := h.store.Put(context.Background(), key, List{3, 1, 2}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got := ids(newRenderer(h, &recordingTemplate{}).Items(anonymousRequest("1.2.3.4")))
	want := []int64{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("items: got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items: got %v want %v", got, want)
		}
	}
}

func TestRendererDropsMissingAndHiddenItems(t *testing.T) {
	hidden := catalog.Item{ID: 2, Visible: false}
	h := newHarness(0, item(1), hidden, item(3))
	key := visitor.AnonymousKey(visitor.EncodeAddress("1.2.3.4"))
	if err := h.store.Put(context.Background(), key, List{3, 99, 2, 1}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got := ids(newRenderer(h, &recordingTemplate{}).Items(anonymousRequest("1.2.3.4")))
	if len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Fatalf("items: got %v", got)
	}
}

func TestRendererEmptyHistorySkipsLookup(t *testing.T) {
	h := newHarness(0, item(1))
	tmpl := &recordingTemplate{}

	var buf bytes.Buffer
	if err := newRenderer(h, tmpl).Render(&buf, anonymousRequest("1.2.3.4")); err != nil {
		t.Fatalf("render: %v", err)
	}
	if h.catalog.lookupCalls != 0 {
		t.Fatalf("catalog lookups: got %d", h.catalog.lookupCalls)
	}
	if tmpl.name != TemplateName {
		t.Fatalf("template: got %q", tmpl.name)
	}
	section, ok := tmpl.data.(Section)
	if !ok {
		t.Fatalf("template data: got %T", tmpl.data)
	}
	if section.Items == nil || len(section.Items) != 0 {
		t.Fatalf("section items: got %#v", section.Items)
	}
}

func TestRendererLookupFailureRendersEmpty(t *testing.T) {
	h := newHarness(0, item(1))
	h.catalog.lookupErr = errBackend
	key := visitor.AnonymousKey(visitor.EncodeAddress("1.2.3.4"))
	if err := h.store.Put(context.Background(), key, List{1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := newRenderer(h, &recordingTemplate{}).Items(anonymousRequest("1.2.3.4")); len(got) != 0 {
		t.Fatalf("items: got %v", got)
	}
}

func TestRendererUsesLoginFallback(t *testing.T) {
	h := newHarness(0, item(10), item(20))
	key := visitor.AnonymousKey(visitor.EncodeAddress("1.2.3.4"))
	if err := h.store.Put(context.Background(), key, List{20, 10}); err != nil {
		t.Fatalf("put: %v", err)
	}
	got := ids(newRenderer(h, &recordingTemplate{}).Items(userRequest("1.2.3.4", "user-1")))
	if len(got) != 2 || got[0] != 20 || got[1] != 10 {
		t.Fatalf("items: got %v", got)
	}
}

func TestOrderByIDsIgnoresUnrequestedItems(t *testing.T) {
	got := ids(orderByIDs(List{2}, []catalog.Item{item(1), item(2)}))
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("ordered: got %v", got)
	}
}
