package recent

import (
	"io"
	"log/slog"
	"net/http"

	"recently-viewed/server/internal/catalog"
	"recently-viewed/server/internal/metrics"
)

// TemplateName is the template that draws the recently viewed section.
const TemplateName = "content-recently-viewed-products"

// Template draws a named template with data.
type Template interface {
	Render(w io.Writer, name string, data any) error
}

// Section is the data handed to TemplateName.
type Section struct {
	Items []catalog.Item
}

// Renderer produces the recently viewed section for a request.
type Renderer struct {
	resolver Resolver
	store    ItemsStore
	catalog  catalog.Catalog
	template Template
	log      *slog.Logger
	metrics  *metrics.Metrics
}

type RendererOptions struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func NewRenderer(resolver Resolver, store ItemsStore, items catalog.Catalog, tmpl Template, opts RendererOptions) *Renderer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Renderer{
		resolver: resolver,
		store:    store,
		catalog:  items,
		template: tmpl,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// Items returns the visitor's recently viewed items that still exist and are
// visible, in the stored order. A catalog failure yields an empty result.
func (rd *Renderer) Items(r *http.Request) []catalog.Item {
	ctx := r.Context()
	key := rd.resolver.Resolve(r)
	ids := rd.store.Get(ctx, key)
	if len(ids) == 0 {
		rd.metrics.Rendered(false)
		return []catalog.Item{}
	}
	rd.metrics.Rendered(true)

	found, err := rd.catalog.LookupVisible(ctx, ids)
	if err != nil {
		rd.log.WarnContext(ctx, "recent.render.lookup_failed", "visitor", key.String(), "err", err)
		return []catalog.Item{}
	}
	return orderByIDs(ids, found)
}

// Render writes the section for the visitor behind r. An empty section is
// still rendered; the template decides whether to draw anything.
func (rd *Renderer) Render(w io.Writer, r *http.Request) error {
	return rd.template.Render(w, TemplateName, Section{Items: rd.Items(r)})
}

// orderByIDs arranges items in ids order, dropping ids with no item and items
// not asked for.
func orderByIDs(ids List, items []catalog.Item) []catalog.Item {
	byID := make(map[int64]catalog.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	ordered := make([]catalog.Item, 0, len(items))
	for _, id := range ids {
		item, ok := byID[id]
		if !ok {
			continue
		}
		ordered = append(ordered, item)
		delete(byID, id)
	}
	return ordered
}
