package recent

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"recently-viewed/server/internal/catalog"
	"recently-viewed/server/internal/metrics"
	"recently-viewed/server/internal/visitor"
)

// DefaultMaxItems caps stored lists unless configured otherwise.
const DefaultMaxItems = 10

// Resolver maps a request to a visitor key.
type Resolver interface {
	Resolve(r *http.Request) visitor.Key
}

// ItemsStore is the subset of Store used by Tracker and Renderer.
type ItemsStore interface {
	Get(ctx context.Context, key visitor.Key) List
	Put(ctx context.Context, key visitor.Key, list List) error
}

// Tracker records item detail views.
type Tracker struct {
	resolver Resolver
	store    ItemsStore
	catalog  catalog.Catalog
	maxItems int
	log      *slog.Logger
	metrics  *metrics.Metrics
}

type TrackerOptions struct {
	// MaxItems caps the stored list; zero or less keeps it unbounded.
	MaxItems int
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
}

func NewTracker(resolver Resolver, store ItemsStore, items catalog.Catalog, opts TrackerOptions) *Tracker {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Tracker{
		resolver: resolver,
		store:    store,
		catalog:  items,
		maxItems: opts.MaxItems,
		log:      opts.Logger,
		metrics:  opts.Metrics,
	}
}

// OnItemView records that the visitor behind r viewed item on its detail
// page. Items that are not visible are ignored without error. Write failures
// are returned to the caller and not retried.
func (t *Tracker) OnItemView(r *http.Request, item catalog.Item) error {
	if !t.catalog.IsVisible(item) {
		t.metrics.ViewIgnored()
		return nil
	}
	ctx := r.Context()
	key := t.resolver.Resolve(r)
	list := Prepend(t.store.Get(ctx, key), item.ID, t.maxItems)
	if err := t.store.Put(ctx, key, list); err != nil {
		t.metrics.ViewFailed()
		return fmt.Errorf("track view of item %d: %w", item.ID, err)
	}
	t.metrics.ViewTracked()
	t.log.DebugContext(ctx, "recent.view.tracked", "visitor", key.String(), "item", item.ID, "size", len(list))
	return nil
}
