package recent

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"recently-viewed/server/internal/catalog"
	"recently-viewed/server/internal/logging"
	"recently-viewed/server/internal/storage"
	"recently-viewed/server/internal/visitor"
)

var errBackend = errors.New("backend unavailable")

type fakeAttributes struct {
	mu       sync.Mutex
	values   map[string][]byte
	getErr   error
	setErr   error
	setCalls int
}

func newFakeAttributes() *fakeAttributes {
	return &fakeAttributes{values: map[string][]byte{}}
}

func (f *fakeAttributes) GetAttribute(_ context.Context, userID string, name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	value, ok := f.values[userID+"/"+name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return value, nil
}

func (f *fakeAttributes) SetAttribute(_ context.Context, userID string, name string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls++
	if f.setErr != nil {
		return f.setErr
	}
	f.values[userID+"/"+name] = value
	return nil
}

func (f *fakeAttributes) DeleteAttribute(_ context.Context, userID string, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, userID+"/"+name)
	return nil
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// fakeCache expires entries against a settable clock.
type fakeCache struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]cacheEntry
	getErr  error
	setErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		now:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		entries: map[string]cacheEntry{},
	}
}

func (f *fakeCache) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	entry, ok := f.entries[key]
	if !ok || f.now.After(entry.expiresAt) {
		return nil, storage.ErrNotFound
	}
	return entry.value, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.entries[key] = cacheEntry{value: value, expiresAt: f.now.Add(ttl)}
	return nil
}

func (f *fakeCache) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	return nil
}

// fakeCatalog returns lookups in reverse id order so callers must reorder.
type fakeCatalog struct {
	items       map[int64]catalog.Item
	lookupCalls int
	lookupErr   error
}

func newFakeCatalog(items ...catalog.Item) *fakeCatalog {
	c := &fakeCatalog{items: map[int64]catalog.Item{}}
	for _, item := range items {
		c.items[item.ID] = item
	}
	return c
}

func (c *fakeCatalog) Item(_ context.Context, id int64) (catalog.Item, error) {
	item, ok := c.items[id]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return item, nil
}

func (c *fakeCatalog) LookupVisible(_ context.Context, ids []int64) ([]catalog.Item, error) {
	c.lookupCalls++
	if c.lookupErr != nil {
		return nil, c.lookupErr
	}
	var found []catalog.Item
	for _, id := range ids {
		item, ok := c.items[id]
		if ok && item.Visible {
			found = append(found, item)
		}
	}
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found, nil
}

func (*fakeCatalog) IsVisible(item catalog.Item) bool {
	return item.Visible
}

type recordingTemplate struct {
	name string
	data any
}

func (t *recordingTemplate) Render(w io.Writer, name string, data any) error {
	t.name = name
	t.data = data
	_, err := io.WriteString(w, name)
	return err
}

// headerSessions authenticates requests carrying an X-User header.
type headerSessions struct{}

func (headerSessions) UserID(r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User")
	return userID, userID != ""
}

func item(id int64) catalog.Item {
	return catalog.Item{ID: id, Name: "item", Visible: true}
}

func anonymousRequest(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/products/1", nil)
	req.RemoteAddr = addr + ":40000"
	return req
}

func userRequest(addr, userID string) *http.Request {
	req := anonymousRequest(addr)
	req.Header.Set("X-User", userID)
	return req
}

type harness struct {
	attributes *fakeAttributes
	cache      *fakeCache
	catalog    *fakeCatalog
	resolver   *visitor.Resolver
	store      *Store
	tracker    *Tracker
}

func newHarness(maxItems int, items ...catalog.Item) *harness {
	h := &harness{
		attributes: newFakeAttributes(),
		cache:      newFakeCache(),
		catalog:    newFakeCatalog(items...),
		resolver:   visitor.NewResolver(headerSessions{}, false),
	}
	h.store = NewStore(h.attributes, h.cache, StoreOptions{Logger: logging.Discard()})
	h.tracker = NewTracker(h.resolver, h.store, h.catalog, TrackerOptions{MaxItems: maxItems, Logger: logging.Discard()})
	return h
}
