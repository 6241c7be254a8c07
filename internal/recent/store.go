// Package recent tracks the items a visitor has recently viewed and turns
// that history back into an ordered list of catalog items.
package recent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"recently-viewed/server/internal/metrics"
	"recently-viewed/server/internal/storage"
	"recently-viewed/server/internal/visitor"
)

const (
	// AttributeName is the per-user attribute holding an authenticated visitor's list.
	AttributeName = "recently_viewed_products"

	// CacheKeyPrefix is joined with the encoded source address to key an
	// anonymous visitor's cache entry.
	CacheKeyPrefix = "recently_viewed_products_"

	DefaultAnonymousTTL = 12 * time.Hour
)

// Store reads and writes recently viewed lists. Authenticated visitors are
// kept in durable per-user attributes, anonymous visitors in a TTL cache.
//
// Writes are last-write-wins: two concurrent read-modify-write cycles for
// the same key can lose one of the updates.
type Store struct {
	attributes   storage.AttributeStore
	cache        storage.Cache
	anonymousTTL time.Duration
	log          *slog.Logger
	metrics      *metrics.Metrics
}

type StoreOptions struct {
	// AnonymousTTL defaults to DefaultAnonymousTTL.
	AnonymousTTL time.Duration
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
}

func NewStore(attributes storage.AttributeStore, cache storage.Cache, opts StoreOptions) *Store {
	if opts.AnonymousTTL <= 0 {
		opts.AnonymousTTL = DefaultAnonymousTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		attributes:   attributes,
		cache:        cache,
		anonymousTTL: opts.AnonymousTTL,
		log:          opts.Logger,
		metrics:      opts.Metrics,
	}
}

// CacheKey returns the cache key for an encoded source address.
func CacheKey(encodedAddress string) string {
	return CacheKeyPrefix + encodedAddress
}

// Get never fails: missing, expired, malformed or unreadable records all
// read as an empty list.
//
// For an authenticated visitor without a stored list, the anonymous entry
// for the request's source address is returned instead. This carries
// browsing history across login. The reverse never happens.
func (s *Store) Get(ctx context.Context, key visitor.Key) List {
	if key.IsAuthenticated() {
		if list, ok := s.getAttribute(ctx, key); ok {
			return list
		}
	}
	list, _ := s.getCache(ctx, key)
	return list
}

// Put overwrites the visitor's list. Anonymous entries get a fresh ttl on
// every write.
func (s *Store) Put(ctx context.Context, key visitor.Key, list List) error {
	if list == nil {
		list = List{}
	}
	value, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode recently viewed: %w", err)
	}
	if key.IsAuthenticated() {
		if err := s.attributes.SetAttribute(ctx, key.UserID, AttributeName, value); err != nil {
			s.metrics.StoreError("put", key.Kind.String())
			return fmt.Errorf("store recently viewed for %s: %w", key, err)
		}
		return nil
	}
	if err := s.cache.Set(ctx, CacheKey(key.Address), value, s.anonymousTTL); err != nil {
		s.metrics.StoreError("put", key.Kind.String())
		return fmt.Errorf("store recently viewed for %s: %w", key, err)
	}
	return nil
}

// Clear empties the visitor's list. An authenticated visitor keeps an empty
// stored list so the anonymous fallback does not bring old history back.
func (s *Store) Clear(ctx context.Context, key visitor.Key) error {
	if key.IsAuthenticated() {
		return s.Put(ctx, key, List{})
	}
	if err := s.cache.Delete(ctx, CacheKey(key.Address)); err != nil {
		s.metrics.StoreError("clear", key.Kind.String())
		return fmt.Errorf("clear recently viewed for %s: %w", key, err)
	}
	return nil
}

func (s *Store) getAttribute(ctx context.Context, key visitor.Key) (List, bool) {
	value, err := s.attributes.GetAttribute(ctx, key.UserID, AttributeName)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.readFailed(ctx, key, err)
		}
		return nil, false
	}
	return decodeList(value)
}

func (s *Store) getCache(ctx context.Context, key visitor.Key) (List, bool) {
	value, err := s.cache.Get(ctx, CacheKey(key.Address))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.readFailed(ctx, visitor.AnonymousKey(key.Address), err)
		}
		return List{}, false
	}
	list, ok := decodeList(value)
	if !ok {
		return List{}, false
	}
	return list, true
}

func (s *Store) readFailed(ctx context.Context, key visitor.Key, err error) {
	s.metrics.StoreError("get", key.Kind.String())
	s.log.WarnContext(ctx, "recent.store.read_failed", "visitor", key.String(), "kind", key.Kind.String(), "err", err)
}

// decodeList reports false when value is not a JSON array of ids.
func decodeList(value []byte) (List, bool) {
	var list List
	if err := json.Unmarshal(value, &list); err != nil || list == nil {
		return nil, false
	}
	return Dedupe(list), true
}
