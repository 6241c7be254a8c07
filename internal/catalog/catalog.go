// Package catalog is the product lookup used by recently viewed tracking and
// rendering.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"recently-viewed/server/internal/storage"
)

var ErrNotFound = errors.New("product not found")

// Item is a product as shown to visitors.
type Item struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Permalink  string `json:"permalink"`
	PriceCents int64  `json:"priceCents"`
	Visible    bool   `json:"-"`
}

// Catalog looks up products.
type Catalog interface {
	// Item returns a product regardless of visibility, or ErrNotFound.
	Item(ctx context.Context, id int64) (Item, error)

	// LookupVisible returns the existing, visible products among ids.
	// The result order is unspecified.
	LookupVisible(ctx context.Context, ids []int64) ([]Item, error)

	// IsVisible reports whether visitors may currently see the item.
	IsVisible(item Item) bool
}

// ProductSource is the storage the SQL catalog reads from.
type ProductSource interface {
	GetProduct(ctx context.Context, id int64) (storage.Product, error)
	VisibleProducts(ctx context.Context, ids []int64) ([]storage.Product, error)
}

type SQLCatalog struct {
	source ProductSource
}

func NewSQLCatalog(source ProductSource) *SQLCatalog {
	return &SQLCatalog{source: source}
}

func (c *SQLCatalog) Item(ctx context.Context, id int64) (Item, error) {
	p, err := c.source.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Item{}, ErrNotFound
		}
		return Item{}, fmt.Errorf("catalog item %d: %w", id, err)
	}
	return fromProduct(p), nil
}

func (c *SQLCatalog) LookupVisible(ctx context.Context, ids []int64) ([]Item, error) {
	products, err := c.source.VisibleProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	items := make([]Item, 0, len(products))
	for _, p := range products {
		items = append(items, fromProduct(p))
	}
	return items, nil
}

func (*SQLCatalog) IsVisible(item Item) bool {
	return item.Visible
}

func fromProduct(p storage.Product) Item {
	return Item{
		ID:         p.ID,
		Name:       p.Name,
		Permalink:  p.Permalink,
		PriceCents: p.PriceCents,
		Visible:    p.Visible,
	}
}
