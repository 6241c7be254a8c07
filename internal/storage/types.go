package storage

// Product is a catalog row.
type Product struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Permalink  string `json:"permalink"`
	PriceCents int64  `json:"priceCents"`
	Visible    bool   `json:"visible"`
}
