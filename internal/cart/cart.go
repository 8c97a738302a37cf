// Package cart is the shopping cart state manager. It owns the ordered line
// items, mirrors them to the session store after every mutation and tells
// subscribers about each change.
package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/menu_layer/internal/menu"
)

// LineItem is one distinct dish in the cart. Quantity is always at least 1.
type LineItem struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   *time.Time      `json:"created_at,omitempty"`
	Quantity    int             `json:"quantity"`

	// Stale marks an item whose menu entry no longer exists. Display only,
	// never persisted.
	Stale bool `json:"-"`
}

// Subtotal is price times quantity.
func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func lineFromMenuItem(item menu.MenuItem, quantity int) LineItem {
	l := LineItem{
		ID:          item.ID,
		UserID:      item.UserID,
		CategoryID:  item.CategoryID,
		Name:        item.Name,
		Description: item.Description,
		Price:       item.Price,
		ImageURL:    item.ImageURL,
		Quantity:    quantity,
	}
	if !item.CreatedAt.IsZero() {
		t := item.CreatedAt
		l.CreatedAt = &t
	}
	return l
}

// Snapshot is an immutable view of the cart after an operation.
type Snapshot struct {
	Items      []LineItem      `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// HasStale reports whether any line item is stale.
func (s Snapshot) HasStale() bool {
	for _, it := range s.Items {
		if it.Stale {
			return true
		}
	}
	return false
}

// TotalItems sums quantities.
func TotalItems(items []LineItem) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}

// TotalPrice sums price times quantity, stale items included.
func TotalPrice(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}
