// Package stats computes the dashboard figures for one restaurant.
package stats

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/menu_layer/internal/cart"
	"github.com/R3E-Network/menu_layer/internal/menu"
)

// CategoryCount is the number of menu items in one category.
type CategoryCount struct {
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
	Items      int    `json:"items"`
}

// Summary is the owner dashboard.
type Summary struct {
	Categories       int             `json:"categories"`
	MenuItems        int             `json:"menu_items"`
	Featured         int             `json:"featured"`
	TotalMenuPrice   decimal.Decimal `json:"total_menu_price"`
	AverageItemPrice decimal.Decimal `json:"average_item_price"`
	ItemsPerCategory []CategoryCount `json:"items_per_category"`
}

// Summarize builds the dashboard. Items with an image count as featured.
// Items whose category is missing are grouped under an empty category id.
// ItemsPerCategory is sorted by item count, then name.
func Summarize(categories []menu.Category, items []menu.MenuItem) Summary {
	s := Summary{
		Categories:     len(categories),
		MenuItems:      len(items),
		TotalMenuPrice: decimal.Zero,
	}

	counts := make(map[string]*CategoryCount, len(categories))
	for _, c := range categories {
		counts[c.ID] = &CategoryCount{CategoryID: c.ID, Name: c.Name}
	}

	for _, it := range items {
		s.TotalMenuPrice = s.TotalMenuPrice.Add(it.Price)
		if it.ImageURL != "" {
			s.Featured++
		}
		cc, ok := counts[it.CategoryID]
		if !ok {
			cc = &CategoryCount{CategoryID: it.CategoryID}
			counts[it.CategoryID] = cc
		}
		cc.Items++
	}

	s.AverageItemPrice = decimal.Zero
	if len(items) > 0 {
		s.AverageItemPrice = s.TotalMenuPrice.Div(decimal.NewFromInt(int64(len(items)))).Round(2)
	}

	s.ItemsPerCategory = make([]CategoryCount, 0, len(counts))
	for _, cc := range counts {
		s.ItemsPerCategory = append(s.ItemsPerCategory, *cc)
	}
	sort.Slice(s.ItemsPerCategory, func(i, j int) bool {
		a, b := s.ItemsPerCategory[i], s.ItemsPerCategory[j]
		if a.Items != b.Items {
			return a.Items > b.Items
		}
		return a.Name < b.Name
	})
	return s
}

// OrderSummary is the checkout panel figure set.
type OrderSummary struct {
	Lines       int             `json:"lines"`
	TotalItems  int             `json:"total_items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Unavailable int             `json:"unavailable"`
}

// CartSummary mirrors the cart totals. Stale lines are counted in the totals
// and reported separately.
func CartSummary(snap cart.Snapshot) OrderSummary {
	out := OrderSummary{
		Lines:      len(snap.Items),
		TotalItems: snap.TotalItems,
		Subtotal:   snap.TotalPrice,
	}
	for _, it := range snap.Items {
		if it.Stale {
			out.Unavailable++
		}
	}
	return out
}
