package cart

import (
	"context"

	"github.com/R3E-Network/menu_layer/internal/menu"
)

// Stale line items point at menu items that were deleted after they were
// added. They stay in the cart and in the totals; the flag only tells the
// surface to render them differently.

// MarkStale flags itemID as stale. Unknown ids are ignored.
func (m *Manager) MarkStale(itemID string) {
	m.mu.Lock()
	if m.indexOf(itemID) < 0 || m.stale[itemID] {
		m.mu.Unlock()
		return
	}
	m.stale[itemID] = true
	m.commit("stale", nil)
}

// Reconcile compares the cart against the menu items that currently exist and
// returns the ids of stale line items. Items that reappear lose the flag.
func (m *Manager) Reconcile(available []menu.MenuItem) []string {
	exists := make(map[string]bool, len(available))
	for _, it := range available {
		exists[it.ID] = true
	}

	m.mu.Lock()
	changed := false
	var stale []string
	for _, it := range m.items {
		want := !exists[it.ID]
		if want {
			stale = append(stale, it.ID)
		}
		if m.stale[it.ID] != want {
			changed = true
			if want {
				m.stale[it.ID] = true
			} else {
				delete(m.stale, it.ID)
			}
		}
	}
	if !changed {
		m.mu.Unlock()
		return stale
	}
	m.commit("reconcile", nil)
	return stale
}

// RemovalFeed streams ids of menu items deleted from a restaurant's menu.
type RemovalFeed interface {
	WatchRemovals(ctx context.Context, restaurantID string, fn func(itemID string)) (stop func(), err error)
}

// WatchMenu marks line items stale as soon as feed reports their menu item
// deleted. Call the returned function to stop watching.
func (m *Manager) WatchMenu(ctx context.Context, feed RemovalFeed, restaurantID string) (func(), error) {
	return feed.WatchRemovals(ctx, restaurantID, m.MarkStale)
}
