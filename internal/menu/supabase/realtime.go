package supabase

import (
	"context"
	"fmt"

	"github.com/R3E-Network/menu_layer/supabase/client"
)

// RemovalFeed reports menu items that disappear from a restaurant's menu. It
// satisfies cart.RemovalFeed.
type RemovalFeed struct {
	rt *client.RealtimeClient
}

// NewRemovalFeed wraps a connected realtime client.
func NewRemovalFeed(rt *client.RealtimeClient) *RemovalFeed {
	return &RemovalFeed{rt: rt}
}

// WatchRemovals calls fn with the id of every menu item deleted from
// restaurantID's menu until stop is called.
//
// Realtime cannot filter DELETE events, so the subscription covers the whole
// table. Rows from other restaurants are skipped when the old record carries
// user_id (REPLICA IDENTITY FULL); otherwise only the id arrives and callers
// must ignore ids they do not hold.
func (f *RemovalFeed) WatchRemovals(ctx context.Context, restaurantID string, fn func(itemID string)) (func(), error) {
	ch, err := f.rt.SubscribeToPostgresChanges(ctx, client.PostgresChangesConfig{
		Events: []string{"DELETE"},
		Table:  tableMenuItems,
	}, func(ev *client.RealtimeEvent) {
		change, err := ev.Change()
		if err != nil {
			return
		}
		if owner, ok := change.OldRecord["user_id"]; ok && owner != nil && fmt.Sprint(owner) != restaurantID {
			return
		}
		if id := change.ID(); id != "" {
			fn(id)
		}
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = ch.Unsubscribe(context.Background()) }, nil
}
