package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/menu_layer/internal/cart"
	menusupabase "github.com/R3E-Network/menu_layer/internal/menu/supabase"
	"github.com/R3E-Network/menu_layer/supabase/client"
)

func newCartCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the shopping cart",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "List the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e.out.Cart(e.cart.Snapshot())
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <menu-item-id> [quantity]",
			Short: "Add a menu item (quantity defaults to 1)",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				qty := 1
				if len(args) == 2 {
					n, err := parseQuantity(args[1])
					if err != nil {
						return err
					}
					qty = n
				}
				item, err := e.app.Menu.GetMenuItem(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				e.cart.AddToCart(item, qty)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <menu-item-id> <quantity>",
			Short: "Set the quantity of a line item; 0 removes it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				qty, err := parseQuantity(args[1])
				if err != nil {
					return err
				}
				e.cart.UpdateQuantity(args[0], qty)
				e.out.Cart(e.cart.Snapshot())
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <menu-item-id>",
			Short: "Remove a line item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				e.cart.RemoveFromCart(args[0])
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Empty the cart",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e.cart.ClearCart()
				return nil
			},
		},
		&cobra.Command{
			Use:   "check <restaurant-id>",
			Short: "Flag line items that are no longer on the restaurant's menu",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				m, err := e.app.Menu.PublicMenu(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				e.cart.Reconcile(m.MenuItems)
				e.out.Cart(e.cart.Snapshot())
				return nil
			},
		},
		newCartWatchCmd(e),
	)
	return cmd
}

func newCartWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <restaurant-id>",
		Short: "Follow menu deletions live and flag affected line items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.cfg.Supabase.Enabled() {
				return errors.New("cart watch needs a Supabase project (SUPABASE_URL, SUPABASE_ANON_KEY)")
			}
			ctx := cmd.Context()

			rt := client.NewRealtimeClient(e.cfg.Supabase.URL, e.cfg.Supabase.AnonKey)
			if err := rt.Connect(ctx); err != nil {
				return err
			}
			defer rt.Disconnect()

			warned := make(map[string]bool)
			unsubscribe := e.cart.Subscribe(func(snap cart.Snapshot) {
				for _, it := range snap.Items {
					if it.Stale && !warned[it.ID] {
						warned[it.ID] = true
						e.out.Warning(fmt.Sprintf("%s is no longer available", it.Name))
					}
				}
			})
			defer unsubscribe()

			stop, err := e.cart.WatchMenu(ctx, menusupabase.NewRemovalFeed(rt), args[0])
			if err != nil {
				return err
			}
			defer stop()

			e.out.Info("Watching for menu changes, press Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("quantity %q is not a number", s)
	}
	return n, nil
}
