package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/R3E-Network/menu_layer/internal/stats"
)

func newMenuCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "menu <restaurant-id>",
		Short: "Show a restaurant's public menu",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := e.app.Menu.PublicMenu(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e.out.Menu(m)
			return nil
		},
	}
}

func newStatsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics for the signed-in owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := e.requireUser()
			if err != nil {
				return err
			}
			ctx := e.menuContext(cmd.Context())
			cats, err := e.app.Menu.ListCategories(ctx, u.ID)
			if err != nil {
				return err
			}
			items, err := e.app.Menu.ListMenuItems(ctx, u.ID, "")
			if err != nil {
				return err
			}

			s := stats.Summarize(cats, items)
			e.out.Info(fmt.Sprintf("%d categories, %d menu items", s.Categories, s.MenuItems))
			e.out.Info(fmt.Sprintf("Average price $%s", s.AverageItemPrice.StringFixed(2)))
			for _, c := range s.ItemsPerCategory {
				fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %d\n", c.Name, c.Items)
			}
			return nil
		},
	}
}
