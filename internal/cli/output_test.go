package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/menu_layer/internal/cart"
	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/internal/notify"
	"github.com/R3E-Network/menu_layer/pkg/testutil"
)

func TestNotifyPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Notify(notify.Notification{Title: "Added to cart", Message: "Pizza has been added to your cart"})
	p.Notify(notify.Notification{Level: notify.LevelError, Title: "Login failed", Message: "Invalid email or password."})
	p.Navigate("/login")

	want := "✓ Added to cart: Pizza has been added to your cart\n" +
		"✗ Login failed: Invalid email or password.\n" +
		"→ /login\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestCartOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Cart(cart.Snapshot{})
	if !strings.Contains(buf.String(), "Your cart is empty") {
		t.Errorf("empty cart output = %q", buf.String())
	}

	buf.Reset()
	price := testutil.Price("12.99")
	p.Cart(cart.Snapshot{
		Items: []cart.LineItem{
			{ID: "1", Name: "Pizza", Price: price, Quantity: 3},
			{ID: "2", Name: "Soup", Price: decimal.NewFromInt(5), Quantity: 1, Stale: true},
		},
		TotalItems: 4,
		TotalPrice: testutil.Price("43.97"),
	})

	out := buf.String()
	for _, want := range []string{"Pizza", "$38.97", "Soup (no longer available)", "4 items, total $43.97", "1 item(s)"} {
		if !strings.Contains(out, want) {
			t.Errorf("cart output missing %q:\n%s", want, out)
		}
	}
}

func TestMenuOutput(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.Menu(menu.PublicMenu{
		Categories: []menu.Category{testutil.Category("r1", "c1", "Mains"), testutil.Category("r1", "c2", "Desserts")},
		MenuItems:  []menu.MenuItem{testutil.DishIn("r1", "c1", "i1", "Pizza", "12.5")},
	})

	out := buf.String()
	for _, want := range []string{"Mains", "Pizza", "$12.50", "i1", "Desserts", "(no items)"} {
		if !strings.Contains(out, want) {
			t.Errorf("menu output missing %q:\n%s", want, out)
		}
	}
}
