// Package cli renders menuctl output: toasts, carts and menus.
package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/R3E-Network/menu_layer/internal/cart"
	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/internal/notify"
	"github.com/R3E-Network/menu_layer/internal/stats"
)

// Color codes for terminal output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorBold   = "\033[1m"
)

// Printer writes to a terminal or a plain stream. It implements
// notify.Notifier and notify.Navigator so managers can toast straight to it.
type Printer struct {
	w        io.Writer
	colorize bool
}

var (
	_ notify.Notifier  = (*Printer)(nil)
	_ notify.Navigator = (*Printer)(nil)
)

// NewPrinter writes to w, with color when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, colorize: isTerminal(w)}
}

// Colorize returns text wrapped in color when the printer supports it.
func (p *Printer) Colorize(text, color string) string {
	if !p.colorize {
		return text
	}
	return color + text + ColorReset
}

func (p *Printer) line(symbol, color, message string) {
	fmt.Fprintf(p.w, "%s %s\n", p.Colorize(symbol, color), message)
}

// Success prints a success message
func (p *Printer) Success(message string) { p.line("✓", ColorGreen, message) }

// Error prints an error message
func (p *Printer) Error(message string) { p.line("✗", ColorRed, message) }

// Warning prints a warning message
func (p *Printer) Warning(message string) { p.line("⚠", ColorYellow, message) }

// Info prints an info message
func (p *Printer) Info(message string) { p.line("ℹ", ColorBlue, message) }

// Notify prints a toast.
func (p *Printer) Notify(n notify.Notification) {
	text := n.Title
	if n.Message != "" {
		text = fmt.Sprintf("%s: %s", p.Colorize(n.Title, ColorBold), n.Message)
	}
	if n.Level == notify.LevelError {
		p.Error(text)
		return
	}
	p.Success(text)
}

// Navigate prints where a browser would have gone.
func (p *Printer) Navigate(path string) {
	p.line("→", ColorCyan, path)
}

// Cart prints the line items of snap followed by totals.
func (p *Printer) Cart(snap cart.Snapshot) {
	if len(snap.Items) == 0 {
		p.Info("Your cart is empty")
		return
	}

	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tITEM\tQTY\tPRICE\tSUBTOTAL\t")
	for _, it := range snap.Items {
		name := it.Name
		if it.Stale {
			name = p.Colorize(name+" (no longer available)", ColorYellow)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t$%s\t$%s\t\n", it.ID, name, it.Quantity, it.Price.StringFixed(2), it.Subtotal().StringFixed(2))
	}
	tw.Flush()

	sum := stats.CartSummary(snap)
	fmt.Fprintf(p.w, "\n%s items, total %s\n",
		p.Colorize(fmt.Sprint(sum.TotalItems), ColorBold),
		p.Colorize("$"+sum.Subtotal.StringFixed(2), ColorBold))
	if sum.Unavailable > 0 {
		p.Warning(fmt.Sprintf("%d item(s) in your cart are no longer on the menu", sum.Unavailable))
	}
}

// Menu prints a restaurant menu grouped by category.
func (p *Printer) Menu(m menu.PublicMenu) {
	if len(m.Categories) == 0 {
		p.Info("This restaurant has no menu yet")
		return
	}
	for i, c := range m.Categories {
		if i > 0 {
			fmt.Fprintln(p.w)
		}
		fmt.Fprintln(p.w, p.Colorize(c.Name, ColorBold))
		if c.Description != "" {
			fmt.Fprintln(p.w, c.Description)
		}
		items := m.ItemsIn(c.ID)
		if len(items) == 0 {
			fmt.Fprintln(p.w, "  (no items)")
			continue
		}
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		for _, it := range items {
			fmt.Fprintf(tw, "  %s\t$%s\t%s\t\n", it.Name, it.Price.StringFixed(2), p.Colorize(it.ID, ColorCyan))
		}
		tw.Flush()
	}
}

// isTerminal checks if w is a character device
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
