package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/internal/notify"
	"github.com/R3E-Network/menu_layer/internal/session"
	"github.com/R3E-Network/menu_layer/pkg/logger"
)

// Observer is told about every cart mutation.
type Observer interface {
	ObserveCartMutation(op string)
}

// Manager owns one cart. All methods are safe for concurrent use; each runs
// to completion before the next starts.
type Manager struct {
	mu       sync.Mutex
	store    session.Store
	items    []LineItem
	stale    map[string]bool
	subs     map[int]func(Snapshot)
	nextSub  int
	notifier notify.Notifier
	observer Observer
	log      *logger.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets where toasts go.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithLogger sets the manager logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithObserver registers a mutation observer (metrics).
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observer = o }
}

// NewManager loads the cart from store. A missing or malformed slot yields an
// empty cart.
func NewManager(store session.Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		stale:    make(map[string]bool),
		subs:     make(map[int]func(Snapshot)),
		notifier: notify.Discard,
		log:      logger.NewDefault("cart"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.items = m.load()
	return m
}

func (m *Manager) load() []LineItem {
	raw, err := m.store.Get(session.SlotCart)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		m.log.WithError(err).Warn("cart load failed; starting empty")
		return nil
	}

	var stored []LineItem
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		m.log.WithError(err).Warn("stored cart is malformed; starting empty")
		return nil
	}
	return sanitize(stored)
}

// sanitize drops entries without an id or with quantity below 1 and merges
// duplicate ids, keeping first-insertion order.
func sanitize(stored []LineItem) []LineItem {
	out := make([]LineItem, 0, len(stored))
	index := make(map[string]int, len(stored))
	for _, it := range stored {
		if it.ID == "" || it.Quantity < 1 {
			continue
		}
		if i, ok := index[it.ID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ID] = len(out)
		out = append(out, it)
	}
	return out
}

// persist writes the whole cart. Failures are logged, never returned.
func (m *Manager) persist() {
	items := m.items
	if items == nil {
		items = []LineItem{}
	}
	if err := session.SetJSON(m.store, session.SlotCart, items); err != nil {
		m.log.WithError(err).Warn("cart persist failed")
	}
}

// snapshot must be called with mu held.
func (m *Manager) snapshot() Snapshot {
	items := make([]LineItem, len(m.items))
	copy(items, m.items)
	for i := range items {
		items[i].Stale = m.stale[items[i].ID]
	}
	return Snapshot{
		Items:      items,
		TotalItems: TotalItems(items),
		TotalPrice: TotalPrice(items),
	}
}

func (m *Manager) indexOf(id string) int {
	for i, it := range m.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// commit persists, snapshots and releases the lock, then delivers the toast
// and the snapshot to subscribers.
func (m *Manager) commit(op string, toast *notify.Notification) {
	m.persist()
	snap := m.snapshot()
	subs := make([]func(Snapshot), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.ObserveCartMutation(op)
	}
	if toast != nil {
		m.notifier.Notify(*toast)
	}
	for _, fn := range subs {
		fn(snap)
	}
}

// =============================================================================
// Operations
// =============================================================================

// AddToCart adds quantity units of item. Quantities below 1 count as 1. An
// existing line for the same id is incremented, never duplicated.
func (m *Manager) AddToCart(item menu.MenuItem, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	m.mu.Lock()
	var toast notify.Notification
	if i := m.indexOf(item.ID); i >= 0 {
		m.items[i].Quantity += quantity
		toast = notify.Notification{Level: notify.LevelInfo, Title: fmt.Sprintf("Updated %s quantity in cart", item.Name)}
	} else {
		m.items = append(m.items, lineFromMenuItem(item, quantity))
		toast = notify.Notification{Level: notify.LevelInfo, Title: fmt.Sprintf("Added %s to cart", item.Name)}
	}
	delete(m.stale, item.ID)
	m.commit("add", &toast)
}

// RemoveFromCart deletes the line for itemID. Removing an absent id is a no-op
// that still persists and notifies subscribers, but shows no toast.
func (m *Manager) RemoveFromCart(itemID string) {
	m.mu.Lock()
	var toast *notify.Notification
	if i := m.indexOf(itemID); i >= 0 {
		name := m.items[i].Name
		m.items = append(m.items[:i], m.items[i+1:]...)
		toast = &notify.Notification{Level: notify.LevelInfo, Title: fmt.Sprintf("Removed %s from cart", name)}
	}
	delete(m.stale, itemID)
	m.commit("remove", toast)
}

// UpdateQuantity sets the quantity of itemID exactly. Values below 1 remove
// the line.
func (m *Manager) UpdateQuantity(itemID string, quantity int) {
	if quantity < 1 {
		m.RemoveFromCart(itemID)
		return
	}

	m.mu.Lock()
	if i := m.indexOf(itemID); i >= 0 {
		m.items[i].Quantity = quantity
	}
	m.commit("update", nil)
}

// ClearCart empties the cart. It always shows the "Cart cleared" toast.
func (m *Manager) ClearCart() {
	m.mu.Lock()
	m.items = nil
	m.stale = make(map[string]bool)
	m.commit("clear", &notify.Notification{Level: notify.LevelInfo, Title: "Cart cleared"})
}

// =============================================================================
// Reads
// =============================================================================

// Items returns a copy of the line items in insertion order.
func (m *Manager) Items() []LineItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot().Items
}

// TotalItems is the sum of quantities.
func (m *Manager) TotalItems() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return TotalItems(m.items)
}

// TotalPrice is the sum of price times quantity.
func (m *Manager) TotalPrice() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return TotalPrice(m.items)
}

// Snapshot returns the current state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Subscribe registers fn to receive a snapshot after every mutation. The
// returned function unregisters it.
func (m *Manager) Subscribe(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}
