package cart

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/internal/notify"
	"github.com/R3E-Network/menu_layer/internal/session"
	"github.com/R3E-Network/menu_layer/pkg/logger"
	"github.com/R3E-Network/menu_layer/pkg/testutil"
)

func pizza() menu.MenuItem {
	return menu.MenuItem{ID: "42", Name: "Pizza", Description: "Margherita", Price: testutil.Price("12.99")}
}

func newTestManager(t *testing.T, store session.Store) (*Manager, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	return NewManager(store, WithNotifier(rec), WithLogger(logger.NewDiscard())), rec
}

func titles(rec *notify.Recorder) []string {
	var out []string
	for _, n := range rec.Notifications() {
		out = append(out, n.Title)
	}
	return out
}

// =============================================================================
// Add / Update / Remove Tests
// =============================================================================

func TestAddSameItemAccumulates(t *testing.T) {
	m, rec := newTestManager(t, session.NewMemoryStore())

	m.AddToCart(pizza(), 1)
	m.AddToCart(pizza(), 2)

	items := m.Items()
	if len(items) != 1 {
		t.Fatalf("len(Items()) = %d, want 1", len(items))
	}
	if items[0].Quantity != 3 {
		t.Errorf("Quantity = %d, want 3", items[0].Quantity)
	}
	if got := m.TotalPrice(); !got.Equal(testutil.Price("38.97")) {
		t.Errorf("TotalPrice() = %s, want 38.97", got)
	}
	if m.TotalItems() != 3 {
		t.Errorf("TotalItems() = %d, want 3", m.TotalItems())
	}

	want := []string{"Added Pizza to cart", "Updated Pizza quantity in cart"}
	got := titles(rec)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("notifications = %v, want %v", got, want)
	}
}

func TestAddNonPositiveQuantityCountsAsOne(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryStore())
	m.AddToCart(pizza(), 0)
	m.AddToCart(pizza(), -5)
	if m.TotalItems() != 2 {
		t.Errorf("TotalItems() = %d, want 2", m.TotalItems())
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryStore())
	m.AddToCart(testutil.Dish("b", "Bread", "2"), 1)
	m.AddToCart(testutil.Dish("a", "Apple pie", "5"), 1)
	m.AddToCart(testutil.Dish("b", "Bread", "2"), 1)

	items := m.Items()
	if items[0].ID != "b" || items[1].ID != "a" {
		t.Errorf("order = %s,%s, want b,a", items[0].ID, items[1].ID)
	}
}

func TestUpdateQuantity(t *testing.T) {
	m, rec := newTestManager(t, session.NewMemoryStore())
	m.AddToCart(pizza(), 1)
	rec.Reset()

	m.UpdateQuantity("42", 5)
	if got := m.Items()[0].Quantity; got != 5 {
		t.Errorf("Quantity = %d, want 5", got)
	}
	if len(rec.Notifications()) != 0 {
		t.Errorf("UpdateQuantity should not toast, got %v", titles(rec))
	}

	m.UpdateQuantity("missing", 3)
	if len(m.Items()) != 1 {
		t.Error("UpdateQuantity on absent id must be a no-op")
	}
}

func TestUpdateQuantityBelowOneRemoves(t *testing.T) {
	for _, q := range []int{0, -1} {
		m, rec := newTestManager(t, session.NewMemoryStore())
		m.AddToCart(pizza(), 2)
		rec.Reset()

		m.UpdateQuantity("42", q)

		if len(m.Items()) != 0 {
			t.Errorf("UpdateQuantity(42, %d) left %d items", q, len(m.Items()))
		}
		last, ok := rec.Last()
		if !ok || last.Title != "Removed Pizza from cart" {
			t.Errorf("UpdateQuantity(42, %d) toast = %+v", q, last)
		}
	}
}

func TestRemoveAbsentIsSilent(t *testing.T) {
	m, rec := newTestManager(t, session.NewMemoryStore())
	m.RemoveFromCart("nope")
	if len(rec.Notifications()) != 0 {
		t.Errorf("notifications = %v, want none", titles(rec))
	}
}

func TestClearEmptyCartStillNotifies(t *testing.T) {
	m, rec := newTestManager(t, session.NewMemoryStore())
	var snaps []Snapshot
	m.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	m.ClearCart()

	if last, _ := rec.Last(); last.Title != "Cart cleared" {
		t.Errorf("toast = %q, want Cart cleared", last.Title)
	}
	if len(snaps) != 1 || len(snaps[0].Items) != 0 {
		t.Errorf("snapshots = %+v", snaps)
	}
}

func TestNoDuplicateIDsUnderRandomOps(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryStore())
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		id := strconv.Itoa(r.Intn(6))
		switch r.Intn(3) {
		case 0:
			m.AddToCart(testutil.Dish(id, "Dish "+id, "1.50"), r.Intn(4))
		case 1:
			m.RemoveFromCart(id)
		case 2:
			m.UpdateQuantity(id, r.Intn(5)-1)
		}

		seen := map[string]bool{}
		sum := 0
		for _, it := range m.Items() {
			if seen[it.ID] {
				t.Fatalf("step %d: duplicate id %s", i, it.ID)
			}
			if it.Quantity < 1 {
				t.Fatalf("step %d: quantity %d for %s", i, it.Quantity, it.ID)
			}
			seen[it.ID] = true
			sum += it.Quantity
		}
		if sum != m.TotalItems() {
			t.Fatalf("step %d: TotalItems() = %d, want %d", i, m.TotalItems(), sum)
		}
	}
}

// =============================================================================
// Persistence Tests
// =============================================================================

func TestRoundTripThroughStore(t *testing.T) {
	store := session.NewMemoryStore()
	m, _ := newTestManager(t, store)
	m.AddToCart(testutil.Dish("1", "Soup", "4.50"), 2)
	m.AddToCart(testutil.Dish("2", "Bread", "1.25"), 1)
	m.AddToCart(testutil.Dish("3", "Wine", "7"), 3)
	m.RemoveFromCart("2")

	reloaded, _ := newTestManager(t, store)
	got, want := reloaded.Items(), m.Items()
	if len(got) != len(want) {
		t.Fatalf("reloaded %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Quantity != want[i].Quantity || !got[i].Price.Equal(want[i].Price) {
			t.Errorf("item %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestStoredLayoutMatchesBrowserCart(t *testing.T) {
	store := session.NewMemoryStore()
	m, _ := newTestManager(t, store)
	m.AddToCart(menu.MenuItem{ID: "42", UserID: "r1", CategoryID: "c1", Name: "Pizza", Description: "d", Price: testutil.Price("12.99")}, 1)

	raw, err := store.Get(session.SlotCart)
	if err != nil {
		t.Fatalf("Get(cart) error = %v", err)
	}
	var stored []map[string]any
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("stored cart is not JSON: %v", err)
	}
	if stored[0]["price"] != 12.99 || stored[0]["quantity"] != float64(1) || stored[0]["user_id"] != "r1" {
		t.Errorf("stored = %v", stored[0])
	}
	if _, ok := stored[0]["Stale"]; ok {
		t.Error("stale flag must not be persisted")
	}
}

func TestCorruptedStoreYieldsEmptyCart(t *testing.T) {
	for _, raw := range []string{"{not json", `{"id":"1"}`, `"cart"`} {
		store := session.NewMemoryStore()
		store.Set(session.SlotCart, raw)

		m, _ := newTestManager(t, store)
		if len(m.Items()) != 0 {
			t.Errorf("stored %q: Items() = %v, want empty", raw, m.Items())
		}
	}
}

func TestLoadSanitizesEntries(t *testing.T) {
	store := session.NewMemoryStore()
	store.Set(session.SlotCart, `[
		{"id":"1","name":"Soup","price":4.5,"quantity":1},
		{"id":"","name":"Ghost","price":1,"quantity":1},
		{"id":"2","name":"Bread","price":"1.25","quantity":0},
		{"id":"1","name":"Soup","price":4.5,"quantity":2}
	]`)

	m, _ := newTestManager(t, store)
	items := m.Items()
	if len(items) != 1 || items[0].ID != "1" || items[0].Quantity != 3 {
		t.Errorf("Items() = %+v, want one Soup x3", items)
	}
}

func TestStoreReadFailureYieldsEmptyCart(t *testing.T) {
	store := session.NewMemoryStore()
	store.FailReads(errors.New("storage disabled"))
	m, _ := newTestManager(t, store)
	if len(m.Items()) != 0 {
		t.Error("want empty cart when the store cannot be read")
	}
}

func TestStoreWriteFailureIsSwallowed(t *testing.T) {
	store := session.NewMemoryStore()
	store.FailWrites(errors.New("quota exceeded"))
	m, rec := newTestManager(t, store)

	m.AddToCart(pizza(), 1)

	if m.TotalItems() != 1 {
		t.Errorf("TotalItems() = %d, want 1 (in-memory state still updated)", m.TotalItems())
	}
	if last, _ := rec.Last(); last.Title != "Added Pizza to cart" {
		t.Errorf("toast = %q", last.Title)
	}
}

// =============================================================================
// Subscription Tests
// =============================================================================

func TestSubscribeAndUnsubscribe(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryStore())
	var got []int
	stop := m.Subscribe(func(s Snapshot) { got = append(got, s.TotalItems) })

	m.AddToCart(pizza(), 2)
	m.UpdateQuantity("42", 4)
	stop()
	stop()
	m.ClearCart()

	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("subscriber saw %v, want [2 4]", got)
	}
}

func TestSubscriberMayCallBack(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryStore())
	var total int
	m.Subscribe(func(Snapshot) { total = m.TotalItems() })

	m.AddToCart(pizza(), 3)
	if total != 3 {
		t.Errorf("total seen from subscriber = %d, want 3", total)
	}
}

// =============================================================================
// Stale Entry Tests
// =============================================================================

func TestReconcileMarksStale(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryStore())
	m.AddToCart(testutil.Dish("1", "Soup", "4"), 1)
	m.AddToCart(testutil.Dish("2", "Bread", "1"), 2)

	stale := m.Reconcile([]menu.MenuItem{testutil.Dish("1", "Soup", "4")})
	if len(stale) != 1 || stale[0] != "2" {
		t.Fatalf("Reconcile() = %v, want [2]", stale)
	}

	snap := m.Snapshot()
	if !snap.HasStale() || snap.Items[0].Stale || !snap.Items[1].Stale {
		t.Errorf("stale flags = %v/%v", snap.Items[0].Stale, snap.Items[1].Stale)
	}
	if !snap.TotalPrice.Equal(decimal.NewFromInt(6)) {
		t.Errorf("TotalPrice = %s, want 6 (stale items still counted)", snap.TotalPrice)
	}

	// dish comes back
	m.Reconcile([]menu.MenuItem{testutil.Dish("1", "Soup", "4"), testutil.Dish("2", "Bread", "1")})
	if m.Snapshot().HasStale() {
		t.Error("stale flag should clear when the item reappears")
	}
}

func TestReAddClearsStale(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryStore())
	m.AddToCart(pizza(), 1)
	m.MarkStale("42")
	m.MarkStale("unknown")
	if !m.Items()[0].Stale {
		t.Fatal("MarkStale did not flag the item")
	}
	m.AddToCart(pizza(), 1)
	if m.Items()[0].Stale {
		t.Error("re-adding should clear the stale flag")
	}
}

type fakeFeed struct {
	restaurant string
	fn         func(string)
	stopped    bool
}

func (f *fakeFeed) WatchRemovals(ctx context.Context, restaurantID string, fn func(string)) (func(), error) {
	f.restaurant = restaurantID
	f.fn = fn
	return func() { f.stopped = true }, nil
}

func TestWatchMenu(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryStore())
	m.AddToCart(pizza(), 1)

	feed := &fakeFeed{}
	stop, err := m.WatchMenu(context.Background(), feed, "r1")
	if err != nil {
		t.Fatalf("WatchMenu() error = %v", err)
	}
	if feed.restaurant != "r1" {
		t.Errorf("restaurant = %q, want r1", feed.restaurant)
	}

	feed.fn("42")
	if !m.Items()[0].Stale {
		t.Error("deleted menu item should mark the line stale")
	}

	stop()
	if !feed.stopped {
		t.Error("stop should release the feed")
	}
}
