// Package memory is an in-process menu.Store and menu.ImageStore used by tests
// and by menu-api when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
	"github.com/R3E-Network/menu_layer/internal/menu"
)

// Store keeps categories and menu items in maps.
type Store struct {
	mu         sync.RWMutex
	categories map[string]menu.Category
	items      map[string]menu.MenuItem
	now        func() time.Time

	// ErrorOnNextCall, when set, is returned (and cleared) by the next call.
	ErrorOnNextCall error
}

var _ menu.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		categories: make(map[string]menu.Category),
		items:      make(map[string]menu.MenuItem),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) checkError() error {
	if s.ErrorOnNextCall != nil {
		err := s.ErrorOnNextCall
		s.ErrorOnNextCall = nil
		return err
	}
	return nil
}

// FailNext makes the next call return err.
func (s *Store) FailNext(err error) {
	s.mu.Lock()
	s.ErrorOnNextCall = err
	s.mu.Unlock()
}

// Reset clears all data.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories = make(map[string]menu.Category)
	s.items = make(map[string]menu.MenuItem)
	s.ErrorOnNextCall = nil
}

// =============================================================================
// Categories
// =============================================================================

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]menu.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return nil, err
	}

	out := []menu.Category{}
	for _, c := range s.categories {
		if c.UserID == ownerID {
			out = append(out, c)
		}
	}
	menu.SortCategories(out)
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, ownerID, id string) (menu.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return menu.Category{}, err
	}

	c, ok := s.categories[id]
	if !ok || c.UserID != ownerID {
		return menu.Category{}, svcerrors.NotFound("category", id)
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c menu.Category) (menu.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return menu.Category{}, err
	}

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.categories[c.ID]; exists {
		return menu.Category{}, fmt.Errorf("category %s already exists", c.ID)
	}
	c.CreatedAt = s.now()
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c menu.Category) (menu.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return menu.Category{}, err
	}

	existing, ok := s.categories[c.ID]
	if !ok || existing.UserID != c.UserID {
		return menu.Category{}, svcerrors.NotFound("category", c.ID)
	}
	c.CreatedAt = existing.CreatedAt
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return err
	}

	c, ok := s.categories[id]
	if !ok || c.UserID != ownerID {
		return svcerrors.NotFound("category", id)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CountMenuItemsInCategory(ctx context.Context, categoryID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return 0, err
	}

	n := 0
	for _, it := range s.items {
		if it.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// Menu items
// =============================================================================

func (s *Store) ListMenuItems(ctx context.Context, ownerID, categoryID string) ([]menu.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return nil, err
	}

	out := []menu.MenuItem{}
	for _, it := range s.items {
		if it.UserID != ownerID {
			continue
		}
		if categoryID != "" && it.CategoryID != categoryID {
			continue
		}
		out = append(out, it)
	}
	menu.SortMenuItems(out)
	return out, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (menu.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return menu.MenuItem{}, err
	}

	it, ok := s.items[id]
	if !ok {
		return menu.MenuItem{}, svcerrors.NotFound("menu item", id)
	}
	return it, nil
}

func (s *Store) CreateMenuItem(ctx context.Context, m menu.MenuItem) (menu.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return menu.MenuItem{}, err
	}

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, exists := s.items[m.ID]; exists {
		return menu.MenuItem{}, fmt.Errorf("menu item %s already exists", m.ID)
	}
	m.CreatedAt = s.now()
	s.items[m.ID] = m
	return m, nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, m menu.MenuItem) (menu.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return menu.MenuItem{}, err
	}

	existing, ok := s.items[m.ID]
	if !ok || existing.UserID != m.UserID {
		return menu.MenuItem{}, svcerrors.NotFound("menu item", m.ID)
	}
	m.CreatedAt = existing.CreatedAt
	s.items[m.ID] = m
	return m, nil
}

func (s *Store) DeleteMenuItem(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkError(); err != nil {
		return err
	}

	it, ok := s.items[id]
	if !ok || it.UserID != ownerID {
		return svcerrors.NotFound("menu item", id)
	}
	delete(s.items, id)
	return nil
}
