// Package supabase implements the menu ports on a hosted Supabase project:
// PostgREST tables for data, a Storage bucket for images and Realtime for
// menu change notifications.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/supabase/client"
)

const (
	tableCategories = "categories"
	tableMenuItems  = "menu_items"
)

// Store implements menu.Store over PostgREST. Requests carry the end user's
// access token when the context has one (see WithAccessToken), so row level
// security policies apply exactly as they do for the browser client.
type Store struct {
	client *client.Client
}

var _ menu.Store = (*Store)(nil)

// NewStore creates a PostgREST backed store.
func NewStore(c *client.Client) *Store {
	return &Store{client: c}
}

type tokenKey struct{}

// WithAccessToken attaches the caller's Supabase access token to ctx.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func (s *Store) rest(ctx context.Context) *client.Client {
	if token, ok := ctx.Value(tokenKey{}).(string); ok && token != "" {
		return s.client.WithAccessToken(token)
	}
	return s.client
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized:
			return svcerrors.Unauthorized(apiErr.Message)
		case apiErr.StatusCode == http.StatusForbidden:
			return svcerrors.Forbidden(apiErr.Message)
		case apiErr.IsClientError():
			return svcerrors.Validation(apiErr.Message)
		}
	}
	return svcerrors.Upstream(op+" failed", fmt.Errorf("%s: %w", op, err))
}

// one decodes a representation array and returns its single element.
func one[T any](resp *client.Response, notFound error) (T, error) {
	var zero T
	var rows []T
	if err := resp.JSON(&rows); err != nil {
		return zero, svcerrors.Upstream("decode response", err)
	}
	if len(rows) == 0 {
		return zero, notFound
	}
	return rows[0], nil
}

// =============================================================================
// Categories
// =============================================================================

type categoryPayload struct {
	UserID      string  `json:"user_id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"image_url"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]menu.Category, error) {
	resp, err := s.rest(ctx).From(tableCategories).
		Select("*").
		Eq("user_id", ownerID).
		Order("name", true).
		Execute(ctx)
	if err != nil {
		return nil, mapError("list categories", err)
	}
	out := []menu.Category{}
	if err := resp.JSON(&out); err != nil {
		return nil, svcerrors.Upstream("decode categories", err)
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, ownerID, id string) (menu.Category, error) {
	resp, err := s.rest(ctx).From(tableCategories).
		Select("*").
		Eq("id", id).
		Eq("user_id", ownerID).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return menu.Category{}, mapError("get category", err)
	}
	return one[menu.Category](resp, svcerrors.NotFound("category", id))
}

func (s *Store) CreateCategory(ctx context.Context, c menu.Category) (menu.Category, error) {
	resp, err := s.rest(ctx).From(tableCategories).
		Select("*").
		ExecuteInsert(ctx, []categoryPayload{{
			UserID:      c.UserID,
			Name:        c.Name,
			Description: optional(c.Description),
			ImageURL:    optional(c.ImageURL),
		}})
	if err != nil {
		return menu.Category{}, mapError("create category", err)
	}
	return one[menu.Category](resp, svcerrors.Upstream("create category returned no row", nil))
}

func (s *Store) UpdateCategory(ctx context.Context, c menu.Category) (menu.Category, error) {
	resp, err := s.rest(ctx).From(tableCategories).
		Select("*").
		Eq("id", c.ID).
		Eq("user_id", c.UserID).
		ExecuteUpdate(ctx, categoryPayload{
			Name:        c.Name,
			Description: optional(c.Description),
			ImageURL:    optional(c.ImageURL),
		})
	if err != nil {
		return menu.Category{}, mapError("update category", err)
	}
	return one[menu.Category](resp, svcerrors.NotFound("category", c.ID))
}

func (s *Store) DeleteCategory(ctx context.Context, ownerID, id string) error {
	resp, err := s.rest(ctx).From(tableCategories).
		Eq("id", id).
		Eq("user_id", ownerID).
		ExecuteDelete(ctx)
	if err != nil {
		return mapError("delete category", err)
	}
	_, err = one[menu.Category](resp, svcerrors.NotFound("category", id))
	return err
}

// CountMenuItemsInCategory asks for at most one id and reads the exact total
// from Content-Range.
func (s *Store) CountMenuItemsInCategory(ctx context.Context, categoryID string) (int, error) {
	resp, err := s.rest(ctx).From(tableMenuItems).
		Select("id").
		Eq("category_id", categoryID).
		Count("exact").
		Limit(1).
		Execute(ctx)
	if err != nil {
		return 0, mapError("count menu items", err)
	}
	if n := resp.TotalCount(); n >= 0 {
		return n, nil
	}
	var rows []struct {
		ID string `json:"id"`
	}
	if err := resp.JSON(&rows); err != nil {
		return 0, svcerrors.Upstream("decode menu items", err)
	}
	return len(rows), nil
}

// =============================================================================
// Menu items
// =============================================================================

type menuItemPayload struct {
	UserID      string          `json:"user_id,omitempty"`
	CategoryID  string          `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    *string         `json:"image_url"`
}

func itemPayload(m menu.MenuItem) menuItemPayload {
	return menuItemPayload{
		UserID:      m.UserID,
		CategoryID:  m.CategoryID,
		Name:        m.Name,
		Description: m.Description,
		Price:       m.Price,
		ImageURL:    optional(m.ImageURL),
	}
}

func (s *Store) ListMenuItems(ctx context.Context, ownerID, categoryID string) ([]menu.MenuItem, error) {
	q := s.rest(ctx).From(tableMenuItems).
		Select("*").
		Eq("user_id", ownerID)
	if categoryID != "" {
		q = q.Eq("category_id", categoryID)
	}
	resp, err := q.Order("name", true).Execute(ctx)
	if err != nil {
		return nil, mapError("list menu items", err)
	}
	out := []menu.MenuItem{}
	if err := resp.JSON(&out); err != nil {
		return nil, svcerrors.Upstream("decode menu items", err)
	}
	return out, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (menu.MenuItem, error) {
	resp, err := s.rest(ctx).From(tableMenuItems).
		Select("*").
		Eq("id", id).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return menu.MenuItem{}, mapError("get menu item", err)
	}
	return one[menu.MenuItem](resp, svcerrors.NotFound("menu item", id))
}

func (s *Store) CreateMenuItem(ctx context.Context, m menu.MenuItem) (menu.MenuItem, error) {
	resp, err := s.rest(ctx).From(tableMenuItems).
		Select("*").
		ExecuteInsert(ctx, []menuItemPayload{itemPayload(m)})
	if err != nil {
		return menu.MenuItem{}, mapError("create menu item", err)
	}
	return one[menu.MenuItem](resp, svcerrors.Upstream("create menu item returned no row", nil))
}

func (s *Store) UpdateMenuItem(ctx context.Context, m menu.MenuItem) (menu.MenuItem, error) {
	p := itemPayload(m)
	p.UserID = ""
	resp, err := s.rest(ctx).From(tableMenuItems).
		Select("*").
		Eq("id", m.ID).
		Eq("user_id", m.UserID).
		ExecuteUpdate(ctx, p)
	if err != nil {
		return menu.MenuItem{}, mapError("update menu item", err)
	}
	return one[menu.MenuItem](resp, svcerrors.NotFound("menu item", m.ID))
}

func (s *Store) DeleteMenuItem(ctx context.Context, ownerID, id string) error {
	resp, err := s.rest(ctx).From(tableMenuItems).
		Eq("id", id).
		Eq("user_id", ownerID).
		ExecuteDelete(ctx)
	if err != nil {
		return mapError("delete menu item", err)
	}
	_, err = one[menu.MenuItem](resp, svcerrors.NotFound("menu item", id))
	return err
}
