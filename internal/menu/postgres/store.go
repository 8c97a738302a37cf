// Package postgres implements menu.Store on PostgreSQL (the schema applied by
// internal/platform/migrations).
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
	"github.com/R3E-Network/menu_layer/internal/menu"
)

// Store implements menu.Store using PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ menu.Store = (*Store)(nil)

// New wraps an open *sql.DB (driver "postgres").
func New(db *sql.DB) *Store {
	return &Store{db: sqlx.NewDb(db, "postgres")}
}

type categoryRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Name        string         `db:"name"`
	Description sql.NullString `db:"description"`
	ImageURL    sql.NullString `db:"image_url"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r categoryRow) toCategory() menu.Category {
	return menu.Category{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description.String,
		ImageURL:    r.ImageURL.String,
		CreatedAt:   r.CreatedAt,
	}
}

type menuItemRow struct {
	ID          string          `db:"id"`
	UserID      string          `db:"user_id"`
	CategoryID  string          `db:"category_id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Price       decimal.Decimal `db:"price"`
	ImageURL    sql.NullString  `db:"image_url"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (r menuItemRow) toMenuItem() menu.MenuItem {
	return menu.MenuItem{
		ID:          r.ID,
		UserID:      r.UserID,
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		ImageURL:    r.ImageURL.String,
		CreatedAt:   r.CreatedAt,
	}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return svcerrors.Internal(op+" failed", fmt.Errorf("%s: %w", op, err))
}

const categoryColumns = `id, user_id, name, description, image_url, created_at`
const menuItemColumns = `id, user_id, category_id, name, description, price, image_url, created_at`

// =============================================================================
// Categories
// =============================================================================

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]menu.Category, error) {
	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = $1
		ORDER BY name
	`, ownerID); err != nil {
		return nil, wrap("list categories", err)
	}

	out := make([]menu.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCategory())
	}
	return out, nil
}

func (s *Store) GetCategory(ctx context.Context, ownerID, id string) (menu.Category, error) {
	var row categoryRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE id = $1 AND user_id = $2
	`, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return menu.Category{}, svcerrors.NotFound("category", id)
	}
	if err != nil {
		return menu.Category{}, wrap("get category", err)
	}
	return row.toCategory(), nil
}

func (s *Store) CreateCategory(ctx context.Context, c menu.Category) (menu.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var row categoryRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO categories (id, user_id, name, description, image_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+categoryColumns,
		c.ID, c.UserID, c.Name, nullable(c.Description), nullable(c.ImageURL))
	if err != nil {
		return menu.Category{}, wrap("create category", err)
	}
	return row.toCategory(), nil
}

func (s *Store) UpdateCategory(ctx context.Context, c menu.Category) (menu.Category, error) {
	var row categoryRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE categories
		SET name = $3, description = $4, image_url = $5
		WHERE id = $1 AND user_id = $2
		RETURNING `+categoryColumns,
		c.ID, c.UserID, c.Name, nullable(c.Description), nullable(c.ImageURL))
	if errors.Is(err, sql.ErrNoRows) {
		return menu.Category{}, svcerrors.NotFound("category", c.ID)
	}
	if err != nil {
		return menu.Category{}, wrap("update category", err)
	}
	return row.toCategory(), nil
}

func (s *Store) DeleteCategory(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return wrap("delete category", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFound("category", id)
	}
	return nil
}

func (s *Store) CountMenuItemsInCategory(ctx context.Context, categoryID string) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM menu_items WHERE category_id = $1`, categoryID); err != nil {
		return 0, wrap("count menu items", err)
	}
	return n, nil
}

// =============================================================================
// Menu items
// =============================================================================

func (s *Store) ListMenuItems(ctx context.Context, ownerID, categoryID string) ([]menu.MenuItem, error) {
	var rows []menuItemRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT `+menuItemColumns+`
		FROM menu_items
		WHERE user_id = $1 AND ($2 = '' OR category_id::text = $2)
		ORDER BY name
	`, ownerID, categoryID); err != nil {
		return nil, wrap("list menu items", err)
	}

	out := make([]menu.MenuItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toMenuItem())
	}
	return out, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (menu.MenuItem, error) {
	var row menuItemRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+menuItemColumns+`
		FROM menu_items
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return menu.MenuItem{}, svcerrors.NotFound("menu item", id)
	}
	if err != nil {
		return menu.MenuItem{}, wrap("get menu item", err)
	}
	return row.toMenuItem(), nil
}

func (s *Store) CreateMenuItem(ctx context.Context, m menu.MenuItem) (menu.MenuItem, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	var row menuItemRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO menu_items (id, user_id, category_id, name, description, price, image_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+menuItemColumns,
		m.ID, m.UserID, m.CategoryID, m.Name, m.Description, m.Price, nullable(m.ImageURL))
	if err != nil {
		return menu.MenuItem{}, wrap("create menu item", err)
	}
	return row.toMenuItem(), nil
}

func (s *Store) UpdateMenuItem(ctx context.Context, m menu.MenuItem) (menu.MenuItem, error) {
	var row menuItemRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE menu_items
		SET name = $3, description = $4, price = $5, category_id = $6, image_url = $7
		WHERE id = $1 AND user_id = $2
		RETURNING `+menuItemColumns,
		m.ID, m.UserID, m.Name, m.Description, m.Price, m.CategoryID, nullable(m.ImageURL))
	if errors.Is(err, sql.ErrNoRows) {
		return menu.MenuItem{}, svcerrors.NotFound("menu item", m.ID)
	}
	if err != nil {
		return menu.MenuItem{}, wrap("update menu item", err)
	}
	return row.toMenuItem(), nil
}

func (s *Store) DeleteMenuItem(ctx context.Context, ownerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return wrap("delete menu item", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return svcerrors.NotFound("menu item", id)
	}
	return nil
}
