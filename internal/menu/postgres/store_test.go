package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
	"github.com/R3E-Network/menu_layer/internal/menu"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

var created = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestListCategories(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`SELECT id, user_id, name, description, image_url, created_at\s+FROM categories\s+WHERE user_id = \$1\s+ORDER BY name`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "description", "image_url", "created_at"}).
			AddRow("c1", "u1", "Desserts", nil, nil, created).
			AddRow("c2", "u1", "Mains", "Hearty", "https://img/x.png", created))

	cats, err := store.ListCategories(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(cats) != 2 {
		t.Fatalf("len = %d, want 2", len(cats))
	}
	if cats[0].Description != "" || cats[1].ImageURL != "https://img/x.png" {
		t.Errorf("cats = %+v", cats)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestGetCategoryNotFound(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`FROM categories\s+WHERE id = \$1 AND user_id = \$2`).
		WithArgs("c9", "u1").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetCategory(context.Background(), "u1", "c9")
	if !errors.Is(err, svcerrors.ErrNotFound) {
		t.Errorf("GetCategory() error = %v, want not found", err)
	}
}

func TestCreateMenuItem(t *testing.T) {
	store, mock := newMock(t)
	price := decimal.RequireFromString("12.99")

	mock.ExpectQuery(`INSERT INTO menu_items`).
		WithArgs("m1", "u1", "c1", "Soup", "Tomato and basil", price, sql.NullString{}).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "category_id", "name", "description", "price", "image_url", "created_at"}).
			AddRow("m1", "u1", "c1", "Soup", "Tomato and basil", "12.99", nil, created))

	item, err := store.CreateMenuItem(context.Background(), menu.MenuItem{
		ID: "m1", UserID: "u1", CategoryID: "c1", Name: "Soup", Description: "Tomato and basil", Price: price,
	})
	if err != nil {
		t.Fatalf("CreateMenuItem() error = %v", err)
	}
	if !item.Price.Equal(price) {
		t.Errorf("Price = %s, want %s", item.Price, price)
	}
	if !item.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", item.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestListMenuItemsCategoryFilter(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`FROM menu_items\s+WHERE user_id = \$1 AND \(\$2 = '' OR category_id::text = \$2\)`).
		WithArgs("u1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "category_id", "name", "description", "price", "image_url", "created_at"}))

	items, err := store.ListMenuItems(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("ListMenuItems() error = %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("items = %v, want empty non-nil", items)
	}
}

func TestCountMenuItemsInCategory(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM menu_items WHERE category_id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := store.CountMenuItemsInCategory(context.Background(), "c1")
	if err != nil {
		t.Fatalf("CountMenuItemsInCategory() error = %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestDeleteMenuItemNoRows(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM menu_items WHERE id = \$1 AND user_id = \$2`).
		WithArgs("m1", "u2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteMenuItem(context.Background(), "u2", "m1")
	if !errors.Is(err, svcerrors.ErrNotFound) {
		t.Errorf("DeleteMenuItem() error = %v, want not found", err)
	}
}

func TestDriverErrorsAreInternal(t *testing.T) {
	store, mock := newMock(t)

	mock.ExpectExec(`DELETE FROM categories`).WillReturnError(errors.New("pq: deadlock detected"))

	err := store.DeleteCategory(context.Background(), "u1", "c1")
	se := svcerrors.GetServiceError(err)
	if se == nil || se.Code != svcerrors.CodeInternal {
		t.Errorf("DeleteCategory() error = %v, want INTERNAL_ERROR", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := New(db)
	ctx := context.Background()
	owner := "00000000-0000-0000-0000-000000000001"

	cat, err := store.CreateCategory(ctx, menu.Category{UserID: owner, Name: "Integration"})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	defer store.DeleteCategory(ctx, owner, cat.ID)

	item, err := store.CreateMenuItem(ctx, menu.MenuItem{
		UserID: owner, CategoryID: cat.ID, Name: "Dish", Description: "Integration dish", Price: decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("create menu item: %v", err)
	}
	if err := store.DeleteMenuItem(ctx, owner, item.ID); err != nil {
		t.Fatalf("delete menu item: %v", err)
	}
}
