// Package testutil provides menu fixtures shared by package tests.
package testutil

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/R3E-Network/menu_layer/internal/menu"
)

// Price parses s and panics on malformed input.
func Price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Dish returns a menu item with the given id, name and price.
func Dish(id, name, price string) menu.MenuItem {
	return menu.MenuItem{ID: id, Name: name, Price: Price(price)}
}

// DishIn is Dish placed in a category of a restaurant.
func DishIn(ownerID, categoryID, id, name, price string) menu.MenuItem {
	d := Dish(id, name, price)
	d.UserID = ownerID
	d.CategoryID = categoryID
	return d
}

// Category returns a category owned by ownerID.
func Category(ownerID, id, name string) menu.Category {
	return menu.Category{ID: id, UserID: ownerID, Name: name, CreatedAt: Now()}
}

// GenerateID generates a unique ID for testing.
func GenerateID() string {
	return uuid.New().String()
}

// Now returns the current UTC time truncated to microseconds, the precision
// PostgreSQL keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
