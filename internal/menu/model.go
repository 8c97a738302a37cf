// Package menu is the data access layer for a restaurant's categories and menu
// items. Every read and write is scoped to an owner (the restaurant's user id).
package menu

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, matching the hosted database and the
	// cart layout persisted by earlier clients.
	decimal.MarshalJSONWithoutQuotes = true
}

// DefaultImageBucket is the storage bucket holding menu item images.
const DefaultImageBucket = "menu-images"

// Category groups menu items.
type Category struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	ImageURL    string    `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// MenuItem is a dish offered by a restaurant.
type MenuItem struct {
	ID          string          `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	CategoryID  string          `json:"category_id" db:"category_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ImageURL    string          `json:"image_url,omitempty" db:"image_url"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// CategoryInput is the owner-editable part of a category.
type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description,omitempty" validate:"max=500"`
	ImageURL    string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// MenuItemInput is the owner-editable part of a menu item.
type MenuItemInput struct {
	Name        string          `json:"name" validate:"required,min=2,max=200"`
	Description string          `json:"description" validate:"required,min=10"`
	Price       decimal.Decimal `json:"price" validate:"gt=0"`
	CategoryID  string          `json:"category_id" validate:"required"`
	ImageURL    string          `json:"image_url,omitempty" validate:"omitempty,url"`
}

// ImageUpload is an image file attached to a create or update.
type ImageUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PublicMenu is what a customer sees for one restaurant.
type PublicMenu struct {
	Categories []Category `json:"categories"`
	MenuItems  []MenuItem `json:"menu_items"`
}

// ItemsIn returns the items of m that belong to categoryID, in menu order.
func (m PublicMenu) ItemsIn(categoryID string) []MenuItem {
	var out []MenuItem
	for _, it := range m.MenuItems {
		if it.CategoryID == categoryID {
			out = append(out, it)
		}
	}
	return out
}
