package menu

import "context"

// Store persists categories and menu items. Implementations return
// errors.NotFound for missing or foreign-owned rows.
type Store interface {
	ListCategories(ctx context.Context, ownerID string) ([]Category, error)
	GetCategory(ctx context.Context, ownerID, id string) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	DeleteCategory(ctx context.Context, ownerID, id string) error

	// CountMenuItemsInCategory counts items referencing categoryID across owners.
	CountMenuItemsInCategory(ctx context.Context, categoryID string) (int, error)

	// ListMenuItems returns the owner's items sorted by name; a non-empty
	// categoryID narrows the result.
	ListMenuItems(ctx context.Context, ownerID, categoryID string) ([]MenuItem, error)
	GetMenuItem(ctx context.Context, id string) (MenuItem, error)
	CreateMenuItem(ctx context.Context, m MenuItem) (MenuItem, error)
	UpdateMenuItem(ctx context.Context, m MenuItem) (MenuItem, error)
	DeleteMenuItem(ctx context.Context, ownerID, id string) error
}

// ImageStore uploads menu images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, ownerID, filename, contentType string, data []byte) (string, error)
}
