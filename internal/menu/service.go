package menu

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
	"github.com/R3E-Network/menu_layer/internal/validation"
	"github.com/R3E-Network/menu_layer/pkg/logger"
)

// Observer is told about every write the service performs.
type Observer interface {
	ObserveMenuWrite(op string, err error)
}

// Service applies validation and integrity rules on top of a Store. Unlike the
// cart and auth managers it reports every failure to its caller.
type Service struct {
	store    Store
	images   ImageStore
	log      *logger.Logger
	observer Observer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) ServiceOption {
	return func(s *Service) { s.log = l }
}

// WithObserver registers a write observer (metrics).
func WithObserver(o Observer) ServiceOption {
	return func(s *Service) { s.observer = o }
}

// NewService creates a menu service. images may be nil when uploads are not
// supported; create and update with an image then fail validation.
func NewService(store Store, images ImageStore, opts ...ServiceOption) *Service {
	s := &Service{store: store, images: images, log: logger.NewDefault("menu")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) observe(op string, err error) {
	if s.observer != nil {
		s.observer.ObserveMenuWrite(op, err)
	}
}

func requireOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return svcerrors.Unauthorized("")
	}
	return nil
}

// =============================================================================
// Categories
// =============================================================================

// ListCategories returns the owner's categories sorted by name.
func (s *Service) ListCategories(ctx context.Context, ownerID string) ([]Category, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.store.ListCategories(ctx, ownerID)
}

// GetCategory returns one of the owner's categories.
func (s *Service) GetCategory(ctx context.Context, ownerID, id string) (Category, error) {
	if err := requireOwner(ownerID); err != nil {
		return Category{}, err
	}
	return s.store.GetCategory(ctx, ownerID, id)
}

// CreateCategory validates and stores a new category.
func (s *Service) CreateCategory(ctx context.Context, ownerID string, in CategoryInput) (cat Category, err error) {
	defer func() { s.observe("create_category", err) }()

	if err := requireOwner(ownerID); err != nil {
		return Category{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return Category{}, err
	}
	return s.store.CreateCategory(ctx, Category{
		UserID:      ownerID,
		Name:        in.Name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
	})
}

// UpdateCategory replaces the editable fields of one of the owner's categories.
func (s *Service) UpdateCategory(ctx context.Context, ownerID, id string, in CategoryInput) (cat Category, err error) {
	defer func() { s.observe("update_category", err) }()

	if err := requireOwner(ownerID); err != nil {
		return Category{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return Category{}, err
	}
	existing, err := s.store.GetCategory(ctx, ownerID, id)
	if err != nil {
		return Category{}, err
	}
	existing.Name = in.Name
	existing.Description = in.Description
	existing.ImageURL = in.ImageURL
	return s.store.UpdateCategory(ctx, existing)
}

// DeleteCategory removes a category. It fails with CATEGORY_IN_USE while any
// menu item still references it.
func (s *Service) DeleteCategory(ctx context.Context, ownerID, id string) (err error) {
	defer func() { s.observe("delete_category", err) }()

	if err := requireOwner(ownerID); err != nil {
		return err
	}
	if _, err := s.store.GetCategory(ctx, ownerID, id); err != nil {
		return err
	}
	n, err := s.store.CountMenuItemsInCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		s.log.WithContext(ctx).WithFields(map[string]interface{}{
			"category_id": id,
			"menu_items":  n,
		}).Info("category delete refused")
		return svcerrors.CategoryInUse(id, n)
	}
	return s.store.DeleteCategory(ctx, ownerID, id)
}

// =============================================================================
// Menu items
// =============================================================================

// ListMenuItems returns the owner's items sorted by name, optionally narrowed
// to one category.
func (s *Service) ListMenuItems(ctx context.Context, ownerID, categoryID string) ([]MenuItem, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.store.ListMenuItems(ctx, ownerID, categoryID)
}

// GetMenuItem returns any menu item by id. It backs the public dish page.
func (s *Service) GetMenuItem(ctx context.Context, id string) (MenuItem, error) {
	if strings.TrimSpace(id) == "" {
		return MenuItem{}, svcerrors.NotFound("menu item", id)
	}
	return s.store.GetMenuItem(ctx, id)
}

func (s *Service) checkCategory(ctx context.Context, ownerID, categoryID string) error {
	_, err := s.store.GetCategory(ctx, ownerID, categoryID)
	if svcerrors.Is(err, svcerrors.ErrNotFound) {
		return svcerrors.ValidationFields(map[string]string{"category_id": "Category not found"})
	}
	return err
}

func (s *Service) upload(ctx context.Context, ownerID string, img *ImageUpload) (string, error) {
	if s.images == nil {
		return "", svcerrors.Validation("image uploads are not configured")
	}
	if len(img.Data) == 0 {
		return "", svcerrors.ValidationFields(map[string]string{"image": "Image file is empty"})
	}
	return s.images.Upload(ctx, ownerID, img.Filename, img.ContentType, img.Data)
}

// CreateMenuItem validates in, uploads img when given, and stores the item.
func (s *Service) CreateMenuItem(ctx context.Context, ownerID string, in MenuItemInput, img *ImageUpload) (item MenuItem, err error) {
	defer func() { s.observe("create_menu_item", err) }()

	if err := requireOwner(ownerID); err != nil {
		return MenuItem{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return MenuItem{}, err
	}
	if err := s.checkCategory(ctx, ownerID, in.CategoryID); err != nil {
		return MenuItem{}, err
	}

	imageURL := in.ImageURL
	if img != nil {
		if imageURL, err = s.upload(ctx, ownerID, img); err != nil {
			return MenuItem{}, err
		}
	}

	return s.store.CreateMenuItem(ctx, MenuItem{
		UserID:      ownerID,
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		ImageURL:    imageURL,
	})
}

// UpdateMenuItem replaces the editable fields of one of the owner's items. The
// current image is kept unless img or in.ImageURL supplies a new one.
func (s *Service) UpdateMenuItem(ctx context.Context, ownerID, id string, in MenuItemInput, img *ImageUpload) (item MenuItem, err error) {
	defer func() { s.observe("update_menu_item", err) }()

	if err := requireOwner(ownerID); err != nil {
		return MenuItem{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validation.Struct(in); err != nil {
		return MenuItem{}, err
	}

	existing, err := s.store.GetMenuItem(ctx, id)
	if err != nil {
		return MenuItem{}, err
	}
	if existing.UserID != ownerID {
		return MenuItem{}, svcerrors.NotFound("menu item", id)
	}
	if in.CategoryID != existing.CategoryID {
		if err := s.checkCategory(ctx, ownerID, in.CategoryID); err != nil {
			return MenuItem{}, err
		}
	}

	imageURL := existing.ImageURL
	switch {
	case img != nil:
		if imageURL, err = s.upload(ctx, ownerID, img); err != nil {
			return MenuItem{}, err
		}
	case in.ImageURL != "":
		imageURL = in.ImageURL
	}

	existing.Name = in.Name
	existing.Description = in.Description
	existing.Price = in.Price
	existing.CategoryID = in.CategoryID
	existing.ImageURL = imageURL
	return s.store.UpdateMenuItem(ctx, existing)
}

// DeleteMenuItem removes one of the owner's items. Carts holding it are not
// touched here.
func (s *Service) DeleteMenuItem(ctx context.Context, ownerID, id string) (err error) {
	defer func() { s.observe("delete_menu_item", err) }()

	if err := requireOwner(ownerID); err != nil {
		return err
	}
	return s.store.DeleteMenuItem(ctx, ownerID, id)
}

// =============================================================================
// Public menu
// =============================================================================

// PublicMenu returns every category and item of a restaurant, each sorted by name.
func (s *Service) PublicMenu(ctx context.Context, restaurantID string) (PublicMenu, error) {
	if strings.TrimSpace(restaurantID) == "" {
		return PublicMenu{}, svcerrors.Validation("restaurant id is required")
	}
	cats, err := s.store.ListCategories(ctx, restaurantID)
	if err != nil {
		return PublicMenu{}, err
	}
	items, err := s.store.ListMenuItems(ctx, restaurantID, "")
	if err != nil {
		return PublicMenu{}, err
	}
	if cats == nil {
		cats = []Category{}
	}
	if items == nil {
		items = []MenuItem{}
	}
	return PublicMenu{Categories: cats, MenuItems: items}, nil
}

// =============================================================================
// Helpers shared by stores
// =============================================================================

// ImagePath returns the object path for an uploaded image: "<owner>/<random>.<ext>".
func ImagePath(ownerID, filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	if ext == "" {
		return ownerID + "/" + name
	}
	return ownerID + "/" + name + "." + ext
}

// SortCategories orders categories by name.
func SortCategories(cats []Category) {
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Name < cats[j].Name })
}

// SortMenuItems orders menu items by name.
func SortMenuItems(items []MenuItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Name < items[j].Name })
}
