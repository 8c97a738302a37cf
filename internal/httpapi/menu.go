package httpapi

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
	"github.com/R3E-Network/menu_layer/internal/httputil"
	"github.com/R3E-Network/menu_layer/internal/menu"
	"github.com/R3E-Network/menu_layer/internal/stats"
	"github.com/R3E-Network/menu_layer/pkg/logger"
)

// MaxImageBytes bounds an uploaded menu item image.
const MaxImageBytes = 5 << 20

// =============================================================================
// Public
// =============================================================================

func (h *handler) publicMenu(w http.ResponseWriter, r *http.Request) {
	pm, err := h.menu.PublicMenu(h.requestCtx(r), mux.Vars(r)["restaurantID"])
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pm)
}

func (h *handler) publicMenuItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.menu.GetMenuItem(h.requestCtx(r), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

// =============================================================================
// Categories
// =============================================================================

func (h *handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.menu.ListCategories(h.requestCtx(r), logger.GetUserID(r.Context()))
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cats)
}

func (h *handler) getCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := h.menu.GetCategory(h.requestCtx(r), logger.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cat)
}

func (h *handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var in menu.CategoryInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	cat, err := h.menu.CreateCategory(h.requestCtx(r), logger.GetUserID(r.Context()), in)
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cat)
}

func (h *handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	var in menu.CategoryInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	cat, err := h.menu.UpdateCategory(h.requestCtx(r), logger.GetUserID(r.Context()), mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cat)
}

func (h *handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.menu.DeleteCategory(h.requestCtx(r), logger.GetUserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Menu items
// =============================================================================

func (h *handler) listMenuItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.ListMenuItems(h.requestCtx(r), logger.GetUserID(r.Context()), r.URL.Query().Get("category_id"))
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *handler) createMenuItem(w http.ResponseWriter, r *http.Request) {
	in, img, ok := decodeMenuItem(w, r)
	if !ok {
		return
	}
	item, err := h.menu.CreateMenuItem(h.requestCtx(r), logger.GetUserID(r.Context()), in, img)
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, item)
}

func (h *handler) updateMenuItem(w http.ResponseWriter, r *http.Request) {
	in, img, ok := decodeMenuItem(w, r)
	if !ok {
		return
	}
	item, err := h.menu.UpdateMenuItem(h.requestCtx(r), logger.GetUserID(r.Context()), mux.Vars(r)["id"], in, img)
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, item)
}

func (h *handler) deleteMenuItem(w http.ResponseWriter, r *http.Request) {
	if err := h.menu.DeleteMenuItem(h.requestCtx(r), logger.GetUserID(r.Context()), mux.Vars(r)["id"]); err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeMenuItem accepts a JSON body or a multipart form whose optional
// "image" part is the item picture.
func decodeMenuItem(w http.ResponseWriter, r *http.Request) (menu.MenuItemInput, *menu.ImageUpload, bool) {
	var in menu.MenuItemInput

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return in, nil, httputil.DecodeJSON(w, r, &in)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImageBytes+httputil.MaxBodyBytes)
	if err := r.ParseMultipartForm(MaxImageBytes); err != nil {
		httputil.BadRequest(w, "invalid multipart form")
		return in, nil, false
	}

	in.Name = r.FormValue("name")
	in.Description = r.FormValue("description")
	in.CategoryID = r.FormValue("category_id")
	in.ImageURL = r.FormValue("image_url")
	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			httputil.WriteErrorResponse(w, r, svcerrors.ValidationFields(map[string]string{"price": "Price must be a positive number"}))
			return in, nil, false
		}
		in.Price = price
	}

	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return in, nil, true
	}
	if err != nil {
		httputil.BadRequest(w, "invalid image part")
		return in, nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageBytes+1))
	if err != nil {
		httputil.BadRequest(w, "could not read image")
		return in, nil, false
	}
	if len(data) > MaxImageBytes {
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, svcerrors.CodeValidation, "image too large")
		return in, nil, false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		httputil.WriteErrorResponse(w, r, svcerrors.ValidationFields(map[string]string{"image": "File must be an image"}))
		return in, nil, false
	}
	return in, &menu.ImageUpload{Filename: header.Filename, ContentType: contentType, Data: data}, true
}

// =============================================================================
// Statistics
// =============================================================================

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	ctx := h.requestCtx(r)
	owner := logger.GetUserID(r.Context())

	cats, err := h.menu.ListCategories(ctx, owner)
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	items, err := h.menu.ListMenuItems(ctx, owner, "")
	if err != nil {
		httputil.WriteErrorResponse(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats.Summarize(cats, items))
}
