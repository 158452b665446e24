package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-reservation/internal/model"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
)

// ItemHandler exposes listing management and the public storefront.  Writes
// go straight to the item repository: listing CRUD never touches holds, which
// belong to the reservation and transaction services.
type ItemHandler struct {
	Items *repository.ItemRepo
}

func NewItemHandler(items *repository.ItemRepo) *ItemHandler {
	return &ItemHandler{Items: items}
}

type itemReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Image       string `json:"image"`
	PriceCents  uint32 `json:"price_cents"`
}

// itemView is the public shape of an item.  reserved_by is deliberately not
// exposed: who holds an item is between the holder and the ledger.
type itemView struct {
	ID          uint64    `json:"id"`
	SellerID    uint64    `json:"seller_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Image       string    `json:"image,omitempty"`
	PriceCents  uint32    `json:"price_cents"`
	IsActive    bool      `json:"is_active"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func toItemView(it model.Item) itemView {
	return itemView{
		ID:          it.ID,
		SellerID:    it.SellerID,
		Name:        it.Name,
		Description: it.Description,
		Category:    it.Category,
		Image:       it.Image,
		PriceCents:  it.PriceCents,
		IsActive:    it.IsActive,
		Status:      it.Status,
		CreatedAt:   it.CreatedAt,
	}
}

func toItemViews(items []model.Item) []itemView {
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		out = append(out, toItemView(it))
	}
	return out
}

// Create lists a new item for sale.  New listings start available and active.
func (h *ItemHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req itemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and price_cents required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	it := model.Item{
		SellerID:    uid,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Image:       req.Image,
		PriceCents:  req.PriceCents,
	}
	if err := h.Items.Create(ctx, &it); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create item failed"})
	}
	return c.JSON(http.StatusCreated, toItemView(it))
}

// List is the public storefront: available, active items, filterable by a
// name substring (?q=) and categories (?category=a&category=b).
func (h *ItemHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	query := strings.TrimSpace(c.QueryParam("q"))
	categories := c.QueryParams()["category"]

	items, err := h.Items.ListAvailable(ctx, query, categories)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toItemViews(items)})
}

// Get returns one item by ID.
func (h *ItemHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	it, err := h.Items.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrItemNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toItemView(it))
}

// Mine returns every listing of the authenticated seller, all statuses.
func (h *ItemHandler) Mine(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Items.ListBySeller(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toItemViews(items)})
}

// Update rewrites the editable fields of an available listing.
func (h *ItemHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	var req itemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.PriceCents == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and price_cents required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	it := model.Item{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Image:       req.Image,
		PriceCents:  req.PriceCents,
	}
	if err := h.Items.Update(ctx, &it, uid); err != nil {
		return h.itemError(c, err, "update failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "item updated"})
}

// Delete removes an available listing.  Reserved and sold items cannot be
// deleted; their rows back order history and reviews.
func (h *ItemHandler) Delete(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Items.Delete(ctx, id, uid); err != nil {
		return h.itemError(c, err, "delete failed")
	}
	return c.NoContent(http.StatusNoContent)
}

// Unlist hides a listing from the storefront without evicting a current
// holder: existing reservations and pending handoffs run their course.
func (h *ItemHandler) Unlist(c echo.Context) error { return h.setActive(c, false) }

// Relist makes a previously unlisted item visible again.
func (h *ItemHandler) Relist(c echo.Context) error { return h.setActive(c, true) }

func (h *ItemHandler) setActive(c echo.Context, active bool) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Items.SetActive(ctx, id, uid, active); err != nil {
		return h.itemError(c, err, "visibility update failed")
	}
	if active {
		return c.JSON(http.StatusOK, echo.Map{"message": "item relisted"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "item unlisted"})
}

// itemError maps repository sentinels onto HTTP statuses.
func (h *ItemHandler) itemError(c echo.Context, err error, fallback string) error {
	switch err {
	case repository.ErrItemNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
	case repository.ErrUnauthorized:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your item"})
	case repository.ErrNotAvailable:
		return c.JSON(http.StatusConflict, echo.Map{"error": "item is reserved or sold"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": fallback})
	}
}
