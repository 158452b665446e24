package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-reservation/internal/repository"
	"github.com/iliyamo/marketplace-reservation/internal/service"
)

// CartHandler exposes the buyer's cart.  All decisions about who holds an
// item are made by the reservation service; the handler only translates
// sentinels into HTTP statuses.
type CartHandler struct {
	Reservations *service.ReservationService
}

func NewCartHandler(res *service.ReservationService) *CartHandler {
	return &CartHandler{Reservations: res}
}

// Add reserves an item and places it in the cart.  Exactly one of N
// concurrent buyers gets 200; the rest get 409.
func (h *CartHandler) Add(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.Reservations.AddToCart(ctx, uid, itemID); err {
	case nil:
		return c.JSON(http.StatusOK, echo.Map{"message": "item reserved"})
	case repository.ErrItemNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
	case repository.ErrSelfReservation:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot reserve your own item"})
	case repository.ErrNotAvailable:
		return c.JSON(http.StatusConflict, echo.Map{"error": "item not available"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reserve failed"})
	}
}

// Remove drops the item from the cart and releases the hold.
func (h *CartHandler) Remove(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Reservations.RemoveFromCart(ctx, uid, itemID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "remove failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// View returns the reconciled cart: only items still reserved by this buyer.
func (h *CartHandler) View(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Reservations.ViewCart(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	var total uint64
	for _, it := range items {
		total += uint64(it.PriceCents)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":       toItemViews(items),
		"total_cents": total,
	})
}
