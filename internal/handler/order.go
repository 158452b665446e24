package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-reservation/internal/clock"
	"github.com/iliyamo/marketplace-reservation/internal/model"
	queue_publisher "github.com/iliyamo/marketplace-reservation/internal/publisher"
	q "github.com/iliyamo/marketplace-reservation/internal/queue"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
	"github.com/iliyamo/marketplace-reservation/internal/service"
)

// OrderHandler drives checkout, handoff verification and order history.
type OrderHandler struct {
	Tx           *service.TransactionService
	Reservations *service.ReservationService
	Orders       *repository.OrderRepo
	Items        *repository.ItemRepo
	Clock        clock.Clock
}

func NewOrderHandler(tx *service.TransactionService, res *service.ReservationService, orders *repository.OrderRepo, items *repository.ItemRepo, clk clock.Clock) *OrderHandler {
	return &OrderHandler{Tx: tx, Reservations: res, Orders: orders, Items: items, Clock: clk}
}

type checkoutReq struct {
	// ItemIDs limits checkout to a subset of the cart.  Empty means the
	// whole cart.
	ItemIDs []uint64 `json:"item_ids"`
}

type verifyReq struct {
	Code string `json:"code"`
}

// lineView is an order line without its code hash.
type lineView struct {
	ItemID        uint64    `json:"item_id"`
	SellerID      uint64    `json:"seller_id"`
	PriceCents    uint32    `json:"price_cents"`
	Status        string    `json:"status"`
	CodeExpiresAt time.Time `json:"code_expires_at"`
}

type orderView struct {
	ID          uint64     `json:"id"`
	BuyerID     uint64     `json:"buyer_id"`
	AmountCents uint64     `json:"amount_cents"`
	CreatedAt   time.Time  `json:"created_at"`
	Lines       []lineView `json:"lines"`
}

func toOrderView(o model.Order) orderView {
	v := orderView{ID: o.ID, BuyerID: o.BuyerID, AmountCents: o.AmountCents, CreatedAt: o.CreatedAt}
	for _, ln := range o.Lines {
		v.Lines = append(v.Lines, lineView{
			ItemID:        ln.ItemID,
			SellerID:      ln.SellerID,
			PriceCents:    ln.PriceCents,
			Status:        ln.Status,
			CodeExpiresAt: ln.CodeExpiresAt,
		})
	}
	return v
}

// Checkout converts the buyer's held items into an order.  The response is
// the only place the plaintext handoff codes ever appear; they are not stored
// and cannot be re-fetched later, only regenerated after expiry.
func (h *OrderHandler) Checkout(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkoutReq
	_ = c.Bind(&req) // empty body means full cart

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	ids := req.ItemIDs
	if len(ids) == 0 {
		held, err := h.Reservations.ViewCart(ctx, uid)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
		}
		for _, it := range held {
			ids = append(ids, it.ID)
		}
	}
	if len(ids) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cart is empty"})
	}

	result, err := h.Tx.Checkout(ctx, uid, ids)
	if err != nil {
		if err == repository.ErrSomeItemsUnavailable {
			return c.JSON(http.StatusConflict, echo.Map{"error": "some items are no longer held by you"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}

	codes := make(map[uint64]string, len(result.Codes))
	for itemID, code := range result.Codes {
		codes[itemID] = code
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"order": toOrderView(result.Order),
		"codes": codes, // shown once; share each code with the matching seller at handoff
	})
}

// Verify completes a handoff: the seller presents the code the buyer gave
// them.  On success the line completes, the item becomes sold, and a
// sale.completed event is published best-effort.
func (h *OrderHandler) Verify(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	var req verifyReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	// Only the line's seller may verify: the code is the buyer's proof to
	// the seller, not the other way round.
	line, err := h.Orders.GetLine(ctx, orderID, itemID)
	if err != nil {
		return h.lineError(c, err)
	}
	if line.SellerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your sale"})
	}

	done, err := h.Tx.VerifyAndComplete(ctx, orderID, itemID, strings.TrimSpace(req.Code))
	if err != nil {
		return h.lineError(c, err)
	}

	order, oerr := h.Orders.GetOrder(ctx, orderID)
	item, ierr := h.Items.GetByID(ctx, itemID)
	if oerr == nil && ierr == nil {
		_ = queue_publisher.PublishSaleCompleted(ctx, q.SaleCompletedEvent{
			OrderID:     orderID,
			ItemID:      itemID,
			ItemName:    item.Name,
			BuyerID:     order.BuyerID,
			SellerID:    done.SellerID,
			PriceCents:  done.PriceCents,
			CompletedAt: h.Clock.Now().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "handoff verified",
		"line": lineView{
			ItemID:        done.ItemID,
			SellerID:      done.SellerID,
			PriceCents:    done.PriceCents,
			Status:        done.Status,
			CodeExpiresAt: done.CodeExpiresAt,
		},
	})
}

// Cancel abandons a pending line and returns the item to the storefront.
func (h *OrderHandler) Cancel(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if err := h.Tx.CancelLine(ctx, orderID, itemID, uid); err != nil {
		return h.lineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "line cancelled"})
}

// RegenerateCode mints a fresh code for a pending line whose code expired.
// Like checkout, the plaintext appears only in this response.
func (h *OrderHandler) RegenerateCode(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	// Codes belong to the order's buyer.
	order, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return h.lineError(c, err)
	}
	if order.BuyerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your order"})
	}

	code, err := h.Tx.RegenerateCode(ctx, orderID, itemID)
	if err != nil {
		return h.lineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"code": code})
}

// History returns the buyer's orders, newest first, without code material.
func (h *OrderHandler) History(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	orders, err := h.Orders.ListByBuyer(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	return c.JSON(http.StatusOK, echo.Map{"orders": out})
}

// Sales returns the lines addressed to the authenticated seller, so they can
// see which handoffs are pending and which are done.
func (h *OrderHandler) Sales(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	lines, err := h.Orders.ListBySeller(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]lineView, 0, len(lines))
	for _, ln := range lines {
		out = append(out, lineView{
			ItemID:        ln.ItemID,
			SellerID:      ln.SellerID,
			PriceCents:    ln.PriceCents,
			Status:        ln.Status,
			CodeExpiresAt: ln.CodeExpiresAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sales": out})
}

// lineError maps order/line sentinels onto HTTP statuses with distinct
// messages, so a client can tell a wrong code from a dead line.
func (h *OrderHandler) lineError(c echo.Context, err error) error {
	switch err {
	case repository.ErrOrderNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	case repository.ErrLineNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order line not found"})
	case repository.ErrInvalidCode:
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid code"})
	case repository.ErrCodeExpired:
		return c.JSON(http.StatusGone, echo.Map{"error": "code expired; buyer must regenerate"})
	case repository.ErrAlreadyResolved:
		return c.JSON(http.StatusConflict, echo.Map{"error": "line already resolved"})
	case repository.ErrAlreadyCompleted:
		return c.JSON(http.StatusConflict, echo.Map{"error": "sale already completed"})
	case repository.ErrNotPending:
		return c.JSON(http.StatusConflict, echo.Map{"error": "line is not pending"})
	case repository.ErrCodeStillValid:
		return c.JSON(http.StatusConflict, echo.Map{"error": "current code has not expired yet"})
	case repository.ErrUnauthorized:
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your order"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "operation failed"})
	}
}
