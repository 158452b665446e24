package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marketplace-reservation/internal/config"
	"github.com/iliyamo/marketplace-reservation/internal/model"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
)

// ProfileHandler covers profile edits and seller reviews.
type ProfileHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Items   *repository.ItemRepo
	Reviews *repository.ReviewRepo
}

func NewProfileHandler(cfg config.Config, users *repository.UserRepo, items *repository.ItemRepo, reviews *repository.ReviewRepo) *ProfileHandler {
	return &ProfileHandler{Cfg: cfg, Users: users, Items: items, Reviews: reviews}
}

type profileReq struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	ContactNo string `json:"contact_no"`
	Password  string `json:"password"`
}

type reviewReq struct {
	ItemID uint64 `json:"item_id"`
	Rating uint8  `json:"rating"`
	Text   string `json:"text"`
}

type reviewView struct {
	ID         uint64    `json:"id"`
	SellerID   uint64    `json:"seller_id"`
	ReviewerID uint64    `json:"reviewer_id"`
	ItemID     uint64    `json:"item_id"`
	Rating     uint8     `json:"rating"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}

func toReviewView(r model.SellerReview) reviewView {
	return reviewView{
		ID:         r.ID,
		SellerID:   r.SellerID,
		ReviewerID: r.ReviewerID,
		ItemID:     r.ItemID,
		Rating:     r.Rating,
		Text:       r.Text,
		CreatedAt:  r.CreatedAt,
	}
}

// Update rewrites the caller's mutable profile fields; empty fields are left
// unchanged.
func (h *ProfileHandler) Update(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Users.UpdateProfile(ctx, uid,
		strings.TrimSpace(req.FirstName),
		strings.TrimSpace(req.LastName),
		strings.TrimSpace(req.ContactNo),
		req.Password,
		h.Cfg.BcryptCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "profile updated"})
}

// CreateReview lets a buyer rate a seller after a completed purchase.  The
// item must be the seller's and must be sold; the unique index keeps one
// review per purchase.
func (h *ProfileHandler) CreateReview(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sellerID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seller id"})
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be 1-5"})
	}
	if sellerID == uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot review yourself"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	it, err := h.Items.GetByID(ctx, req.ItemID)
	if err != nil {
		if err == repository.ErrItemNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if it.SellerID != sellerID || it.Status != model.ItemStatusSold {
		return c.JSON(http.StatusConflict, echo.Map{"error": "item is not a completed purchase from this seller"})
	}

	rev := model.SellerReview{
		SellerID:   sellerID,
		ReviewerID: uid,
		ItemID:     req.ItemID,
		Rating:     req.Rating,
		Text:       strings.TrimSpace(req.Text),
	}
	if err := h.Reviews.Create(ctx, &rev); err != nil {
		if err == repository.ErrDuplicateReview {
			return c.JSON(http.StatusConflict, echo.Map{"error": "you already reviewed this purchase"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create review failed"})
	}
	return c.JSON(http.StatusCreated, toReviewView(rev))
}

// ListReviews returns a seller's reviews, newest first, with the average.
func (h *ProfileHandler) ListReviews(c echo.Context) error {
	sellerID, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seller id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	reviews, err := h.Reviews.ListBySeller(ctx, sellerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	var avg float64
	views := make([]reviewView, 0, len(reviews))
	var sum int
	for _, r := range reviews {
		sum += int(r.Rating)
		views = append(views, toReviewView(r))
	}
	if len(reviews) > 0 {
		avg = float64(sum) / float64(len(reviews))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reviews": views,
		"average": avg,
		"count":   len(reviews),
	})
}
