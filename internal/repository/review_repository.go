package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/marketplace-reservation/internal/model"
)

// ReviewRepo provides access to seller reviews.  Reviews reference item IDs,
// which is one reason completed items keep their row instead of being
// deleted.
type ReviewRepo struct {
	db *sql.DB
}

// NewReviewRepo returns a new ReviewRepo bound to the provided database.
func NewReviewRepo(db *sql.DB) *ReviewRepo { return &ReviewRepo{db: db} }

// Create inserts a review.  The unique (reviewer_id, item_id) index rejects
// a second review of the same purchase.
func (r *ReviewRepo) Create(ctx context.Context, rev *model.SellerReview) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO seller_reviews (seller_id, reviewer_id, item_id, rating, text)
		 VALUES (?, ?, ?, ?, ?)`,
		rev.SellerID, rev.ReviewerID, rev.ItemID, rev.Rating, rev.Text)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateReview
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rev.ID = uint64(id)
	return nil
}

// ListBySeller returns all reviews left for a seller, newest first.
func (r *ReviewRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]model.SellerReview, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, seller_id, reviewer_id, item_id, rating, text, created_at
		 FROM seller_reviews WHERE seller_id = ? ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reviews []model.SellerReview
	for rows.Next() {
		var rev model.SellerReview
		if err := rows.Scan(&rev.ID, &rev.SellerID, &rev.ReviewerID, &rev.ItemID,
			&rev.Rating, &rev.Text, &rev.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, rev)
	}
	return reviews, rows.Err()
}
