package model

import "time"

// SellerReview is a buyer's rating of a seller tied to a purchased item.
// The (reviewer, item) pair is unique so a buyer cannot review the same
// purchase twice.  Reviews reference item IDs, which is why completed items
// are kept with a terminal "sold" status instead of being deleted.
//
// Fields:
//  ID         – primary key identifier.
//  SellerID   – seller being reviewed.
//  ReviewerID – buyer writing the review.
//  ItemID     – item the review refers to.
//  Rating     – star rating, 1..5.
//  Text       – review body.
//  CreatedAt  – creation timestamp.
type SellerReview struct {
	ID         uint64    // seller_reviews.id
	SellerID   uint64    // seller_reviews.seller_id
	ReviewerID uint64    // seller_reviews.reviewer_id
	ItemID     uint64    // seller_reviews.item_id
	Rating     uint8     // seller_reviews.rating
	Text       string    // seller_reviews.text
	CreatedAt  time.Time // seller_reviews.created_at
}
