package model

import "time"

// Item status values.  Transitions between them are owned exclusively by
// repository.ItemRepo; nothing else writes items.status.
const (
	ItemStatusAvailable = "available"
	ItemStatusReserved  = "reserved"
	ItemStatusSold      = "sold"
)

// Item represents a listed good offered by a seller.  An item is reservable
// while status is "available" and is_active is true.  A reserved item carries
// the reserving buyer and the reservation instant so that stale holds can be
// reclaimed.  Sold is terminal: the record is kept for order history and
// seller reviews rather than deleted.
//
// Fields:
//  ID          – primary key identifier.
//  SellerID    – user ID of the listing seller.
//  Name        – listing title.
//  Description – free-form listing description.
//  Category    – category label used for browse filtering.
//  Image       – URL of the listing image.
//  PriceCents  – asking price in cents.
//  IsActive    – seller-controlled visibility; an inactive item is invisible
//                to new reservations regardless of status.
//  Status      – one of available, reserved, sold.
//  ReservedBy  – buyer currently holding the item (nil unless reserved).
//  ReservedAt  – when the hold was taken (nil unless reserved).
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Item struct {
	ID          uint64     // items.id
	SellerID    uint64     // items.seller_id
	Name        string     // items.name
	Description string     // items.description
	Category    string     // items.category
	Image       string     // items.image
	PriceCents  uint32     // items.price_cents
	IsActive    bool       // items.is_active
	Status      string     // items.status
	ReservedBy  *uint64    // items.reserved_by (nullable)
	ReservedAt  *time.Time // items.reserved_at (nullable)
	CreatedAt   time.Time  // items.created_at
	UpdatedAt   time.Time  // items.updated_at
}
