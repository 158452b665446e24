package model

import "time"

// OrderLine status values.  Pending is the only non-terminal state.
const (
	LineStatusPending   = "Pending"
	LineStatusCompleted = "Completed"
	LineStatusCancelled = "Cancelled"
	LineStatusExpired   = "Expired"
)

// Order groups the items a buyer checked out in one operation.  Each line
// carries its own one-time code and resolves independently of its siblings,
// since different lines usually belong to different sellers.
//
// Fields:
//  ID          – primary key identifier.
//  BuyerID     – user who placed the order.
//  AmountCents – sum of the line prices in cents; wider than a line price so
//                a large multi-item order cannot wrap the total.
//  CreatedAt   – creation timestamp.
//  Lines       – the order's line items.
type Order struct {
	ID          uint64      // orders.id
	BuyerID     uint64      // orders.buyer_id
	AmountCents uint64      // orders.amount_cents
	CreatedAt   time.Time   // orders.created_at
	Lines       []OrderLine // order_lines rows for this order
}

// OrderLine is one item's entry within an order.  The one-time handoff code
// is stored only as a bcrypt hash; the plaintext is disclosed exactly once at
// checkout (or on regeneration) and is never persisted.
//
// Fields:
//  ID            – primary key identifier.
//  OrderID       – owning order.
//  ItemID        – item being purchased; at most one Pending line may
//                  reference an item across all orders.
//  SellerID      – seller of the item, denormalized for seller-side lookups.
//  PriceCents    – line price in cents at checkout time.
//  CodeHash      – bcrypt hash of the current one-time code.
//  CodeExpiresAt – deadline after which the code is no longer verifiable.
//  Status        – one of Pending, Completed, Cancelled, Expired.
//  CreatedAt     – creation timestamp.
type OrderLine struct {
	ID            uint64    // order_lines.id
	OrderID       uint64    // order_lines.order_id
	ItemID        uint64    // order_lines.item_id
	SellerID      uint64    // order_lines.seller_id
	PriceCents    uint32    // order_lines.price_cents
	CodeHash      string    // order_lines.code_hash
	CodeExpiresAt time.Time // order_lines.code_expires_at
	Status        string    // order_lines.status
	CreatedAt     time.Time // order_lines.created_at
}
