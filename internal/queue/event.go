// Package queue defines message payloads exchanged over the message broker.
package queue

// SaleCompletedEvent is published when a handoff code is verified and an
// item becomes sold.  It carries enough for downstream consumers to log or
// notify without querying the primary database.
type SaleCompletedEvent struct {
	OrderID     uint64 `json:"order_id"`
	ItemID      uint64 `json:"item_id"`
	ItemName    string `json:"item_name"`
	BuyerID     uint64 `json:"buyer_id"`
	SellerID    uint64 `json:"seller_id"`
	PriceCents  uint32 `json:"price_cents"`
	CompletedAt string `json:"completed_at"`
}
