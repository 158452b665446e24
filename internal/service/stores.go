package service

import (
	"context"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/model"
)

// The services in this package orchestrate the engine's lifecycle but never
// mutate state themselves: every status transition happens inside a store as
// a single conditional update, so the datastore remains the only
// serialization point.  The interfaces below are implemented by the MySQL
// repositories in production and by in-memory fakes in tests.

// ItemStore is the inventory ledger surface the services depend on.
type ItemStore interface {
	GetByID(ctx context.Context, id uint64) (model.Item, error)
	TryReserve(ctx context.Context, itemID, buyerID uint64, now time.Time) error
	RefreshHold(ctx context.Context, itemID, buyerID uint64, now time.Time) error
	Release(ctx context.Context, itemID, buyerID uint64) error
	ForceRelease(ctx context.Context, itemID uint64) error
	ExpireStale(ctx context.Context, itemID uint64, cutoff time.Time) (bool, error)
	Finalize(ctx context.Context, itemID uint64) error
	StaleReserved(ctx context.Context, cutoff time.Time) ([]uint64, error)
}

// CartStore holds cart membership, a view over reservations.
type CartStore interface {
	Add(ctx context.Context, buyerID, itemID uint64) error
	Remove(ctx context.Context, buyerID, itemID uint64) error
	RemoveMany(ctx context.Context, buyerID uint64, itemIDs []uint64) error
	RemoveItemEverywhere(ctx context.Context, itemID uint64) error
	List(ctx context.Context, buyerID uint64) ([]uint64, error)
}

// OrderStore persists orders and resolves their lines.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, orderID uint64) (model.Order, error)
	GetLine(ctx context.Context, orderID, itemID uint64) (model.OrderLine, error)
	MarkLine(ctx context.Context, orderID, itemID uint64, from, to string) (bool, error)
	ReplaceLineCode(ctx context.Context, orderID, itemID uint64, codeHash string, expiresAt time.Time) (bool, error)
	ExpiredPending(ctx context.Context, now time.Time) ([]model.OrderLine, error)
	HasPendingLine(ctx context.Context, itemID uint64) (bool, error)
}
