package service

import (
	"context"
	"errors"

	"github.com/iliyamo/marketplace-reservation/internal/clock"
	"github.com/iliyamo/marketplace-reservation/internal/model"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
)

// ReservationService binds prospective buyers to items.  Adding to the cart
// acquires a hold through the ledger's TryReserve; the cart row itself is
// only a view and never decides who holds an item.
type ReservationService struct {
	items ItemStore
	carts CartStore
	clock clock.Clock
}

// NewReservationService constructs a ReservationService.
func NewReservationService(items ItemStore, carts CartStore, clk clock.Clock) *ReservationService {
	return &ReservationService{items: items, carts: carts, clock: clk}
}

// AddToCart reserves the item for the buyer and records cart membership.
// The reservation is the gate: a second add of the same item fails with
// ErrNotAvailable because the item is no longer available, so the operation
// is deliberately not idempotent.  On any reservation failure the cart is
// left untouched.
func (s *ReservationService) AddToCart(ctx context.Context, buyerID, itemID uint64) error {
	if err := s.items.TryReserve(ctx, itemID, buyerID, s.clock.Now()); err != nil {
		return err
	}
	if err := s.carts.Add(ctx, buyerID, itemID); err != nil {
		// Hold acquired but cart write failed; give the hold back so the
		// item is not stranded in reserved with no cart referencing it.
		_ = s.items.Release(ctx, itemID, buyerID)
		return err
	}
	return nil
}

// RemoveFromCart drops the cart row and releases the hold.  The release is
// best effort: if the sweeper or a checkout already severed the hold, the
// ledger call matches nothing and the cart correction still stands.
func (s *ReservationService) RemoveFromCart(ctx context.Context, buyerID, itemID uint64) error {
	if err := s.carts.Remove(ctx, buyerID, itemID); err != nil {
		return err
	}
	return s.items.Release(ctx, itemID, buyerID)
}

// ViewCart returns the items the buyer currently holds.  Cart rows whose
// item is no longer reserved by this buyer are stale — the hold was expired
// or checked out — and are dropped silently, including their cart row.
func (s *ReservationService) ViewCart(ctx context.Context, buyerID uint64) ([]model.Item, error) {
	ids, err := s.carts.List(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	items := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		it, err := s.items.GetByID(ctx, id)
		if errors.Is(err, repository.ErrItemNotFound) {
			_ = s.carts.Remove(ctx, buyerID, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if it.Status != model.ItemStatusReserved || it.ReservedBy == nil || *it.ReservedBy != buyerID {
			_ = s.carts.Remove(ctx, buyerID, id)
			continue
		}
		items = append(items, it)
	}
	return items, nil
}
