package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/clock"
	"github.com/iliyamo/marketplace-reservation/internal/model"
)

// DefaultHoldTTL is how long an idle cart hold survives before the sweeper
// reclaims the item.
const DefaultHoldTTL = 10 * time.Minute

// Sweeper is the recurring reconciliation pass that converts time-based
// staleness into explicit state transitions.  Expiry is observed here, not
// triggered by per-record timers, so correctness depends only on the sweeper
// eventually running, never on its exact cadence.  Every mutation it makes
// is a conditional update guarded by the same predicate a request handler
// would use, so both passes can run concurrently with live traffic.
type Sweeper struct {
	items   ItemStore
	carts   CartStore
	orders  OrderStore
	clock   clock.Clock
	holdTTL time.Duration
}

// NewSweeper constructs a Sweeper.
func NewSweeper(items ItemStore, carts CartStore, orders OrderStore, clk clock.Clock, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		items:   items,
		carts:   carts,
		orders:  orders,
		clock:   clk,
		holdTTL: DefaultHoldTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SweeperOption customizes a Sweeper.
type SweeperOption func(*Sweeper)

// WithHoldTTL overrides how long an idle cart hold may live.
func WithHoldTTL(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// SweepStats reports what one sweep accomplished.
type SweepStats struct {
	LinesExpired   int // pass 1: Pending lines moved to Expired
	HoldsReclaimed int // pass 2: idle cart holds returned to available
}

// RunOnce executes both reconciliation passes against the current store
// contents and the injected clock's "now".  Both passes are idempotent:
// rerunning against already-resolved rows matches nothing and changes
// nothing.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	now := s.clock.Now()

	// Pass 1: pending-code expiry.  A line the buyer or seller resolves
	// between the read and the MarkLine below simply fails the conditional
	// update and is skipped.  The item goes back to available; if the
	// seller unlisted it in the meantime, is_active stays false and the
	// item is not resurrected into public listings.
	expired, err := s.orders.ExpiredPending(ctx, now)
	if err != nil {
		return stats, err
	}
	for _, line := range expired {
		ok, err := s.orders.MarkLine(ctx, line.OrderID, line.ItemID,
			model.LineStatusPending, model.LineStatusExpired)
		if err != nil {
			return stats, err
		}
		if !ok {
			continue
		}
		if err := s.items.ForceRelease(ctx, line.ItemID); err != nil {
			return stats, err
		}
		stats.LinesExpired++
	}

	// Pass 2: idle-cart reclaim.  Items reserved before the hold cutoff
	// that were never checked out (no Pending line) go back to available
	// even if a cart still references them; the cart row is removed here
	// and would otherwise be dropped on the owner's next cart read.  The
	// release is ExpireStale, never ForceRelease: the staleness predicate
	// rides inside the UPDATE itself, so a checkout that re-stamps the hold
	// between our reads and this write keeps its item.
	cutoff := now.Add(-s.holdTTL)
	stale, err := s.items.StaleReserved(ctx, cutoff)
	if err != nil {
		return stats, err
	}
	for _, itemID := range stale {
		pending, err := s.orders.HasPendingLine(ctx, itemID)
		if err != nil {
			return stats, err
		}
		if pending {
			continue
		}
		released, err := s.items.ExpireStale(ctx, itemID, cutoff)
		if err != nil {
			return stats, err
		}
		if !released {
			continue
		}
		if err := s.carts.RemoveItemEverywhere(ctx, itemID); err != nil {
			return stats, err
		}
		stats.HoldsReclaimed++
	}
	return stats, nil
}

// Start runs RunOnce on a fixed interval until the context is cancelled.
// Intended to be launched as a goroutine from main; errors are logged and
// the loop keeps going, since a failed sweep is retried on the next tick.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := s.RunOnce(ctx)
			if err != nil {
				log.Printf("sweeper: run failed: %v", err)
				continue
			}
			if stats.LinesExpired > 0 || stats.HoldsReclaimed > 0 {
				log.Printf("sweeper: expired %d pending lines, reclaimed %d idle holds",
					stats.LinesExpired, stats.HoldsReclaimed)
			}
		}
	}
}
