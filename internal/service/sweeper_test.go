package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/model"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
)

func TestSweepExpiresOverdueLines(t *testing.T) {
	f := newMarketFixture(t, []string{"111111"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)
	result := f.mustCheckout(t, 7, 1)

	f.clk.Advance(DefaultCodeTTL + time.Minute)

	stats, err := f.sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.LinesExpired != 1 {
		t.Fatalf("LinesExpired = %d, want 1", stats.LinesExpired)
	}
	ln, _ := f.orders.GetLine(context.Background(), result.Order.ID, 1)
	if ln.Status != model.LineStatusExpired {
		t.Fatalf("line status = %q, want Expired", ln.Status)
	}
	if f.items.status(1) != model.ItemStatusAvailable {
		t.Fatalf("item status = %q, want available after expiry", f.items.status(1))
	}

	t.Run("idempotent", func(t *testing.T) {
		again, err := f.sweep.RunOnce(context.Background())
		if err != nil {
			t.Fatalf("second sweep: %v", err)
		}
		if again.LinesExpired != 0 || again.HoldsReclaimed != 0 {
			t.Fatalf("second sweep stats = %+v, want zero", again)
		}
	})

	t.Run("verification after sweep is rejected", func(t *testing.T) {
		_, err := f.tx.VerifyAndComplete(context.Background(), result.Order.ID, 1, result.Codes[1])
		if !errors.Is(err, repository.ErrAlreadyResolved) {
			t.Fatalf("err = %v, want ErrAlreadyResolved", err)
		}
	})
}

func TestSweepReclaimsIdleCartHolds(t *testing.T) {
	f := newMarketFixture(t, []string{"111111"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)

	f.clk.Advance(DefaultHoldTTL + time.Minute)

	stats, err := f.sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.HoldsReclaimed != 1 {
		t.Fatalf("HoldsReclaimed = %d, want 1", stats.HoldsReclaimed)
	}
	if f.items.status(1) != model.ItemStatusAvailable {
		t.Fatalf("item status = %q, want available after reclaim", f.items.status(1))
	}
	// The idle cart row goes with the hold.
	ids, _ := f.carts.List(context.Background(), 7)
	if len(ids) != 0 {
		t.Fatalf("cart = %v, want empty after reclaim", ids)
	}
	// Another buyer can take the item immediately.
	if err := f.res.AddToCart(context.Background(), 8, 1); err != nil {
		t.Fatalf("re-add by another buyer: %v", err)
	}
}

func TestSweepSparesCheckedOutHolds(t *testing.T) {
	f := newMarketFixture(t, []string{"111111"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)

	// Stale by hold-TTL standards, but the buyer checked out and the code is
	// still live: the pending line keeps the hold alive.
	f.clk.Advance(DefaultHoldTTL + time.Minute)
	txLate := NewTransactionService(f.items, f.carts, f.orders, &scriptedCodes{codes: []string{"333333"}}, f.clk)
	result, err := txLate.Checkout(context.Background(), 7, []uint64{1})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}

	stats, err := f.sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.HoldsReclaimed != 0 || stats.LinesExpired != 0 {
		t.Fatalf("stats = %+v, want zero", stats)
	}
	if f.items.status(1) != model.ItemStatusReserved {
		t.Fatalf("item status = %q, want still reserved", f.items.status(1))
	}

	// The handoff still completes normally afterwards.
	if _, err := txLate.VerifyAndComplete(context.Background(), result.Order.ID, 1, result.Codes[1]); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

// checkoutDuringSweep interposes on the sweeper's release to run a callback
// first, reproducing a checkout that lands after the sweeper has read the
// item's pending state but before it writes the release.
type checkoutDuringSweep struct {
	*fakeItemStore
	during func()
}

func (s *checkoutDuringSweep) ExpireStale(ctx context.Context, itemID uint64, cutoff time.Time) (bool, error) {
	if s.during != nil {
		fn := s.during
		s.during = nil
		fn()
	}
	return s.fakeItemStore.ExpireStale(ctx, itemID, cutoff)
}

func TestSweepSparesHoldClaimedByLandingCheckout(t *testing.T) {
	f := newMarketFixture(t, []string{"111111"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)

	// The hold goes idle past the TTL, so the sweeper targets it.
	f.clk.Advance(DefaultHoldTTL + time.Minute)

	// Buyer 7's checkout slips in between the sweeper's pending-line read
	// and its release write. The checkout's claim re-stamps reserved_at, so
	// the release's staleness predicate must no longer match.
	var result CheckoutResult
	hooked := &checkoutDuringSweep{fakeItemStore: f.items, during: func() {
		r, err := f.tx.Checkout(context.Background(), 7, []uint64{1})
		if err != nil {
			t.Errorf("checkout during sweep: %v", err)
			return
		}
		result = r
	}}
	sweep := NewSweeper(hooked, f.carts, f.orders, f.clk)

	stats, err := sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.HoldsReclaimed != 0 {
		t.Fatalf("HoldsReclaimed = %d, want 0: the claimed hold must survive", stats.HoldsReclaimed)
	}
	if f.items.status(1) != model.ItemStatusReserved {
		t.Fatalf("item status = %q, want reserved: sweep released a checked-out hold", f.items.status(1))
	}

	// No second buyer can slip in, so a second pending line is impossible.
	if err := f.res.AddToCart(context.Background(), 8, 1); !errors.Is(err, repository.ErrNotAvailable) {
		t.Fatalf("second buyer err = %v, want ErrNotAvailable", err)
	}

	// The landed checkout completes normally.
	if _, err := f.tx.VerifyAndComplete(context.Background(), result.Order.ID, 1, result.Codes[1]); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if f.items.status(1) != model.ItemStatusSold {
		t.Fatalf("item status = %q, want sold", f.items.status(1))
	}
}

func TestSweepDoesNotResurrectUnlistedItems(t *testing.T) {
	f := newMarketFixture(t, []string{"111111"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)
	f.mustCheckout(t, 7, 1)

	// Seller unlists while the handoff is pending, then the code expires.
	f.items.setActive(1, false)
	f.clk.Advance(DefaultCodeTTL + time.Minute)

	stats, err := f.sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.LinesExpired != 1 {
		t.Fatalf("LinesExpired = %d, want 1", stats.LinesExpired)
	}
	// Released, but invisible: the unlisted item cannot be reserved again.
	if f.items.status(1) != model.ItemStatusAvailable {
		t.Fatalf("item status = %q, want available", f.items.status(1))
	}
	if err := f.res.AddToCart(context.Background(), 8, 1); !errors.Is(err, repository.ErrNotAvailable) {
		t.Fatalf("err = %v, want ErrNotAvailable for unlisted item", err)
	}
}

func TestSweepConvergesConcurrentState(t *testing.T) {
	// Two buyers, two items: one hold goes idle, one line expires, one sale
	// completes. A single sweep resolves exactly the overdue pieces.
	f := newMarketFixture(t, []string{"111111", "222222"},
		availableItem(1, 100, 2500), availableItem(2, 100, 900), availableItem(3, 200, 5000))
	f.mustAdd(t, 7, 1)
	f.mustAdd(t, 8, 2)
	resultA := f.mustCheckout(t, 7, 1)

	// Buyer 7 completes before anything expires.
	if _, err := f.tx.VerifyAndComplete(context.Background(), resultA.Order.ID, 1, resultA.Codes[1]); err != nil {
		t.Fatalf("verify: %v", err)
	}

	f.clk.Advance(DefaultHoldTTL + time.Minute)
	f.mustAdd(t, 7, 3) // fresh hold, must survive the sweep

	stats, err := f.sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if stats.LinesExpired != 0 {
		t.Fatalf("LinesExpired = %d, want 0", stats.LinesExpired)
	}
	if stats.HoldsReclaimed != 1 {
		t.Fatalf("HoldsReclaimed = %d, want 1 (buyer 8's idle hold)", stats.HoldsReclaimed)
	}
	if f.items.status(1) != model.ItemStatusSold {
		t.Fatalf("item 1 status = %q, want sold untouched by sweep", f.items.status(1))
	}
	if f.items.status(2) != model.ItemStatusAvailable {
		t.Fatalf("item 2 status = %q, want available", f.items.status(2))
	}
	if f.items.status(3) != model.ItemStatusReserved {
		t.Fatalf("item 3 status = %q, want fresh hold preserved", f.items.status(3))
	}
}
