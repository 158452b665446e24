package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/model"
	"github.com/iliyamo/marketplace-reservation/internal/otp"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
)

// marketFixture wires the full service stack over in-memory stores.
type marketFixture struct {
	items  *fakeItemStore
	carts  *fakeCartStore
	orders *fakeOrderStore
	clk    *stepClock
	res    *ReservationService
	tx     *TransactionService
	sweep  *Sweeper
}

func newMarketFixture(t *testing.T, codes []string, seed ...model.Item) *marketFixture {
	t.Helper()
	f := &marketFixture{
		items:  newFakeItemStore(seed...),
		carts:  newFakeCartStore(),
		orders: newFakeOrderStore(),
		clk:    newStepClock(testNow),
	}
	src := &scriptedCodes{codes: codes}
	f.res = NewReservationService(f.items, f.carts, f.clk)
	f.tx = NewTransactionService(f.items, f.carts, f.orders, src, f.clk)
	f.sweep = NewSweeper(f.items, f.carts, f.orders, f.clk)
	return f
}

func (f *marketFixture) mustAdd(t *testing.T, buyerID, itemID uint64) {
	t.Helper()
	if err := f.res.AddToCart(context.Background(), buyerID, itemID); err != nil {
		t.Fatalf("add item %d to cart: %v", itemID, err)
	}
}

func (f *marketFixture) mustCheckout(t *testing.T, buyerID uint64, itemIDs ...uint64) CheckoutResult {
	t.Helper()
	result, err := f.tx.Checkout(context.Background(), buyerID, itemIDs)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return result
}

func TestCheckoutCreatesPendingLines(t *testing.T) {
	f := newMarketFixture(t, []string{"111111", "222222"},
		availableItem(1, 100, 2500), availableItem(2, 200, 900))
	f.mustAdd(t, 7, 1)
	f.mustAdd(t, 7, 2)

	result := f.mustCheckout(t, 7, 1, 2)

	if result.Order.AmountCents != 3400 {
		t.Fatalf("amount = %d, want 3400", result.Order.AmountCents)
	}
	if len(result.Order.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(result.Order.Lines))
	}
	for _, ln := range result.Order.Lines {
		if ln.Status != model.LineStatusPending {
			t.Fatalf("line %d status = %q, want Pending", ln.ItemID, ln.Status)
		}
		code, ok := result.Codes[ln.ItemID]
		if !ok {
			t.Fatalf("no code disclosed for item %d", ln.ItemID)
		}
		if !otp.Verify(ln.CodeHash, code) {
			t.Fatalf("stored hash for item %d does not match disclosed code", ln.ItemID)
		}
		want := testNow.Add(DefaultCodeTTL)
		if !ln.CodeExpiresAt.Equal(want) {
			t.Fatalf("line %d expiry = %v, want %v", ln.ItemID, ln.CodeExpiresAt, want)
		}
	}

	// Items stay reserved until the code is verified.
	if f.items.status(1) != model.ItemStatusReserved {
		t.Fatalf("item 1 status = %q, want reserved", f.items.status(1))
	}
	// Checked-out items leave the cart.
	ids, _ := f.carts.List(context.Background(), 7)
	if len(ids) != 0 {
		t.Fatalf("cart = %v, want empty after checkout", ids)
	}
}

func TestCheckoutSumsLargePrices(t *testing.T) {
	// Two line prices that individually fit a price field but together
	// exceed 32 bits; the order total must not wrap.
	f := newMarketFixture(t, []string{"111111", "222222"},
		availableItem(1, 100, 3_000_000_000), availableItem(2, 200, 3_000_000_000))
	f.mustAdd(t, 7, 1)
	f.mustAdd(t, 7, 2)

	result := f.mustCheckout(t, 7, 1, 2)
	if result.Order.AmountCents != 6_000_000_000 {
		t.Fatalf("amount = %d, want 6000000000", result.Order.AmountCents)
	}
}

func TestCheckoutFailsClosed(t *testing.T) {
	f := newMarketFixture(t, []string{"111111", "222222"},
		availableItem(1, 100, 2500), availableItem(2, 200, 900))
	f.mustAdd(t, 7, 1)
	f.mustAdd(t, 7, 2)

	// Item 2's hold is severed before checkout (sweeper reclaim).
	if err := f.items.ForceRelease(context.Background(), 2); err != nil {
		t.Fatalf("force release: %v", err)
	}

	_, err := f.tx.Checkout(context.Background(), 7, []uint64{1, 2})
	if !errors.Is(err, repository.ErrSomeItemsUnavailable) {
		t.Fatalf("err = %v, want ErrSomeItemsUnavailable", err)
	}
	// No partial order, and item 1's hold is untouched.
	if _, err := f.orders.GetOrder(context.Background(), 1); !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected no order, got err = %v", err)
	}
	if f.items.status(1) != model.ItemStatusReserved {
		t.Fatalf("item 1 status = %q, want still reserved", f.items.status(1))
	}
}

func TestVerifyAndComplete(t *testing.T) {
	f := newMarketFixture(t, []string{"111111"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)
	result := f.mustCheckout(t, 7, 1)
	orderID := result.Order.ID
	code := result.Codes[1]

	t.Run("wrong code has no side effects", func(t *testing.T) {
		_, err := f.tx.VerifyAndComplete(context.Background(), orderID, 1, "000000")
		if !errors.Is(err, repository.ErrInvalidCode) {
			t.Fatalf("err = %v, want ErrInvalidCode", err)
		}
		ln, _ := f.orders.GetLine(context.Background(), orderID, 1)
		if ln.Status != model.LineStatusPending {
			t.Fatalf("line status = %q, want Pending after bad code", ln.Status)
		}
		if f.items.status(1) != model.ItemStatusReserved {
			t.Fatalf("item status = %q, want reserved after bad code", f.items.status(1))
		}
	})

	t.Run("correct code completes the sale", func(t *testing.T) {
		ln, err := f.tx.VerifyAndComplete(context.Background(), orderID, 1, code)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if ln.Status != model.LineStatusCompleted {
			t.Fatalf("line status = %q, want Completed", ln.Status)
		}
		if f.items.status(1) != model.ItemStatusSold {
			t.Fatalf("item status = %q, want sold", f.items.status(1))
		}
	})

	t.Run("second verification is rejected", func(t *testing.T) {
		_, err := f.tx.VerifyAndComplete(context.Background(), orderID, 1, code)
		if !errors.Is(err, repository.ErrAlreadyResolved) {
			t.Fatalf("err = %v, want ErrAlreadyResolved", err)
		}
	})
}

func TestVerifyExpiredCode(t *testing.T) {
	f := newMarketFixture(t, []string{"111111"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)
	result := f.mustCheckout(t, 7, 1)

	f.clk.Advance(DefaultCodeTTL + time.Minute)

	_, err := f.tx.VerifyAndComplete(context.Background(), result.Order.ID, 1, result.Codes[1])
	if !errors.Is(err, repository.ErrCodeExpired) {
		t.Fatalf("err = %v, want ErrCodeExpired", err)
	}
	if f.items.status(1) != model.ItemStatusReserved {
		t.Fatalf("item status = %q, want reserved until sweep or regeneration", f.items.status(1))
	}
}

func TestCancelLine(t *testing.T) {
	f := newMarketFixture(t, []string{"111111"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)
	result := f.mustCheckout(t, 7, 1)
	orderID := result.Order.ID

	t.Run("foreign buyer may not cancel", func(t *testing.T) {
		err := f.tx.CancelLine(context.Background(), orderID, 1, 8)
		if !errors.Is(err, repository.ErrUnauthorized) {
			t.Fatalf("err = %v, want ErrUnauthorized", err)
		}
	})

	t.Run("buyer cancels pending line", func(t *testing.T) {
		if err := f.tx.CancelLine(context.Background(), orderID, 1, 7); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		ln, _ := f.orders.GetLine(context.Background(), orderID, 1)
		if ln.Status != model.LineStatusCancelled {
			t.Fatalf("line status = %q, want Cancelled", ln.Status)
		}
		if f.items.status(1) != model.ItemStatusAvailable {
			t.Fatalf("item status = %q, want available after cancel", f.items.status(1))
		}
	})

	t.Run("cancel of resolved line", func(t *testing.T) {
		err := f.tx.CancelLine(context.Background(), orderID, 1, 7)
		if !errors.Is(err, repository.ErrNotPending) {
			t.Fatalf("err = %v, want ErrNotPending", err)
		}
	})
}

func TestRegenerateCode(t *testing.T) {
	f := newMarketFixture(t, []string{"111111", "222222"}, availableItem(1, 100, 2500))
	f.mustAdd(t, 7, 1)
	result := f.mustCheckout(t, 7, 1)
	orderID := result.Order.ID

	t.Run("rejected while current code is live", func(t *testing.T) {
		_, err := f.tx.RegenerateCode(context.Background(), orderID, 1)
		if !errors.Is(err, repository.ErrCodeStillValid) {
			t.Fatalf("err = %v, want ErrCodeStillValid", err)
		}
	})

	t.Run("replaces an expired code", func(t *testing.T) {
		f.clk.Advance(DefaultCodeTTL + time.Minute)
		code, err := f.tx.RegenerateCode(context.Background(), orderID, 1)
		if err != nil {
			t.Fatalf("regenerate: %v", err)
		}
		if code != "222222" {
			t.Fatalf("code = %q, want next scripted code", code)
		}
		// The old code is dead; the new one verifies.
		if _, err := f.tx.VerifyAndComplete(context.Background(), orderID, 1, result.Codes[1]); !errors.Is(err, repository.ErrInvalidCode) {
			t.Fatalf("old code err = %v, want ErrInvalidCode", err)
		}
		if _, err := f.tx.VerifyAndComplete(context.Background(), orderID, 1, code); err != nil {
			t.Fatalf("new code verify: %v", err)
		}
	})

	t.Run("rejected after completion", func(t *testing.T) {
		_, err := f.tx.RegenerateCode(context.Background(), orderID, 1)
		if !errors.Is(err, repository.ErrAlreadyCompleted) {
			t.Fatalf("err = %v, want ErrAlreadyCompleted", err)
		}
	})
}
