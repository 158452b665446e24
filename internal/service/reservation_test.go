package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/clock"
	"github.com/iliyamo/marketplace-reservation/internal/model"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func availableItem(id, sellerID uint64, price uint32) model.Item {
	return model.Item{
		ID:         id,
		SellerID:   sellerID,
		Name:       "item",
		PriceCents: price,
		IsActive:   true,
		Status:     model.ItemStatusAvailable,
	}
}

func TestAddToCartSingleHolder(t *testing.T) {
	items := newFakeItemStore(availableItem(1, 100, 2500))
	carts := newFakeCartStore()
	svc := NewReservationService(items, carts, clock.NewFixed(testNow))

	const buyers = 20
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.AddToCart(context.Background(), uint64(i+1), 1)
		}(i)
	}
	wg.Wait()

	var won int
	for i, err := range errs {
		switch {
		case err == nil:
			won++
			got, _ := carts.List(context.Background(), uint64(i+1))
			if len(got) != 1 || got[0] != 1 {
				t.Fatalf("winner %d cart = %v, want [1]", i+1, got)
			}
		case errors.Is(err, repository.ErrNotAvailable):
		default:
			t.Fatalf("buyer %d: unexpected error %v", i+1, err)
		}
	}
	if won != 1 {
		t.Fatalf("got %d successful reservations, want exactly 1", won)
	}
	if items.status(1) != model.ItemStatusReserved {
		t.Fatalf("item status = %q, want reserved", items.status(1))
	}
}

func TestAddToCartRejections(t *testing.T) {
	items := newFakeItemStore(availableItem(1, 100, 2500), availableItem(2, 100, 900))
	items.setActive(2, false)
	carts := newFakeCartStore()
	svc := NewReservationService(items, carts, clock.NewFixed(testNow))

	t.Run("own item", func(t *testing.T) {
		if err := svc.AddToCart(context.Background(), 100, 1); !errors.Is(err, repository.ErrSelfReservation) {
			t.Fatalf("err = %v, want ErrSelfReservation", err)
		}
	})
	t.Run("unlisted item", func(t *testing.T) {
		if err := svc.AddToCart(context.Background(), 7, 2); !errors.Is(err, repository.ErrNotAvailable) {
			t.Fatalf("err = %v, want ErrNotAvailable", err)
		}
	})
	t.Run("unknown item", func(t *testing.T) {
		if err := svc.AddToCart(context.Background(), 7, 99); !errors.Is(err, repository.ErrItemNotFound) {
			t.Fatalf("err = %v, want ErrItemNotFound", err)
		}
	})
	t.Run("double add by holder", func(t *testing.T) {
		if err := svc.AddToCart(context.Background(), 7, 1); err != nil {
			t.Fatalf("first add: %v", err)
		}
		if err := svc.AddToCart(context.Background(), 7, 1); !errors.Is(err, repository.ErrNotAvailable) {
			t.Fatalf("second add err = %v, want ErrNotAvailable", err)
		}
	})
}

func TestRemoveFromCartReleasesHold(t *testing.T) {
	items := newFakeItemStore(availableItem(1, 100, 2500))
	carts := newFakeCartStore()
	svc := NewReservationService(items, carts, clock.NewFixed(testNow))

	if err := svc.AddToCart(context.Background(), 7, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.RemoveFromCart(context.Background(), 7, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if items.status(1) != model.ItemStatusAvailable {
		t.Fatalf("item status = %q, want available after removal", items.status(1))
	}
	got, _ := carts.List(context.Background(), 7)
	if len(got) != 0 {
		t.Fatalf("cart = %v, want empty", got)
	}
	// Item is grabbable again.
	if err := svc.AddToCart(context.Background(), 8, 1); err != nil {
		t.Fatalf("re-add by another buyer: %v", err)
	}
}

func TestViewCartDropsStaleRows(t *testing.T) {
	items := newFakeItemStore(availableItem(1, 100, 2500), availableItem(2, 100, 900))
	carts := newFakeCartStore()
	svc := NewReservationService(items, carts, clock.NewFixed(testNow))

	for _, id := range []uint64{1, 2} {
		if err := svc.AddToCart(context.Background(), 7, id); err != nil {
			t.Fatalf("add %d: %v", id, err)
		}
	}

	// Simulate the sweeper reclaiming item 2 behind the buyer's back.
	if err := items.ForceRelease(context.Background(), 2); err != nil {
		t.Fatalf("force release: %v", err)
	}

	got, err := svc.ViewCart(context.Background(), 7)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Fatalf("cart items = %v, want only item 1", got)
	}
	// The stale row is gone for good, not just filtered from this response.
	ids, _ := carts.List(context.Background(), 7)
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("cart rows = %v, want [1]", ids)
	}
}
