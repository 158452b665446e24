package service

// In-memory implementations of the store interfaces.  Each fake reproduces
// the conditional-update semantics of its MySQL counterpart under a mutex, so
// concurrency tests exercise the same compare-and-swap behavior the database
// provides in production.

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/model"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
)

// ----- clock -----

// stepClock is a mutable clock for tests that need time to pass.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func newStepClock(t time.Time) *stepClock { return &stepClock{t: t.UTC()} }

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// ----- code source -----

// scriptedCodes hands out a fixed sequence of codes, cycling when exhausted.
type scriptedCodes struct {
	mu    sync.Mutex
	codes []string
	i     int
}

func (s *scriptedCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := s.codes[s.i%len(s.codes)]
	s.i++
	return code, nil
}

// ----- item store -----

type fakeItemStore struct {
	mu    sync.Mutex
	items map[uint64]model.Item
}

func newFakeItemStore(items ...model.Item) *fakeItemStore {
	f := &fakeItemStore{items: make(map[uint64]model.Item)}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeItemStore) GetByID(_ context.Context, id uint64) (model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[id]
	if !ok {
		return model.Item{}, repository.ErrItemNotFound
	}
	return it, nil
}

func (f *fakeItemStore) TryReserve(_ context.Context, itemID, buyerID uint64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok {
		return repository.ErrItemNotFound
	}
	if it.SellerID == buyerID {
		return repository.ErrSelfReservation
	}
	if it.Status != model.ItemStatusAvailable || !it.IsActive {
		return repository.ErrNotAvailable
	}
	t := now.UTC()
	it.Status = model.ItemStatusReserved
	it.ReservedBy = &buyerID
	it.ReservedAt = &t
	f.items[itemID] = it
	return nil
}

func (f *fakeItemStore) RefreshHold(_ context.Context, itemID, buyerID uint64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok || it.Status != model.ItemStatusReserved || it.ReservedBy == nil || *it.ReservedBy != buyerID {
		return repository.ErrNotAvailable
	}
	t := now.UTC()
	it.ReservedAt = &t
	f.items[itemID] = it
	return nil
}

func (f *fakeItemStore) ExpireStale(_ context.Context, itemID uint64, cutoff time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok || it.Status != model.ItemStatusReserved || it.ReservedAt == nil || !it.ReservedAt.Before(cutoff) {
		return false, nil
	}
	it.Status = model.ItemStatusAvailable
	it.ReservedBy = nil
	it.ReservedAt = nil
	f.items[itemID] = it
	return true, nil
}

func (f *fakeItemStore) Release(_ context.Context, itemID, buyerID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok || it.Status != model.ItemStatusReserved || it.ReservedBy == nil || *it.ReservedBy != buyerID {
		return nil // no-op, matches the conditional UPDATE
	}
	it.Status = model.ItemStatusAvailable
	it.ReservedBy = nil
	it.ReservedAt = nil
	f.items[itemID] = it
	return nil
}

func (f *fakeItemStore) ForceRelease(_ context.Context, itemID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok || it.Status != model.ItemStatusReserved {
		return nil
	}
	it.Status = model.ItemStatusAvailable
	it.ReservedBy = nil
	it.ReservedAt = nil
	f.items[itemID] = it
	return nil
}

func (f *fakeItemStore) Finalize(_ context.Context, itemID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[itemID]
	if !ok {
		return repository.ErrItemNotFound
	}
	if it.Status != model.ItemStatusSold {
		it.Status = model.ItemStatusSold
		it.ReservedBy = nil
		it.ReservedAt = nil
		f.items[itemID] = it
	}
	return nil
}

func (f *fakeItemStore) StaleReserved(_ context.Context, cutoff time.Time) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uint64
	for id, it := range f.items {
		if it.Status == model.ItemStatusReserved && it.ReservedAt != nil && it.ReservedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// setActive mirrors the seller visibility toggle for tests that need it.
func (f *fakeItemStore) setActive(itemID uint64, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.items[itemID]
	it.IsActive = active
	f.items[itemID] = it
}

func (f *fakeItemStore) status(itemID uint64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[itemID].Status
}

// ----- cart store -----

type fakeCartStore struct {
	mu    sync.Mutex
	carts map[uint64][]uint64 // buyer -> item IDs in insertion order
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{carts: make(map[uint64][]uint64)}
}

func (f *fakeCartStore) Add(_ context.Context, buyerID, itemID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.carts[buyerID] {
		if id == itemID {
			return nil // INSERT IGNORE
		}
	}
	f.carts[buyerID] = append(f.carts[buyerID], itemID)
	return nil
}

func (f *fakeCartStore) Remove(_ context.Context, buyerID, itemID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := f.carts[buyerID]
	for i, id := range rows {
		if id == itemID {
			f.carts[buyerID] = append(rows[:i:i], rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeCartStore) RemoveMany(ctx context.Context, buyerID uint64, itemIDs []uint64) error {
	for _, id := range itemIDs {
		if err := f.Remove(ctx, buyerID, id); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeCartStore) RemoveItemEverywhere(_ context.Context, itemID uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for buyer, rows := range f.carts {
		for i, id := range rows {
			if id == itemID {
				f.carts[buyer] = append(rows[:i:i], rows[i+1:]...)
				break
			}
		}
	}
	return nil
}

func (f *fakeCartStore) List(_ context.Context, buyerID uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, len(f.carts[buyerID]))
	copy(out, f.carts[buyerID])
	return out, nil
}

// ----- order store -----

type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[uint64]*model.Order
	nextID uint64
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[uint64]*model.Order), nextID: 1}
}

func (f *fakeOrderStore) Create(_ context.Context, o *model.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o.ID = f.nextID
	f.nextID++
	for i := range o.Lines {
		o.Lines[i].ID = f.nextID
		f.nextID++
		o.Lines[i].OrderID = o.ID
	}
	stored := *o
	stored.Lines = make([]model.OrderLine, len(o.Lines))
	copy(stored.Lines, o.Lines)
	f.orders[o.ID] = &stored
	return nil
}

func (f *fakeOrderStore) GetOrder(_ context.Context, orderID uint64) (model.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return model.Order{}, repository.ErrOrderNotFound
	}
	out := *o
	out.Lines = make([]model.OrderLine, len(o.Lines))
	copy(out.Lines, o.Lines)
	return out, nil
}

func (f *fakeOrderStore) GetLine(_ context.Context, orderID, itemID uint64) (model.OrderLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return model.OrderLine{}, repository.ErrLineNotFound
	}
	for _, ln := range o.Lines {
		if ln.ItemID == itemID {
			return ln, nil
		}
	}
	return model.OrderLine{}, repository.ErrLineNotFound
}

func (f *fakeOrderStore) MarkLine(_ context.Context, orderID, itemID uint64, from, to string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}
	for i := range o.Lines {
		if o.Lines[i].ItemID == itemID && o.Lines[i].Status == from {
			o.Lines[i].Status = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOrderStore) ReplaceLineCode(_ context.Context, orderID, itemID uint64, codeHash string, expiresAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}
	for i := range o.Lines {
		if o.Lines[i].ItemID == itemID && o.Lines[i].Status == model.LineStatusPending {
			o.Lines[i].CodeHash = codeHash
			o.Lines[i].CodeExpiresAt = expiresAt.UTC()
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOrderStore) ExpiredPending(_ context.Context, now time.Time) ([]model.OrderLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var lines []model.OrderLine
	for _, o := range f.orders {
		for _, ln := range o.Lines {
			if ln.Status == model.LineStatusPending && ln.CodeExpiresAt.Before(now) {
				lines = append(lines, ln)
			}
		}
	}
	return lines, nil
}

func (f *fakeOrderStore) HasPendingLine(_ context.Context, itemID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		for _, ln := range o.Lines {
			if ln.ItemID == itemID && ln.Status == model.LineStatusPending {
				return true, nil
			}
		}
	}
	return false, nil
}
