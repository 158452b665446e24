package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/clock"
	"github.com/iliyamo/marketplace-reservation/internal/model"
	"github.com/iliyamo/marketplace-reservation/internal/otp"
	"github.com/iliyamo/marketplace-reservation/internal/repository"
)

// DefaultCodeTTL is how long a freshly minted handoff code stays verifiable.
const DefaultCodeTTL = 10 * time.Minute

// TransactionService converts a buyer's held items into an order and drives
// each line to its terminal state.  It issues one hashed code per line item;
// the plaintext codes leave this service exactly once, in the Checkout
// return value, and are never stored or retrievable afterwards.
type TransactionService struct {
	items   ItemStore
	carts   CartStore
	orders  OrderStore
	codes   otp.Source
	clock   clock.Clock
	codeTTL time.Duration
}

// NewTransactionService constructs a TransactionService.
func NewTransactionService(items ItemStore, carts CartStore, orders OrderStore, codes otp.Source, clk clock.Clock, opts ...TransactionOption) *TransactionService {
	s := &TransactionService{
		items:   items,
		carts:   carts,
		orders:  orders,
		codes:   codes,
		clock:   clk,
		codeTTL: DefaultCodeTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TransactionOption customizes a TransactionService.
type TransactionOption func(*TransactionService)

// WithCodeTTL overrides the default lifetime of handoff codes.
func WithCodeTTL(d time.Duration) TransactionOption {
	return func(s *TransactionService) {
		if d > 0 {
			s.codeTTL = d
		}
	}
}

// CheckoutResult carries the created order and the plaintext code for each
// line, keyed by item ID.  This is the single disclosure of the codes.
type CheckoutResult struct {
	Order model.Order
	Codes map[uint64]string
}

// Checkout turns the buyer's held items into an order with one Pending line
// per item.  Every hold is re-claimed through the ledger at this moment: a
// conditional update re-stamps reserved_at for this buyer, which both proves
// the hold still exists — it could have been force-expired by the sweeper
// since cart-add — and lifts it out of any staleness window a concurrent
// sweep is working from.  The whole operation fails closed with
// ErrSomeItemsUnavailable if any claim misses.  Items stay reserved: only a
// verified code finalizes the sale.
func (s *TransactionService) Checkout(ctx context.Context, buyerID uint64, itemIDs []uint64) (CheckoutResult, error) {
	if len(itemIDs) == 0 {
		return CheckoutResult{}, repository.ErrSomeItemsUnavailable
	}
	now := s.clock.Now()

	loaded := make([]model.Item, 0, len(itemIDs))
	seen := make(map[uint64]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		it, err := s.items.GetByID(ctx, id)
		if errors.Is(err, repository.ErrItemNotFound) {
			return CheckoutResult{}, repository.ErrSomeItemsUnavailable
		}
		if err != nil {
			return CheckoutResult{}, err
		}
		// The claim, not this read, decides whether the hold is live.
		if err := s.items.RefreshHold(ctx, id, buyerID, now); err != nil {
			if errors.Is(err, repository.ErrNotAvailable) {
				return CheckoutResult{}, repository.ErrSomeItemsUnavailable
			}
			return CheckoutResult{}, err
		}
		loaded = append(loaded, it)
	}

	order := model.Order{BuyerID: buyerID}
	plain := make(map[uint64]string, len(loaded))
	expiresAt := now.Add(s.codeTTL)
	for _, it := range loaded {
		code, err := s.codes.Generate()
		if err != nil {
			return CheckoutResult{}, err
		}
		hash, err := otp.Hash(code)
		if err != nil {
			return CheckoutResult{}, err
		}
		plain[it.ID] = code
		order.AmountCents += uint64(it.PriceCents)
		order.Lines = append(order.Lines, model.OrderLine{
			ItemID:        it.ID,
			SellerID:      it.SellerID,
			PriceCents:    it.PriceCents,
			CodeHash:      hash,
			CodeExpiresAt: expiresAt,
			Status:        model.LineStatusPending,
		})
	}

	if err := s.orders.Create(ctx, &order); err != nil {
		return CheckoutResult{}, err
	}

	ids := make([]uint64, 0, len(loaded))
	for _, it := range loaded {
		ids = append(ids, it.ID)
	}
	if err := s.carts.RemoveMany(ctx, buyerID, ids); err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{Order: order, Codes: plain}, nil
}

// VerifyAndComplete checks a presented handoff code against the line's
// stored hash.  A mismatch returns ErrInvalidCode with no side effects, so
// mistyped codes can simply be re-entered; a code past its deadline is
// rejected with ErrCodeExpired even if the sweeper has not visited yet.  On a
// match the line moves Pending -> Completed through a conditional update and
// the item is finalized as sold; a concurrent resolution surfaces as
// ErrAlreadyResolved.
func (s *TransactionService) VerifyAndComplete(ctx context.Context, orderID, itemID uint64, presentedCode string) (model.OrderLine, error) {
	line, err := s.orders.GetLine(ctx, orderID, itemID)
	if err != nil {
		return model.OrderLine{}, err
	}
	if line.Status != model.LineStatusPending {
		return model.OrderLine{}, repository.ErrAlreadyResolved
	}
	if s.clock.Now().After(line.CodeExpiresAt) {
		return model.OrderLine{}, repository.ErrCodeExpired
	}
	if !otp.Verify(line.CodeHash, presentedCode) {
		return model.OrderLine{}, repository.ErrInvalidCode
	}
	ok, err := s.orders.MarkLine(ctx, orderID, itemID, model.LineStatusPending, model.LineStatusCompleted)
	if err != nil {
		return model.OrderLine{}, err
	}
	if !ok {
		return model.OrderLine{}, repository.ErrAlreadyResolved
	}
	if err := s.items.Finalize(ctx, itemID); err != nil {
		return model.OrderLine{}, err
	}
	line.Status = model.LineStatusCompleted
	return line, nil
}

// CancelLine lets the order's buyer abandon a Pending line.  The line moves
// to Cancelled and the item is force-released back to available: the buyer
// is authoritative here, so the ledger's reservedBy check is bypassed.
func (s *TransactionService) CancelLine(ctx context.Context, orderID, itemID, requestingBuyerID uint64) error {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.BuyerID != requestingBuyerID {
		return repository.ErrUnauthorized
	}
	ok, err := s.orders.MarkLine(ctx, orderID, itemID, model.LineStatusPending, model.LineStatusCancelled)
	if err != nil {
		return err
	}
	if !ok {
		// Either there is no such line or it already resolved.
		if _, err := s.orders.GetLine(ctx, orderID, itemID); err != nil {
			return err
		}
		return repository.ErrNotPending
	}
	return s.items.ForceRelease(ctx, itemID)
}

// RegenerateCode mints a replacement code for a Pending line whose current
// code has expired.  Regenerating while the code is still live is rejected
// with ErrCodeStillValid to stop churn and guessing amplification; resolved
// lines reject with ErrAlreadyCompleted or ErrAlreadyResolved.  The old hash
// is invalidated the instant the new one lands.
func (s *TransactionService) RegenerateCode(ctx context.Context, orderID, itemID uint64) (string, error) {
	line, err := s.orders.GetLine(ctx, orderID, itemID)
	if err != nil {
		return "", err
	}
	switch line.Status {
	case model.LineStatusPending:
	case model.LineStatusCompleted:
		return "", repository.ErrAlreadyCompleted
	default:
		return "", repository.ErrAlreadyResolved
	}
	now := s.clock.Now()
	if now.Before(line.CodeExpiresAt) {
		return "", repository.ErrCodeStillValid
	}
	code, err := s.codes.Generate()
	if err != nil {
		return "", err
	}
	hash, err := otp.Hash(code)
	if err != nil {
		return "", err
	}
	ok, err := s.orders.ReplaceLineCode(ctx, orderID, itemID, hash, now.Add(s.codeTTL))
	if err != nil {
		return "", err
	}
	if !ok {
		return "", repository.ErrAlreadyResolved
	}
	return code, nil
}
