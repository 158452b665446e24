package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/model"
)

// ItemRepo is the inventory ledger.  It owns the authoritative status of
// every listed item and is the only code that writes items.status.  Every
// transition is a single conditional UPDATE keyed on the expected prior
// status, so concurrent callers observe compare-and-swap semantics from the
// database itself; no in-process lock is ever held across a call.
type ItemRepo struct {
	db *sql.DB
}

// NewItemRepo returns a new ItemRepo bound to the provided database.
func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

// DB exposes the underlying handle for callers that need to open a
// transaction spanning multiple repositories.
func (r *ItemRepo) DB() *sql.DB { return r.db }

const itemColumns = `id, seller_id, name, description, category, image,
	price_cents, is_active, status, reserved_by, reserved_at, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (model.Item, error) {
	var (
		it         model.Item
		reservedBy sql.NullInt64
		reservedAt sql.NullTime
	)
	err := row.Scan(&it.ID, &it.SellerID, &it.Name, &it.Description, &it.Category,
		&it.Image, &it.PriceCents, &it.IsActive, &it.Status,
		&reservedBy, &reservedAt, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return model.Item{}, err
	}
	if reservedBy.Valid {
		v := uint64(reservedBy.Int64)
		it.ReservedBy = &v
	}
	if reservedAt.Valid {
		t := reservedAt.Time
		it.ReservedAt = &t
	}
	return it, nil
}

// Create inserts a new listing.  New items start available and active.  The
// generated ID is populated on the provided model.
func (r *ItemRepo) Create(ctx context.Context, it *model.Item) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO items (seller_id, name, description, category, image, price_cents, is_active, status)
		 VALUES (?, ?, ?, ?, ?, ?, 1, 'available')`,
		it.SellerID, it.Name, it.Description, it.Category, it.Image, it.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	it.ID = uint64(id)
	it.IsActive = true
	it.Status = model.ItemStatusAvailable
	return nil
}

// GetByID fetches a single item.  Returns ErrItemNotFound when no row exists.
func (r *ItemRepo) GetByID(ctx context.Context, id uint64) (model.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ? LIMIT 1`, id)
	it, err := scanItem(row)
	if err == sql.ErrNoRows {
		return model.Item{}, ErrItemNotFound
	}
	return it, err
}

// ListAvailable returns items visible to browsing buyers: status available
// and is_active true, optionally filtered by category and a name substring.
// An empty query and empty category slice return the whole storefront.
func (r *ItemRepo) ListAvailable(ctx context.Context, query string, categories []string) ([]model.Item, error) {
	q := `SELECT ` + itemColumns + ` FROM items WHERE status = 'available' AND is_active = 1`
	args := make([]interface{}, 0, len(categories)+1)
	if query != "" {
		q += ` AND name LIKE ?`
		args = append(args, "%"+query+"%")
	}
	if len(categories) > 0 {
		q += ` AND category IN (?` + strings.Repeat(",?", len(categories)-1) + `)`
		for _, c := range categories {
			args = append(args, c)
		}
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListBySeller returns all of a seller's listings regardless of status, so a
// seller can see their unlisted and sold items too.
func (r *ItemRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE seller_id = ? ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// Update rewrites the seller-editable listing fields.  Only the owning
// seller may update, and only while the item is not reserved or sold; the
// status predicate keeps a buyer's hold from mutating underneath them.
func (r *ItemRepo) Update(ctx context.Context, it *model.Item, sellerID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category = ?, image = ?, price_cents = ?
		 WHERE id = ? AND seller_id = ? AND status = 'available'`,
		it.Name, it.Description, it.Category, it.Image, it.PriceCents, it.ID, sellerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.classifyOwnershipFailure(ctx, it.ID, sellerID)
	}
	return nil
}

// Delete removes a listing entirely.  Allowed only for the owning seller and
// only while available, so a held or sold item can never vanish from an
// order's history.
func (r *ItemRepo) Delete(ctx context.Context, itemID, sellerID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = ? AND seller_id = ? AND status = 'available'`,
		itemID, sellerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.classifyOwnershipFailure(ctx, itemID, sellerID)
	}
	return nil
}

// TryReserve atomically moves an item from available to reserved on behalf
// of a buyer.  Of N concurrent callers on the same item at most one can
// match the WHERE clause, which is the single synchronization point keeping
// two buyers from holding the same unit.  On failure the item is re-read
// once to report why: ErrItemNotFound, ErrSelfReservation or ErrNotAvailable.
func (r *ItemRepo) TryReserve(ctx context.Context, itemID, buyerID uint64, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = 'reserved', reserved_by = ?, reserved_at = ?
		 WHERE id = ? AND status = 'available' AND is_active = 1 AND seller_id <> ?`,
		buyerID, now.UTC(), itemID, buyerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	// Diagnostic read only; the reservation decision was already made above.
	var sellerID uint64
	var status string
	var active bool
	err = r.db.QueryRowContext(ctx,
		`SELECT seller_id, status, is_active FROM items WHERE id = ? LIMIT 1`, itemID).
		Scan(&sellerID, &status, &active)
	if err == sql.ErrNoRows {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}
	if sellerID == buyerID {
		return ErrSelfReservation
	}
	return ErrNotAvailable
}

// Release returns a reserved item to available, but only when the caller is
// the buyer holding it.  A release that matches nothing is a no-op, not an
// error: the hold may already have been severed by the sweeper or a
// checkout, and callers must not assume their release has effect.
func (r *ItemRepo) Release(ctx context.Context, itemID, buyerID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = 'available', reserved_by = NULL, reserved_at = NULL
		 WHERE id = ? AND status = 'reserved' AND reserved_by = ?`,
		itemID, buyerID)
	return err
}

// RefreshHold re-stamps a buyer's reservation with a new reserved_at.  It is
// the checkout-time claim on the hold: the conditional update both proves the
// buyer still holds the item and moves the hold out of any staleness window
// the sweeper is currently working from, so a hold that was idle a moment ago
// cannot be reclaimed out from under a landing checkout.  Zero rows means the
// hold is gone and the caller must fail closed.
func (r *ItemRepo) RefreshHold(ctx context.Context, itemID, buyerID uint64, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET reserved_at = ?
		 WHERE id = ? AND status = 'reserved' AND reserved_by = ?`,
		now.UTC(), itemID, buyerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotAvailable
	}
	return nil
}

// ExpireStale releases a reserved item only while its hold still predates the
// cutoff.  The staleness predicate repeats inside the UPDATE, so a hold that
// was refreshed after the sweeper's read survives: the decision is made where
// the write happens, not from the sweeper's earlier snapshot.  Reports
// whether the release happened.
func (r *ItemRepo) ExpireStale(ctx context.Context, itemID uint64, cutoff time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = 'available', reserved_by = NULL, reserved_at = NULL
		 WHERE id = ? AND status = 'reserved' AND reserved_at < ?`,
		itemID, cutoff.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ForceRelease returns an item to available regardless of which buyer holds
// it.  Used by line cancellation, where the order's buyer is authoritative,
// and by the expiry sweeper.  Already-released items are left untouched.
func (r *ItemRepo) ForceRelease(ctx context.Context, itemID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = 'available', reserved_by = NULL, reserved_at = NULL
		 WHERE id = ? AND status = 'reserved'`,
		itemID)
	return err
}

// Finalize marks an item sold after a verified handoff.  The predicate
// excludes only already-sold rows: if the sweeper released the hold between
// code verification and this call, the verified sale still wins.  The record
// is kept with its terminal status for order history and reviews.
func (r *ItemRepo) Finalize(ctx context.Context, itemID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET status = 'sold', reserved_by = NULL, reserved_at = NULL
		 WHERE id = ? AND status <> 'sold'`,
		itemID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`, itemID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrItemNotFound
		}
	}
	return nil
}

// SetActive toggles the seller-controlled visibility flag.  It never touches
// status: unlisting a reserved item does not evict the current holder, it
// only blocks new reservations, and the sweeper will not resurrect an
// unlisted item into public listings.
func (r *ItemRepo) SetActive(ctx context.Context, itemID, sellerID uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET is_active = ? WHERE id = ? AND seller_id = ?`,
		active, itemID, sellerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a wrong owner from a missing row or an unchanged flag.
		var owner uint64
		err := r.db.QueryRowContext(ctx,
			`SELECT seller_id FROM items WHERE id = ? LIMIT 1`, itemID).Scan(&owner)
		if err == sql.ErrNoRows {
			return ErrItemNotFound
		}
		if err != nil {
			return err
		}
		if owner != sellerID {
			return ErrUnauthorized
		}
	}
	return nil
}

// StaleReserved returns the IDs of items that have been reserved since
// before the cutoff.  The sweeper filters out items with a Pending order
// line before forcing their reservations open.
func (r *ItemRepo) StaleReserved(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM items WHERE status = 'reserved' AND reserved_at < ?`, cutoff.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// classifyOwnershipFailure explains a zero-row seller mutation: missing row,
// foreign owner, or a state that blocks the edit.
func (r *ItemRepo) classifyOwnershipFailure(ctx context.Context, itemID, sellerID uint64) error {
	var owner uint64
	var status string
	err := r.db.QueryRowContext(ctx,
		`SELECT seller_id, status FROM items WHERE id = ? LIMIT 1`, itemID).Scan(&owner, &status)
	if err == sql.ErrNoRows {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}
	if owner != sellerID {
		return ErrUnauthorized
	}
	return ErrNotAvailable
}
