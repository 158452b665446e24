package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/marketplace-reservation/internal/model"
)

// OrderRepo provides data access to orders and their line items.  Line
// status transitions are conditional updates guarded by the expected prior
// status, mirroring the item ledger: a handler racing the sweeper on the
// same line observes a serializable outcome, never a torn one.  All
// timestamps are stored in UTC.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create persists an order and its lines in one transaction and populates
// the generated IDs and creation timestamp on the provided model.  Lines
// must carry their code hash and deadline already; the plaintext codes never
// reach this layer.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (buyer_id, amount_cents) VALUES (?, ?)`,
		o.BuyerID, o.AmountCents)
	if err != nil {
		return err
	}
	oid, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(oid)

	if len(o.Lines) > 0 {
		q := `INSERT INTO order_lines (order_id, item_id, seller_id, price_cents, code_hash, code_expires_at, status) VALUES `
		args := make([]interface{}, 0, len(o.Lines)*7)
		for i := range o.Lines {
			if i > 0 {
				q += ","
			}
			q += "(?, ?, ?, ?, ?, ?, ?)"
			ln := &o.Lines[i]
			ln.OrderID = o.ID
			args = append(args, o.ID, ln.ItemID, ln.SellerID, ln.PriceCents,
				ln.CodeHash, ln.CodeExpiresAt.UTC(), model.LineStatusPending)
		}
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT created_at FROM orders WHERE id = ?`, o.ID).Scan(&o.CreatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

const lineColumns = `id, order_id, item_id, seller_id, price_cents, code_hash, code_expires_at, status, created_at`

func scanLine(row interface{ Scan(...any) error }) (model.OrderLine, error) {
	var ln model.OrderLine
	err := row.Scan(&ln.ID, &ln.OrderID, &ln.ItemID, &ln.SellerID, &ln.PriceCents,
		&ln.CodeHash, &ln.CodeExpiresAt, &ln.Status, &ln.CreatedAt)
	return ln, err
}

// GetOrder fetches an order header with all of its lines.  Returns
// ErrOrderNotFound when no row exists.
func (r *OrderRepo) GetOrder(ctx context.Context, orderID uint64) (model.Order, error) {
	var o model.Order
	err := r.db.QueryRowContext(ctx,
		`SELECT id, buyer_id, amount_cents, created_at FROM orders WHERE id = ? LIMIT 1`,
		orderID).Scan(&o.ID, &o.BuyerID, &o.AmountCents, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM order_lines WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return model.Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		ln, err := scanLine(rows)
		if err != nil {
			return model.Order{}, err
		}
		o.Lines = append(o.Lines, ln)
	}
	return o, rows.Err()
}

// GetLine fetches one line of an order.  Returns ErrLineNotFound when the
// order has no line for the item.
func (r *OrderRepo) GetLine(ctx context.Context, orderID, itemID uint64) (model.OrderLine, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+lineColumns+` FROM order_lines WHERE order_id = ? AND item_id = ? LIMIT 1`,
		orderID, itemID)
	ln, err := scanLine(row)
	if err == sql.ErrNoRows {
		return model.OrderLine{}, ErrLineNotFound
	}
	return ln, err
}

// MarkLine transitions a line from an expected prior status to a new one.
// It reports whether the transition happened; false means another caller
// (or the sweeper) resolved the line first.
func (r *OrderRepo) MarkLine(ctx context.Context, orderID, itemID uint64, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE order_lines SET status = ? WHERE order_id = ? AND item_id = ? AND status = ?`,
		to, orderID, itemID, from)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReplaceLineCode overwrites a Pending line's code hash and deadline.  The
// old hash is invalidated in the same statement that installs the new one.
// Reports false when the line is no longer Pending.
func (r *OrderRepo) ReplaceLineCode(ctx context.Context, orderID, itemID uint64, codeHash string, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE order_lines SET code_hash = ?, code_expires_at = ?
		 WHERE order_id = ? AND item_id = ? AND status = 'Pending'`,
		codeHash, expiresAt.UTC(), orderID, itemID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpiredPending returns every line still Pending whose code deadline has
// passed.  The sweeper resolves each through MarkLine, so a line that a
// buyer completes between this read and the sweep is left alone.
func (r *OrderRepo) ExpiredPending(ctx context.Context, now time.Time) ([]model.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM order_lines WHERE status = 'Pending' AND code_expires_at < ?`,
		now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []model.OrderLine
	for rows.Next() {
		ln, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}

// HasPendingLine reports whether any order currently holds a Pending line
// for the item.  Used by the sweeper to distinguish checked-out holds from
// idle cart holds.
func (r *OrderRepo) HasPendingLine(ctx context.Context, itemID uint64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM order_lines WHERE item_id = ? AND status = 'Pending')`,
		itemID).Scan(&exists)
	return exists, err
}

// ListByBuyer returns a buyer's orders, newest first, each with its lines.
// Responses built from this never include code hashes in plaintext form;
// the hash itself is harmless but handlers still omit it.
func (r *OrderRepo) ListByBuyer(ctx context.Context, buyerID uint64) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, buyer_id, amount_cents, created_at FROM orders
		 WHERE buyer_id = ? ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.BuyerID, &o.AmountCents, &o.CreatedAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range orders {
		lrows, err := r.db.QueryContext(ctx,
			`SELECT `+lineColumns+` FROM order_lines WHERE order_id = ? ORDER BY id`, orders[i].ID)
		if err != nil {
			return nil, err
		}
		for lrows.Next() {
			ln, err := scanLine(lrows)
			if err != nil {
				lrows.Close()
				return nil, err
			}
			orders[i].Lines = append(orders[i].Lines, ln)
		}
		if err := lrows.Err(); err != nil {
			lrows.Close()
			return nil, err
		}
		lrows.Close()
	}
	return orders, nil
}

// ListBySeller returns the lines addressed to a seller across all orders,
// newest first, so a seller can see which handoffs are awaiting a code.
func (r *OrderRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]model.OrderLine, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+lineColumns+` FROM order_lines WHERE seller_id = ? ORDER BY created_at DESC`,
		sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []model.OrderLine
	for rows.Next() {
		ln, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, ln)
	}
	return lines, rows.Err()
}
