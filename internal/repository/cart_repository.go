package repository

import (
	"context"
	"database/sql"
	"strings"
)

// CartRepo stores cart membership: which item IDs a buyer currently intends
// to check out.  The cart owns no authority over item status — it is a view
// over reservations, and a cart row is only meaningful while the referenced
// item is still reserved by the same buyer.  Rows that outlive their hold
// are dropped silently the next time the cart is read.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a new CartRepo bound to the provided database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

// Add records an item in the buyer's cart.  The (buyer_id, item_id) pair is
// unique; inserting an existing pair is ignored, since the reservation gate
// has already rejected double-adds upstream.
func (r *CartRepo) Add(ctx context.Context, buyerID, itemID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT IGNORE INTO cart_items (buyer_id, item_id) VALUES (?, ?)`,
		buyerID, itemID)
	return err
}

// Remove deletes a single cart row.  Removing an absent row is a no-op.
func (r *CartRepo) Remove(ctx context.Context, buyerID, itemID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE buyer_id = ? AND item_id = ?`,
		buyerID, itemID)
	return err
}

// RemoveMany clears several items from a buyer's cart in one statement.
// Used by checkout after the order is persisted.
func (r *CartRepo) RemoveMany(ctx context.Context, buyerID uint64, itemIDs []uint64) error {
	if len(itemIDs) == 0 {
		return nil
	}
	q := `DELETE FROM cart_items WHERE buyer_id = ? AND item_id IN (?` +
		strings.Repeat(",?", len(itemIDs)-1) + `)`
	args := make([]interface{}, 0, len(itemIDs)+1)
	args = append(args, buyerID)
	for _, id := range itemIDs {
		args = append(args, id)
	}
	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

// RemoveItemEverywhere deletes every cart row referencing an item, whichever
// buyer holds it.  The sweeper calls this when it reclaims a stale hold so
// the abandoned cart does not keep pointing at a released item.
func (r *CartRepo) RemoveItemEverywhere(ctx context.Context, itemID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE item_id = ?`, itemID)
	return err
}

// List returns the item IDs currently in a buyer's cart, oldest first.
func (r *CartRepo) List(ctx context.Context, buyerID uint64) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT item_id FROM cart_items WHERE buyer_id = ? ORDER BY added_at`, buyerID)
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
