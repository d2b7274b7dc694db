package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the pgx surface the ledger primitives run against. Both
// *pgxpool.Pool and pgx.Tx satisfy it; the locking primitives only make
// sense on a pgx.Tx because row locks live for the transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// LockProducts acquires FOR UPDATE locks on the named product rows within
// the caller's transaction. Rows are locked in ascending id order so two
// orders sharing products in a different line order cannot deadlock.
// Missing or inactive products fail with ProductNotFoundError.
func LockProducts(ctx context.Context, q Querier, tenantID int64, ids []int64) (map[int64]LockedProduct, error) {
	if len(ids) == 0 {
		return map[int64]LockedProduct{}, nil
	}
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	const query = `
		SELECT id, name, current_stock, min_stock_level, is_active
		FROM inventory_items
		WHERE tenant_id = $1 AND id = ANY($2)
		ORDER BY id
		FOR UPDATE`
	rows, err := q.Query(ctx, query, tenantID, unique)
	if err != nil {
		return nil, fmt.Errorf("inventory: lock products: %w", err)
	}
	defer rows.Close()

	locked := make(map[int64]LockedProduct, len(unique))
	for rows.Next() {
		var p LockedProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.CurrentStock, &p.MinStockLevel, &p.IsActive); err != nil {
			return nil, fmt.Errorf("inventory: scan locked product: %w", err)
		}
		locked[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inventory: lock products: %w", err)
	}

	for _, id := range unique {
		p, ok := locked[id]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}
		if !p.IsActive {
			return nil, &ProductNotFoundError{ProductID: id, Name: p.Name, Inactive: true}
		}
	}
	return locked, nil
}

// ValidateSale checks each demand against the locked snapshots and fails
// fast on the first shortfall. Callers must have acquired the locks in the
// same transaction, which is what makes check-then-act safe here.
func ValidateSale(locked map[int64]LockedProduct, demands []Demand) error {
	for _, d := range demands {
		p, ok := locked[d.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: d.ProductID}
		}
		if d.Quantity > p.CurrentStock {
			return &InsufficientStockError{
				ProductName: p.Name,
				Requested:   d.Quantity,
				Available:   p.CurrentStock,
			}
		}
	}
	return nil
}

// ApplyDelta mutates a product's stock by a signed quantity, appends the
// movement record and recomputes the product's alert, all against the
// caller's transaction. The caller must already hold the row lock. This is
// the only write path for current_stock; absolute sets go through SetStock
// so the delta is derived under the same lock.
func ApplyDelta(ctx context.Context, q Querier, p DeltaParams) (int64, error) {
	if !p.Type.Valid() {
		return 0, fmt.Errorf("%w: type %q", ErrInvalidMovement, p.Type)
	}
	if p.Quantity != 0 && !p.Type.AllowsSign(p.Quantity) {
		return 0, fmt.Errorf("%w: %s delta %d has wrong sign", ErrInvalidMovement, p.Type, p.Quantity)
	}

	const readQuery = `
		SELECT name, current_stock, min_stock_level
		FROM inventory_items
		WHERE tenant_id = $1 AND id = $2`
	var (
		name     string
		current  int64
		minLevel int64
	)
	err := q.QueryRow(ctx, readQuery, p.TenantID, p.ProductID).Scan(&name, &current, &minLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, &ProductNotFoundError{ProductID: p.ProductID}
	}
	if err != nil {
		return 0, fmt.Errorf("inventory: read stock: %w", err)
	}

	if p.Quantity == 0 {
		if !p.ForceAudit {
			return current, nil
		}
		// Audit touch: movement only, stock and alerts untouched.
		if err := insertMovement(ctx, q, p); err != nil {
			return 0, err
		}
		return current, nil
	}

	newStock := current + p.Quantity
	if newStock < 0 {
		return 0, fmt.Errorf("%w: product %q stock %d delta %d", ErrNegativeStock, name, current, p.Quantity)
	}

	const updateQuery = `
		UPDATE inventory_items
		SET current_stock = $1, updated_at = NOW()
		WHERE tenant_id = $2 AND id = $3`
	if _, err := q.Exec(ctx, updateQuery, newStock, p.TenantID, p.ProductID); err != nil {
		return 0, fmt.Errorf("inventory: update stock: %w", err)
	}
	if err := insertMovement(ctx, q, p); err != nil {
		return 0, err
	}
	if err := refreshAlert(ctx, q, p.TenantID, p.ProductID, name, newStock, minLevel); err != nil {
		return 0, err
	}
	return newStock, nil
}

// SetStock sets an absolute quantity by locking the row and applying the
// difference as an adjustment, avoiding the lost update a blind write
// would allow.
func SetStock(ctx context.Context, q Querier, tenantID, productID, target int64, notes string) (int64, error) {
	if target < 0 {
		return 0, ErrNegativeStock
	}
	locked, err := LockProducts(ctx, q, tenantID, []int64{productID})
	if err != nil {
		return 0, err
	}
	current := locked[productID].CurrentStock
	return ApplyDelta(ctx, q, DeltaParams{
		TenantID:  tenantID,
		ProductID: productID,
		Quantity:  target - current,
		Type:      MovementAdjustment,
		Notes:     notes,
	})
}

func insertMovement(ctx context.Context, q Querier, p DeltaParams) error {
	const query = `
		INSERT INTO stock_movements (tenant_id, product_id, movement_type, quantity, reference_id, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`
	_, err := q.Exec(ctx, query, p.TenantID, p.ProductID, string(p.Type), p.Quantity, p.ReferenceID, p.Notes)
	if err != nil {
		return fmt.Errorf("inventory: insert movement: %w", err)
	}
	return nil
}

// refreshAlert clears the product's unresolved alert and recreates it when
// the new stock level warrants one. Alerts are recomputed only here, on
// each stock mutation.
func refreshAlert(ctx context.Context, q Querier, tenantID, productID int64, name string, newStock, minLevel int64) error {
	const clearQuery = `
		DELETE FROM stock_alerts
		WHERE tenant_id = $1 AND product_id = $2 AND is_resolved = FALSE`
	if _, err := q.Exec(ctx, clearQuery, tenantID, productID); err != nil {
		return fmt.Errorf("inventory: clear alerts: %w", err)
	}

	var (
		alertType AlertType
		message   string
	)
	switch {
	case newStock == 0:
		alertType = AlertOutOfStock
		message = fmt.Sprintf("%s is out of stock", name)
	case newStock <= minLevel:
		alertType = AlertLowStock
		message = fmt.Sprintf("%s has %d units left (min: %d)", name, newStock, minLevel)
	default:
		return nil
	}

	const insertQuery = `
		INSERT INTO stock_alerts (tenant_id, product_id, alert_type, message, is_resolved, created_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW())`
	if _, err := q.Exec(ctx, insertQuery, tenantID, productID, string(alertType), message); err != nil {
		return fmt.Errorf("inventory: insert alert: %w", err)
	}
	return nil
}
