package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/groweasy/groweasy/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxLedger exposes the lock-and-mutate primitives bound to one
// transaction. Locks acquired through it are released at commit/rollback.
type TxLedger interface {
	LockProducts(ctx context.Context, tenantID int64, ids []int64) (map[int64]LockedProduct, error)
	ApplyDelta(ctx context.Context, p DeltaParams) (int64, error)
	SetStock(ctx context.Context, tenantID, productID, target int64, notes string) (int64, error)
}

type txLedger struct {
	q Querier
}

func (t *txLedger) LockProducts(ctx context.Context, tenantID int64, ids []int64) (map[int64]LockedProduct, error) {
	return LockProducts(ctx, t.q, tenantID, ids)
}

func (t *txLedger) ApplyDelta(ctx context.Context, p DeltaParams) (int64, error) {
	return ApplyDelta(ctx, t.q, p)
}

func (t *txLedger) SetStock(ctx context.Context, tenantID, productID, target int64, notes string) (int64, error) {
	return SetStock(ctx, t.q, tenantID, productID, target, notes)
}

// WithTx runs the callback against a transaction-bound ledger.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxLedger) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txLedger{q: tx})
	})
}

const productColumns = `id, tenant_id, name, COALESCE(sku, ''), COALESCE(category, ''), COALESCE(description, ''),
	current_stock, min_stock_level, cost_price, selling_price, is_active, created_at, updated_at`

// CreateProduct inserts the product and, when opening stock is positive,
// records it as an initial movement in the same transaction so the
// reconciliation invariant holds from the very first row.
func (r *Repository) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	var created Product
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO inventory_items
				(tenant_id, name, sku, category, description, current_stock,
				 min_stock_level, cost_price, selling_price, is_active, created_at, updated_at)
			VALUES ($1, $2, NULLIF($3, ''), $4, $5, 0, $6, $7, $8, TRUE, NOW(), NOW())
			RETURNING id, created_at, updated_at`
		err := tx.QueryRow(ctx, query,
			input.TenantID, input.Name, input.SKU, input.Category, input.Description,
			input.MinStockLevel, input.CostPrice.String(), input.SellingPrice.String(),
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicateSKU
			}
			return fmt.Errorf("inventory: insert product: %w", err)
		}

		created.TenantID = input.TenantID
		created.Name = input.Name
		created.SKU = input.SKU
		created.Category = input.Category
		created.Description = input.Description
		created.MinStockLevel = input.MinStockLevel
		created.CostPrice = input.CostPrice
		created.SellingPrice = input.SellingPrice
		created.IsActive = true

		if input.OpeningStock > 0 {
			newStock, err := ApplyDelta(ctx, tx, DeltaParams{
				TenantID:  input.TenantID,
				ProductID: created.ID,
				Quantity:  input.OpeningStock,
				Type:      MovementInitial,
				Notes:     "Initial stock",
			})
			if err != nil {
				return err
			}
			created.CurrentStock = newStock
		}
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	return created, nil
}

// GetProduct returns one product for the tenant.
func (r *Repository) GetProduct(ctx context.Context, tenantID, id int64) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM inventory_items WHERE tenant_id = $1 AND id = $2`
	return r.scanProduct(r.pool.QueryRow(ctx, query, tenantID, id))
}

// GetProductBySKU looks up an active product by SKU.
func (r *Repository) GetProductBySKU(ctx context.Context, tenantID int64, sku string) (Product, error) {
	query := `SELECT ` + productColumns + ` FROM inventory_items
		WHERE tenant_id = $1 AND sku = $2 AND is_active = TRUE`
	return r.scanProduct(r.pool.QueryRow(ctx, query, tenantID, sku))
}

// ListProducts returns the tenant's products ordered by name. Inactive
// products are included only when activeOnly is false.
func (r *Repository) ListProducts(ctx context.Context, tenantID int64, activeOnly bool) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM inventory_items WHERE tenant_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := r.scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// UpdateProductInput carries optional field updates. Stock is absent on
// purpose: quantity changes go through the ledger primitives.
type UpdateProductInput struct {
	Name          *string
	SKU           *string
	Category      *string
	Description   *string
	MinStockLevel *int64
	CostPrice     *decimal.Decimal
	SellingPrice  *decimal.Decimal
}

// UpdateProduct applies the provided fields.
func (r *Repository) UpdateProduct(ctx context.Context, tenantID, id int64, input UpdateProductInput) error {
	query := "UPDATE inventory_items SET updated_at = NOW()"
	var args []any
	argPos := 1

	add := func(column string, value any) {
		query += fmt.Sprintf(", %s = $%d", column, argPos)
		args = append(args, value)
		argPos++
	}
	if input.Name != nil {
		add("name", *input.Name)
	}
	if input.SKU != nil {
		add("sku", *input.SKU)
	}
	if input.Category != nil {
		add("category", *input.Category)
	}
	if input.Description != nil {
		add("description", *input.Description)
	}
	if input.MinStockLevel != nil {
		add("min_stock_level", *input.MinStockLevel)
	}
	if input.CostPrice != nil {
		add("cost_price", input.CostPrice.String())
	}
	if input.SellingPrice != nil {
		add("selling_price", input.SellingPrice.String())
	}

	query += fmt.Sprintf(" WHERE tenant_id = $%d AND id = $%d", argPos, argPos+1)
	args = append(args, tenantID, id)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateSKU
		}
		return fmt.Errorf("inventory: update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateProduct soft-deletes a product. Movement history stays intact.
func (r *Repository) DeactivateProduct(ctx context.Context, tenantID, id int64) error {
	const query = `UPDATE inventory_items SET is_active = FALSE, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2 AND is_active = TRUE`
	tag, err := r.pool.Exec(ctx, query, tenantID, id)
	if err != nil {
		return fmt.Errorf("inventory: deactivate product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMovements reads the append-only movement log, newest first.
func (r *Repository) ListMovements(ctx context.Context, tenantID int64, filter MovementFilter) ([]Movement, error) {
	query := `SELECT id, tenant_id, product_id, movement_type, quantity,
		COALESCE(reference_id, ''), COALESCE(notes, ''), created_at
		FROM stock_movements WHERE tenant_id = $1`
	args := []any{tenantID}
	argPos := 2

	if filter.ProductID != 0 {
		query += fmt.Sprintf(" AND product_id = $%d", argPos)
		args = append(args, filter.ProductID)
		argPos++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND movement_type = $%d", argPos)
		args = append(args, string(filter.Type))
		argPos++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: list movements: %w", err)
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var movementType string
		if err := rows.Scan(&m.ID, &m.TenantID, &m.ProductID, &movementType,
			&m.Quantity, &m.ReferenceID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("inventory: scan movement: %w", err)
		}
		m.Type = MovementType(movementType)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// GetLowStockAlerts returns the tenant's unresolved alerts joined with
// product data for the dashboard.
func (r *Repository) GetLowStockAlerts(ctx context.Context, tenantID int64) ([]LowStockAlert, error) {
	const query = `
		SELECT a.product_id, i.name, i.current_stock, i.min_stock_level, a.alert_type, a.message
		FROM stock_alerts a
		JOIN inventory_items i ON i.id = a.product_id AND i.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1 AND a.is_resolved = FALSE
		ORDER BY i.current_stock, i.name`
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("inventory: list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []LowStockAlert
	for rows.Next() {
		var a LowStockAlert
		var alertType string
		if err := rows.Scan(&a.ProductID, &a.ProductName, &a.CurrentStock,
			&a.MinStockLevel, &alertType, &a.Message); err != nil {
			return nil, fmt.Errorf("inventory: scan alert: %w", err)
		}
		a.AlertType = AlertType(alertType)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// ResolveAlert marks an alert handled without waiting for the next stock
// mutation to clear it.
func (r *Repository) ResolveAlert(ctx context.Context, tenantID, alertID int64) error {
	const query = `UPDATE stock_alerts SET is_resolved = TRUE
		WHERE tenant_id = $1 AND id = $2 AND is_resolved = FALSE`
	tag, err := r.pool.Exec(ctx, query, tenantID, alertID)
	if err != nil {
		return fmt.Errorf("inventory: resolve alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanProduct(row pgx.Row) (Product, error) {
	var p Product
	var cost, selling pgtype.Numeric
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.SKU, &p.Category, &p.Description,
		&p.CurrentStock, &p.MinStockLevel, &cost, &selling, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("inventory: scan product: %w", err)
	}
	p.CostPrice = numericToDecimal(cost)
	p.SellingPrice = numericToDecimal(selling)
	return p, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
