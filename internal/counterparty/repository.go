package counterparty

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Querier is the pgx surface used by transaction-scoped writes.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists counterparty aggregates in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertOnOrder folds one committed order into the aggregate. The upsert
// is a single statement so totals stay correct under concurrent orders
// for the same counterparty, and it runs on the caller's transaction so a
// rolled-back order contributes nothing.
func UpsertOnOrder(ctx context.Context, q Querier, p UpsertParams) error {
	if p.TenantID == 0 || p.Name == "" {
		return errors.New("counterparty: tenant and name required")
	}
	const query = `
		INSERT INTO counterparties
			(tenant_id, kind, name, email, phone, address, tax_id,
			 total_amount, document_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, NOW(), NOW())
		ON CONFLICT (tenant_id, kind, name)
		DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), counterparties.email),
			phone = COALESCE(NULLIF(EXCLUDED.phone, ''), counterparties.phone),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), counterparties.address),
			tax_id = COALESCE(NULLIF(EXCLUDED.tax_id, ''), counterparties.tax_id),
			total_amount = counterparties.total_amount + EXCLUDED.total_amount,
			document_count = counterparties.document_count + 1,
			updated_at = NOW()`
	_, err := q.Exec(ctx, query,
		p.TenantID, string(p.Kind), p.Name,
		p.Contact.Email, p.Contact.Phone, p.Contact.Address, p.Contact.TaxID,
		p.Amount.String(),
	)
	if err != nil {
		return fmt.Errorf("counterparty: upsert %s %q: %w", p.Kind, p.Name, err)
	}
	return nil
}

const columns = `id, tenant_id, kind, name, COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(address, ''), COALESCE(tax_id, ''), total_amount, document_count, created_at, updated_at`

// GetByName returns a single aggregate by its natural key.
func (r *Repository) GetByName(ctx context.Context, tenantID int64, kind Kind, name string) (Counterparty, error) {
	query := `SELECT ` + columns + ` FROM counterparties
		WHERE tenant_id = $1 AND kind = $2 AND name = $3`
	return scan(r.pool.QueryRow(ctx, query, tenantID, string(kind), name))
}

// List returns the tenant's aggregates of one kind, biggest spenders first.
func (r *Repository) List(ctx context.Context, tenantID int64, kind Kind) ([]Counterparty, error) {
	query := `SELECT ` + columns + ` FROM counterparties
		WHERE tenant_id = $1 AND kind = $2
		ORDER BY total_amount DESC, name`
	rows, err := r.pool.Query(ctx, query, tenantID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("counterparty: list: %w", err)
	}
	defer rows.Close()

	var result []Counterparty
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scan(row pgx.Row) (Counterparty, error) {
	var c Counterparty
	var kind string
	var total pgtype.Numeric
	err := row.Scan(&c.ID, &c.TenantID, &kind, &c.Name, &c.Email, &c.Phone,
		&c.Address, &c.TaxID, &total, &c.DocumentCount, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Counterparty{}, ErrNotFound
	}
	if err != nil {
		return Counterparty{}, fmt.Errorf("counterparty: scan: %w", err)
	}
	c.Kind = Kind(kind)
	if total.Valid && total.Int != nil {
		c.TotalAmount = decimal.NewFromBigInt(total.Int, total.Exp)
	}
	return c, nil
}
