package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/groweasy/groweasy/internal/counterparty"
	"github.com/groweasy/groweasy/internal/inventory"
	"github.com/groweasy/groweasy/internal/platform/db"
	"github.com/groweasy/groweasy/internal/sequence"
)

// ErrNotFound indicates a missing order row.
var ErrNotFound = errors.New("orders: record not found")

// TxRepository exposes every write the processor performs, bound to one
// transaction. The whole order — number, locks, stock, document,
// counterparty — commits or rolls back together through it.
type TxRepository interface {
	NextDocumentNumber(ctx context.Context, tenantID int64, docType sequence.DocType) (string, error)
	LockProducts(ctx context.Context, tenantID int64, ids []int64) (map[int64]inventory.LockedProduct, error)
	ApplyDelta(ctx context.Context, p inventory.DeltaParams) (int64, error)
	InsertOrder(ctx context.Context, doc Document) (int64, error)
	UpsertCounterparty(ctx context.Context, p counterparty.UpsertParams) error
}

// RepositoryPort abstracts repository usage for the processor.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CurrentSequence(ctx context.Context, tenantID int64, docType sequence.DocType) (int64, error)
}

// Repository is the PostgreSQL implementation. Inside a transaction it
// stitches the sequence store, the inventory ledger primitives and the
// counterparty upsert onto the same pgx.Tx.
type Repository struct {
	pool *pgxpool.Pool
	seq  *sequence.Store
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool, seq *sequence.Store) *Repository {
	return &Repository{pool: pool, seq: seq}
}

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Store
}

// WithTx wraps the callback in a single database transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

func (t *txRepo) NextDocumentNumber(ctx context.Context, tenantID int64, docType sequence.DocType) (string, error) {
	return t.seq.NextNumber(ctx, t.tx, tenantID, docType)
}

func (t *txRepo) LockProducts(ctx context.Context, tenantID int64, ids []int64) (map[int64]inventory.LockedProduct, error) {
	return inventory.LockProducts(ctx, t.tx, tenantID, ids)
}

func (t *txRepo) ApplyDelta(ctx context.Context, p inventory.DeltaParams) (int64, error) {
	return inventory.ApplyDelta(ctx, t.tx, p)
}

func (t *txRepo) InsertOrder(ctx context.Context, doc Document) (int64, error) {
	const query = `
		INSERT INTO orders
			(tenant_id, document_type, document_number, counterparty_name,
			 document_date, due_date, grand_total, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id`
	var dueDate pgtype.Date
	if doc.DueDate != nil {
		dueDate = pgtype.Date{Time: *doc.DueDate, Valid: true}
	}
	var id int64
	err := t.tx.QueryRow(ctx, query,
		doc.TenantID, string(doc.DocumentType), doc.DocumentNumber, doc.CounterpartyName,
		pgtype.Date{Time: doc.DocumentDate, Valid: true}, dueDate,
		doc.GrandTotal.String(), doc.Status, doc.Payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("orders: insert order: %w", err)
	}
	return id, nil
}

func (t *txRepo) UpsertCounterparty(ctx context.Context, p counterparty.UpsertParams) error {
	return counterparty.UpsertOnOrder(ctx, t.tx, p)
}

// CurrentSequence exposes the read-only counter value for display.
func (r *Repository) CurrentSequence(ctx context.Context, tenantID int64, docType sequence.DocType) (int64, error) {
	return r.seq.Current(ctx, r.pool, tenantID, docType)
}

const documentColumns = `id, tenant_id, document_type, document_number, counterparty_name,
	document_date, due_date, grand_total, status, payload, created_at`

// GetByNumber returns one order by its tenant-scoped document number.
func (r *Repository) GetByNumber(ctx context.Context, tenantID int64, docType sequence.DocType, number string) (Document, error) {
	query := `SELECT ` + documentColumns + ` FROM orders
		WHERE tenant_id = $1 AND document_type = $2 AND document_number = $3`
	return scanDocument(r.pool.QueryRow(ctx, query, tenantID, string(docType), number))
}

// List returns the tenant's orders, newest first.
func (r *Repository) List(ctx context.Context, tenantID int64, filter ListFilter) ([]Document, error) {
	query := `SELECT ` + documentColumns + ` FROM orders WHERE tenant_id = $1`
	args := []any{tenantID}
	argPos := 2

	if filter.DocumentType != "" {
		query += fmt.Sprintf(" AND document_type = $%d", argPos)
		args = append(args, string(filter.DocumentType))
		argPos++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}
	if filter.DateFrom != nil {
		query += fmt.Sprintf(" AND document_date >= $%d", argPos)
		args = append(args, *filter.DateFrom)
		argPos++
	}
	if filter.DateTo != nil {
		query += fmt.Sprintf(" AND document_date <= $%d", argPos)
		args = append(args, *filter.DateTo)
		argPos++
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row pgx.Row) (Document, error) {
	var doc Document
	var docType string
	var docDate pgtype.Date
	var dueDate pgtype.Date
	var total pgtype.Numeric
	err := row.Scan(&doc.ID, &doc.TenantID, &docType, &doc.DocumentNumber, &doc.CounterpartyName,
		&docDate, &dueDate, &total, &doc.Status, &doc.Payload, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("orders: scan order: %w", err)
	}
	doc.DocumentType = sequence.DocType(docType)
	if docDate.Valid {
		doc.DocumentDate = docDate.Time
	}
	if dueDate.Valid {
		d := dueDate.Time
		doc.DueDate = &d
	}
	if total.Valid && total.Int != nil {
		doc.GrandTotal = decimal.NewFromBigInt(total.Int, total.Exp)
	}
	return doc, nil
}
