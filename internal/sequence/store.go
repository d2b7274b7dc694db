package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the minimal pgx surface the store needs. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so callers decide whether Next participates in a
// larger transaction. The order processor always passes its own tx: an
// aborted order then rolls the increment back together with everything
// else, and only a genuine post-assignment failure burns a number.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrUnknownDocType rejects doc types outside the closed set.
var ErrUnknownDocType = errors.New("sequence: unknown doc type")

// Store issues strictly increasing per-tenant document numbers backed by
// the document_sequences table. Allocation is one atomic upsert; numbers
// are never reused, gaps from aborted transactions are accepted.
type Store struct{}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{}
}

// Next atomically allocates the next value for (tenant, docType). The
// upsert inserts the row at 1 on first use or increments it in place;
// RETURNING hands back the allocated value in the same round trip, so two
// concurrent callers can never observe the same number.
func (s *Store) Next(ctx context.Context, q Querier, tenantID int64, docType DocType) (int64, error) {
	if !docType.Valid() {
		return 0, ErrUnknownDocType
	}
	const query = `
		INSERT INTO document_sequences (tenant_id, doc_type, next_number, last_updated)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (tenant_id, doc_type)
		DO UPDATE SET next_number = document_sequences.next_number + 1,
		              last_updated = NOW()
		RETURNING next_number`
	var n int64
	if err := q.QueryRow(ctx, query, tenantID, string(docType)).Scan(&n); err != nil {
		return 0, fmt.Errorf("sequence: next %s for tenant %d: %w", docType, tenantID, err)
	}
	return n, nil
}

// NextNumber allocates and formats in one step.
func (s *Store) NextNumber(ctx context.Context, q Querier, tenantID int64, docType DocType) (string, error) {
	n, err := s.Next(ctx, q, tenantID, docType)
	if err != nil {
		return "", err
	}
	return Format(docType.Prefix(), n), nil
}

// Current returns the last allocated value without advancing the counter,
// or 0 when the series has never been used. Display and debugging only;
// never use this for allocation.
func (s *Store) Current(ctx context.Context, q Querier, tenantID int64, docType DocType) (int64, error) {
	if !docType.Valid() {
		return 0, ErrUnknownDocType
	}
	const query = `SELECT next_number FROM document_sequences WHERE tenant_id = $1 AND doc_type = $2`
	var n int64
	err := q.QueryRow(ctx, query, tenantID, string(docType)).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sequence: current %s for tenant %d: %w", docType, tenantID, err)
	}
	return n, nil
}

// Reset forces the counter to start. Maintenance use only: setting it
// below the last issued value will produce duplicate document numbers.
func (s *Store) Reset(ctx context.Context, q Querier, tenantID int64, docType DocType, start int64) error {
	if !docType.Valid() {
		return ErrUnknownDocType
	}
	if start < 0 {
		return errors.New("sequence: start must be >= 0")
	}
	const query = `
		INSERT INTO document_sequences (tenant_id, doc_type, next_number, last_updated)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (tenant_id, doc_type)
		DO UPDATE SET next_number = EXCLUDED.next_number,
		              last_updated = NOW()`
	if _, err := q.Exec(ctx, query, tenantID, string(docType), start); err != nil {
		return fmt.Errorf("sequence: reset %s for tenant %d: %w", docType, tenantID, err)
	}
	return nil
}
