package counterparty

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Kind separates customer and supplier aggregates.
type Kind string

const (
	// KindCustomer aggregates sales invoices.
	KindCustomer Kind = "customer"
	// KindSupplier aggregates purchase orders.
	KindSupplier Kind = "supplier"
)

// Counterparty is a running aggregate per (tenant, kind, name). The name
// is the natural key: the first order referencing it creates the row,
// every later order adds to the totals.
type Counterparty struct {
	ID            int64
	TenantID      int64
	Kind          Kind
	Name          string
	Email         string
	Phone         string
	Address       string
	TaxID         string
	TotalAmount   decimal.Decimal
	DocumentCount int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Contact groups the optional contact fields refreshed on each order.
type Contact struct {
	Email   string
	Phone   string
	Address string
	TaxID   string
}

// UpsertParams describes one committed order's contribution.
type UpsertParams struct {
	TenantID int64
	Kind     Kind
	Name     string
	Contact  Contact
	Amount   decimal.Decimal
}

// ErrNotFound indicates a missing counterparty row.
var ErrNotFound = errors.New("counterparty: not found")
