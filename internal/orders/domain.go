package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/groweasy/groweasy/internal/counterparty"
	"github.com/groweasy/groweasy/internal/inventory"
	"github.com/groweasy/groweasy/internal/sequence"
)

// OrderType selects the processing flow.
type OrderType string

const (
	// OrderTypeSale is a sales invoice: stock out, customer aggregate.
	OrderTypeSale OrderType = "sale"
	// OrderTypePurchase is a purchase order: stock in, supplier aggregate.
	OrderTypePurchase OrderType = "purchase"
)

// flow binds an order type to its document series, movement direction and
// counterparty kind.
type flow struct {
	docType       sequence.DocType
	movement      inventory.MovementType
	counterpart   counterparty.Kind
	defaultStatus string
	validateStock bool
}

var flows = map[OrderType]flow{
	OrderTypeSale: {
		docType:       sequence.DocTypeInvoice,
		movement:      inventory.MovementSale,
		counterpart:   counterparty.KindCustomer,
		defaultStatus: "paid",
		validateStock: true,
	},
	OrderTypePurchase: {
		docType:       sequence.DocTypePurchaseOrder,
		movement:      inventory.MovementPurchase,
		counterpart:   counterparty.KindSupplier,
		defaultStatus: "pending",
		validateStock: false,
	},
}

// Item is one order line. ProductID zero marks a free-text line that does
// not touch stock.
type Item struct {
	ProductID int64           `json:"product_id,omitempty"`
	Name      string          `json:"name" validate:"required"`
	Quantity  int64           `json:"qty" validate:"gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Payload is the validated order document handed in by the caller. Dates
// arrive as YYYY-MM-DD strings; an unparseable document date falls back to
// today, an unparseable due date is dropped.
type Payload struct {
	CounterpartyName string          `json:"client_name" validate:"required"`
	Email            string          `json:"client_email,omitempty"`
	Phone            string          `json:"client_phone,omitempty"`
	Address          string          `json:"client_address,omitempty"`
	TaxID            string          `json:"tax_id,omitempty"`
	DocumentDate     string          `json:"document_date,omitempty"`
	DueDate          string          `json:"due_date,omitempty"`
	Items            []Item          `json:"items" validate:"required,min=1,dive"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	Status           string          `json:"status,omitempty"`
	Notes            string          `json:"notes,omitempty"`
}

// Document is the persisted order row. Payload keeps the full submitted
// document for rendering; the typed columns exist for querying.
type Document struct {
	ID               int64
	TenantID         int64
	DocumentType     sequence.DocType
	DocumentNumber   string
	CounterpartyName string
	DocumentDate     time.Time
	DueDate          *time.Time
	GrandTotal       decimal.Decimal
	Status           string
	Payload          json.RawMessage
	CreatedAt        time.Time
}

// ListFilter narrows the order list read.
type ListFilter struct {
	DocumentType sequence.DocType
	Status       string
	DateFrom     *time.Time
	DateTo       *time.Time
	Limit        int
	Offset       int
}

const dateLayout = "2006-01-02"

func parseDocumentDate(s string, now time.Time) time.Time {
	if s != "" {
		if d, err := time.Parse(dateLayout, s); err == nil {
			return d
		}
	}
	return now.Truncate(24 * time.Hour)
}

func parseDueDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil
	}
	return &d
}
