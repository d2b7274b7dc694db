package sequence

import "fmt"

// DocType identifies a numbered document series. Each (tenant, DocType)
// pair owns an independent counter.
type DocType string

const (
	// DocTypeInvoice numbers sales invoices.
	DocTypeInvoice DocType = "INV"
	// DocTypePurchaseOrder numbers purchase orders.
	DocTypePurchaseOrder DocType = "PO"
)

// Prefix returns the document number prefix for the series.
func (d DocType) Prefix() string {
	return string(d)
}

// Valid reports whether the doc type is a known series.
func (d DocType) Valid() bool {
	switch d {
	case DocTypeInvoice, DocTypePurchaseOrder:
		return true
	}
	return false
}

// Format renders a sequence value as a document number, e.g. INV-00042.
func Format(prefix string, n int64) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}
