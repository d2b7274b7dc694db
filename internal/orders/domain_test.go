package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDocumentDate(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

	d := parseDocumentDate("2026-01-31", now)
	require.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), d)

	// Garbage and empty strings fall back to today.
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), parseDocumentDate("31/01/2026", now))
	require.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), parseDocumentDate("", now))
}

func TestParseDueDate(t *testing.T) {
	d := parseDueDate("2026-02-28")
	require.NotNil(t, d)
	require.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), *d)

	require.Nil(t, parseDueDate(""))
	require.Nil(t, parseDueDate("soon"))
}

func TestFlowBindings(t *testing.T) {
	sale := flows[OrderTypeSale]
	require.True(t, sale.validateStock)
	require.Equal(t, "paid", sale.defaultStatus)

	purchase := flows[OrderTypePurchase]
	require.False(t, purchase.validateStock)
	require.Equal(t, "pending", purchase.defaultStatus)
}
