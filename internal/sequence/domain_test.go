package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "INV-00001", Format(DocTypeInvoice.Prefix(), 1))
	require.Equal(t, "INV-00042", Format(DocTypeInvoice.Prefix(), 42))
	require.Equal(t, "PO-00100", Format(DocTypePurchaseOrder.Prefix(), 100))
	// Numbers beyond the pad width keep growing without truncation.
	require.Equal(t, "INV-123456", Format(DocTypeInvoice.Prefix(), 123456))
}

func TestDocTypeValid(t *testing.T) {
	require.True(t, DocTypeInvoice.Valid())
	require.True(t, DocTypePurchaseOrder.Valid())
	require.False(t, DocType("QUOTE").Valid())
	require.False(t, DocType("").Valid())
}
