package shared

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNullableTime(t *testing.T) {
	require.Nil(t, nullableTime(time.Time{}))

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	require.Equal(t, at, nullableTime(at))
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	ctx := context.Background()

	var nilLogger *AuditLogger
	require.Error(t, nilLogger.Record(ctx, AuditLog{Action: "a", Entity: "b", EntityID: "c"}))

	l := &AuditLogger{}
	require.Error(t, l.Record(ctx, AuditLog{Entity: "order", EntityID: "INV-00001"}))
	require.Error(t, l.Record(ctx, AuditLog{Action: "orders:sale", EntityID: "INV-00001"}))
	require.Error(t, l.Record(ctx, AuditLog{Action: "orders:sale", Entity: "order"}))
}
