package orders

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApplyListQueryClampsPaging(t *testing.T) {
	var filter ListFilter
	applyListQuery(&filter, url.Values{
		"limit":  {"-5"},
		"offset": {"-1"},
	})
	require.Zero(t, filter.Limit)
	require.Zero(t, filter.Offset)

	filter = ListFilter{}
	applyListQuery(&filter, url.Values{
		"limit":  {"25"},
		"offset": {"50"},
		"status": {"paid"},
	})
	require.Equal(t, 25, filter.Limit)
	require.Equal(t, 50, filter.Offset)
	require.Equal(t, "paid", filter.Status)
}

func TestApplyListQueryParsesDateRange(t *testing.T) {
	var filter ListFilter
	applyListQuery(&filter, url.Values{
		"from": {"2026-01-01"},
		"to":   {"2026-01-31"},
	})
	require.NotNil(t, filter.DateFrom)
	require.NotNil(t, filter.DateTo)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *filter.DateFrom)

	filter = ListFilter{}
	applyListQuery(&filter, url.Values{"from": {"not-a-date"}})
	require.Nil(t, filter.DateFrom)
}
