package httpx

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	require.NoError(t, DecodeJSON(strings.NewReader(`{"name":"a"}`), &v))
	assert.Equal(t, "a", v.Name)

	assert.Error(t, DecodeJSON(strings.NewReader(`{"other":"a"}`), &v))
	assert.Error(t, DecodeJSON(strings.NewReader(`{"name":"a"}{"name":"b"}`), &v))
}

func TestParsePage(t *testing.T) {
	p, err := ParsePage(url.Values{}, 20, 100)
	require.NoError(t, err)
	assert.Equal(t, Page{Page: 1, Limit: 20}, p)
	assert.Equal(t, int64(0), p.Skip())

	p, err = ParsePage(url.Values{"page": {"3"}, "limit": {"500"}}, 20, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Limit)
	assert.Equal(t, int64(200), p.Skip())

	_, err = ParsePage(url.Values{"page": {"0"}}, 20, 100)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = ParsePage(url.Values{"limit": {"x"}}, 20, 100)
	assert.ErrorIs(t, err, ErrInvalidLimit)
}

func TestParseSort(t *testing.T) {
	allowed := []string{"bookingTime", "createdAt"}
	fallback := Sort{Field: "createdAt", Desc: true}

	s, err := ParseSort(url.Values{}, allowed, fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, s)

	s, err = ParseSort(url.Values{"sort": {"-bookingTime"}}, allowed, fallback)
	require.NoError(t, err)
	assert.Equal(t, Sort{Field: "bookingTime", Desc: true}, s)

	s, err = ParseSort(url.Values{"sort": {"bookingTime"}}, allowed, fallback)
	require.NoError(t, err)
	assert.False(t, s.Desc)

	_, err = ParseSort(url.Values{"sort": {"passwordHash"}}, allowed, fallback)
	assert.ErrorIs(t, err, ErrInvalidSort)
}

func TestParseTimeRange(t *testing.T) {
	loc := time.UTC
	from, to, err := ParseTimeRange(url.Values{"from": {"2026-03-01"}, "to": {"2026-03-01"}}, loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, loc), *from)
	assert.Equal(t, time.Date(2026, 3, 1, 23, 59, 59, 999999999, loc), *to)

	from, to, err = ParseTimeRange(url.Values{"from": {"2026-03-01T10:00:00Z"}}, loc)
	require.NoError(t, err)
	assert.Nil(t, to)
	assert.Equal(t, 10, from.Hour())

	_, _, err = ParseTimeRange(url.Values{"from": {"2026-03-02"}, "to": {"2026-03-01"}}, loc)
	assert.ErrorIs(t, err, ErrInvalidRange)
	_, _, err = ParseTimeRange(url.Values{"from": {"yesterday"}}, loc)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestParseListAndIncludes(t *testing.T) {
	v := url.Values{"fields": {"status, bookingTime,,"}, "include": {"vehicle"}}
	assert.Equal(t, []string{"status", "bookingTime"}, ParseList(v, "fields"))
	assert.True(t, Includes(v, "vehicle"))
	assert.False(t, Includes(v, "certificates"))
	assert.Nil(t, ParseList(v, "missing"))
}

func TestPickFields(t *testing.T) {
	item := struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Reason string `json:"reason"`
	}{ID: "a1", Status: "pending", Reason: "x"}

	out, err := PickFields(item, []string{"status", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"id": "a1", "status": "pending"}, out)
}
