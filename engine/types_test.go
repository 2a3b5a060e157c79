package engine_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/lot-engine/engine"
)

func TestMoney_LenientDecoding(t *testing.T) {
	cases := []struct {
		wire  string
		valid bool
		value string
	}{
		{`150000`, true, "150000"},
		{`"150000.50"`, true, "150000.5"},
		{`-20`, true, "-20"},
		{`null`, false, ""},
		{`"N/A"`, false, ""},
		{`""`, false, ""},
		{`true`, false, ""},
	}

	for _, tc := range cases {
		var m engine.Money
		require.NoError(t, json.Unmarshal([]byte(tc.wire), &m), tc.wire)
		assert.Equal(t, tc.valid, m.Valid, tc.wire)
		if tc.valid {
			assert.Equal(t, tc.value, m.Value.String(), tc.wire)
		}
	}
}

func TestMoney_RecordSurvivesDirtyAmount(t *testing.T) {
	var p engine.Payment
	require.NoError(t, json.Unmarshal([]byte(`{"id":"p-1","amount":"pendiente","file":"F1"}`), &p))

	assert.False(t, p.Amount.Valid)
	assert.Equal(t, "pendiente", p.Amount.Raw)

	out, err := json.Marshal(p.Amount)
	require.NoError(t, err)
	assert.Equal(t, `"pendiente"`, string(out))
}

func TestDate_LenientDecoding(t *testing.T) {
	var c engine.Certificate
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "c-1", "file": "F1",
		"issue_date": "2024-12-01 10:00:00.000Z",
		"expiry_date": "pronto",
		"version": "2"
	}`), &c))

	assert.True(t, c.IssueDate.Valid())
	assert.Equal(t, time.December, c.IssueDate.Time.Month())
	assert.False(t, c.ExpiryDate.Valid())
	assert.True(t, c.ExpiryDate.Malformed())
	assert.Equal(t, engine.Version(2), c.Version)

	out, err := json.Marshal(c.IssueDate)
	require.NoError(t, err)
	assert.Equal(t, `"2024-12-01"`, string(out))
}

func TestDaysBetween_Ceil(t *testing.T) {
	from := time.Date(2025, time.January, 1, 22, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.January, 3, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, 2, engine.DaysBetween(from, to))
	assert.Equal(t, -2, engine.DaysBetween(to, from))
}

func TestDaysBetween_FarApartDates(t *testing.T) {
	// GIVEN: Dates more than 292 years apart (time.Duration range)
	// THEN: The day count is still exact
	today := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 173490, engine.DaysBetween(today, time.Date(2500, time.January, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2912807, engine.DaysBetween(today, time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -191753, engine.DaysBetween(today, time.Date(1500, time.January, 1, 0, 0, 0, 0, time.UTC)))
}
