package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ohss-collector/internal/model"
)

func strPtr(s string) *string { return &s }

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-01-15 08:30:00", time.Date(2026, 1, 15, 8, 30, 0, 0, time.UTC)},
		{"2026-01-15", time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"03/04/2026", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"3/4/2026", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)},
		{"25/12/2025", time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)},
		{"2026-01", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"January 2026", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"Feb 2026", time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		{" 2025 ", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestParseTimestamp_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "not a date", "2026/13/45"} {
		_, err := ParseTimestamp(in)
		assert.Error(t, err, in)
	}
}

func TestTimestamp_Fallback(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now, Timestamp(model.Absent(), now))
	assert.Equal(t, now, Timestamp(model.String("garbage"), now))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Timestamp(model.Number(2026), now))
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Timestamp(model.String("January 2026"), now))
}

func TestStateCode(t *testing.T) {
	assert.Equal(t, strPtr("CA"), StateCode(model.String("California")))
	assert.Equal(t, strPtr("CA"), StateCode(model.String("ca")))
	assert.Equal(t, strPtr("XX"), StateCode(model.String("XX")))
	assert.Equal(t, strPtr("NY"), StateCode(model.String("  new york ")))
	assert.Equal(t, strPtr("PU"), StateCode(model.String("Puerto Rico")))
	assert.Nil(t, StateCode(model.Absent()))
	assert.Nil(t, StateCode(model.String("   ")))
}

func TestText(t *testing.T) {
	assert.Equal(t, strPtr("Houston"), Text(model.String(" Houston ")))
	assert.Equal(t, strPtr("42"), Text(model.Number(42)))
	assert.Nil(t, Text(model.Absent()))
}

func TestCleanNumeric(t *testing.T) {
	assert.Equal(t, 1234, CleanNumeric(model.String("1,234"), 0))
	assert.Equal(t, 56, CleanNumeric(model.String("$56"), 0))
	assert.Equal(t, 0, CleanNumeric(model.String("abc"), 0))
	assert.Equal(t, 7, CleanNumeric(model.String("abc"), 7))
	assert.Equal(t, 12, CleanNumeric(model.String(" 12.9 "), 0))
	assert.Equal(t, -3, CleanNumeric(model.String("-3"), 0))
	assert.Equal(t, 120, CleanNumeric(model.Number(120), 0))
	assert.Equal(t, 5, CleanNumeric(model.Absent(), 5))
	assert.Equal(t, 0, CleanNumeric(model.String("NaN"), 0))
}

func TestCleanNumeric_OutOfRange(t *testing.T) {
	assert.Equal(t, 0, CleanNumeric(model.String("100000000000000000000"), 0))
	assert.Equal(t, 9, CleanNumeric(model.String("-3,000,000,000"), 9))
	assert.Equal(t, 0, CleanNumeric(model.Number(1e12), 0))
	assert.Equal(t, 2147483647, CleanNumeric(model.String("2,147,483,647"), 0))
	assert.Equal(t, -2147483648, CleanNumeric(model.String("-2147483648.7"), 0))
}

func TestCleanFloat(t *testing.T) {
	assert.InDelta(t, 1234.5, CleanFloat(model.String("1,234.5"), 0), 1e-9)
	assert.InDelta(t, 98.25, CleanFloat(model.Number(98.25), 0), 1e-9)
	assert.InDelta(t, -1, CleanFloat(model.String("n/a"), -1), 1e-9)
}

func TestLatitude(t *testing.T) {
	lat := Latitude(model.Number(45.0))
	require.NotNil(t, lat)
	assert.InDelta(t, 45.0, *lat, 1e-9)

	lat = Latitude(model.String("-90"))
	require.NotNil(t, lat)
	assert.InDelta(t, -90.0, *lat, 1e-9)

	assert.Nil(t, Latitude(model.Number(91.0)))
	assert.Nil(t, Latitude(model.String("notanumber")))
	assert.Nil(t, Latitude(model.Absent()))
}

func TestLongitude(t *testing.T) {
	lon := Longitude(model.String("-122.4"))
	require.NotNil(t, lon)
	assert.InDelta(t, -122.4, *lon, 1e-9)

	assert.Nil(t, Longitude(model.Number(180.5)))
	assert.Nil(t, Longitude(model.String("west")))
}

func TestDedupKey(t *testing.T) {
	period := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	loc := model.Location{State: strPtr("CA"), City: strPtr("Los Angeles")}

	key := DedupKey("OHSS", period, loc)
	assert.Equal(t, "ohss_2026-01-01_ca_los_angeles_", key)
	assert.Equal(t, key, DedupKey("OHSS", period, loc))

	assert.Equal(t, "ohss_2026-01-01___", DedupKey("OHSS", period, model.Location{}))
}

func TestDedupKey_TruncatesToDay(t *testing.T) {
	a := DedupKey("OHSS", time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC), model.Location{})
	b := DedupKey("OHSS", time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC), model.Location{})
	assert.Equal(t, a, b)
}
