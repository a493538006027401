package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_UsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	instant := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, Date{2024, time.March, 10}, DateOf(instant, time.UTC))
	assert.Equal(t, Date{2024, time.March, 11}, DateOf(instant, tokyo))
	assert.Equal(t, Date{2024, time.March, 10}, DateOf(instant, nil))
}

func TestDate_Arithmetic(t *testing.T) {
	d := MustDate("2024-02-28")

	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2023-12-31", MustDate("2024-01-01").AddDays(-1).String())
	assert.Equal(t, 2, d.AddDays(2).DaysSince(d))
	assert.Equal(t, -2, d.DaysSince(d.AddDays(2)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.Before(d))
}

func TestDate_At(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	cutoff := MustDate("2024-01-05").At(23, 59, ny)
	assert.Equal(t, time.Date(2024, 1, 6, 4, 59, 0, 0, time.UTC), cutoff.UTC())
}

func TestParseDate_Invalid(t *testing.T) {
	_, err := ParseDate("2024-13-01")
	require.Error(t, err)
	require.Panics(t, func() { MustDate("nope") })
}

func TestDate_JSONRoundTripAsText(t *testing.T) {
	b, err := json.Marshal(map[string]Date{"day": MustDate("2024-07-04")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-07-04"}`, string(b))

	var out map[string]Date
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, MustDate("2024-07-04"), out["day"])
}

func TestDuration_UnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"3s"`), &d))
	assert.Equal(t, 3*time.Second, d.Duration)

	require.NoError(t, json.Unmarshal([]byte(`1000`), &d))
	assert.Equal(t, time.Microsecond, d.Duration)

	require.Error(t, json.Unmarshal([]byte(`true`), &d))
	require.Error(t, json.Unmarshal([]byte(`"later"`), &d))
}

func TestInstant_TruncatesToMicroseconds(t *testing.T) {
	plus2 := time.FixedZone("plus2", 2*60*60)
	in := time.Date(2024, 1, 5, 12, 0, 0, 1_123, plus2)

	got := Instant(in)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 1000, got.Nanosecond())
	assert.True(t, got.Equal(Instant(got)))
	assert.True(t, Instant(time.Time{}).IsZero())
}
