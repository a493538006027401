package timex

import "time"

// Precision is the finest resolution an instant keeps once stored. Postgres
// timestamptz holds microseconds, so every copy of an entry is cut to the
// same grain before it is compared.
const Precision = time.Microsecond

// Instant returns t in UTC truncated to Precision. The zero time stays zero.
func Instant(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(Precision)
}
