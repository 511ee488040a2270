package domain

import (
	"fmt"
	"time"
)

// ─── Token Money ────────────────────────────────────────────────────────────
// Balances and costs are stored in integer hundredths of a token to avoid
// float drift. 10.00 tokens = Cents(1000).

// Cents is a token amount in hundredths.
type Cents int64

// WeeklyGrant is the balance every account is reset to at the start of a
// token week.
const WeeklyGrant Cents = 1000 // 10.00 tokens

// String formats the amount with two decimal places.
func (c Cents) String() string {
	neg := ""
	v := int64(c)
	if v < 0 {
		neg = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", neg, v/100, v%100)
}

// Float64 returns the amount as whole tokens. Display only; arithmetic
// stays in Cents.
func (c Cents) Float64() float64 {
	return float64(c) / 100
}

// WeekAnchor returns Monday 00:00 UTC of the week containing t.
// The token week rolls over at this instant; a stored anchor older than the
// current one triggers the lazy weekly reset.
func WeekAnchor(t time.Time) time.Time {
	t = t.UTC()
	// time.Weekday: Sunday == 0, so shift Sunday to the end of the week.
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
