package api

import (
	"fmt"
	"time"
)

// parseISO8601UTC parses an RFC3339 timestamp and rejects any offset
// other than UTC, per spec's explicit design note that ambiguous
// timezones must be rejected rather than guessed.
func parseISO8601UTC(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	if _, offset := t.Zone(); offset != 0 {
		return time.Time{}, fmt.Errorf("timestamp must be UTC (Z or +00:00), got offset %ds", offset)
	}
	return t.UTC(), nil
}
