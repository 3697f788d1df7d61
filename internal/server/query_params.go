package server

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var errInvalidTime = errors.New("invalid_time")

// rangeEdge decides where a bare date lands inside its day.
type rangeEdge int

const (
	rangeStart rangeEdge = iota
	rangeEnd
)

// parseQuantity reads an optional non-negative-looking integer. Empty means 0,
// which the service treats as a single unit.
func parseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// parseTimeBound accepts RFC3339 or YYYY-MM-DD. Dates widen to the first or
// last instant of that UTC day depending on edge.
func parseTimeBound(raw string, edge rangeEdge) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return &ts, nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, time.UTC)
	if err != nil {
		return nil, errInvalidTime
	}
	if edge == rangeEnd {
		day = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &day, nil
}

// coalesce returns the first non-blank value, trimmed.
func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
