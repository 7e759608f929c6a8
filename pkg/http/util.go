package http

import (
	"time"

	xutil "HotelRevenue/pkg/util"
)

// ParseDate parses a YYYY-MM-DD query value.
func ParseDate(s string) (time.Time, bool) { return xutil.ParseDate(s) }

// ParseDatePtr returns nil for an empty value and an error for a malformed one.
func ParseDatePtr(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, ok := xutil.ParseDate(s)
	if !ok {
		return nil, BadRequestErrorf("%s must be a date in YYYY-MM-DD format", field)
	}
	return &t, nil
}
