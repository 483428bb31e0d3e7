package services

import (
	"context"
	"strings"
	"time"

	"github.com/opsboard/opsboard/internal/models"
)

// Scope identifies the authenticated caller for tenant isolation. Every query
// built by the services constrains results to rows the scope transitively
// owns; caller-supplied parameters cannot widen it.
type Scope struct {
	UserID string
	Role   models.Role
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func defaultIfEmpty(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// parseDate accepts YYYY-MM-DD or RFC3339 timestamps.
func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, true
	}
	if ts, err := time.Parse("2006-01-02", value); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// endOfDay widens a date to 23:59:59.999 so a "to" bound includes the whole day.
func endOfDay(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 23, 59, 59, 999_000_000, ts.Location())
}
