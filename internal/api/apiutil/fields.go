package apiutil

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func ParsePositiveInt64Field(raw string, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%s is required", field)
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", field)
	}
	return value, nil
}

// LimitFromQuery reads ?limit=, defaulting to 50 and capping at 500.
func LimitFromQuery(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultListLimit, nil
	}
	value, err := ParsePositiveInt64Field(raw, "limit")
	if err != nil {
		return 0, FieldError{Field: "limit", Reason: "must be a positive integer"}
	}
	if value > maxListLimit {
		value = maxListLimit
	}
	return int(value), nil
}

// PathID returns a trimmed, non-empty path value.
func PathID(r *http.Request, name string) (string, error) {
	id := strings.TrimSpace(r.PathValue(name))
	if id == "" {
		return "", FieldError{Field: name, Reason: "is required"}
	}
	if len(id) > 128 {
		return "", FieldError{Field: name, Reason: "is too long"}
	}
	return id, nil
}

// RequiredString trims value and rejects it when empty or longer than max.
func RequiredString(value, field string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", FieldError{Field: field, Reason: "is required"}
	}
	if max > 0 && len(value) > max {
		return "", FieldError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", max)}
	}
	return value, nil
}

// FormatAmount renders cents as a two-decimal amount string.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}
