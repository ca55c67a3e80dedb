package services

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseQuantity coerces a decoded JSON value to an int. Integral floats and
// numeric strings are accepted; fractional values are rejected rather than
// floored. The sign is not checked here.
func ParseQuantity(v interface{}) (int, error) {
	switch q := v.(type) {
	case nil:
		return 0, quantityError("is required")
	case int:
		return q, nil
	case int32:
		return int(q), nil
	case int64:
		return fromInt64(q)
	case float32:
		return fromFloat(float64(q))
	case float64:
		return fromFloat(q)
	case json.Number:
		return fromString(q.String())
	case string:
		return fromString(q)
	default:
		return 0, quantityError("must be a number")
	}
}

func fromString(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, quantityError("must be a number")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return fromInt64(n)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, quantityError("must be a number")
	}
	return fromFloat(f)
}

func fromFloat(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, quantityError("must be a finite number")
	}
	if f != math.Trunc(f) {
		return 0, quantityError("must be a whole number")
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, quantityError("is out of range")
	}
	return int(f), nil
}

func fromInt64(n int64) (int, error) {
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, quantityError("is out of range")
	}
	return int(n), nil
}

func quantityError(reason string) *ValidationError {
	return &ValidationError{Field: "quantity", Reason: reason}
}
