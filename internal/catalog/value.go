package catalog

import (
	"strings"

	"github.com/treedex/treedex/internal/errors"
)

// Indexed values are normalized to one of four comparable types:
// string, int64, float64, bool. Comparisons use the natural ordering of
// the normalized type; mixed-type comparisons fail with TypeMismatch.

// normalizeValue coerces v to its canonical comparable representation.
func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case bool:
		return t, nil
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint:
		return int64(t), nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case float64:
		return t, nil
	default:
		return nil, errors.Newf(errors.ErrCodeTypeMismatch, "unsupported index value type %T", v)
	}
}

// valueTypeName names the normalized type of v for type pinning.
func valueTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int64:
		return "int64"
	case float64:
		return "float64"
	case bool:
		return "bool"
	default:
		return ""
	}
}

// compareValues orders two normalized values of the same type.
// Returns <0, 0, >0 as a sorts before, equal to, or after b.
func compareValues(a, b any) (int, error) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, typeMismatch(a, b)
		}
		return strings.Compare(av, bv), nil
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, typeMismatch(a, b)
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, typeMismatch(a, b)
		}
		switch {
		case av < bv:
			return -1, nil
		case av > bv:
			return 1, nil
		}
		return 0, nil
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, typeMismatch(a, b)
		}
		// false sorts before true
		switch {
		case !av && bv:
			return -1, nil
		case av && !bv:
			return 1, nil
		}
		return 0, nil
	default:
		return 0, typeMismatch(a, b)
	}
}

func typeMismatch(a, b any) error {
	return errors.Newf(errors.ErrCodeTypeMismatch, "cannot compare %T with %T", a, b)
}
