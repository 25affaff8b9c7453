package condition

import (
	"reflect"
	"strings"
)

// valueEqual implements the equals/not_equals comparator: numeric values
// compare by widened float64 value, strings compare bytewise, null==null is
// equal, and mismatched kinds (that aren't both numeric) are unequal rather
// than an error.
func valueEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}

	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return as == bs
		}
	}

	if ab, aok := a.(bool); aok {
		if bb, bok := b.(bool); bok {
			return ab == bb
		}
	}

	return reflect.DeepEqual(a, b)
}

// asFloat widens any Go numeric kind (the JSON decoder's float64, plus
// anything a struct field might hold) to a float64 for comparison purposes.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// compareOrdered implements less_than/less_than_or_equal/greater_than/
// greater_than_or_equal: numeric comparison after widening, or bytewise
// string comparison. A null operand, or a kind pairing that doesn't widen,
// yields (0, false) so the caller's comparator returns false rather than
// raising.
func compareOrdered(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}

	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return strings.Compare(as, bs), true
		}
	}

	return 0, false
}

// valueContains implements the contains comparator across its three shapes:
// substring-in-string, element-in-sequence, and key-in-mapping. A kind
// mismatch (e.g. looking for a string inside a number) yields false, not an
// error.
func valueContains(container, needle any) bool {
	if container == nil {
		return false
	}

	if cs, ok := container.(string); ok {
		ns, ok := needle.(string)
		return ok && strings.Contains(cs, ns)
	}

	if m, ok := container.(map[string]any); ok {
		key, ok := needle.(string)
		if !ok {
			return false
		}

		_, present := m[key]
		return present
	}

	rv := reflect.ValueOf(container)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return false
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			if valueEqual(rv.Index(i).Interface(), needle) {
				return true
			}
		}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return false
		}

		for _, k := range rv.MapKeys() {
			if valueEqual(k.Interface(), needle) {
				return true
			}
		}
	}

	return false
}
