package resolver

import (
	"reflect"
	"strconv"
	"strings"
)

// navigate walks root through path, following the access order spec §3
// prescribes at each segment: dict-like key lookup first, then attribute
// lookup, then integer index into a sequence. A segment that matches nothing
// at its level yields nil for the whole path (spec: "missing-path yields
// null"), never an error.
func navigate(root any, segments []string) any {
	current := root

	for _, seg := range segments {
		if current == nil {
			return nil
		}

		next, ok := step(current, seg)
		if !ok {
			return nil
		}

		current = next
	}

	return current
}

func step(current any, seg string) (any, bool) {
	if m, ok := current.(map[string]any); ok {
		if v, present := m[seg]; present {
			return v, true
		}
		// dict-like but key absent: still fall through to attribute/index
		// lookup below, matching the source's per-level fallback chain.
	}

	rv := reflect.ValueOf(current)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			mv := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
			if mv.IsValid() {
				return mv.Interface(), true
			}
		}
	case reflect.Struct:
		if fv, ok := fieldByTagOrName(rv, seg); ok {
			return fv.Interface(), true
		}
	case reflect.Slice, reflect.Array:
		idx, err := strconv.Atoi(seg)
		if err == nil && idx >= 0 && idx < rv.Len() {
			return rv.Index(idx).Interface(), true
		}
	}

	return nil, false
}

// fieldByTagOrName finds a struct field whose json tag name (before any
// comma option) equals seg, falling back to a case-insensitive field-name
// match (so "request.payload.model" reaches chatapi.Request.Model via its
// `json:"model"` tag, and an untagged Go field is still reachable by name).
func fieldByTagOrName(rv reflect.Value, seg string) (reflect.Value, bool) {
	rt := rv.Type()

	for i := range rt.NumField() {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("json")
		name := tag

		if idx := strings.IndexByte(tag, ','); idx >= 0 {
			name = tag[:idx]
		}

		if name == seg {
			return rv.Field(i), true
		}

		if name == "" && strings.EqualFold(field.Name, seg) {
			return rv.Field(i), true
		}
	}

	for i := range rt.NumField() {
		field := rt.Field(i)
		if field.IsExported() && strings.EqualFold(field.Name, seg) {
			return rv.Field(i), true
		}
	}

	return reflect.Value{}, false
}
