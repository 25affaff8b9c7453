package xjson

import (
	"encoding/json"

	"github.com/google/go-cmp/cmp"
)

// jsonRawMessageComparer compares two json.RawMessage values by decoded
// equality rather than byte equality, so key order and whitespace don't
// matter.
func jsonRawMessageComparer(x, y json.RawMessage) bool {
	if len(x) == 0 && len(y) == 0 {
		return true
	}

	if len(x) == 0 || len(y) == 0 {
		return false
	}

	var xVal, yVal interface{}
	if err := json.Unmarshal(x, &xVal); err != nil {
		return false
	}

	if err := json.Unmarshal(y, &yVal); err != nil {
		return false
	}

	return cmp.Equal(xVal, yVal)
}

func nilString(x *string) string {
	if x == nil {
		return ""
	}

	return *x
}

// Equal provides semantic equality comparison with custom transformers and
// comparers, used by the condition-serialization round-trip tests.
func Equal(a, b any, opts ...cmp.Option) bool {
	allOpts := append(opts,
		cmp.Transformer("", nilString),
		cmp.Comparer(jsonRawMessageComparer))

	return cmp.Equal(a, b, allOpts...)
}
