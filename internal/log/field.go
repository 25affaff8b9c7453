package log

import "go.uber.org/zap"

// FieldType discriminates which member of Field is populated.
type FieldType int

const (
	fieldString FieldType = iota
	fieldInt
	fieldBool
	fieldAny
	fieldError
)

// Field is a single structured logging attribute. It is a plain value type
// (not an interface) so that hooks can inspect fields produced elsewhere,
// e.g. the tracing hook reads Field.Key / Field.String directly.
type Field struct {
	Key       string
	Type      FieldType
	String    string
	Integer   int64
	Bool      bool
	Interface any
}

func String(key, value string) Field {
	return Field{Key: key, Type: fieldString, String: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Type: fieldInt, Integer: int64(value)}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Type: fieldBool, Bool: value}
}

func Any(key string, value any) Field {
	return Field{Key: key, Type: fieldAny, Interface: value}
}

// Cause wraps an error under the conventional "error" key.
func Cause(err error) Field {
	return Field{Key: "error", Type: fieldError, Interface: err}
}

func (f Field) zap() zap.Field {
	switch f.Type {
	case fieldString:
		return zap.String(f.Key, f.String)
	case fieldInt:
		return zap.Int64(f.Key, f.Integer)
	case fieldBool:
		return zap.Bool(f.Key, f.Bool)
	case fieldError:
		if err, ok := f.Interface.(error); ok {
			return zap.NamedError(f.Key, err)
		}

		return zap.Any(f.Key, f.Interface)
	default:
		return zap.Any(f.Key, f.Interface)
	}
}
