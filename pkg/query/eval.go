package query

import (
	"reflect"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// looseEqual compares two predicate operands the way a document
// store compares typed scalars: numeric types compare by value
// regardless of width, everything else falls back to reflect.DeepEqual.
func looseEqual(a, b any) bool {
	if an, aok := asFloat(a); aok {
		if bn, bok := asFloat(b); bok {
			return an == bn
		}
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any, op string) bool {
	if an, aok := asFloat(a); aok {
		if bn, bok := asFloat(b); bok {
			return compareFloat(an, bn, op)
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return compareFloat(float64(at.UnixNano()), float64(bt.UnixNano()), op)
		}
	}
	if as, aok := a.(string); aok {
		if bs, bok := b.(string); bok {
			return compareString(as, bs, op)
		}
	}
	return false
}

func compareFloat(a, b float64, op string) bool {
	switch op {
	case "$gt":
		return a > b
	case "$gte":
		return a >= b
	case "$lt":
		return a < b
	case "$lte":
		return a <= b
	}
	return false
}

func compareString(a, b string, op string) bool {
	switch op {
	case "$gt":
		return a > b
	case "$gte":
		return a >= b
	case "$lt":
		return a < b
	case "$lte":
		return a <= b
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// bsonTypeOf returns the BSON type-tag string for a value, matching the
// $type operator's vocabulary.
func bsonTypeOf(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case int32:
		return "int"
	case int, int64:
		return "long"
	case float32, float64:
		return "double"
	case string:
		return "string"
	case []byte, primitive.Binary:
		return "binData"
	case time.Time:
		return "date"
	case primitive.Regex:
		return "regex"
	case primitive.ObjectID:
		return "objectId"
	case primitive.Decimal128:
		return "decimal"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		_ = x
		return "object"
	}
}
