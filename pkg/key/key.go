// Package key implements FileDB's structured key: an unordered mapping
// from field names to typed scalar/document values, and its canonical
// binary encoding.
//
// The canonical encoding is the Index's deduplication identity: two
// keys that are equal as documents (field order irrelevant, nested
// maps compared recursively) must encode to the same bytes. FileDB
// uses BSON for the encoding, the same wire format the original
// implementation's pymongo/bson stack relies on, so a canonical key
// produced by one language-binding of this protocol is byte-identical
// to one produced by another.
package key

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Key is a user-supplied structured mapping identifying a file. Values
// may be any BSON-representable scalar or document type: nil, bool,
// int32/int64, float64, string, []byte, time.Time, primitive.Regex,
// []any, map[string]any (nested Key), primitive.ObjectID, or
// primitive.Decimal128.
type Key map[string]any

// Reserved field names may not appear in a user-supplied key: they are
// the internal identity fields the Index adds to every record.
const (
	FieldID          = "_id"
	FieldStoragePath = "_storage_path_e5c8b4a5_96b1_4ed3_9a36_d8bb28204240"
)

// ErrReservedField is returned by Validate when a key uses a reserved
// field name.
type ErrReservedField struct {
	Field string
}

func (e *ErrReservedField) Error() string {
	return fmt.Sprintf("key field %q is reserved and may not appear in a user key", e.Field)
}

// Validate rejects keys that use a reserved field name, recursively.
func Validate(k Key) error {
	return validateMap(k)
}

func validateMap(m map[string]any) error {
	for field, value := range m {
		if field == FieldID || field == FieldStoragePath {
			return &ErrReservedField{Field: field}
		}
		if nested, ok := value.(map[string]any); ok {
			if err := validateMap(nested); err != nil {
				return err
			}
		}
		if nested, ok := value.(Key); ok {
			if err := validateMap(nested); err != nil {
				return err
			}
		}
	}
	return nil
}

// Canonical returns the canonical binary encoding of k: its entries
// sorted by field name, recursively, then serialized as BSON.
//
// canonical(k1) == canonical(k2) iff k1 and k2 are equal as documents;
// this property is what lets the Index use the canonical bytes as a
// unique, dedup-friendly identity for a brand new key.
func Canonical(k Key) ([]byte, error) {
	doc := sortDocument(map[string]any(k))
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("key: canonical encoding failed: %w", err)
	}
	return b, nil
}

// sortDocument recursively rewrites a map into a bson.D with its keys
// sorted, so that field order never affects the encoded bytes.
func sortDocument(m map[string]any) bson.D {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	d := make(bson.D, 0, len(fields))
	for _, f := range fields {
		d = append(d, bson.E{Key: f, Value: sortValue(m[f])})
	}
	return d
}

func sortValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return sortDocument(val)
	case Key:
		return sortDocument(map[string]any(val))
	case bson.M:
		return sortDocument(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sortValue(item)
		}
		return out
	default:
		return v
	}
}

// Equal reports whether two keys are equal as documents: same fields,
// same values, independent of the order either was built in.
func Equal(a, b Key) (bool, error) {
	ca, err := Canonical(a)
	if err != nil {
		return false, err
	}
	cb, err := Canonical(b)
	if err != nil {
		return false, err
	}
	return string(ca) == string(cb), nil
}

// ObjectID re-exports the BSON object-id type so callers building keys
// with object-id fields don't need to import the driver directly.
type ObjectID = primitive.ObjectID

// Regex re-exports the BSON regular-expression type.
type Regex = primitive.Regex

// Decimal128 re-exports the BSON decimal128 type.
type Decimal128 = primitive.Decimal128
