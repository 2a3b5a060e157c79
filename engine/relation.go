/*
relation.go - RelationResolver

PURPOSE:
  The backend encodes a cross-reference differently depending on the query
  options that produced the record:

    "lot": "lot-7"                          bare id
    "lot": {"id": "lot-7", "price": 1000}   expanded object
    "lot": [{"id": "lot-7", ...}]           singleton array (one-to-one encodings)

  Resolve turns any of those into one canonical Resolution{ID, Loaded}.
  It is the only place that inspects relation shapes.

RULES:
  nil, "" or []          -> absent: {ID: "", Loaded: nil}
  "abc"                  -> {ID: "abc", Loaded: nil}
  [x, ...]               -> Resolve(x)
  object with id         -> {ID: id, Loaded: object}
  anything else          -> MalformedRelationError

  A bare id gives no entity. Use Join with a side-loaded Index to fetch it.

SEE ALSO:
  - errors.go: MalformedRelationError
  - ledger.go, version.go: Resolve file relations to scope collections
*/
package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
)

// =============================================================================
// RELATION - Wire field
// =============================================================================

// Relation is a relation field exactly as it arrived on the wire.
// Decoding keeps numbers as json.Number so numeric ids stay exact.
type Relation struct {
	raw any
}

// RelationOf wraps a raw value (id string, object, slice, nil).
func RelationOf(raw any) Relation {
	return Relation{raw: raw}
}

// RelationTo is a bare-id relation.
func RelationTo(id string) Relation {
	return Relation{raw: id}
}

func (r Relation) Raw() any { return r.raw }

func (r Relation) Resolve() (Resolution, error) { return Resolve(r.raw) }

func (r *Relation) UnmarshalJSON(b []byte) error {
	v, err := decodeRaw(b)
	if err != nil {
		return err
	}
	r.raw = v
	return nil
}

func (r Relation) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.raw)
}

func decodeRaw(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// =============================================================================
// RESOLUTION - Canonical form
// =============================================================================

// Resolution is the normalized relation. ID is empty when the relation is
// absent. Loaded is the nested entity when the wire carried one.
type Resolution struct {
	ID     string
	Loaded any
}

func (r Resolution) Present() bool { return r.ID != "" }

// Resolve normalizes a raw relation value. It never mutates raw.
func Resolve(raw any) (Resolution, error) {
	switch v := raw.(type) {
	case nil:
		return Resolution{}, nil
	case Relation:
		return Resolve(v.raw)
	case *Relation:
		if v == nil {
			return Resolution{}, nil
		}
		return Resolve(v.raw)
	case Resolution:
		return Resolution{ID: v.ID, Loaded: v.Loaded}, nil
	case string:
		return Resolution{ID: v}, nil
	case *string:
		if v == nil {
			return Resolution{}, nil
		}
		return Resolution{ID: *v}, nil
	case json.RawMessage:
		if len(bytes.TrimSpace(v)) == 0 {
			return Resolution{}, nil
		}
		decoded, err := decodeRaw(v)
		if err != nil {
			return Resolution{}, &MalformedRelationError{Shape: "invalid JSON", Value: string(v)}
		}
		return Resolve(decoded)
	case []any:
		if len(v) == 0 {
			return Resolution{}, nil
		}
		return Resolve(v[0])
	case map[string]any:
		id, ok := identifierOf(v["id"])
		if !ok {
			return Resolution{}, &MalformedRelationError{Shape: "object without id", Value: v}
		}
		return Resolution{ID: id, Loaded: v}, nil
	case Identifiable:
		if isNilPointer(v) {
			return Resolution{}, nil
		}
		id := v.RecordID()
		if id == "" {
			return Resolution{}, &MalformedRelationError{Shape: "record without id", Value: v}
		}
		return Resolution{ID: id, Loaded: v}, nil
	}

	// Typed slices and arrays ([]string, []Lot, [1]map...) share the
	// singleton-array rule.
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Len() == 0 {
			return Resolution{}, nil
		}
		return Resolve(rv.Index(0).Interface())
	case reflect.Pointer:
		if rv.IsNil() {
			return Resolution{}, nil
		}
		return Resolve(rv.Elem().Interface())
	}
	return Resolution{}, &MalformedRelationError{Shape: shapeOf(raw), Value: raw}
}

func identifierOf(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case json.Number:
		return id.String(), true
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) || id != math.Trunc(id) {
			return "", false
		}
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	}
	return "", false
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func shapeOf(v any) string {
	switch v.(type) {
	case bool:
		return "bool"
	case json.Number, float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

// =============================================================================
// TYPED RESOLUTION
// =============================================================================

// Ref is a resolved relation with the loaded entity decoded into T.
type Ref[T any] struct {
	ID     string
	Loaded *T
}

func (r Ref[T]) Present() bool { return r.ID != "" }

// ResolveAs resolves raw and decodes the loaded entity, if any, into T.
func ResolveAs[T any](raw any) (Ref[T], error) {
	res, err := Resolve(raw)
	if err != nil {
		return Ref[T]{}, err
	}
	ref := Ref[T]{ID: res.ID}
	if res.Loaded == nil {
		return ref, nil
	}
	switch loaded := res.Loaded.(type) {
	case T:
		ref.Loaded = &loaded
		return ref, nil
	case *T:
		copied := *loaded
		ref.Loaded = &copied
		return ref, nil
	}

	// Loaded came off the wire as a generic object: round-trip it through JSON.
	data, err := json.Marshal(res.Loaded)
	if err != nil {
		return Ref[T]{}, &MalformedRelationError{Shape: "unencodable object", Value: res.Loaded}
	}
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return Ref[T]{}, &MalformedRelationError{Shape: fmt.Sprintf("object not decodable as %T", entity), Value: res.Loaded}
	}
	ref.Loaded = &entity
	return ref, nil
}

// =============================================================================
// SIDE-LOADED LOOKUP
// =============================================================================

// Index maps record ids to records fetched separately from the relation.
type Index[T Identifiable] map[string]T

func IndexBy[T Identifiable](records []T) Index[T] {
	idx := make(Index[T], len(records))
	for _, r := range records {
		idx[r.RecordID()] = r
	}
	return idx
}

// Join resolves raw into T, preferring the nested entity and falling back to
// the index when only an id is present. An absent relation returns an empty
// Ref without error; an id missing from the index returns
// UnresolvedRelationError with the id still set on the Ref.
func Join[T Identifiable](raw any, idx Index[T]) (Ref[T], error) {
	ref, err := ResolveAs[T](raw)
	if err != nil || !ref.Present() || ref.Loaded != nil {
		return ref, err
	}
	if entity, ok := idx[ref.ID]; ok {
		ref.Loaded = &entity
		return ref, nil
	}
	return ref, &UnresolvedRelationError{ID: ref.ID}
}
