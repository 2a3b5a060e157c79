/*
Package factory provides backend JSON to record conversion.

PURPOSE:
  Converts the payloads the document backend returns into engine records
  and a backoffice.Snapshot. The backend is loose: collections arrive bare
  or paginated, relations arrive as ids, objects or singleton arrays, and
  numbers sometimes arrive as strings. The factory only normalizes the
  envelope; the record types decode the rest leniently.

JSON SHAPES:
  Collections, either form:
    [ {...}, {...} ]
    { "page": 1, "total": 2, "items": [ {...}, {...} ] }

  Records may carry an "expand" object. Each expanded entry replaces the
  field of the same name, so a file fetched with expand=lot arrives as:
    { "id": "F2", "lot": "lot-2", "expand": { "lot": { "id": "lot-2", ... } } }
  and is decoded as if "lot" held the object itself.

  A snapshot is an object keyed by collection:
    { "lots": ..., "clients": ..., "files": ..., "payments": ...,
      "documents": ..., "certificates": ... }
  Missing or null collections decode as empty.

USAGE:
  f := NewRecordFactory()
  snap, err := f.ParseSnapshot(body)

  files, err := ParseList[engine.File](raw, "files")

SEE ALSO:
  - engine/relation.go: Relation keeps whatever shape the expand produced
  - backoffice/types.go: Snapshot
*/
package factory

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/warp/lot-engine/backoffice"
	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// SnapshotJSON is the raw, collection-keyed payload.
type SnapshotJSON struct {
	Lots         json.RawMessage `json:"lots,omitempty"`
	Clients      json.RawMessage `json:"clients,omitempty"`
	Files        json.RawMessage `json:"files,omitempty"`
	Payments     json.RawMessage `json:"payments,omitempty"`
	Documents    json.RawMessage `json:"documents,omitempty"`
	Certificates json.RawMessage `json:"certificates,omitempty"`
}

// pageJSON is a paginated list response.
type pageJSON struct {
	Items json.RawMessage `json:"items"`
}

const expandKey = "expand"

// =============================================================================
// RECORD FACTORY
// =============================================================================

// RecordFactory converts backend JSON to records.
type RecordFactory struct{}

// NewRecordFactory creates a new record factory.
func NewRecordFactory() *RecordFactory {
	return &RecordFactory{}
}

// ParseSnapshot parses a collection-keyed payload into a Snapshot.
func (f *RecordFactory) ParseSnapshot(data []byte) (backoffice.Snapshot, error) {
	var sj SnapshotJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return backoffice.Snapshot{}, fmt.Errorf("failed to parse snapshot JSON: %w", err)
	}
	return f.FromJSON(sj)
}

// FromJSON decodes every collection of sj.
func (f *RecordFactory) FromJSON(sj SnapshotJSON) (backoffice.Snapshot, error) {
	var (
		snap backoffice.Snapshot
		err  error
	)
	if snap.Lots, err = ParseList[engine.Lot](sj.Lots, "lots"); err != nil {
		return backoffice.Snapshot{}, err
	}
	if snap.Clients, err = ParseList[engine.Client](sj.Clients, "clients"); err != nil {
		return backoffice.Snapshot{}, err
	}
	if snap.Files, err = ParseList[engine.File](sj.Files, "files"); err != nil {
		return backoffice.Snapshot{}, err
	}
	if snap.Payments, err = ParseList[engine.Payment](sj.Payments, "payments"); err != nil {
		return backoffice.Snapshot{}, err
	}
	if snap.Documents, err = ParseList[engine.Document](sj.Documents, "documents"); err != nil {
		return backoffice.Snapshot{}, err
	}
	if snap.Certificates, err = ParseList[engine.Certificate](sj.Certificates, "certificates"); err != nil {
		return backoffice.Snapshot{}, err
	}
	return snap, nil
}

// ParseRecord decodes one record, merging its expand object first.
func ParseRecord[T any](data []byte) (T, error) {
	var rec T
	merged, err := mergeExpand(data)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(merged, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// ParseList decodes a bare array or an {"items": [...]} page. The name is
// only used in error messages.
func ParseList[T any](data json.RawMessage, name string) ([]T, error) {
	items, err := unwrapItems(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	if items == nil {
		return nil, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(items, &raws); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	result := make([]T, 0, len(raws))
	for i, raw := range raws {
		rec, err := ParseRecord[T](raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s[%d]: %w", name, i, err)
		}
		result = append(result, rec)
	}
	return result, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// unwrapItems returns the array inside data, or nil for an absent collection.
func unwrapItems(data json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	switch trimmed[0] {
	case '[':
		return trimmed, nil
	case '{':
		var page pageJSON
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, err
		}
		if len(page.Items) == 0 {
			return nil, fmt.Errorf("object without items")
		}
		return unwrapItems(page.Items)
	default:
		return nil, fmt.Errorf("expected array or page, got %.20s", trimmed)
	}
}

// mergeExpand moves every entry of the record's expand object onto the
// field of the same name and drops expand.
func mergeExpand(data []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	raw, ok := fields[expandKey]
	if !ok {
		return data, nil
	}
	delete(fields, expandKey)

	var expanded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &expanded); err != nil {
		// null or a non-object expand carries nothing to merge
		expanded = nil
	}
	for k, v := range expanded {
		fields[k] = v
	}
	return json.Marshal(fields)
}
