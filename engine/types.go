/*
Package engine provides the relational derivation engine for the lot-sales back office.

PURPOSE:
  This package holds the four derivations every entity screen and form needs:
  resolving relation fields, computing a file's outstanding balance,
  assigning the next document/certificate version, and classifying a
  certificate's expiry state. Everything here is pure: no I/O, no clocks
  (callers pass "today"), no shared mutable state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: a decimal amount as it arrived on the wire (may be dirty)
  - Version: a lineage version number (0 means absent)
  - Records: Lot, Client, File, Payment, Document, Certificate

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for prices and payments
  2. Lenient decoding: one dirty field never fails decoding of a whole record;
     the derivations report it as a Warning instead
  3. Raw relations: relation fields keep their wire shape until resolved

USAGE:
  var f engine.File
  _ = json.Unmarshal(data, &f)
  lot, err := engine.ResolveAs[engine.Lot](f.Lot)

SEE ALSO:
  - relation.go: RelationResolver
  - ledger.go: DebtLedger
  - version.go: VersionAssigner
  - lifecycle.go: LifecycleClassifier
*/
package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal amount with the original wire text
// =============================================================================

// Money is a decimal amount decoded leniently. Valid is false when the wire
// value was missing, null or not a number; Raw keeps the original text so the
// ledger can report it.
type Money struct {
	Value decimal.Decimal
	Valid bool
	Raw   string
}

func NewMoney(value int64) Money {
	d := decimal.NewFromInt(value)
	return Money{Value: d, Valid: true, Raw: d.String()}
}

func NewMoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Value: d, Valid: true, Raw: d.String()}
}

// ParseMoney never fails: unparseable input yields an invalid Money.
func ParseMoney(s string) Money {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{Raw: s}
	}
	return Money{Value: d, Valid: true, Raw: s}
}

func (m Money) IsNegative() bool { return m.Valid && m.Value.IsNegative() }

func (m Money) String() string {
	if m.Valid {
		return m.Value.String()
	}
	return m.Raw
}

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*m = Money{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*m = Money{Raw: string(b)}
			return nil
		}
		*m = ParseMoney(s)
		return nil
	}
	*m = ParseMoney(string(b))
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	if m.Valid {
		return []byte(m.Value.String()), nil
	}
	if m.Raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(m.Raw)
}

// =============================================================================
// VERSION - Lineage version number
// =============================================================================

// Version is a document/certificate version. Zero means "absent": the wire
// value was missing, null, NaN, non-positive or not a number.
type Version int

func (v *Version) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			*v = 0
			return nil
		}
	}
	*v = parseVersion(s)
	return nil
}

func parseVersion(s string) Version {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f > math.MaxInt32 {
		return 0
	}
	return Version(int(f))
}

// =============================================================================
// RECORDS
// =============================================================================

// Identifiable is implemented by every record that can be the target of a
// relation. The resolver uses it to read the identifier of a loaded entity.
type Identifiable interface {
	RecordID() string
}

type Lot struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Price Money  `json:"price"`
}

func (l Lot) RecordID() string { return l.ID }

type Client struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (c Client) RecordID() string { return c.ID }

// File is an expediente: the case linking a client to a lot.
// Folio is the business key; relations always match on ID.
type File struct {
	ID     string   `json:"id"`
	Folio  string   `json:"folio"`
	Lot    Relation `json:"lot"`
	Client Relation `json:"client"`
}

func (f File) RecordID() string { return f.ID }

type Payment struct {
	ID     string   `json:"id"`
	Amount Money    `json:"amount"`
	File   Relation `json:"file"`
	PaidAt Date     `json:"paid_at"`
}

func (p Payment) RecordID() string { return p.ID }

type DocumentStatus string

const (
	DocumentActive   DocumentStatus = "active"
	DocumentReplaced DocumentStatus = "replaced"
	DocumentDeleted  DocumentStatus = "deleted"
)

type Document struct {
	ID         string         `json:"id"`
	File       Relation       `json:"file"`
	Name       string         `json:"name,omitempty"`
	URL        string         `json:"url,omitempty"`
	Version    Version        `json:"version"`
	Status     DocumentStatus `json:"status"`
	UploadedAt Date           `json:"uploaded_at"`
}

func (d Document) RecordID() string       { return d.ID }
func (d Document) LineageVersion() int    { return int(d.Version) }
func (d Document) FileRelation() Relation { return d.File }

// Certificate is a CLG (lien-clearance certificate). Estado is the persisted
// lifecycle cache; it is never read back as truth.
type Certificate struct {
	ID         string   `json:"id"`
	File       Relation `json:"file"`
	IssueDate  Date     `json:"issue_date"`
	ExpiryDate Date     `json:"expiry_date"`
	Version    Version  `json:"version"`
	Cancelled  bool     `json:"cancelled"`
	Estado     string   `json:"estado,omitempty"`
}

func (c Certificate) RecordID() string       { return c.ID }
func (c Certificate) LineageVersion() int    { return int(c.Version) }
func (c Certificate) FileRelation() Relation { return c.File }
