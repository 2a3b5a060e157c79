/*
ledger.go - DebtLedger

PURPOSE:
  Computes what a client still owes on a file (the "adeudo"):

    Price = lot price (0 when the lot is missing or unresolved)
    Paid  = sum of the file's payment amounts
    Owed  = max(0, Price - Paid)

TWO ENTRY POINTS:
  ComputeBalance(file, lot, payments)
    Accepts the FULL payment collection and keeps only payments whose file
    relation resolves to file.ID. Matching is on the internal id, never on
    the folio. This is the one to use from screens.

  ComputeScopedBalance(file, lot, scoped)
    Trusts that the caller already filtered payments to this file and sums
    all of them. Passing a multi-file collection here over-counts.

DEGRADATION:
  A negative or non-numeric amount contributes 0 and is reported in
  Balance.Warnings. A payment whose file relation is malformed is skipped and
  reported. Neither function returns an error: a dashboard must still render.

EXAMPLE:
  Lot price 150000, payments 50000 + 30000:
    Price 150000, Paid 80000, Owed 70000

SEE ALSO:
  - relation.go: Resolves payment -> file relations
  - backoffice/summary.go: Locates the file's lot before calling in
*/
package engine

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BALANCE
// =============================================================================

type Balance struct {
	FileID   string
	Price    decimal.Decimal
	Paid     decimal.Decimal
	Owed     decimal.Decimal
	Warnings []Warning
}

// Settled returns true when nothing is owed.
func (b Balance) Settled() bool { return !b.Owed.IsPositive() }

// =============================================================================
// LEDGER
// =============================================================================

// ComputeBalance computes the balance of file from the full payment collection.
func ComputeBalance(file File, lot *Lot, payments []Payment) Balance {
	b := newBalance(file, lot)
	for _, p := range payments {
		res, err := p.File.Resolve()
		if err != nil {
			b.Warnings = append(b.Warnings, Warning{
				Code:     WarnMalformedRelation,
				RecordID: p.ID,
				Detail:   fmt.Sprintf("payment file relation: %v", err),
			})
			continue
		}
		if !res.Present() || res.ID != file.ID {
			continue
		}
		b.addPayment(p)
	}
	return b.settle()
}

// ComputeScopedBalance computes the balance of file from payments the caller
// has already filtered to that file. The relation on each payment is not checked.
func ComputeScopedBalance(file File, lot *Lot, scoped []Payment) Balance {
	b := newBalance(file, lot)
	for _, p := range scoped {
		b.addPayment(p)
	}
	return b.settle()
}

func newBalance(file File, lot *Lot) *Balance {
	b := &Balance{FileID: file.ID, Price: decimal.Zero, Paid: decimal.Zero}
	if lot == nil {
		return b
	}
	switch {
	case !lot.Price.Valid:
		b.Warnings = append(b.Warnings, Warning{
			Code:     WarnInvalidPrice,
			RecordID: lot.ID,
			Detail:   fmt.Sprintf("lot price %q is not a number", lot.Price.Raw),
		})
	case lot.Price.IsNegative():
		b.Warnings = append(b.Warnings, Warning{
			Code:     WarnNegativePrice,
			RecordID: lot.ID,
			Detail:   fmt.Sprintf("lot price %s is negative", lot.Price.Value),
		})
	default:
		b.Price = lot.Price.Value
	}
	return b
}

func (b *Balance) addPayment(p Payment) {
	switch {
	case !p.Amount.Valid:
		b.Warnings = append(b.Warnings, Warning{
			Code:     WarnNonNumericAmount,
			RecordID: p.ID,
			Detail:   fmt.Sprintf("payment amount %q is not a number", p.Amount.Raw),
		})
	case p.Amount.IsNegative():
		b.Warnings = append(b.Warnings, Warning{
			Code:     WarnNegativeAmount,
			RecordID: p.ID,
			Detail:   fmt.Sprintf("payment amount %s is negative", p.Amount.Value),
		})
	default:
		b.Paid = b.Paid.Add(p.Amount.Value)
	}
}

func (b *Balance) settle() Balance {
	b.Owed = decimal.Max(decimal.Zero, b.Price.Sub(b.Paid))
	return *b
}
