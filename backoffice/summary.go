/*
summary.go - Per-file derivation pipeline

PURPOSE:
  Runs the engine over a snapshot for one file (or every file):

    file.lot     --Join-->  Lot      --+
    payments     --------------------- +--> ComputeBalance --> Balance
    documents    --NextVersionForFile--> next document version
    certificates --NextVersionForFile--> next certificate version
                 --ClassifyDate-------> CertificateView per certificate

  Lots and clients arrive either nested in the file's relation or as a
  bare id; bare ids are joined against the snapshot's side-loaded lists.

FAILURE POLICY:
  - A file's own lot/client relation that is malformed fails that file
    (RecordError). SummarizeAll reports it per row and keeps going.
  - A lot id that is not in the snapshot (partial load) is not an error:
    price is 0 and LotID is still reported.
  - Dirty payments/prices/dates become Warnings on the summary.
  - A document or certificate with a malformed file relation is skipped
    with a warning on every file, and the matching *VersionUncertain flag
    is set. Issuing a new version still refuses (lineage.go).

SEE ALSO:
  - certificates.go: CertificateView construction and upcoming filter
  - lineage.go: Version bumps on replacement
*/
package backoffice

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// DERIVER
// =============================================================================

// Deriver holds the display thresholds. The zero value uses the defaults.
type Deriver struct {
	WarningDays  int
	UpcomingDays int

	// warningSet makes a zero WarningDays a real window.
	warningSet bool
}

// NewDeriver takes the warning window as given, matching
// engine.ClassifyWithin: 0 warns on the expiry day only and a negative
// window uses the default. A non-positive upcoming window uses the default.
func NewDeriver(warningDays, upcomingDays int) Deriver {
	return Deriver{WarningDays: warningDays, UpcomingDays: upcomingDays, warningSet: true}
}

func (d Deriver) warningDays() int {
	if d.WarningDays < 0 || (d.WarningDays == 0 && !d.warningSet) {
		return engine.DefaultExpiryWarningDays
	}
	return d.WarningDays
}

// UpcomingWindow is the effective upcoming-expiry window in days.
func (d Deriver) UpcomingWindow() int {
	if d.UpcomingDays <= 0 {
		return engine.DefaultUpcomingWindowDays
	}
	return d.UpcomingDays
}

// Summarize derives the summary of one file.
func (d Deriver) Summarize(snap Snapshot, fileID string, today time.Time) (FileSummary, error) {
	file, ok := snap.File(fileID)
	if !ok {
		return FileSummary{}, fmt.Errorf("%w: %s", ErrFileNotFound, fileID)
	}
	idx := newSnapshotIndex(snap)
	return d.summarize(snap, idx, file, today)
}

// SummarizeAll derives every file in snapshot order. Failures are isolated
// per file.
func (d Deriver) SummarizeAll(snap Snapshot, today time.Time) []SummaryResult {
	idx := newSnapshotIndex(snap)
	results := make([]SummaryResult, 0, len(snap.Files))
	for _, f := range snap.Files {
		summary, err := d.summarize(snap, idx, f, today)
		if err != nil {
			results = append(results, SummaryResult{FileID: f.ID, Err: err})
			continue
		}
		results = append(results, SummaryResult{FileID: f.ID, Summary: &summary})
	}
	return results
}

func (d Deriver) summarize(snap Snapshot, idx snapshotIndex, file engine.File, today time.Time) (FileSummary, error) {
	summary := FileSummary{File: file}

	lotRef, err := engine.Join(file.Lot, idx.lots)
	if err != nil && !errors.Is(err, engine.ErrUnresolvedRelation) {
		return FileSummary{}, &RecordError{Kind: "file", RecordID: file.ID, Err: fmt.Errorf("lot: %w", err)}
	}
	summary.LotID = lotRef.ID
	if lotRef.Loaded != nil {
		summary.LotName = lotRef.Loaded.Name
	}

	clientRef, err := engine.Join(file.Client, idx.clients)
	if err != nil && !errors.Is(err, engine.ErrUnresolvedRelation) {
		return FileSummary{}, &RecordError{Kind: "file", RecordID: file.ID, Err: fmt.Errorf("client: %w", err)}
	}
	summary.ClientID = clientRef.ID
	if clientRef.Loaded != nil {
		summary.ClientName = clientRef.Loaded.Name
	}

	summary.Balance = engine.ComputeBalance(file, lotRef.Loaded, snap.Payments)
	summary.Warnings = append(summary.Warnings, summary.Balance.Warnings...)

	docs, badDocs := engine.SplitByFile(snap.Documents, file.ID)
	summary.NextDocumentVersion = engine.NextVersion(docs)
	summary.DocumentVersionUncertain = len(badDocs) > 0
	summary.Warnings = append(summary.Warnings, lineageWarnings("document", badDocs)...)
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Version > docs[j].Version })
	summary.Documents = docs

	certs, badCerts := engine.SplitByFile(snap.Certificates, file.ID)
	summary.CertificateVersionUncertain = len(badCerts) > 0
	summary.Warnings = append(summary.Warnings, lineageWarnings("certificate", badCerts)...)
	summary.NextCertificateVersion = engine.NextVersion(certs)
	for _, c := range certs {
		view := d.view(c, file.ID, today)
		if c.ExpiryDate.Malformed() {
			summary.Warnings = append(summary.Warnings, engine.Warning{
				Code:     engine.WarnUnparseableDate,
				RecordID: c.ID,
				Detail:   fmt.Sprintf("expiry date %q is not a date", c.ExpiryDate.Raw),
			})
		}
		summary.Certificates = append(summary.Certificates, view)
	}
	sortViews(summary.Certificates)

	return summary, nil
}

type lineageRecord interface {
	engine.FileScoped
	engine.Identifiable
}

// lineageWarnings reports records whose file relation is malformed. They are
// left out of every file's lineage on read screens.
func lineageWarnings[T lineageRecord](kind string, bad []T) []engine.Warning {
	warnings := make([]engine.Warning, 0, len(bad))
	for _, r := range bad {
		_, err := r.FileRelation().Resolve()
		warnings = append(warnings, engine.Warning{
			Code:     engine.WarnMalformedRelation,
			RecordID: r.RecordID(),
			Detail:   fmt.Sprintf("%s file relation: %v; next version may be too low", kind, err),
		})
	}
	return warnings
}

// =============================================================================
// SIDE-LOADED INDEXES
// =============================================================================

type snapshotIndex struct {
	lots    engine.Index[engine.Lot]
	clients engine.Index[engine.Client]
}

func newSnapshotIndex(snap Snapshot) snapshotIndex {
	return snapshotIndex{
		lots:    engine.IndexBy(snap.Lots),
		clients: engine.IndexBy(snap.Clients),
	}
}
