// Package backoffice derives the state that file screens render: balances,
// next versions and certificate status for each expediente. It uses the
// engine package over explicit snapshots and never fetches anything itself.
package backoffice

import (
	"errors"
	"fmt"

	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// SNAPSHOT - Collections fetched as of roughly the same instant
// =============================================================================

// Snapshot is one consistent read of the backend. Derivations are only as
// fresh as the snapshot they are given.
type Snapshot struct {
	Lots         []engine.Lot         `json:"lots"`
	Clients      []engine.Client      `json:"clients"`
	Files        []engine.File        `json:"files"`
	Payments     []engine.Payment     `json:"payments"`
	Documents    []engine.Document    `json:"documents"`
	Certificates []engine.Certificate `json:"certificates"`
}

// File finds a file by internal id.
func (s Snapshot) File(id string) (engine.File, bool) {
	for _, f := range s.Files {
		if f.ID == id {
			return f, true
		}
	}
	return engine.File{}, false
}

// Size is the total number of records.
func (s Snapshot) Size() int {
	return len(s.Lots) + len(s.Clients) + len(s.Files) + len(s.Payments) + len(s.Documents) + len(s.Certificates)
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrFileNotFound        = errors.New("file not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrCertificateNotFound = errors.New("certificate not found")
	ErrAlreadyDeleted      = errors.New("record already deleted")
	ErrInvalidExpiry       = errors.New("invalid certificate dates")
)

// RecordError ties a data-contract error to the record that caused it.
type RecordError struct {
	Kind     string
	RecordID string
	Err      error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.RecordID, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound) ||
		errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrCertificateNotFound)
}

// =============================================================================
// DERIVED STATE
// =============================================================================

// FileSummary is everything a file screen needs, derived from one snapshot.
type FileSummary struct {
	File       engine.File
	LotID      string
	LotName    string
	ClientID   string
	ClientName string

	Balance engine.Balance

	NextDocumentVersion    int
	NextCertificateVersion int

	// Set when a record with a malformed file relation was skipped; it may
	// hold this file's highest version.
	DocumentVersionUncertain    bool
	CertificateVersionUncertain bool

	Documents    []engine.Document
	Certificates []CertificateView

	Warnings []engine.Warning
}

// ActiveDocument returns the active document with the highest version.
func (s FileSummary) ActiveDocument() (engine.Document, bool) {
	for _, d := range s.Documents {
		if d.Status == engine.DocumentActive {
			return d, true
		}
	}
	return engine.Document{}, false
}

// SummaryResult isolates a per-file failure so one bad record does not
// blank a whole list.
type SummaryResult struct {
	FileID  string
	Summary *FileSummary
	Err     error
}

// DisplayStatus combines the lifecycle state with the user-controlled
// cancelled flag.
type DisplayStatus string

const DisplayCancelled DisplayStatus = "cancelled"

// CertificateView is a certificate with its recomputed lifecycle.
type CertificateView struct {
	Certificate engine.Certificate
	FileID      string
	Lifecycle   engine.Lifecycle
	Display     DisplayStatus

	// StaleCache is set when the persisted estado disagrees with the
	// recomputed state.
	StaleCache bool
}
