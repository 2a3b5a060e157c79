/*
lineage.go - Version bumps for documents and certificates

PURPOSE:
  Builds the records a form submits when a file's document or certificate is
  replaced. Nothing is persisted here; the caller saves the returned records
  and notifies audit.

RULES:
  - The new record gets NextVersionForFile over the FULL collection,
    including replaced/deleted history.
  - Previously active documents of the same file flip to Replaced.
  - Deletion is logical: Deleted status / Cancelled flag. Records are never
    removed, so the lineage is never renumbered.
  - A new certificate carries its lifecycle state as the estado cache.

SEE ALSO:
  - engine/version.go: NextVersionForFile
*/
package backoffice

import (
	"fmt"
	"time"

	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// DOCUMENTS
// =============================================================================

// Upload describes a new document file for an expediente.
type Upload struct {
	Name string
	URL  string
}

// Replacement is the outcome of ReplaceDocument: one record to insert and
// the records whose status flipped.
type Replacement struct {
	Created engine.Document
	Retired []engine.Document
}

// ReplaceDocument creates the next version of fileID's document.
func ReplaceDocument(all []engine.Document, fileID string, up Upload, newID string, now time.Time) (Replacement, error) {
	history, err := engine.ScopeToFile(all, fileID)
	if err != nil {
		return Replacement{}, &RecordError{Kind: "file", RecordID: fileID, Err: fmt.Errorf("documents: %w", err)}
	}

	var retired []engine.Document
	for _, d := range history {
		if d.Status != engine.DocumentActive {
			continue
		}
		d.Status = engine.DocumentReplaced
		retired = append(retired, d)
	}

	created := engine.Document{
		ID:         newID,
		File:       engine.RelationTo(fileID),
		Name:       up.Name,
		URL:        up.URL,
		Version:    engine.Version(engine.NextVersion(history)),
		Status:     engine.DocumentActive,
		UploadedAt: engine.DateOf(now),
	}
	return Replacement{Created: created, Retired: retired}, nil
}

// RetireDocument marks a document deleted.
func RetireDocument(doc engine.Document) (engine.Document, error) {
	if doc.Status == engine.DocumentDeleted {
		return doc, fmt.Errorf("%w: document %s", ErrAlreadyDeleted, doc.ID)
	}
	doc.Status = engine.DocumentDeleted
	return doc, nil
}

// =============================================================================
// CERTIFICATES
// =============================================================================

type CertificateInput struct {
	IssueDate  engine.Date
	ExpiryDate engine.Date
}

// IssueCertificate creates the next certificate version for fileID. The
// estado cache is filled from the classifier as of today.
func (d Deriver) IssueCertificate(all []engine.Certificate, fileID string, in CertificateInput, newID string, today time.Time) (engine.Certificate, error) {
	if !in.ExpiryDate.Valid() {
		return engine.Certificate{}, fmt.Errorf("%w: expiry date %q", ErrInvalidExpiry, in.ExpiryDate.Raw)
	}
	if in.IssueDate.Valid() && in.ExpiryDate.Time.Before(in.IssueDate.Time) {
		return engine.Certificate{}, fmt.Errorf("%w: expiry %s before issue %s", ErrInvalidExpiry, in.ExpiryDate, in.IssueDate)
	}

	next, err := engine.NextVersionForFile(all, fileID)
	if err != nil {
		return engine.Certificate{}, &RecordError{Kind: "file", RecordID: fileID, Err: fmt.Errorf("certificates: %w", err)}
	}

	lc := engine.ClassifyDateWithin(in.ExpiryDate, today, d.warningDays())
	return engine.Certificate{
		ID:         newID,
		File:       engine.RelationTo(fileID),
		IssueDate:  in.IssueDate,
		ExpiryDate: in.ExpiryDate,
		Version:    engine.Version(next),
		Estado:     string(lc.State),
	}, nil
}

// RetireCertificate sets the user-controlled cancelled flag.
func RetireCertificate(c engine.Certificate) (engine.Certificate, error) {
	if c.Cancelled {
		return c, fmt.Errorf("%w: certificate %s", ErrAlreadyDeleted, c.ID)
	}
	c.Cancelled = true
	return c, nil
}
