/*
store.go - Persistence port for back-office records

PURPOSE:
  Defines what the service layer needs from storage: a consistent snapshot
  to derive from, and upserts for the records the forms submit.

NO-DELETE CONTRACT:
  There is no Delete method. Documents and certificates are retired by
  saving them with a Deleted/Replaced status or the Cancelled flag, so a
  file's version lineage is never renumbered. Reset exists only for demo
  scenarios.

VERSION LINEAGE WRITES:
  A new version is numbered from the history it is saved with. The
  Update* methods read the history and save in one step, so two uploads
  for the same file cannot both take version N+1.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - backoffice/store/memory.go: In-memory for tests/dev

SEE ALSO:
  - lineage.go: Produces the records saved here
*/
package backoffice

import (
	"context"

	"github.com/warp/lot-engine/engine"
)

// Repository stores back-office records.
type Repository interface {
	// Snapshot reads every collection as of one instant.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Import upserts every record of a snapshot atomically.
	Import(ctx context.Context, snap Snapshot) error

	SaveLot(ctx context.Context, lot engine.Lot) error
	SaveClient(ctx context.Context, client engine.Client) error
	SaveFile(ctx context.Context, file engine.File) error
	SavePayment(ctx context.Context, p engine.Payment) error

	// SaveDocuments upserts atomically (new version + retired versions).
	SaveDocuments(ctx context.Context, docs ...engine.Document) error
	SaveCertificates(ctx context.Context, certs ...engine.Certificate) error

	// UpdateDocuments passes every document to fn and saves what it returns,
	// with no other write in between. An error from fn saves nothing and is
	// returned as is.
	UpdateDocuments(ctx context.Context, fn func(all []engine.Document) ([]engine.Document, error)) error
	UpdateCertificates(ctx context.Context, fn func(all []engine.Certificate) ([]engine.Certificate, error)) error

	GetDocument(ctx context.Context, id string) (engine.Document, error)
	GetCertificate(ctx context.Context, id string) (engine.Certificate, error)

	// Reset clears all data. Demo scenarios only.
	Reset(ctx context.Context) error
}
