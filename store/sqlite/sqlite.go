/*
Package sqlite provides a SQLite-backed implementation of backoffice.Repository.

PURPOSE:
  Persists the back-office collections so the API can derive summaries
  from a consistent snapshot. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

WIRE FIDELITY:
  Relation, money and date columns hold the JSON the record arrived with.
  A lot stored as a nested singleton array or an amount stored as "abc"
  reads back the same way, so the engine sees the same quirks after a
  round trip and reports the same warnings.

NO-DELETE ENFORCEMENT:
  - Records are upserted (INSERT ... ON CONFLICT DO UPDATE)
  - No DELETE statements outside Reset
  - Retiring a document or certificate is an upsert of its new status

KEY TABLES:
  lots, clients, files, payments, documents, certificates
  Every table has seq (insertion order, kept across upserts) and a unique id.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. Snapshot reads every table inside
  one transaction. UpdateDocuments/UpdateCertificates read the lineage and
  write the new version in one transaction under the write lock.

USAGE:
  store, err := sqlite.New("./data/lots.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  snap, err := store.Snapshot(ctx)

SEE ALSO:
  - backoffice/store.go: Repository interface
  - backoffice/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/lot-engine/backoffice"
	"github.com/warp/lot-engine/engine"
)

// Store implements backoffice.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ backoffice.Repository = (*Store)(nil)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS lots (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		price_json TEXT NOT NULL DEFAULT 'null'
	);

	CREATE TABLE IF NOT EXISTS clients (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT ''
	);

	-- Relation columns keep the wire shape (id, object, singleton array)
	CREATE TABLE IF NOT EXISTS files (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		folio TEXT NOT NULL DEFAULT '',
		lot_json TEXT NOT NULL DEFAULT 'null',
		client_json TEXT NOT NULL DEFAULT 'null'
	);

	CREATE TABLE IF NOT EXISTS payments (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		file_json TEXT NOT NULL DEFAULT 'null',
		amount_json TEXT NOT NULL DEFAULT 'null',
		paid_at_json TEXT NOT NULL DEFAULT 'null'
	);

	-- Documents and certificates are never deleted; version lineage depends
	-- on the full history.
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		file_json TEXT NOT NULL DEFAULT 'null',
		name TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 0,
		status TEXT,
		uploaded_at_json TEXT NOT NULL DEFAULT 'null'
	);

	CREATE TABLE IF NOT EXISTS certificates (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		file_json TEXT NOT NULL DEFAULT 'null',
		issue_date_json TEXT NOT NULL DEFAULT 'null',
		expiry_date_json TEXT NOT NULL DEFAULT 'null',
		version INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		estado TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot reads every collection inside one transaction.
func (s *Store) Snapshot(ctx context.Context) (backoffice.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return backoffice.Snapshot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var snap backoffice.Snapshot
	if snap.Lots, err = queryAll(ctx, tx, "SELECT id, name, price_json FROM lots ORDER BY seq", scanLot); err != nil {
		return backoffice.Snapshot{}, fmt.Errorf("failed to load lots: %w", err)
	}
	if snap.Clients, err = queryAll(ctx, tx, "SELECT id, name FROM clients ORDER BY seq", scanClient); err != nil {
		return backoffice.Snapshot{}, fmt.Errorf("failed to load clients: %w", err)
	}
	if snap.Files, err = queryAll(ctx, tx, "SELECT id, folio, lot_json, client_json FROM files ORDER BY seq", scanFile); err != nil {
		return backoffice.Snapshot{}, fmt.Errorf("failed to load files: %w", err)
	}
	if snap.Payments, err = queryAll(ctx, tx, "SELECT id, file_json, amount_json, paid_at_json FROM payments ORDER BY seq", scanPayment); err != nil {
		return backoffice.Snapshot{}, fmt.Errorf("failed to load payments: %w", err)
	}
	if snap.Documents, err = queryAll(ctx, tx, selectDocuments+" ORDER BY seq", scanDocument); err != nil {
		return backoffice.Snapshot{}, fmt.Errorf("failed to load documents: %w", err)
	}
	if snap.Certificates, err = queryAll(ctx, tx, selectCertificates+" ORDER BY seq", scanCertificate); err != nil {
		return backoffice.Snapshot{}, fmt.Errorf("failed to load certificates: %w", err)
	}

	return snap, tx.Commit()
}

// Import upserts every record of snap atomically.
func (s *Store) Import(ctx context.Context, snap backoffice.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range snap.Lots {
		if err := saveLot(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, r := range snap.Clients {
		if err := saveClient(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, r := range snap.Files {
		if err := saveFile(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, r := range snap.Payments {
		if err := savePayment(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, r := range snap.Documents {
		if err := saveDocument(ctx, tx, r); err != nil {
			return err
		}
	}
	for _, r := range snap.Certificates {
		if err := saveCertificate(ctx, tx, r); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// =============================================================================
// UPSERTS
// =============================================================================

func (s *Store) SaveLot(ctx context.Context, lot engine.Lot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveLot(ctx, s.db, lot)
}

func (s *Store) SaveClient(ctx context.Context, client engine.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveClient(ctx, s.db, client)
}

func (s *Store) SaveFile(ctx context.Context, file engine.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveFile(ctx, s.db, file)
}

func (s *Store) SavePayment(ctx context.Context, p engine.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePayment(ctx, s.db, p)
}

// SaveDocuments upserts docs atomically.
func (s *Store) SaveDocuments(ctx context.Context, docs ...engine.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, d := range docs {
		if err := saveDocument(ctx, tx, d); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveCertificates upserts certs atomically.
func (s *Store) SaveCertificates(ctx context.Context, certs ...engine.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, c := range certs {
		if err := saveCertificate(ctx, tx, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateDocuments reads every document and saves what fn returns in the same
// transaction, holding the write lock throughout.
func (s *Store) UpdateDocuments(ctx context.Context, fn func(all []engine.Document) ([]engine.Document, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	all, err := queryAll(ctx, tx, selectDocuments+" ORDER BY seq", scanDocument)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	docs, err := fn(all)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if err := saveDocument(ctx, tx, d); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpdateCertificates is UpdateDocuments for certificates.
func (s *Store) UpdateCertificates(ctx context.Context, fn func(all []engine.Certificate) ([]engine.Certificate, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	all, err := queryAll(ctx, tx, selectCertificates+" ORDER BY seq", scanCertificate)
	if err != nil {
		return fmt.Errorf("failed to load certificates: %w", err)
	}
	certs, err := fn(all)
	if err != nil {
		return err
	}
	for _, c := range certs {
		if err := saveCertificate(ctx, tx, c); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func saveLot(ctx context.Context, db execer, lot engine.Lot) error {
	price, err := encode(lot.Price)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO lots (id, name, price_json) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			price_json = excluded.price_json
	`, lot.ID, lot.Name, price)
	if err != nil {
		return fmt.Errorf("failed to save lot %s: %w", lot.ID, err)
	}
	return nil
}

func saveClient(ctx context.Context, db execer, client engine.Client) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO clients (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, client.ID, client.Name)
	if err != nil {
		return fmt.Errorf("failed to save client %s: %w", client.ID, err)
	}
	return nil
}

func saveFile(ctx context.Context, db execer, file engine.File) error {
	lot, err := encode(file.Lot)
	if err != nil {
		return err
	}
	client, err := encode(file.Client)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO files (id, folio, lot_json, client_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			folio = excluded.folio,
			lot_json = excluded.lot_json,
			client_json = excluded.client_json
	`, file.ID, file.Folio, lot, client)
	if err != nil {
		return fmt.Errorf("failed to save file %s: %w", file.ID, err)
	}
	return nil
}

func savePayment(ctx context.Context, db execer, p engine.Payment) error {
	cols, err := encodeAll(p.File, p.Amount, p.PaidAt)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO payments (id, file_json, amount_json, paid_at_json) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_json = excluded.file_json,
			amount_json = excluded.amount_json,
			paid_at_json = excluded.paid_at_json
	`, p.ID, cols[0], cols[1], cols[2])
	if err != nil {
		return fmt.Errorf("failed to save payment %s: %w", p.ID, err)
	}
	return nil
}

func saveDocument(ctx context.Context, db execer, d engine.Document) error {
	cols, err := encodeAll(d.File, d.UploadedAt)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (id, file_json, name, url, version, status, uploaded_at_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_json = excluded.file_json,
			name = excluded.name,
			url = excluded.url,
			version = excluded.version,
			status = excluded.status,
			uploaded_at_json = excluded.uploaded_at_json
	`, d.ID, cols[0], d.Name, d.URL, int(d.Version), nullString(string(d.Status)), cols[1])
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", d.ID, err)
	}
	return nil
}

func saveCertificate(ctx context.Context, db execer, c engine.Certificate) error {
	cols, err := encodeAll(c.File, c.IssueDate, c.ExpiryDate)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO certificates (id, file_json, issue_date_json, expiry_date_json, version, cancelled, estado)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_json = excluded.file_json,
			issue_date_json = excluded.issue_date_json,
			expiry_date_json = excluded.expiry_date_json,
			version = excluded.version,
			cancelled = excluded.cancelled,
			estado = excluded.estado
	`, c.ID, cols[0], cols[1], cols[2], int(c.Version), c.Cancelled, nullString(c.Estado))
	if err != nil {
		return fmt.Errorf("failed to save certificate %s: %w", c.ID, err)
	}
	return nil
}

// =============================================================================
// LOOKUPS
// =============================================================================

const (
	selectDocuments    = "SELECT id, file_json, name, url, version, status, uploaded_at_json FROM documents"
	selectCertificates = "SELECT id, file_json, issue_date_json, expiry_date_json, version, cancelled, estado FROM certificates"
)

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (engine.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, err := queryAll(ctx, s.db, selectDocuments+" WHERE id = ?", scanDocument, id)
	if err != nil {
		return engine.Document{}, fmt.Errorf("failed to load document %s: %w", id, err)
	}
	if len(docs) == 0 {
		return engine.Document{}, fmt.Errorf("%w: %s", backoffice.ErrDocumentNotFound, id)
	}
	return docs[0], nil
}

// GetCertificate retrieves a certificate by ID.
func (s *Store) GetCertificate(ctx context.Context, id string) (engine.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	certs, err := queryAll(ctx, s.db, selectCertificates+" WHERE id = ?", scanCertificate, id)
	if err != nil {
		return engine.Certificate{}, fmt.Errorf("failed to load certificate %s: %w", id, err)
	}
	if len(certs) == 0 {
		return engine.Certificate{}, fmt.Errorf("%w: %s", backoffice.ErrCertificateNotFound, id)
	}
	return certs[0], nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"certificates", "documents", "payments", "files", "clients", "lots"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func queryAll[T any](ctx context.Context, q querier, query string, scan func(rowScanner) (T, error), args ...any) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanLot(row rowScanner) (engine.Lot, error) {
	var lot engine.Lot
	var price string
	if err := row.Scan(&lot.ID, &lot.Name, &price); err != nil {
		return lot, err
	}
	return lot, decode(price, &lot.Price)
}

func scanClient(row rowScanner) (engine.Client, error) {
	var c engine.Client
	err := row.Scan(&c.ID, &c.Name)
	return c, err
}

func scanFile(row rowScanner) (engine.File, error) {
	var f engine.File
	var lot, client string
	if err := row.Scan(&f.ID, &f.Folio, &lot, &client); err != nil {
		return f, err
	}
	if err := decode(lot, &f.Lot); err != nil {
		return f, err
	}
	return f, decode(client, &f.Client)
}

func scanPayment(row rowScanner) (engine.Payment, error) {
	var p engine.Payment
	var file, amount, paidAt string
	if err := row.Scan(&p.ID, &file, &amount, &paidAt); err != nil {
		return p, err
	}
	if err := decode(file, &p.File); err != nil {
		return p, err
	}
	if err := decode(amount, &p.Amount); err != nil {
		return p, err
	}
	return p, decode(paidAt, &p.PaidAt)
}

func scanDocument(row rowScanner) (engine.Document, error) {
	var d engine.Document
	var file, uploadedAt string
	var version int
	var status sql.NullString
	if err := row.Scan(&d.ID, &file, &d.Name, &d.URL, &version, &status, &uploadedAt); err != nil {
		return d, err
	}
	d.Version = engine.Version(version)
	d.Status = engine.DocumentStatus(status.String)
	if err := decode(file, &d.File); err != nil {
		return d, err
	}
	return d, decode(uploadedAt, &d.UploadedAt)
}

func scanCertificate(row rowScanner) (engine.Certificate, error) {
	var c engine.Certificate
	var file, issue, expiry string
	var version int
	var estado sql.NullString
	if err := row.Scan(&c.ID, &file, &issue, &expiry, &version, &c.Cancelled, &estado); err != nil {
		return c, err
	}
	c.Version = engine.Version(version)
	c.Estado = estado.String
	if err := decode(file, &c.File); err != nil {
		return c, err
	}
	if err := decode(issue, &c.IssueDate); err != nil {
		return c, err
	}
	return c, decode(expiry, &c.ExpiryDate)
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(b), nil
}

func encodeAll(vs ...any) ([]string, error) {
	cols := make([]string, len(vs))
	for i, v := range vs {
		s, err := encode(v)
		if err != nil {
			return nil, err
		}
		cols[i] = s
	}
	return cols, nil
}

func decode(s string, v any) error {
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}
