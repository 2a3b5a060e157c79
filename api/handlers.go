/*
handlers.go - HTTP API handlers for the lot back-office

PURPOSE:
  Exposes the derivation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the backoffice
  Deriver. Every read endpoint derives from one repository snapshot.

ENDPOINTS:
  Files:
    GET    /api/files                      Summaries for all files
    POST   /api/files                      Open a file
    GET    /api/files/{id}                 One file summary
    GET    /api/files/{id}/balance         Balance + warnings
    POST   /api/files/{id}/payments        Record a payment
    POST   /api/files/{id}/documents       Replacement upload (version bump)
    POST   /api/files/{id}/certificates    Issue next certificate version

  Records:
    POST   /api/lots                       Create/update a lot
    POST   /api/clients                    Create/update a client
    DELETE /api/documents/{id}             Logical delete
    DELETE /api/certificates/{id}          Logical cancel

  Certificates:
    GET    /api/certificates               Views (?within=N for upcoming)
    POST   /api/certificates/refresh       Rewrite stale estado caches

  Derivation:
    POST   /api/import                     Backend payload -> store
    POST   /api/derive                     Stateless snapshot -> summary

CLOCK:
  Read endpoints accept ?today=YYYY-MM-DD to pin the date lifecycles are
  computed against. Otherwise Handler.Now is used.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, unparseable payload
  - 404: File/document/certificate not found
  - 409: Already deleted
  - 422: Validation errors, malformed relations on the requested record
  - 500: Internal errors

  Per-record data problems never fail a list: they become "error" entries
  or warnings, and are logged at warn level.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/warp/lot-engine/backoffice"
	"github.com/warp/lot-engine/engine"
	"github.com/warp/lot-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo    backoffice.Repository
	Deriver backoffice.Deriver
	Factory *factory.RecordFactory
	Log     zerolog.Logger

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string

	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler with the given repository.
func NewHandler(repo backoffice.Repository, deriver backoffice.Deriver, logger zerolog.Logger) *Handler {
	return &Handler{
		Repo:    repo,
		Deriver: deriver,
		Factory: factory.NewRecordFactory(),
		Log:     logger,
		Now:     time.Now,
		NewID:   uuid.NewString,
	}
}

// today returns the date to derive against.
func (h *Handler) today(r *http.Request) (time.Time, error) {
	if s := r.URL.Query().Get("today"); s != "" {
		t, err := time.Parse(engine.DateLayout, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("today must be YYYY-MM-DD: %w", err)
		}
		return t, nil
	}
	return engine.Midnight(h.Now()), nil
}

func (h *Handler) logWarnings(warnings []engine.Warning) {
	for _, w := range warnings {
		h.Log.Warn().
			Str("code", string(w.Code)).
			Str("record_id", w.RecordID).
			Msg(w.Detail)
	}
}

// =============================================================================
// FILE HANDLERS
// =============================================================================

// ListFiles returns a summary per file. A file whose own relations are
// malformed becomes an error entry.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today parameter", err)
		return
	}

	snap, err := h.Repo.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}

	results := h.Deriver.SummarizeAll(snap, today)
	entries := make([]FileListEntryDTO, len(results))
	for i, res := range results {
		entries[i] = FileListEntryDTO{FileID: res.FileID}
		if res.Err != nil {
			h.Log.Warn().Err(res.Err).Str("file_id", res.FileID).Msg("file summary failed")
			entries[i].Error = res.Err.Error()
			continue
		}
		h.logWarnings(res.Summary.Warnings)
		dto := toFileSummaryDTO(*res.Summary)
		entries[i].Summary = &dto
	}

	writeJSON(w, http.StatusOK, entries)
}

// GetFile returns one file summary.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summarize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toFileSummaryDTO(summary))
}

// GetFileBalance returns the balance of one file.
func (h *Handler) GetFileBalance(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.summarize(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(summary.Balance))
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) (backoffice.FileSummary, bool) {
	fileID := chi.URLParam(r, "id")

	today, err := h.today(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today parameter", err)
		return backoffice.FileSummary{}, false
	}

	snap, err := h.Repo.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return backoffice.FileSummary{}, false
	}

	summary, err := h.Deriver.Summarize(snap, fileID, today)
	if err != nil {
		writeDomainError(w, "Failed to derive file summary", err)
		return backoffice.FileSummary{}, false
	}
	h.logWarnings(summary.Warnings)
	return summary, true
}

// CreateFile opens a file for a lot.
func (h *Handler) CreateFile(w http.ResponseWriter, r *http.Request) {
	var req CreateFileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	file := engine.File{
		ID:    req.ID,
		Folio: req.Folio,
		Lot:   engine.RelationTo(req.LotID),
	}
	if file.ID == "" {
		file.ID = h.NewID()
	}
	if req.ClientID != "" {
		file.Client = engine.RelationTo(req.ClientID)
	}

	if err := h.Repo.SaveFile(r.Context(), file); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save file", err)
		return
	}

	writeJSON(w, http.StatusCreated, FileSummaryDTO{
		ID:           file.ID,
		Folio:        file.Folio,
		LotID:        req.LotID,
		ClientID:     req.ClientID,
		Documents:    []DocumentDTO{},
		Certificates: []CertificateDTO{},
		Warnings:     []engine.Warning{},
	})
}

// RecordPayment appends a payment to a file.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var req RecordPaymentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, ok := h.findFile(w, r, fileID); !ok {
		return
	}

	p := engine.Payment{
		ID:     req.ID,
		File:   engine.RelationTo(fileID),
		Amount: engine.NewMoneyFromDecimal(req.Amount),
		PaidAt: engine.DateOf(h.Now()),
	}
	if p.ID == "" {
		p.ID = h.NewID()
	}
	if req.PaidAt != "" {
		p.PaidAt = engine.ParseDate(req.PaidAt)
	}

	if err := h.Repo.SavePayment(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, PaymentDTO{
		ID:     p.ID,
		FileID: fileID,
		Amount: p.Amount,
		PaidAt: p.PaidAt.String(),
	})
}

// findFile loads a snapshot and checks the file exists.
func (h *Handler) findFile(w http.ResponseWriter, r *http.Request, fileID string) (backoffice.Snapshot, bool) {
	snap, err := h.Repo.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return backoffice.Snapshot{}, false
	}
	if _, ok := snap.File(fileID); !ok {
		writeError(w, http.StatusNotFound, "File not found", fmt.Errorf("%w: %s", backoffice.ErrFileNotFound, fileID))
		return backoffice.Snapshot{}, false
	}
	return snap, true
}

// =============================================================================
// LOT / CLIENT HANDLERS
// =============================================================================

// CreateLot creates or updates a lot.
func (h *Handler) CreateLot(w http.ResponseWriter, r *http.Request) {
	var req CreateLotRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	lot := engine.Lot{ID: req.ID, Name: req.Name, Price: engine.NewMoneyFromDecimal(req.Price)}
	if lot.ID == "" {
		lot.ID = h.NewID()
	}

	if err := h.Repo.SaveLot(r.Context(), lot); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save lot", err)
		return
	}

	writeJSON(w, http.StatusCreated, LotDTO{ID: lot.ID, Name: lot.Name, Price: lot.Price})
}

// CreateClient creates or updates a client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	client := engine.Client{ID: req.ID, Name: req.Name}
	if client.ID == "" {
		client.ID = h.NewID()
	}

	if err := h.Repo.SaveClient(r.Context(), client); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save client", err)
		return
	}

	writeJSON(w, http.StatusCreated, ClientDTO{ID: client.ID, Name: client.Name})
}

// =============================================================================
// DOCUMENT HANDLERS
// =============================================================================

// UploadDocument stores the next version of a file's document and flips the
// previous active version to replaced.
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var req UploadDocumentRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if _, ok := h.findFile(w, r, fileID); !ok {
		return
	}

	var rep backoffice.Replacement
	err := h.Repo.UpdateDocuments(r.Context(), func(all []engine.Document) ([]engine.Document, error) {
		var err error
		rep, err = backoffice.ReplaceDocument(all, fileID, backoffice.Upload{Name: req.Name, URL: req.URL}, h.NewID(), h.Now())
		if err != nil {
			return nil, err
		}
		return append(append([]engine.Document{}, rep.Retired...), rep.Created), nil
	})
	if err != nil {
		writeDomainError(w, "Failed to save document version", err)
		return
	}

	h.Log.Info().
		Str("file_id", fileID).
		Str("document_id", rep.Created.ID).
		Int("version", int(rep.Created.Version)).
		Int("retired", len(rep.Retired)).
		Msg("document uploaded")

	writeJSON(w, http.StatusCreated, ReplacementDTO{
		Created: toDocumentDTO(rep.Created),
		Retired: toDocumentDTOs(rep.Retired),
	})
}

// DeleteDocument marks a document deleted. The record is kept.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := h.Repo.GetDocument(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get document", err)
		return
	}

	retired, err := backoffice.RetireDocument(doc)
	if err != nil {
		writeDomainError(w, "Failed to delete document", err)
		return
	}

	if err := h.Repo.SaveDocuments(r.Context(), retired); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save document", err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentDTO(retired))
}

// =============================================================================
// CERTIFICATE HANDLERS
// =============================================================================

// IssueCertificate stores the next certificate version of a file.
func (h *Handler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "id")

	var req IssueCertificateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	today, err := h.today(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today parameter", err)
		return
	}

	if _, ok := h.findFile(w, r, fileID); !ok {
		return
	}

	in := backoffice.CertificateInput{ExpiryDate: engine.ParseDate(req.ExpiryDate)}
	if req.IssueDate != "" {
		in.IssueDate = engine.ParseDate(req.IssueDate)
	}

	var cert engine.Certificate
	err = h.Repo.UpdateCertificates(r.Context(), func(all []engine.Certificate) ([]engine.Certificate, error) {
		var err error
		cert, err = h.Deriver.IssueCertificate(all, fileID, in, h.NewID(), today)
		if err != nil {
			return nil, err
		}
		return []engine.Certificate{cert}, nil
	})
	if err != nil {
		writeDomainError(w, "Failed to issue certificate", err)
		return
	}

	h.Log.Info().
		Str("file_id", fileID).
		Str("certificate_id", cert.ID).
		Int("version", int(cert.Version)).
		Str("estado", cert.Estado).
		Msg("certificate issued")

	writeJSON(w, http.StatusCreated, toCertificateDTO(h.Deriver.View(cert, today)))
}

// DeleteCertificate sets the cancelled flag. The record is kept.
func (h *Handler) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	today, err := h.today(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today parameter", err)
		return
	}

	cert, err := h.Repo.GetCertificate(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get certificate", err)
		return
	}

	cancelled, err := backoffice.RetireCertificate(cert)
	if err != nil {
		writeDomainError(w, "Failed to cancel certificate", err)
		return
	}

	if err := h.Repo.SaveCertificates(r.Context(), cancelled); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save certificate", err)
		return
	}

	writeJSON(w, http.StatusOK, toCertificateDTO(h.Deriver.View(cancelled, today)))
}

// ListCertificates returns every certificate view, or with ?within=N only
// those expiring in the next N days (N <= 0 uses the configured window).
func (h *Handler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today parameter", err)
		return
	}

	snap, err := h.Repo.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", err)
		return
	}

	if s := r.URL.Query().Get("within"); s != "" {
		within, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid within parameter", err)
			return
		}
		upcoming, warnings := h.Deriver.Upcoming(snap, today, within)
		h.logWarnings(warnings)
		if within <= 0 {
			within = h.Deriver.UpcomingWindow()
		}
		writeJSON(w, http.StatusOK, CertificateListDTO{
			Certificates: toCertificateDTOs(upcoming),
			Warnings:     nonNilWarnings(warnings),
			Within:       within,
		})
		return
	}

	views, warnings := h.Deriver.Certificates(snap, today)
	h.logWarnings(warnings)
	writeJSON(w, http.StatusOK, CertificateListDTO{
		Certificates: toCertificateDTOs(views),
		Warnings:     nonNilWarnings(warnings),
	})
}

// RefreshEstados rewrites every certificate whose persisted estado no longer
// matches its recomputed lifecycle state.
func (h *Handler) RefreshEstados(w http.ResponseWriter, r *http.Request) {
	today, err := h.today(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today parameter", err)
		return
	}

	stale, err := h.refreshEstados(r.Context(), today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to refresh estados", err)
		return
	}

	refreshed := make([]CertificateDTO, len(stale))
	for i, c := range stale {
		refreshed[i] = toCertificateDTO(h.Deriver.View(c, today))
	}
	writeJSON(w, http.StatusOK, RefreshResultDTO{Refreshed: refreshed})
}

// refreshEstados saves every certificate whose estado cache is stale and
// returns them.
func (h *Handler) refreshEstados(ctx context.Context, today time.Time) ([]engine.Certificate, error) {
	snap, err := h.Repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	stale := h.Deriver.StaleEstados(snap, today)
	if len(stale) == 0 {
		return nil, nil
	}
	if err := h.Repo.SaveCertificates(ctx, stale...); err != nil {
		return nil, err
	}
	return stale, nil
}

// =============================================================================
// DERIVATION HANDLERS
// =============================================================================

// Import parses a backend payload and upserts every record.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	snap, err := h.Factory.ParseSnapshot(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payload", err)
		return
	}

	if err := h.Repo.Import(r.Context(), snap); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to import records", err)
		return
	}

	h.Log.Info().Int("records", snap.Size()).Msg("payload imported")
	writeJSON(w, http.StatusOK, toImportResultDTO(snap))
}

// Derive summarizes a file from a posted snapshot. Nothing is stored.
func (h *Handler) Derive(w http.ResponseWriter, r *http.Request) {
	var req DeriveRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	today := engine.Midnight(h.Now())
	if req.Today != "" {
		today = engine.ParseDate(req.Today).Time
	}

	snap, err := h.Factory.ParseSnapshot(req.Snapshot)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid snapshot", err)
		return
	}

	summary, err := h.Deriver.Summarize(snap, req.FileID, today)
	if err != nil {
		writeDomainError(w, "Failed to derive file summary", err)
		return
	}

	writeJSON(w, http.StatusOK, toFileSummaryDTO(summary))
}

func toImportResultDTO(snap backoffice.Snapshot) ImportResultDTO {
	return ImportResultDTO{
		Imported:     snap.Size(),
		Lots:         len(snap.Lots),
		Clients:      len(snap.Clients),
		Files:        len(snap.Files),
		Payments:     len(snap.Payments),
		Documents:    len(snap.Documents),
		Certificates: len(snap.Certificates),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps backoffice and engine errors to a status.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case backoffice.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, backoffice.ErrAlreadyDeleted):
		status = http.StatusConflict
	case errors.Is(err, backoffice.ErrInvalidExpiry), engine.IsDataContractError(err):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, message, err)
}
