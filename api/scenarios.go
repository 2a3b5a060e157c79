/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	back-office data. Each scenario is a backend payload, parsed by the
	record factory exactly as a real import would be, so the demos also
	exercise the wire quirks the engine tolerates.

AVAILABLE SCENARIOS:

	two-files:          F1/F2 with payments; F2's payments never count for F1
	expiry-boundaries:  Certificates at 0, 10, 11 and -1 days, a cancelled
	                    one and an unparseable expiry
	dirty-backend:      Paginated lists, expanded relations, string numbers,
	                    negative and non-numeric amounts, a numeric relation
	document-lineage:   Replaced and deleted document history

HOW SCENARIOS WORK:
 1. Reset the store
 2. Build the payload with dates relative to today
 3. Parse it via factory.RecordFactory
 4. Import the snapshot

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "expiry-boundaries"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Import handler (same parse + import path)
  - factory/records.go: Payload format
*/
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "two-files",
		Name:        "Two Files",
		Description: "Lot price 200000 with 80000 + 40000 paid; a second file's payments are ignored",
		Category:    "ledger",
	},
	{
		ID:          "expiry-boundaries",
		Name:        "Expiry Boundaries",
		Description: "Certificates expiring today, in 10 and 11 days, yesterday, cancelled and unparseable",
		Category:    "certificates",
	},
	{
		ID:          "dirty-backend",
		Name:        "Dirty Backend",
		Description: "Paginated lists, expanded relations, string amounts and malformed records",
		Category:    "ledger",
	},
	{
		ID:          "document-lineage",
		Name:        "Document Lineage",
		Description: "Replaced and deleted versions; the next upload still gets a fresh number",
		Category:    "documents",
	},
}

var scenarioPayloads = map[string]func(today time.Time) string{
	"two-files":         twoFilesPayload,
	"expiry-boundaries": expiryBoundariesPayload,
	"dirty-backend":     dirtyBackendPayload,
	"document-lineage":  documentLineagePayload,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	build, ok := scenarioPayloads[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	today, err := h.today(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid today parameter", err)
		return
	}

	snap, err := h.Factory.ParseSnapshot([]byte(build(today)))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to parse scenario", err)
		return
	}

	ctx := r.Context()
	if err := h.Repo.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	if err := h.Repo.Import(ctx, snap); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.Log.Info().Str("scenario", req.ScenarioID).Int("records", snap.Size()).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, toImportResultDTO(snap))
}

// ResetStore clears all data.
func (h *Handler) ResetStore(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// PAYLOADS
// =============================================================================

// day formats today plus n days.
func day(today time.Time, n int) string {
	return today.AddDate(0, 0, n).Format(engine.DateLayout)
}

func twoFilesPayload(today time.Time) string {
	return fmt.Sprintf(`{
  "lots": [
    {"id": "lot-1", "name": "Manzana 3 Lote 7", "price": 200000},
    {"id": "lot-2", "name": "Manzana 1 Lote 2", "price": 90000}
  ],
  "clients": [
    {"id": "cli-1", "name": "Ana Ruiz"},
    {"id": "cli-2", "name": "Jorge Paz"}
  ],
  "files": [
    {"id": "F1", "folio": "EXP-001", "lot": "lot-1", "client": "cli-1"},
    {"id": "F2", "folio": "EXP-002", "lot": "lot-2", "client": "cli-2"}
  ],
  "payments": [
    {"id": "p-1", "file": "F1", "amount": 80000, "paid_at": %q},
    {"id": "p-2", "file": "F1", "amount": 40000, "paid_at": %q},
    {"id": "p-3", "file": "F2", "amount": 50000, "paid_at": %q}
  ],
  "certificates": [
    {"id": "c-1", "file": "F1", "version": 1, "issue_date": %q, "expiry_date": %q, "estado": "current"}
  ]
}`, day(today, -60), day(today, -30), day(today, -15), day(today, -20), day(today, 90))
}

func expiryBoundariesPayload(today time.Time) string {
	return fmt.Sprintf(`{
  "lots": [{"id": "lot-1", "name": "Manzana 2 Lote 1", "price": 150000}],
  "files": [
    {"id": "F1", "folio": "EXP-101", "lot": "lot-1"},
    {"id": "F2", "folio": "EXP-102", "lot": "lot-1"},
    {"id": "F3", "folio": "EXP-103", "lot": "lot-1"},
    {"id": "F4", "folio": "EXP-104", "lot": "lot-1"},
    {"id": "F5", "folio": "EXP-105", "lot": "lot-1"},
    {"id": "F6", "folio": "EXP-106", "lot": "lot-1"}
  ],
  "payments": [
    {"id": "p-1", "file": "F1", "amount": 50000},
    {"id": "p-2", "file": "F1", "amount": 30000}
  ],
  "certificates": [
    {"id": "c-today", "file": "F1", "version": 1, "expiry_date": %q, "estado": "current"},
    {"id": "c-ten", "file": "F2", "version": 1, "expiry_date": %q},
    {"id": "c-eleven", "file": "F3", "version": 1, "expiry_date": %q},
    {"id": "c-yesterday", "file": "F4", "version": 1, "expiry_date": %q, "estado": "expiring"},
    {"id": "c-cancelled", "file": "F5", "version": 1, "expiry_date": %q, "cancelled": true},
    {"id": "c-garbage", "file": "F6", "version": 1, "expiry_date": "pronto"}
  ]
}`, day(today, 0), day(today, 10), day(today, 11), day(today, -1), day(today, 5))
}

func dirtyBackendPayload(today time.Time) string {
	return fmt.Sprintf(`{
  "lots": {"page": 1, "perPage": 50, "totalItems": 2, "items": [
    {"id": "lot-1", "name": "Manzana 5 Lote 3", "price": "120000.50"},
    {"id": "lot-2", "name": "Manzana 5 Lote 4", "price": "consultar"}
  ]},
  "clients": {"items": [{"id": "cli-1", "name": "Marta Gil"}]},
  "files": {"items": [
    {"id": "F1", "folio": "EXP-201", "lot": "lot-1", "client": "cli-1",
     "expand": {"client": {"id": "cli-1", "name": "Marta Gil"}}},
    {"id": "F2", "folio": "EXP-202", "lot": ["lot-2"]},
    {"id": "F3", "folio": "EXP-203", "lot": 42}
  ]},
  "payments": [
    {"id": "p-1", "file": {"id": "F1"}, "amount": "20000"},
    {"id": "p-2", "file": ["F1"], "amount": -500},
    {"id": "p-3", "file": "F1", "amount": "veinte mil"},
    {"id": "p-4", "file": true, "amount": 1000}
  ],
  "documents": [
    {"id": "d-1", "file": "F1", "name": "contrato.pdf", "version": "2", "status": "active"}
  ],
  "certificates": [
    {"id": "c-1", "file": {"id": "F1"}, "version": "NaN", "expiry_date": %q}
  ]
}`, day(today, 3)+" 00:00:00.000Z")
}

func documentLineagePayload(today time.Time) string {
	return fmt.Sprintf(`{
  "lots": [{"id": "lot-1", "name": "Manzana 7 Lote 9", "price": 80000}],
  "files": [
    {"id": "F1", "folio": "EXP-301", "lot": "lot-1"},
    {"id": "F2", "folio": "EXP-302", "lot": "lot-1"}
  ],
  "documents": [
    {"id": "d-1", "file": "F1", "name": "plano.pdf", "version": 1, "status": "replaced", "uploaded_at": %q},
    {"id": "d-2", "file": "F1", "name": "plano.pdf", "version": 2, "status": "replaced", "uploaded_at": %q},
    {"id": "d-3", "file": "F1", "name": "plano.pdf", "version": 3, "status": "deleted", "uploaded_at": %q},
    {"id": "d-4", "file": "F2", "name": "contrato.pdf", "version": 7, "status": "active", "uploaded_at": %q}
  ],
  "certificates": [
    {"id": "c-1", "file": "F1", "version": 1, "expiry_date": %q, "cancelled": true},
    {"id": "c-2", "file": "F1", "version": 2, "expiry_date": %q}
  ]
}`, day(today, -90), day(today, -60), day(today, -30), day(today, -10), day(today, -5), day(today, 200))
}
