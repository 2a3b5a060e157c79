/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the derived back-office state from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Files:
    FileSummaryDTO, FileListEntryDTO, BalanceDTO, CreateFileRequest

  Records:
    LotDTO, ClientDTO, CreateLotRequest, CreateClientRequest,
    PaymentDTO, RecordPaymentRequest

  Documents:
    DocumentDTO, UploadDocumentRequest, ReplacementDTO

  Certificates:
    CertificateDTO, CertificateListDTO, IssueCertificateRequest

  Derivation:
    DeriveRequest, ImportResultDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Request types carry go-playground/validator tags, checked by
  decodeAndValidate (validate.go).

SEE ALSO:
  - handlers.go: Uses these types
  - backoffice/types.go: FileSummary, CertificateView
*/
package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/warp/lot-engine/backoffice"
	"github.com/warp/lot-engine/engine"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// BalanceDTO is the outstanding debt of a file.
type BalanceDTO struct {
	FileID   string           `json:"file_id"`
	Price    decimal.Decimal  `json:"price"`
	Paid     decimal.Decimal  `json:"paid"`
	Owed     decimal.Decimal  `json:"owed"`
	Settled  bool             `json:"settled"`
	Warnings []engine.Warning `json:"warnings"`
}

// FileSummaryDTO is the file screen.
type FileSummaryDTO struct {
	ID         string `json:"id"`
	Folio      string `json:"folio"`
	LotID      string `json:"lot_id,omitempty"`
	LotName    string `json:"lot_name,omitempty"`
	ClientID   string `json:"client_id,omitempty"`
	ClientName string `json:"client_name,omitempty"`

	Balance BalanceDTO `json:"balance"`

	NextDocumentVersion         int              `json:"next_document_version"`
	NextCertificateVersion      int              `json:"next_certificate_version"`
	DocumentVersionUncertain    bool             `json:"document_version_uncertain,omitempty"`
	CertificateVersionUncertain bool             `json:"certificate_version_uncertain,omitempty"`
	ActiveDocument              *DocumentDTO     `json:"active_document,omitempty"`
	Documents                   []DocumentDTO    `json:"documents"`
	Certificates                []CertificateDTO `json:"certificates"`
	Warnings                    []engine.Warning `json:"warnings"`
}

// FileListEntryDTO is one row of the file list. Exactly one of Summary and
// Error is set.
type FileListEntryDTO struct {
	FileID  string          `json:"file_id"`
	Summary *FileSummaryDTO `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CreateFileRequest opens an expediente for a lot.
type CreateFileRequest struct {
	ID       string `json:"id"`
	Folio    string `json:"folio" validate:"required"`
	LotID    string `json:"lot_id" validate:"required"`
	ClientID string `json:"client_id"`
}

// LotDTO represents a lot.
type LotDTO struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Price engine.Money `json:"price"`
}

// CreateLotRequest is the request to create or update a lot.
type CreateLotRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price" validate:"gte=0"`
}

// ClientDTO represents a client.
type ClientDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateClientRequest is the request to create or update a client.
type CreateClientRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
}

// PaymentDTO represents a recorded payment.
type PaymentDTO struct {
	ID     string       `json:"id"`
	FileID string       `json:"file_id"`
	Amount engine.Money `json:"amount"`
	PaidAt string       `json:"paid_at,omitempty"`
}

// RecordPaymentRequest is the request to record a payment against a file.
type RecordPaymentRequest struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	PaidAt string          `json:"paid_at" validate:"omitempty,datetime=2006-01-02"`
}

// DocumentDTO represents one version of a file's document.
type DocumentDTO struct {
	ID         string `json:"id"`
	FileID     string `json:"file_id,omitempty"`
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	Version    int    `json:"version"`
	Status     string `json:"status"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

// UploadDocumentRequest replaces a file's active document.
type UploadDocumentRequest struct {
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"omitempty,url"`
}

// ReplacementDTO is the result of a document upload.
type ReplacementDTO struct {
	Created DocumentDTO   `json:"created"`
	Retired []DocumentDTO `json:"retired"`
}

// CertificateDTO is a certificate with its recomputed lifecycle.
type CertificateDTO struct {
	ID            string `json:"id"`
	FileID        string `json:"file_id,omitempty"`
	IssueDate     string `json:"issue_date,omitempty"`
	ExpiryDate    string `json:"expiry_date"`
	Version       int    `json:"version"`
	State         string `json:"state"`
	DaysRemaining int    `json:"days_remaining"`
	Display       string `json:"display"`
	Cancelled     bool   `json:"cancelled"`
	Estado        string `json:"estado,omitempty"`
	StaleCache    bool   `json:"stale_cache,omitempty"`
}

// CertificateListDTO is the certificate list or the upcoming-expiry list.
type CertificateListDTO struct {
	Certificates []CertificateDTO `json:"certificates"`
	Warnings     []engine.Warning `json:"warnings"`
	Within       int              `json:"within,omitempty"`
}

// IssueCertificateRequest creates the next certificate version of a file.
type IssueCertificateRequest struct {
	IssueDate  string `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate string `json:"expiry_date" validate:"required,datetime=2006-01-02"`
}

// DeriveRequest derives a file summary from a posted snapshot without
// touching the store.
type DeriveRequest struct {
	FileID   string          `json:"file_id" validate:"required"`
	Today    string          `json:"today" validate:"omitempty,datetime=2006-01-02"`
	Snapshot json.RawMessage `json:"snapshot" validate:"required"`
}

// ImportResultDTO reports an import.
type ImportResultDTO struct {
	Imported     int `json:"imported"`
	Lots         int `json:"lots"`
	Clients      int `json:"clients"`
	Files        int `json:"files"`
	Payments     int `json:"payments"`
	Documents    int `json:"documents"`
	Certificates int `json:"certificates"`
}

// RefreshResultDTO lists certificates whose estado cache was rewritten.
type RefreshResultDTO struct {
	Refreshed []CertificateDTO `json:"refreshed"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// LoadScenarioRequest selects a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details any               `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBalanceDTO(b engine.Balance) BalanceDTO {
	return BalanceDTO{
		FileID:   b.FileID,
		Price:    b.Price,
		Paid:     b.Paid,
		Owed:     b.Owed,
		Settled:  b.Settled(),
		Warnings: nonNilWarnings(b.Warnings),
	}
}

func toDocumentDTO(d engine.Document) DocumentDTO {
	res, _ := d.File.Resolve()
	return DocumentDTO{
		ID:         d.ID,
		FileID:     res.ID,
		Name:       d.Name,
		URL:        d.URL,
		Version:    int(d.Version),
		Status:     string(d.Status),
		UploadedAt: d.UploadedAt.String(),
	}
}

func toDocumentDTOs(docs []engine.Document) []DocumentDTO {
	dtos := make([]DocumentDTO, len(docs))
	for i, d := range docs {
		dtos[i] = toDocumentDTO(d)
	}
	return dtos
}

func toCertificateDTO(v backoffice.CertificateView) CertificateDTO {
	c := v.Certificate
	return CertificateDTO{
		ID:            c.ID,
		FileID:        v.FileID,
		IssueDate:     c.IssueDate.String(),
		ExpiryDate:    c.ExpiryDate.String(),
		Version:       int(c.Version),
		State:         string(v.Lifecycle.State),
		DaysRemaining: v.Lifecycle.DaysRemaining,
		Display:       string(v.Display),
		Cancelled:     c.Cancelled,
		Estado:        c.Estado,
		StaleCache:    v.StaleCache,
	}
}

func toCertificateDTOs(views []backoffice.CertificateView) []CertificateDTO {
	dtos := make([]CertificateDTO, len(views))
	for i, v := range views {
		dtos[i] = toCertificateDTO(v)
	}
	return dtos
}

func toFileSummaryDTO(s backoffice.FileSummary) FileSummaryDTO {
	dto := FileSummaryDTO{
		ID:                          s.File.ID,
		Folio:                       s.File.Folio,
		LotID:                       s.LotID,
		LotName:                     s.LotName,
		ClientID:                    s.ClientID,
		ClientName:                  s.ClientName,
		Balance:                     toBalanceDTO(s.Balance),
		NextDocumentVersion:         s.NextDocumentVersion,
		NextCertificateVersion:      s.NextCertificateVersion,
		DocumentVersionUncertain:    s.DocumentVersionUncertain,
		CertificateVersionUncertain: s.CertificateVersionUncertain,
		Documents:                   toDocumentDTOs(s.Documents),
		Certificates:                toCertificateDTOs(s.Certificates),
		Warnings:                    nonNilWarnings(s.Warnings),
	}
	if active, ok := s.ActiveDocument(); ok {
		d := toDocumentDTO(active)
		dto.ActiveDocument = &d
	}
	return dto
}

func nonNilWarnings(w []engine.Warning) []engine.Warning {
	if w == nil {
		return []engine.Warning{}
	}
	return w
}
