package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/policydesk/internal/security/audit"
	"github.com/yourorg/policydesk/internal/service"
)

// DocumentsHandler handles document upload and status endpoints
type DocumentsHandler struct {
	documents *service.DocumentService
	auditLog  *audit.Logger
	logger    *slog.Logger
}

// NewDocumentsHandler creates a new documents handler
func NewDocumentsHandler(documents *service.DocumentService, auditLog *audit.Logger, logger *slog.Logger) *DocumentsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &DocumentsHandler{
		documents: documents,
		auditLog:  auditLog,
		logger:    logger,
	}
}

// UploadRequest represents a document upload request. Only metadata travels
// through this API; the binary itself is delivered to object storage out of
// band.
type UploadRequest struct {
	FileName  string `json:"fileName"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Upload handles POST /api/documents
func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing auth")
		return
	}

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode upload request",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	doc, err := h.documents.Upload(r.Context(), actor, service.UploadInput{
		FileName:  req.FileName,
		SizeBytes: req.SizeBytes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.auditLog.LogDocumentUpload(r.Context(), actor.TenantID, actor.UserID, doc.ID, "accepted", doc.FileName)
	writeJSON(w, http.StatusAccepted, toDocumentResponse(doc))
}

// List handles GET /api/documents
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing auth")
		return
	}

	list, err := h.documents.List(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	docs := make([]DocumentResponse, 0, len(list))
	for _, d := range list {
		docs = append(docs, toDocumentResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// Status handles GET /api/documents/{id}
func (h *DocumentsHandler) Status(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing auth")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing document id")
		return
	}

	doc, err := h.documents.Get(r.Context(), actor, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDocumentResponse(doc))
}
