package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/security/audit"
	"github.com/yourorg/policydesk/internal/service"
)

// AgenciesHandler handles agency management endpoints
type AgenciesHandler struct {
	provisioning *service.ProvisioningService
	auditLog     *audit.Logger
	logger       *slog.Logger
}

// NewAgenciesHandler creates a new agencies handler
func NewAgenciesHandler(provisioning *service.ProvisioningService, auditLog *audit.Logger, logger *slog.Logger) *AgenciesHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AgenciesHandler{
		provisioning: provisioning,
		auditLog:     auditLog,
		logger:       logger,
	}
}

// CreateAgencyRequest represents an agency creation request
type CreateAgencyRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/agencies
func (h *AgenciesHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing auth")
		return
	}

	var req CreateAgencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	agency, err := h.provisioning.CreateAgency(r.Context(), actor, req.Name)
	if err != nil {
		if de, denied := domain.IsDenied(err); denied {
			h.auditLog.LogDenied(r.Context(), actor.TenantID, actor.UserID, string(de.Reason))
		}
		writeDomainError(w, err)
		return
	}

	h.auditLog.LogAgencyCreated(r.Context(), actor.TenantID, actor.UserID, agency.ID)
	writeJSON(w, http.StatusCreated, toAgencyResponse(agency))
}

// List handles GET /api/agencies
func (h *AgenciesHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing auth")
		return
	}

	list, err := h.provisioning.ListAgencies(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	agencies := make([]AgencyResponse, 0, len(list))
	for _, a := range list {
		agencies = append(agencies, toAgencyResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agencies": agencies,
		"count":    len(agencies),
	})
}
