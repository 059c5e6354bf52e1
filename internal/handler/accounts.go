package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/security/audit"
	"github.com/yourorg/policydesk/internal/service"
)

// AccountsHandler handles account provisioning endpoints
type AccountsHandler struct {
	provisioning *service.ProvisioningService
	auditLog     *audit.Logger
	logger       *slog.Logger
}

// NewAccountsHandler creates a new accounts handler
func NewAccountsHandler(provisioning *service.ProvisioningService, auditLog *audit.Logger, logger *slog.Logger) *AccountsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AccountsHandler{
		provisioning: provisioning,
		auditLog:     auditLog,
		logger:       logger,
	}
}

// CreateAccountRequest represents an account creation request
type CreateAccountRequest struct {
	AgencyID string `json:"agencyId"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Create handles POST /api/accounts
func (h *AccountsHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing auth")
		return
	}

	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode account request",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.provisioning.CreateUser(r.Context(), actor, service.CreateUserInput{
		AgencyID: req.AgencyID,
		Role:     domain.Role(req.Role),
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if de, denied := domain.IsDenied(err); denied {
			h.auditLog.LogDenied(r.Context(), actor.TenantID, actor.UserID, string(de.Reason))
		}
		writeDomainError(w, err)
		return
	}

	h.auditLog.LogAccountCreated(r.Context(), actor.TenantID, actor.UserID, user.ID, string(user.Role))
	writeJSON(w, http.StatusCreated, toAccountResponse(user))
}

// List handles GET /api/accounts
func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing auth")
		return
	}

	users, err := h.provisioning.ListUsers(r.Context(), actor)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	accounts := make([]AccountResponse, 0, len(users))
	for _, u := range users {
		accounts = append(accounts, toAccountResponse(u))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}
