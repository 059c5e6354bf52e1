package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/security"
	"github.com/yourorg/policydesk/internal/security/middleware"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeDomainError maps service errors onto the HTTP error taxonomy. Policy
// denials carry their machine-readable reason so clients can distinguish a
// role gate from a scope gate.
func writeDomainError(w http.ResponseWriter, err error) {
	if de, ok := domain.IsDenied(err); ok {
		writeJSON(w, http.StatusForbidden, ErrorResponse{Error: "forbidden", Reason: string(de.Reason)})
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrVPConflict):
		writeError(w, http.StatusConflict, "agency already has a VP")
	case errors.Is(err, domain.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, "email already in use")
	case errors.Is(err, domain.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid token")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// AccountResponse is the API projection of a user. The credential never
// appears here.
type AccountResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	AgencyID  string    `json:"agencyId,omitempty"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func toAccountResponse(u *domain.User) AccountResponse {
	return AccountResponse{
		ID:        u.ID,
		TenantID:  u.TenantID,
		AgencyID:  u.AgencyID,
		Role:      string(u.Role),
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// AgencyResponse is the API projection of an agency
type AgencyResponse struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenantId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func toAgencyResponse(a *domain.Agency) AgencyResponse {
	return AgencyResponse{
		ID:        a.ID,
		TenantID:  a.TenantID,
		Name:      a.Name,
		CreatedAt: a.CreatedAt,
	}
}

// DocumentResponse is the API projection of a document
type DocumentResponse struct {
	ID         string            `json:"id"`
	TenantID   string            `json:"tenantId"`
	AgencyID   string            `json:"agencyId,omitempty"`
	UploaderID string            `json:"uploaderId"`
	FileName   string            `json:"fileName"`
	SizeBytes  int64             `json:"sizeBytes"`
	Status     string            `json:"status"`
	Fields     map[string]string `json:"fields,omitempty"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func toDocumentResponse(d *domain.Document) DocumentResponse {
	return DocumentResponse{
		ID:         d.ID,
		TenantID:   d.TenantID,
		AgencyID:   d.AgencyID,
		UploaderID: d.UploaderID,
		FileName:   d.FileName,
		SizeBytes:  d.SizeBytes,
		Status:     d.Status,
		Fields:     d.Fields,
		Error:      d.Error,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// actorFromRequest builds the acting identity from the verified token claims.
// Returns false if the request somehow reached a handler without passing the
// auth middleware.
func actorFromRequest(r *http.Request) (security.Actor, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		return security.Actor{}, false
	}
	return security.Actor{
		UserID:   claims.UserID,
		TenantID: claims.TenantID,
		AgencyID: claims.AgencyID,
		Role:     claims.Role,
	}, true
}
