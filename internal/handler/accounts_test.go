package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/policydesk/internal/domain"
	"github.com/yourorg/policydesk/internal/repository"
	"github.com/yourorg/policydesk/internal/security"
	"github.com/yourorg/policydesk/internal/security/audit"
	"github.com/yourorg/policydesk/internal/security/auth"
	"github.com/yourorg/policydesk/internal/security/credentials"
	"github.com/yourorg/policydesk/internal/security/middleware"
	"github.com/yourorg/policydesk/internal/service"
)

type apiFixture struct {
	server *httptest.Server
	tm     *auth.TokenManager
	store  *repository.MemoryTenancyStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	store := repository.NewMemoryTenancyStore()
	if err := store.Create(ctx, &domain.Tenant{ID: "t1", Name: "Tenant One"}); err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	if err := store.Agencies().Create(ctx, &domain.Agency{ID: "a1", TenantID: "t1", Name: "Agency One"}); err != nil {
		t.Fatalf("create agency: %v", err)
	}

	creds := credentials.NewStore(4)
	policy := security.NewAuthorizationPolicy(log)
	tm, err := auth.NewTokenManager("test-secret", "")
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	auditLogger := audit.NewLogger(log)

	authService := service.NewAuthService(store.Users(), creds, tm, 15*time.Minute, log)
	provisioning := service.NewProvisioningService(store, store.Agencies(), store.Users(), creds, policy, log)

	authHandler := NewAuthHandler(authService, log)
	accountsHandler := NewAccountsHandler(provisioning, auditLogger, log)
	agenciesHandler := NewAgenciesHandler(provisioning, auditLogger, log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/accounts", accountsHandler.Create)
	mux.HandleFunc("GET /api/accounts", accountsHandler.List)
	mux.HandleFunc("POST /api/agencies", agenciesHandler.Create)
	mux.HandleFunc("GET /api/agencies", agenciesHandler.List)

	srv := httptest.NewServer(middleware.JWTMiddleware(tm, log)(mux))
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, tm: tm, store: store}
}

func (f *apiFixture) token(t *testing.T, userID, agencyID string, role domain.Role) string {
	t.Helper()
	token, err := f.tm.Issue(userID, "t1", agencyID, role, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (f *apiFixture) post(t *testing.T, path, token string, payload interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", f.server.URL+path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	return resp, body
}

func TestCreateAccountHTTP(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.token(t, "u-admin", "", domain.RoleTenantAdmin)

	resp, body := f.post(t, "/api/accounts", admin, map[string]string{
		"agencyId": "a1", "role": "VP", "email": "vp@acme.com", "password": "Sup3rSecret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", resp.StatusCode, body)
	}
	if body["passwordHash"] != nil && body["passwordHash"] != "" {
		t.Fatalf("response leaked credential: %v", body)
	}
}

func TestCreateAccountErrorTaxonomy(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.token(t, "u-admin", "", domain.RoleTenantAdmin)
	agent := f.token(t, "u-agent", "a1", domain.RoleAgent)

	// Seed a VP so the conflict case can fire
	resp, body := f.post(t, "/api/accounts", admin, map[string]string{
		"agencyId": "a1", "role": "VP", "email": "vp@acme.com", "password": "Sup3rSecret",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("seed VP failed: %d %v", resp.StatusCode, body)
	}

	cases := []struct {
		name    string
		token   string
		payload map[string]string
		status  int
	}{
		{"no token", "", map[string]string{"agencyId": "a1", "role": "AGENT", "email": "x@acme.com", "password": "Sup3rSecret"}, http.StatusUnauthorized},
		{"forbidden actor", agent, map[string]string{"agencyId": "a1", "role": "AGENT", "email": "x@acme.com", "password": "Sup3rSecret"}, http.StatusForbidden},
		{"second VP", admin, map[string]string{"agencyId": "a1", "role": "VP", "email": "vp2@acme.com", "password": "Sup3rSecret"}, http.StatusConflict},
		{"duplicate email", admin, map[string]string{"agencyId": "a1", "role": "AGENT", "email": "VP@acme.com", "password": "Sup3rSecret"}, http.StatusConflict},
		{"bad role", admin, map[string]string{"agencyId": "a1", "role": "SUPERUSER", "email": "y@acme.com", "password": "Sup3rSecret"}, http.StatusBadRequest},
		{"unknown agency", admin, map[string]string{"agencyId": "a-missing", "role": "AGENT", "email": "z@acme.com", "password": "Sup3rSecret"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := f.post(t, "/api/accounts", tc.token, tc.payload)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d: %v", tc.status, resp.StatusCode, body)
			}
		})
	}
}

func TestForbiddenCarriesReason(t *testing.T) {
	f := newAPIFixture(t)
	vp := f.token(t, "u-vp", "a9", domain.RoleVP)

	// VP in agency a9 tries to create an agent in a1
	resp, body := f.post(t, "/api/accounts", vp, map[string]string{
		"agencyId": "a1", "role": "AGENT", "email": "x@acme.com", "password": "Sup3rSecret",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %v", resp.StatusCode, body)
	}
	if body["reason"] != string(domain.DenialCrossAgency) {
		t.Fatalf("expected CROSS_AGENCY reason, got %v", body["reason"])
	}
}

func TestLoginHTTP(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	creds := credentials.NewStore(4)
	hash, _ := creds.Hash("Password123")
	if err := f.store.Users().Create(ctx, &domain.User{
		ID: "u1", TenantID: "t1", AgencyID: "a1", Role: domain.RoleAgent,
		Email: "alice@example.com", PasswordHash: hash,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	resp, body := f.post(t, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "Password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", resp.StatusCode, body)
	}
	if body["token"] == nil || body["token"] == "" {
		t.Fatalf("expected token in response")
	}

	resp, _ = f.post(t, "/api/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAgenciesHTTP(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.token(t, "u-admin", "", domain.RoleTenantAdmin)
	vp := f.token(t, "u-vp", "a1", domain.RoleVP)

	resp, body := f.post(t, "/api/agencies", admin, map[string]string{"name": "New Agency"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", resp.StatusCode, body)
	}

	resp, _ = f.post(t, "/api/agencies", vp, map[string]string{"name": "VP Agency"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for VP, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", f.server.URL+"/api/agencies", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	listResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer listResp.Body.Close()
	var listBody map[string]interface{}
	json.NewDecoder(listResp.Body).Decode(&listBody)
	if listResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", listResp.StatusCode)
	}
	// Seeded a1 plus the one created above
	if int(listBody["count"].(float64)) != 2 {
		t.Fatalf("expected 2 agencies, got %v", listBody["count"])
	}
}
