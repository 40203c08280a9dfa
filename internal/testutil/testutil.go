// Package testutil provides common test utilities and helpers for
// smart-whatsapping tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spurbey/smart-whatsapping/internal/api"
	"github.com/spurbey/smart-whatsapping/internal/campaign"
	"github.com/spurbey/smart-whatsapping/internal/kvstore"
	"github.com/spurbey/smart-whatsapping/internal/messaging"
	"github.com/spurbey/smart-whatsapping/internal/session"
	"github.com/spurbey/smart-whatsapping/internal/store"
)

// Env bundles an API server with its in-memory dependencies so tests can
// inspect state after driving the HTTP surface.
type Env struct {
	Server    *api.Server
	Handler   http.Handler
	Store     *store.InMemoryStore
	Gateway   *messaging.MockGateway
	Sessions  *session.Manager
	Campaigns *campaign.Engine
}

// NewEnv creates a test environment with in-memory dependencies.
func NewEnv() *Env {
	st := store.NewInMemoryStore()
	gateway := messaging.NewMockGateway()
	sessions := session.NewManager(kvstore.NewMemoryStore(), session.DefaultSessionTimeout)
	campaigns := campaign.NewEngine(st, gateway)
	server := api.NewServer(st, gateway, sessions, campaigns)

	return &Env{
		Server:    server,
		Handler:   server.Routes(),
		Store:     st,
		Gateway:   gateway,
		Sessions:  sessions,
		Campaigns: campaigns,
	}
}

// PostJSON performs a JSON POST against the environment's handler.
func (e *Env) PostJSON(t *testing.T, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal request payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	e.Handler.ServeHTTP(rr, req)
	return rr
}

// Get performs a GET against the environment's handler.
func (e *Env) Get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	e.Handler.ServeHTTP(rr, req)
	return rr
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeJSON decodes a recorded JSON response body.
func DecodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return response
}
