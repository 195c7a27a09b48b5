//go:build e2e
// +build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// The service under test must run with GATEWAY_BASE_URL=https://127.0.0.1:38085
// and GATEWAY_TLS_INSECURE_SKIP_VERIFY=true; the mock serves a self-signed certificate.
const gatewayMockAddr = "127.0.0.1:38085"

type mockGatewaySubscription struct {
	Scope        string
	State        string
	PrimaryKey   string
	SecondaryKey string
	ETag         string
}

// gatewayMock is a minimal API Management management-plane stand-in that
// keeps subscriptions in memory and honours If-Match.
type gatewayMock struct {
	mu            sync.Mutex
	subscriptions map[string]*mockGatewaySubscription
}

func startGatewayMock(addr string) (*httptest.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mock := &gatewayMock{subscriptions: make(map[string]*mockGatewaySubscription)}
	server := httptest.NewUnstartedServer(mock)
	_ = server.Listener.Close()
	server.Listener = listener
	server.StartTLS()
	return server, nil
}

func (g *gatewayMock) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, rest, found := strings.Cut(r.URL.Path, "/subscriptions/")
	// The first /subscriptions/ segment is the Azure subscription scope.
	if found {
		_, rest, found = strings.Cut(rest, "/subscriptions/")
	}
	if !found || rest == "" {
		http.Error(w, `{"error":{"code":"NotFound"}}`, http.StatusNotFound)
		return
	}
	id, action, _ := strings.Cut(rest, "/")

	g.mu.Lock()
	defer g.mu.Unlock()

	existing := g.subscriptions[id]
	switch {
	case r.Method == http.MethodPut:
		g.put(w, r, id, existing)
	case r.Method == http.MethodDelete:
		if existing == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if !etagMatches(r, existing) {
			http.Error(w, `{"error":{"code":"PreconditionFailed"}}`, http.StatusPreconditionFailed)
			return
		}
		delete(g.subscriptions, id)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && existing != nil:
		switch action {
		case "regeneratePrimaryKey":
			existing.PrimaryKey = uuid.NewString()
			existing.ETag = newETag()
			w.WriteHeader(http.StatusNoContent)
		case "regenerateSecondaryKey":
			existing.SecondaryKey = uuid.NewString()
			existing.ETag = newETag()
			w.WriteHeader(http.StatusNoContent)
		case "listSecrets":
			writeMockJSON(w, existing.ETag, map[string]string{
				"primaryKey":   existing.PrimaryKey,
				"secondaryKey": existing.SecondaryKey,
			})
		default:
			http.Error(w, `{"error":{"code":"NotFound"}}`, http.StatusNotFound)
		}
	default:
		http.Error(w, `{"error":{"code":"ResourceNotFound"}}`, http.StatusNotFound)
	}
}

func (g *gatewayMock) put(w http.ResponseWriter, r *http.Request, id string, existing *mockGatewaySubscription) {
	var body struct {
		Properties struct {
			Scope string `json:"scope"`
			State string `json:"state"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":{"code":"BadRequest"}}`, http.StatusBadRequest)
		return
	}

	status := http.StatusOK
	if existing == nil {
		existing = &mockGatewaySubscription{PrimaryKey: uuid.NewString(), SecondaryKey: uuid.NewString()}
		g.subscriptions[id] = existing
		status = http.StatusCreated
	} else if !etagMatches(r, existing) {
		http.Error(w, `{"error":{"code":"PreconditionFailed"}}`, http.StatusPreconditionFailed)
		return
	}
	existing.Scope = body.Properties.Scope
	existing.State = body.Properties.State
	existing.ETag = newETag()

	w.Header().Set("ETag", existing.ETag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":   id,
		"name": id,
		"properties": map[string]string{
			"scope": existing.Scope,
			"state": existing.State,
		},
	})
}

func etagMatches(r *http.Request, sub *mockGatewaySubscription) bool {
	match := r.Header.Get("If-Match")
	return match == "" || match == "*" || match == sub.ETag
}

func newETag() string {
	return fmt.Sprintf("\"%s\"", uuid.NewString())
}

func writeMockJSON(w http.ResponseWriter, etag string, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
