//go:build e2e
// +build e2e

package e2e

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// The service under test must run with SWISH_BASE_URL pointing here.
const swishMockAddr = "0.0.0.0:38085"

type swishMock struct {
	mu       sync.Mutex
	requests map[string]map[string]string
}

var swish *swishMock

func startSwishMock(addr string) (*http.Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mock := &swishMock{requests: map[string]map[string]string{}}
	swish = mock
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v2/paymentrequests/{id}", mock.create)
	mux.HandleFunc("GET /api/v1/paymentrequests/{id}", mock.get)

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		_ = server.Serve(listener)
	}()
	return server, nil
}

func (m *swishMock) create(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body["payeeAlias"]) == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`[{"errorCode":"PA02","errorMessage":"Amount value is missing or not a valid number"}]`))
		return
	}

	id := r.PathValue("id")
	body["id"] = id
	body["status"] = "CREATED"
	body["dateCreated"] = time.Now().UTC().Format(time.RFC3339)

	m.mu.Lock()
	m.requests[id] = body
	m.mu.Unlock()

	w.Header().Set("Location", "/api/v1/paymentrequests/"+id)
	w.Header().Set("PaymentRequestToken", "token-"+strings.ToLower(id[:8]))
	w.WriteHeader(http.StatusCreated)
}

// callbackIdentifier returns what the service sent on create for id, as the
// real provider would echo it on callbacks.
func (m *swishMock) callbackIdentifier(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[id]["callbackIdentifier"]
}

func (m *swishMock) get(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	body, ok := m.requests[r.PathValue("id")]
	m.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
