// Package health provides liveness and readiness probe handlers.
//
// Readiness checks run synchronously on each probe request with a per-check
// timeout. Probes are polled by the platform at a low rate, so on-demand
// evaluation keeps the package free of background goroutines and always
// reflects the current state of each dependency.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one dependency. It returns nil when the dependency is
// healthy.
type CheckFunc func(ctx context.Context) error

type check struct {
	name    string
	timeout time.Duration
	fn      CheckFunc
}

// Health serves liveness and readiness endpoints for a service.
type Health struct {
	ready atomic.Bool

	// mu guards the check list. Registration happens during startup, before
	// the server accepts traffic; probes only read.
	mu     sync.RWMutex
	checks []check
}

// New creates a Health in the not-ready state. Call SetReady(true) once
// initialization completes.
func New() *Health {
	return &Health{}
}

// AddReadinessCheck registers a dependency probe evaluated on every /readyz
// request.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check{name: name, timeout: timeout, fn: fn})
}

// SetReady flips the manual readiness gate. It is set to true after startup
// and back to false during graceful shutdown so load balancers drain the
// instance before the listener closes.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint reports whether the process is serving requests at all. A
// response, any response, is the signal.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, nil, true)
}

// ReadyEndpoint reports whether the service should receive traffic: the
// manual gate must be open and every registered check must pass.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checks := make([]check, len(h.checks))
	copy(checks, h.checks)
	h.mu.RUnlock()

	failures := make(map[string]string)
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		err := c.fn(ctx)
		cancel()
		if err != nil {
			failures[c.name] = err.Error()
		}
	}

	ready := h.ready.Load()
	if !ready {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures, len(failures) == 0)
}

func writeStatus(w http.ResponseWriter, failures map[string]string, ok bool) {
	w.Header().Set("Content-Type", "application/json")

	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if !ok {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}

	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
