// Package health reports liveness and readiness for the interview server.
//
// Liveness (GET /healthz) only proves the process can serve HTTP. Readiness
// (GET /readyz) additionally probes each registered collaborator, such as
// the session store and the landmark sidecar's circuit breaker, and answers
// 503 while any probe fails, so an orchestrator can hold traffic until every
// dependency an interview needs is reachable.
//
// Responses are JSON: a top-level "status" ("ok" or "fail") and a "checks"
// map with the outcome and latency of each named probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout is the maximum time a single readiness probe may take before
// its context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named readiness probe. The Check function should return nil
// when the dependency is usable and a non-nil error describing the failure
// otherwise.
type Checker struct {
	// Name is a short label for this probe (e.g. "store", "landmarks"). It
	// appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// checkResult is the JSON outcome of a single probe.
type checkResult struct {
	Status  string `json:"status"`
	Detail  string `json:"detail,omitempty"`
	Latency string `json:"latency"`
}

// report is the JSON response body for health endpoints.
type report struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz endpoints. It is safe for
// concurrent use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request. The checkers are evaluated sequentially in the order provided.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Each checker runs with a [checkTimeout] deadline derived
// from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]checkResult, len(h.checkers))
	allOK := true

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		started := time.Now()
		err := c.Check(ctx)
		elapsed := time.Since(started)
		cancel()

		res := checkResult{Status: "ok", Latency: elapsed.Round(time.Microsecond).String()}
		if err != nil {
			res.Status = "fail"
			res.Detail = err.Error()
			allOK = false
		}
		checks[c.Name] = res
	}

	rep := report{
		Status: "ok",
		Checks: checks,
	}
	status := http.StatusOK
	if !allOK {
		rep.Status = "fail"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, rep)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", withGet(h.Healthz))
	mux.HandleFunc("/readyz", withGet(h.Readyz))
}

// withGet restricts a handler to GET (and HEAD), matching the behaviour of
// "GET /path" ServeMux patterns in Go 1.22+. Needed while building with a
// pre-1.22 toolchain, which lacks method patterns.
func withGet(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
