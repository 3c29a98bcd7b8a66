package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

func nowMs() int64 {
	return time.Now().UnixMilli()
}

type healthResponse struct {
	Status string `json:"status"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
}

// runRequest is the POST /run body: the only input a guest module takes is
// its own name, surfaced to it as the NAME environment variable.
type runRequest struct {
	Name string `json:"name"`
}

// runResponse mirrors the Rust original's RunResponse field-for-field. Cost
// is rendered as "<N>ms" rather than a bare number, matching
// format!("{}ms", cost.as_millis()).
type runResponse struct {
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
	CostMs  string `json:"cost"`
	TraceID string `json:"trace_id"`
}

// memfdHint is appended to the error message when the underlying failure
// looks like a sandbox denying memfd_create, which wasmtime needs for JIT
// code generation — the same heuristic the Rust original's run_handler
// applies before returning the error to the caller.
const memfdHint = " (hint: the process may be running under a seccomp/AppArmor profile that denies memfd_create; wasmtime needs it to JIT-compile guest code)"

func handleRun(invoke func(name string) (stdout, stderr, traceID string, err error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		start := nowMs()
		stdout, stderr, traceID, err := invoke(req.Name)
		cost := nowMs() - start

		if err != nil {
			msg := err.Error()
			if strings.Contains(msg, "cannot create a memfd") {
				msg += memfdHint
			}
			http.Error(w, msg, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(runResponse{
			Stdout:  stdout,
			Stderr:  stderr,
			CostMs:  fmt.Sprintf("%dms", cost),
			TraceID: traceID,
		})
	}
}
