package httpx

import (
	"net/http"
)

const (
	RunIDHeaderKey = "X-Indexsync-Run-Id"
	PhaseHeaderKey = "X-Indexsync-Phase"
)

// SetMigrationHeaders tags a response with the run it reports on. Empty values are skipped.
func SetMigrationHeaders(w http.ResponseWriter, runID, phase string) {
	if runID != "" {
		w.Header().Set(RunIDHeaderKey, runID)
	}
	if phase != "" {
		w.Header().Set(PhaseHeaderKey, phase)
	}
}
