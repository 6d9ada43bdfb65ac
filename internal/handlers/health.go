package handlers

import (
	"net/http"
	"runtime"
	"time"

	"book-library/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Ready    bool   `json:"ready"`
	Version  string `json:"version"`
	Uptime   string `json:"uptime"`
	Scanning bool   `json:"scanning"`
	LastScan string `json:"lastScan,omitempty"`
	Error    string `json:"lastScanError,omitempty"`

	Categories int `json:"categories"`
	Books      int `json:"books"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck reports readiness and the state of the last scan. The
// service is ready once the tree cache has been built.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.indexer.GetStatus()
	tree := h.cache.State()

	response := HealthResponse{
		Status:       statusStarting,
		Ready:        tree.Populated,
		Version:      startup.Version,
		Uptime:       status.Uptime,
		Scanning:     status.Running,
		Error:        status.LastError,
		Categories:   tree.Categories,
		Books:        tree.Books,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !status.LastRun.IsZero() {
		response.LastScan = status.LastRun.Format(time.RFC3339)
	}

	if tree.Populated {
		response.Status = statusHealthy
		if err := h.db.Ping(r.Context()); err != nil {
			response.Status = statusDegraded
			response.Error = "database: " + err.Error()
		} else if status.LastError != "" {
			response.Status = statusDegraded
		}
	}

	code := http.StatusOK
	if !tree.Populated {
		code = http.StatusServiceUnavailable
	}
	writeJSONCode(w, code, response)
}

// LivenessCheck always returns 200 while the process serves requests.
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the tree cache can answer reads.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.cache.State().Populated {
		writeJSONCode(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONCode(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

// GetVersion reports build information.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
