package handlers

import (
	"encoding/json"
	"math"
	"net/http"

	"book-library/internal/settings"
)

const (
	serverHealthy  = "healthy"
	serverScanning = "scanning"
)

// ConfigStats summarises the running library.
type ConfigStats struct {
	TotalBooks   int     `json:"total_books"`
	CacheSizeMB  float64 `json:"cache_size_mb"`
	Version      string  `json:"version"`
	ServerStatus string  `json:"server_status"`
}

// ConfigResponse is returned by GET /api/config.
type ConfigResponse struct {
	Stats    ConfigStats       `json:"stats"`
	Settings settings.Settings `json:"settings"`
}

// ConfigUpdateResponse is returned by PUT /api/config.
type ConfigUpdateResponse struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Settings settings.Settings `json:"settings"`
}

func bytesToMB(n int64) float64 {
	return math.Round(float64(n)/(1024*1024)*10) / 10
}

// GetConfig returns library statistics and the current settings.
func (h *Handlers) GetConfig(w http.ResponseWriter, _ *http.Request) {
	current := h.settings.Get()
	status := serverHealthy
	if h.indexer.IsIndexing() {
		status = serverScanning
	}

	writeJSON(w, ConfigResponse{
		Stats: ConfigStats{
			TotalBooks:   h.cache.State().Books,
			CacheSizeMB:  bytesToMB(h.renderer.CacheSize()),
			Version:      current.Version,
			ServerStatus: status,
		},
		Settings: current,
	})
}

// UpdateConfig replaces the settings. The body must be a complete settings
// object and root_path must be an existing directory. Listeners registered
// on the store apply the change to the running components.
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var next settings.Settings
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		writeJSONError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	applied, err := h.settings.Update(next)
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeJSON(w, ConfigUpdateResponse{
		Success:  true,
		Message:  "Configuration updated successfully",
		Settings: applied,
	})
}

// ClearCache empties the render cache.
func (h *Handlers) ClearCache(w http.ResponseWriter, _ *http.Request) {
	freed, err := h.renderer.ClearAll()
	if err != nil {
		writeJSONError(w, "Failed to clear cache: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]float64{"space_freed_mb": bytesToMB(freed)})
}
