// Package server exposes the audiocache HTTP API.
//
// Endpoints:
//
//	POST /api/download   queue a track download, answered immediately
//	GET  /api/status     report cached/downloading state for a track
//	GET  /api/stream     serve a cached file with byte-range support
//	GET  /health         liveness probe
//	GET  /metrics        Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"

	"github.com/ashwake/audiocache/internal/cache"
	"github.com/ashwake/audiocache/internal/config"
	"github.com/ashwake/audiocache/internal/download"
	"github.com/ashwake/audiocache/internal/metrics"
	"github.com/ashwake/audiocache/internal/model"
)

// Server wires the download coordinator and file cache behind HTTP
// handlers.
type Server struct {
	settings    *config.Settings
	coordinator *download.Coordinator
	cache       *cache.FileCache
	instances   []string
	logger      *log.Logger

	httpServer *http.Server
}

// New creates a Server listening on the configured address. instances
// is the upstream pool handed to every triggered download.
func New(settings *config.Settings, coordinator *download.Coordinator, fileCache *cache.FileCache, instances []string, logger *log.Logger) *Server {
	s := &Server{
		settings:    settings,
		coordinator: coordinator,
		cache:       fileCache,
		instances:   instances,
		logger:      logger,
	}
	s.httpServer = &http.Server{
		Addr:    settings.ListenAddr,
		Handler: metrics.Middleware(s.routes()),
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/download", s.handleDownload)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stream", s.handleStream)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// ListenAndServe blocks serving HTTP until Shutdown or a fatal error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// triggerRequest is the /api/download body. Callers may bring their
// own instance pool; without one the configured pool is used.
type triggerRequest struct {
	TrackID      string   `json:"trackId"`
	Quality      string   `json:"quality"`
	APIInstances []string `json:"apiInstances"`
}

// handleDownload queues a background download and answers immediately.
// The response never waits on upstream; failures after this point are
// only observable through /api/status and the log.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}
	if req.TrackID == "" {
		req.TrackID = r.URL.Query().Get("id")
	}
	if req.Quality == "" {
		req.Quality = r.URL.Query().Get("quality")
	}
	if req.TrackID == "" {
		httpError(w, http.StatusBadRequest, "missing trackId")
		return
	}

	quality := model.DefaultQuality
	if req.Quality != "" {
		parsed, err := model.ParseQuality(req.Quality)
		if err != nil {
			httpError(w, http.StatusBadRequest, err.Error())
			return
		}
		quality = parsed
	}

	instances := req.APIInstances
	if len(instances) == 0 {
		instances = s.instances
	}
	if len(instances) == 0 {
		httpError(w, http.StatusBadRequest, "no upstream instances supplied or configured")
		return
	}

	s.coordinator.TriggerAsync(req.TrackID, quality, instances)

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"status":  "queued",
		"trackId": req.TrackID,
		"quality": quality,
	})
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	TrackID    string        `json:"trackId"`
	Status     string        `json:"status"`
	Available  bool          `json:"available"`
	Quality    model.Quality `json:"quality,omitempty"`
	StreamPath string        `json:"streamPath,omitempty"`
	SizeBytes  int64         `json:"sizeBytes,omitempty"`
}

// handleStatus reports whether a track is cached, downloading, or
// unknown. A cached report names the stored quality, which may differ
// from the requested one when only another tier is on disk. Status
// never triggers a download.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	trackID := r.URL.Query().Get("id")
	if trackID == "" {
		httpError(w, http.StatusBadRequest, "missing id parameter")
		return
	}

	entry, err := s.lookupEntry(trackID, r.URL.Query().Get("quality"))
	if err != nil {
		s.logger.Error("cache lookup failed", "trackId", trackID, "err", err)
		httpError(w, http.StatusInternalServerError, "cache lookup failed")
		return
	}
	if entry != nil {
		writeJSON(w, http.StatusOK, statusResponse{
			TrackID:   trackID,
			Status:    string(model.StatusCached),
			Available: true,
			Quality:   entry.Quality,
			StreamPath: fmt.Sprintf("/api/stream?id=%s&quality=%s",
				url.QueryEscape(trackID), url.QueryEscape(entry.Quality.String())),
			SizeBytes: entry.SizeBytes,
		})
		return
	}

	quality := model.DefaultQuality
	if parsed, err := model.ParseQuality(r.URL.Query().Get("quality")); err == nil {
		quality = parsed
	}
	if s.coordinator.Downloading(trackID, quality) {
		writeJSON(w, http.StatusOK, statusResponse{
			TrackID: trackID,
			Status:  string(model.StatusDownloading),
		})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		TrackID: trackID,
		Status:  "not_found",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func httpError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
	})
}
