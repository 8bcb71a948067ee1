package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/whisperpipe/transcribe-api/internal/config"
	"github.com/whisperpipe/transcribe-api/internal/modelcache"
	"github.com/whisperpipe/transcribe-api/internal/router"
)

// Server holds the dependencies every handler needs (spec §9's "explicit
// objects, not ambient globals" note).
type Server struct {
	Config *config.Config
	Cache  *modelcache.Cache
	Router *router.Router
	Logger *slog.Logger
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Register wires every route from spec §6 onto mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /models", s.handleModels)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("GET /model-cache/status", s.handleModelCacheStatus)
	mux.HandleFunc("POST /model-cache/clear", s.handleModelCacheClear)
	mux.HandleFunc("POST /api/fasterwhisper/transcribe", s.handleTranscribe)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"message": "transcribe-api running", "status": "running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"status": "healthy"})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]any{"available_models": config.SupportedModels})
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, s.Config.ToMap())
}

func (s *Server) handleModelCacheStatus(w http.ResponseWriter, _ *http.Request) {
	names := s.Cache.Names()
	cached := make([]string, len(names))
	for i, k := range names {
		cached[i] = k.String()
	}
	writeOK(w, map[string]any{"cached_models": cached, "cache_size": s.Cache.Size()})
}

func (s *Server) handleModelCacheClear(w http.ResponseWriter, _ *http.Request) {
	if err := s.Cache.Clear(); err != nil {
		s.logger().Error("failed to clear model cache", slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to clear model cache")
		return
	}
	writeOK(w, map[string]any{"cleared": true})
}
