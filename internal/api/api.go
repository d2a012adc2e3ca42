// Package api implements the Request API: a thin HTTP wrapper around the
// Ingestion Worker and the Ranking & Enrichment Job. No business logic lives
// here beyond request validation and schema translation.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"newsradar/internal/core"
	"newsradar/internal/ranking"
	"newsradar/internal/scoring"
	"newsradar/internal/worker"
)

// Window and top-K bounds for POST /analyse.
const (
	minWindowHours = 1
	maxWindowHours = 168
	minTopK        = 1
	maxTopK        = 50
)

// Server exposes the health, ingest, and analyse endpoints.
type Server struct {
	worker          *worker.Worker
	ranking         *ranking.Job
	hotThreshold    float64
	requestDeadline time.Duration
	log             zerolog.Logger
	mux             *http.ServeMux
}

// New builds a Server. hotThreshold of 0 falls back to the package default.
// requestDeadline of 0 falls back to 30s; it bounds each /analyse call's
// fan-out to the LLM, so timed-out enrichments emit fallbacks instead of
// hanging the request.
func New(w *worker.Worker, job *ranking.Job, hotThreshold float64, requestDeadline time.Duration) *Server {
	if hotThreshold <= 0 {
		hotThreshold = scoring.DefaultHotThreshold
	}
	if requestDeadline <= 0 {
		requestDeadline = 30 * time.Second
	}
	s := &Server{
		worker:          w,
		ranking:         job,
		hotThreshold:    hotThreshold,
		requestDeadline: requestDeadline,
		log:             zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
	s.mux = http.NewServeMux()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /ingest", s.handleIngest)
	s.mux.HandleFunc("POST /analyse", s.handleAnalyse)
}

// Handler returns the fully instrumented handler: tracing, access logging,
// and panic recovery wrap the routed mux.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, trace("newsradar-api"), accessLog(s.log), recoverPanic(s.log))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestRequest struct {
	SourceName  string `json:"source_name"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Content     string `json:"content"`
	PublishedAt string `json:"published_at"`
}

type ingestResponse struct {
	Hot     bool          `json:"hot"`
	Hotness *core.Hotness `json:"hotness,omitempty"`
	Story   *core.Story   `json:"story,omitempty"`
}

// handleIngest routes one article through the same pipeline as the
// queue-driven worker, synchronously, then scores its cluster and reports
// whether it cleared the hot threshold.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.SourceName == "" || req.URL == "" || req.Title == "" {
		writeError(w, http.StatusBadRequest, "source_name, url, and title are required")
		return
	}

	msg := core.QueueMessage{
		SourceName:  req.SourceName,
		URL:         req.URL,
		Title:       req.Title,
		Content:     req.Content,
		PublishedAt: req.PublishedAt,
	}

	article, outcome, err := s.worker.IngestSync(r.Context(), msg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}
	if outcome != worker.Stored || article == nil {
		writeJSON(w, http.StatusOK, ingestResponse{Hot: false})
		return
	}

	story, hot, err := s.ranking.RunOne(r.Context(), article.ClusterID, s.hotThreshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}
	if !hot {
		writeJSON(w, http.StatusOK, ingestResponse{Hot: false})
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Hot: true, Hotness: &story.Hotness, Story: &story})
}

type analyseRequest struct {
	WindowHours int `json:"window_hours"`
	TopK        int `json:"top_k"`
}

type analyseResponse struct {
	Results               []core.Story `json:"results"`
	TotalClusters         int          `json:"total_clusters"`
	TotalArticlesAnalyzed int          `json:"total_articles_analyzed"`
}

// handleAnalyse runs the ranking job over the requested window and returns
// the ranked, enriched top-K.
func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	var req analyseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.WindowHours < minWindowHours || req.WindowHours > maxWindowHours {
		writeError(w, http.StatusBadRequest, "window_hours must be between 1 and 168")
		return
	}
	if req.TopK < minTopK || req.TopK > maxTopK {
		writeError(w, http.StatusBadRequest, "top_k must be between 1 and 50")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestDeadline)
	defer cancel()

	window := time.Duration(req.WindowHours) * time.Hour
	stories, totalClusters, totalArticles, err := s.ranking.Run(ctx, window, req.TopK, true)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	writeJSON(w, http.StatusOK, analyseResponse{
		Results:               stories,
		TotalClusters:         totalClusters,
		TotalArticlesAnalyzed: totalArticles,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
