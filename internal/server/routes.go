package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Render provider callbacks
	mux.HandleFunc("/api/webhooks/creatomate", s.app.WebhookHandler.RenderCompletedHandler)

	// Batches
	mux.HandleFunc("/api/batches", s.handleBatchesRoute)
	mux.HandleFunc("/api/batches/", s.handleBatchRoutes)

	// Jobs
	mux.HandleFunc("/api/jobs/counts", s.app.JobHandler.CountsHandler)
	mux.HandleFunc("/api/jobs/", s.handleJobRoutes)

	// Dealers
	mux.HandleFunc("/api/dealers", s.handleDealersRoute)

	// System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleBatchesRoute routes /api/batches requests (list and create)
func (s *Server) handleBatchesRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.BatchHandler.ListBatchesHandler(w, r)
	case "POST":
		s.app.BatchHandler.CreateBatchHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleBatchRoutes routes /api/batches/{id} and subpaths
func (s *Server) handleBatchRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// GET /api/batches/{id}/jobs
	if r.Method == "GET" && strings.HasSuffix(path, "/jobs") {
		s.app.BatchHandler.GetBatchJobsHandler(w, r)
		return
	}

	// GET /api/batches/{id}
	if r.Method == "GET" {
		s.app.BatchHandler.GetBatchHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handleJobRoutes routes /api/jobs/{id} and subpaths
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/jobs/{id}/retry
	if r.Method == "POST" && strings.HasSuffix(path, "/retry") {
		s.app.JobHandler.RetryJobHandler(w, r)
		return
	}

	// GET /api/jobs/{id}
	if r.Method == "GET" && len(path) > len("/api/jobs/") {
		s.app.JobHandler.GetJobHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// handleDealersRoute routes /api/dealers requests (list and upsert)
func (s *Server) handleDealersRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case "GET":
		s.app.DealerHandler.ListDealersHandler(w, r)
	case "POST":
		s.app.DealerHandler.UpsertDealersHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
