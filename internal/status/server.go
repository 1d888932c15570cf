package status

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	custommw "github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/middleware"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/observability"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/signal"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/store"
	"github.com/NTGClarityPK/ntg-rms-v2-sub007/internal/syncer"
)

// Options wires the status server to the running sync components
type Options struct {
	TenantID     string
	Queue        *syncer.Queue
	Processor    *syncer.Processor
	Conflicts    store.ConflictRepo
	Hub          *signal.Hub
	LiveStatus   func() string
	APIKey       string
	APIKeyHeader string
	HTTPMetrics  *observability.HTTPMetrics
}

// Server is the local status surface: health, queue and conflict inspection,
// failed-entry retry, and the cross-process signal bridge.
type Server struct {
	opts Options
	log  *observability.Logger
}

// NewServer creates a Server
func NewServer(opts Options) *Server {
	return &Server{
		opts: opts,
		log:  observability.WithField("component", "status"),
	}
}

// Router builds the chi router
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.TracingMiddleware())
	r.Use(observability.MetricsMiddleware(s.opts.HTTPMetrics))
	r.Use(custommw.APIKeyAuth(s.opts.APIKey, s.opts.APIKeyHeader))

	r.Get("/health", s.health)
	r.Get("/ws", s.opts.Hub.ServeWS)

	r.Route("/api/sync", func(r chi.Router) {
		r.Get("/status", s.syncStatus)
		r.Get("/queue", s.listQueue)
		r.Get("/conflicts", s.listConflicts)
		r.Post("/conflicts/{id}/resolve", s.resolveConflict)
		r.Post("/retry/{table}/{entityID}", s.retryFailed)
	})

	return r
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

type syncStatusResponse struct {
	TenantID   string `json:"tenantId"`
	Online     bool   `json:"online"`
	LiveStatus string `json:"liveStatus"`
	Pending    int    `json:"pending"`
	Failed     int    `json:"failed"`
}

func (s *Server) syncStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.opts.Queue.Pending(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	failed, err := s.opts.Queue.Failed(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}

	liveStatus := ""
	if s.opts.LiveStatus != nil {
		liveStatus = s.opts.LiveStatus()
	}

	s.respondJSON(w, http.StatusOK, syncStatusResponse{
		TenantID:   s.opts.TenantID,
		Online:     s.opts.Processor.Online(),
		LiveStatus: liveStatus,
		Pending:    len(pending),
		Failed:     len(failed),
	})
}

func (s *Server) listQueue(w http.ResponseWriter, r *http.Request) {
	pending, err := s.opts.Queue.Pending(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	failed, err := s.opts.Queue.Failed(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"pending": pending,
		"failed":  failed,
	})
}

func (s *Server) listConflicts(w http.ResponseWriter, r *http.Request) {
	conflicts, err := s.opts.Conflicts.ListOpen(r.Context(), s.opts.TenantID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"conflicts": conflicts})
}

func (s *Server) resolveConflict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.opts.Conflicts.Resolve(r.Context(), id, time.Now().UTC()); err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"resolved": id})
}

func (s *Server) retryFailed(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	entityID := chi.URLParam(r, "entityID")

	n, err := s.opts.Processor.RetryFailed(r.Context(), table, entityID)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if n == 0 {
		s.respondError(w, http.StatusNotFound, errNoFailedEntries)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"requeued": n})
}

var errNoFailedEntries = &statusError{"no failed entries for entity"}

type statusError struct{ msg string }

func (e *statusError) Error() string { return e.msg }

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Errorf("encoding response: %v", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, err error) {
	s.respondJSON(w, code, map[string]string{"error": err.Error()})
}
