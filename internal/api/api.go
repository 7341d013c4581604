// Package api serves the catalog read-only over HTTP for the listing views.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/family-events/internal/catalog"
	"github.com/sells-group/family-events/internal/model"
	"github.com/sells-group/family-events/internal/monitoring"
	"github.com/sells-group/family-events/internal/query"
)

// HealthChecker reports ingestion health.
type HealthChecker interface {
	Check(ctx context.Context) (*monitoring.Snapshot, []monitoring.Alert, error)
}

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	// Location decides what "today" means for date presets.
	Location *time.Location
	Now      func() time.Time
	Health   HealthChecker
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server answers catalog queries. Every request reads the latest catalog
// from disk so refreshes show up without a restart.
type Server struct {
	files *catalog.FileStore
	opts  Options
	log   *zap.Logger
}

// NewServer creates a Server over the catalog file store.
func NewServer(files *catalog.FileStore, opts Options) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}
	return &Server{
		files: files,
		opts:  opts,
		log:   zap.L().With(zap.String("component", "api")),
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/events", s.handleEvents)
	r.Get("/events/featured", s.handleFeatured)
	r.Get("/events/{id}", s.handleEvent)
	r.Get("/activities/{type}", s.handleActivity)
	if s.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.opts.Metrics)
	}
	return r
}

type listResponse struct {
	Count  int           `json:"count"`
	Events []model.Event `json:"events"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	f, err := query.ParseValues(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat, ok := s.open(w, r)
	if !ok {
		return
	}
	events := query.Apply(cat.ListAll(), f, s.today())
	writeJSON(w, http.StatusOK, listResponse{Count: len(events), Events: nonNil(events)})
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	n := catalog.DefaultFeatured
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}
	cat, ok := s.open(w, r)
	if !ok {
		return
	}
	events := cat.Featured(n)
	writeJSON(w, http.StatusOK, listResponse{Count: len(events), Events: nonNil(events)})
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.open(w, r)
	if !ok {
		return
	}
	e, err := cat.FindByID(chi.URLParam(r, "id"))
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	a, err := model.ParseActivityType(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cat, ok := s.open(w, r)
	if !ok {
		return
	}
	events := cat.ByActivity(a)
	writeJSON(w, http.StatusOK, listResponse{Count: len(events), Events: nonNil(events)})
}

type healthResponse struct {
	Status  string                    `json:"status"`
	Events  int                       `json:"events"`
	Sources []monitoring.SourceHealth `json:"sources,omitempty"`
	Alerts  []monitoring.Alert        `json:"alerts,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cat, ok := s.open(w, r)
	if !ok {
		return
	}
	resp := healthResponse{Status: "ok", Events: cat.Len()}
	if s.opts.Health != nil {
		snap, alerts, err := s.opts.Health.Check(r.Context())
		if err != nil {
			s.log.Error("api: health check failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "health check failed")
			return
		}
		resp.Sources = snap.Sources
		resp.Alerts = alerts
		if len(alerts) > 0 {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) open(w http.ResponseWriter, r *http.Request) (*catalog.Catalog, bool) {
	cat, err := catalog.Open(r.Context(), s.files)
	if err != nil {
		s.log.Error("api: load catalog", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "catalog unavailable")
		return nil, false
	}
	return cat, true
}

func (s *Server) today() model.Date {
	return model.DateOf(s.opts.Now(), s.opts.Location)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func nonNil(events []model.Event) []model.Event {
	if events == nil {
		return []model.Event{}
	}
	return events
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
