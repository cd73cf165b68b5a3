package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wikipulse/wikipulse/internal/errors"
	"github.com/wikipulse/wikipulse/internal/health"
	"github.com/wikipulse/wikipulse/internal/model"
	"github.com/wikipulse/wikipulse/internal/rank"
	"github.com/wikipulse/wikipulse/internal/service"
)

const defaultTopN = 5

// ReportServerConfig holds configuration for the report server.
type ReportServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ReportServer exposes the live collection picture over HTTP: the full page
// set, ranked views, health probes, and Prometheus metrics.
type ReportServer struct {
	httpServer      *http.Server
	collection      *service.CollectionService
	tracker         *health.Tracker
	logger          *zap.Logger
	shutdownTimeout time.Duration
}

// pageView is the JSON shape returned for a page, the stored fields plus
// the derived metrics consumers rank by.
type pageView struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Wiki            string         `json:"wiki"`
	Edits           int            `json:"edits"`
	Reverts         int            `json:"reverts"`
	AnonEdits       int            `json:"anonEdits"`
	NotabilityFlags int            `json:"notabilityFlags"`
	VolatileFlags   int            `json:"volatileFlags"`
	BytesChanged    int64          `json:"bytesChanged"`
	IsNew           bool           `json:"isNew"`
	IsProtected     bool           `json:"isProtected"`
	Safe            bool           `json:"safe"`
	Contributors    int            `json:"contributors"`
	Anons           int            `json:"anons"`
	Distribution    map[string]int `json:"distribution"`
	Start           time.Time      `json:"start"`
	Updated         time.Time      `json:"updated"`
	AgeMinutes      float64        `json:"ageMinutes"`
	RecencyMinutes  float64        `json:"recencyMinutes"`
	EditVelocity    float64        `json:"editVelocity"`
	BiasScore       float64        `json:"biasScore"`
}

// NewReportServer creates a new report server.
func NewReportServer(cfg *ReportServerConfig, collection *service.CollectionService, tracker *health.Tracker, logger *zap.Logger) *ReportServer {
	s := &ReportServer{
		collection:      collection,
		tracker:         tracker,
		logger:          logger,
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/pages", s.handlePages)
	r.Get("/pages/top", s.handleTopPages)
	r.Get("/healthz", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts serving in the background.
func (s *ReportServer) Start() {
	s.logger.Info("Starting report server", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Report server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *ReportServer) Stop() error {
	s.logger.Info("Stopping report server")

	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("report server shutdown failed: %w", err)
	}
	return nil
}

func (s *ReportServer) handlePages(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	pages := s.collection.GetPages()

	views := make([]pageView, 0, len(pages))
	for _, p := range pages {
		views = append(views, toView(p, now))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *ReportServer) handleTopPages(w http.ResponseWriter, r *http.Request) {
	criterion := rank.Criterion(r.URL.Query().Get("by"))
	if criterion == "" {
		criterion = rank.ByEdits
	}
	if !criterion.Valid() {
		s.writeError(w, errors.New(errors.ErrCodeInvalidArgument, "unknown ranking criterion"))
		return
	}

	n := defaultTopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, errors.New(errors.ErrCodeInvalidArgument, "n must be a positive integer"))
			return
		}
		n = parsed
	}

	now := time.Now()
	top := rank.TopBy(s.collection.GetPages(), criterion, n, now)

	views := make([]pageView, 0, len(top))
	for _, p := range top {
		views = append(views, toView(p, now))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *ReportServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"pages":     s.collection.Len(),
	})
}

func (s *ReportServer) handleReady(w http.ResponseWriter, r *http.Request) {
	status := s.tracker.Snapshot()
	code := http.StatusOK
	if !s.tracker.Ready() {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, status)
}

func (s *ReportServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *ReportServer) writeError(w http.ResponseWriter, err error) {
	code := errors.CodeOf(err)
	s.writeJSON(w, errors.HTTPStatus(code), map[string]any{
		"error": err.Error(),
		"code":  code,
	})
}

func toView(p *model.PageRecord, now time.Time) pageView {
	return pageView{
		ID:              p.ID,
		Title:           p.Title,
		Wiki:            p.Wiki,
		Edits:           p.Edits,
		Reverts:         p.Reverts,
		AnonEdits:       p.AnonEdits,
		NotabilityFlags: p.NotabilityFlags,
		VolatileFlags:   p.VolatileFlags,
		BytesChanged:    p.BytesChanged,
		IsNew:           p.IsNew,
		IsProtected:     p.IsProtected,
		Safe:            p.Safe,
		Contributors:    len(p.Contributors),
		Anons:           len(p.Anons),
		Distribution:    p.Distribution,
		Start:           p.Start,
		Updated:         p.Updated,
		AgeMinutes:      p.Age(now),
		RecencyMinutes:  p.Recency(now),
		EditVelocity:    p.EditVelocity(now, false, false),
		BiasScore:       p.BiasScore(),
	}
}
