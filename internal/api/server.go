// Package api serves the freshness engine over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/config"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Engine is the part of the freshness engine the API exposes
type Engine interface {
	Stats(ctx context.Context, settings models.Settings, force bool) (*models.StatsSnapshot, error)
	ListStale(ctx context.Context, settings models.Settings, opts freshness.ListOptions) (*models.StalePage, error)
	Check(ctx context.Context, settings models.Settings, id int64) (*models.Freshness, error)
	MarkReviewed(ctx context.Context, id int64) (time.Time, error)
	MarkReviewedBulk(ctx context.Context, ids []int64) models.BulkReviewResult
	HandleContentEvent(ev models.ContentEvent)
}

// SettingsStore reads and replaces the settings record
type SettingsStore interface {
	Get() models.Settings
	Update(ctx context.Context, next models.Settings) (models.Settings, error)
}

// TrendSource returns recorded trend points
type TrendSource interface {
	History(ctx context.Context, days int) ([]models.TrendPoint, error)
}

// ContentSync applies host content mutations to the content store
type ContentSync interface {
	Upsert(ctx context.Context, item models.ContentItem) error
	Delete(ctx context.Context, id int64) error
	SetStatus(ctx context.Context, id int64, status string) error
}

// NetworkSource aggregates stats across tenants
type NetworkSource interface {
	Stats(ctx context.Context) (*models.NetworkStats, error)
	StaleItems(ctx context.Context, limit int) ([]models.NetworkStaleItem, error)
}

// MetricsSource renders job metrics as JSON
type MetricsSource interface {
	GetMetrics() string
}

// JobTrigger runs a scheduled job on demand
type JobTrigger interface {
	Trigger(job string) error
}

// Capability is a permission granted to an API token
type Capability int

const (
	CapEdit Capability = iota + 1
	CapAdmin
)

// Dependencies are the collaborators served by the API. Network, Metrics and
// Jobs are optional.
type Dependencies struct {
	Engine   Engine
	Settings SettingsStore
	Trends   TrendSource
	Content  ContentSync
	Network  NetworkSource
	Metrics  MetricsSource
	Jobs     JobTrigger
}

// Server handles the REST endpoints
type Server struct {
	config *config.Config
	deps   Dependencies
	links  freshness.Links
	tokens map[string]Capability
	now    func() time.Time
}

// NewServer creates a server. With no tokens configured every request is allowed.
func NewServer(cfg *config.Config, deps Dependencies) *Server {
	tokens := make(map[string]Capability)
	for _, t := range cfg.EditorTokens {
		tokens[t] = CapEdit
	}
	for _, t := range cfg.AdminTokens {
		tokens[t] = CapAdmin
	}
	if len(tokens) == 0 {
		logrus.Warn("No API tokens configured, the REST API is open to every caller")
	}

	return &Server{
		config: cfg,
		deps:   deps,
		links:  freshness.SiteLinks{BaseURL: cfg.SiteURL},
		tokens: tokens,
		now:    time.Now,
	}
}

// Router builds the HTTP routes
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(logRequests)

	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/metrics", s.metrics).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/stats", s.require(CapEdit, s.getStats)).Methods(http.MethodGet)
	v1.HandleFunc("/stale", s.require(CapEdit, s.getStale)).Methods(http.MethodGet)
	v1.HandleFunc("/post/{id:[0-9]+}/freshness", s.require(CapEdit, s.getFreshness)).Methods(http.MethodGet)
	v1.HandleFunc("/post/{id:[0-9]+}/review", s.require(CapEdit, s.postReview)).Methods(http.MethodPost)
	v1.HandleFunc("/bulk-review", s.require(CapEdit, s.postBulkReview)).Methods(http.MethodPost)
	v1.HandleFunc("/dashboard", s.require(CapEdit, s.getDashboard)).Methods(http.MethodGet)
	v1.HandleFunc("/trends", s.require(CapEdit, s.getTrends)).Methods(http.MethodGet)
	v1.HandleFunc("/export.csv", s.require(CapEdit, s.getExportCSV)).Methods(http.MethodGet)
	v1.HandleFunc("/export.parquet", s.require(CapEdit, s.getExportParquet)).Methods(http.MethodGet)
	v1.HandleFunc("/settings", s.require(CapAdmin, s.getSettings)).Methods(http.MethodGet)
	v1.HandleFunc("/settings", s.require(CapAdmin, s.putSettings)).Methods(http.MethodPut)
	v1.HandleFunc("/hooks/content", s.require(CapEdit, s.postContentHook)).Methods(http.MethodPost)
	v1.HandleFunc("/network/stats", s.require(CapAdmin, s.getNetworkStats)).Methods(http.MethodGet)
	v1.HandleFunc("/network/stale", s.require(CapAdmin, s.getNetworkStale)).Methods(http.MethodGet)
	v1.HandleFunc("/jobs/{job}", s.require(CapAdmin, s.postTrigger)).Methods(http.MethodPost)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "No route matches the request.")
	})
	return router
}

// require rejects requests whose bearer token lacks the capability
func (s *Server) require(capability Capability, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.tokens) == 0 {
			next(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "A bearer token is required.")
			return
		}
		granted := s.capability(token)
		if granted == 0 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "The bearer token is not recognised.")
			return
		}
		if granted < capability {
			writeError(w, http.StatusForbidden, "forbidden", "You do not have permission to access this resource.")
			return
		}
		next(w, r)
	}
}

func (s *Server) capability(token string) Capability {
	var granted Capability
	for known, c := range s.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			granted = c
		}
	}
	return granted
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
		}).Debug("Handled request")
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}
