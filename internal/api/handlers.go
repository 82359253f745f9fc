package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/content"
	"github.com/cfmlabs/freshness-monitor/internal/export"
	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/cfmlabs/freshness-monitor/internal/scheduler"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	defaultPerPage   = 20
	maxPerPage       = 100
	dashboardItems   = 5
	defaultTrendDays = 30
	maxBulkIDs       = 500
	defaultNetworkN  = 20
	statusTrash      = "trash"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
	})
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	if s.deps.Metrics == nil {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.deps.Metrics.GetMetrics()))
}

type statsResponse struct {
	TotalPosts    int       `json:"total_posts"`
	StalePosts    int       `json:"stale_posts"`
	AgingPosts    int       `json:"aging_posts"`
	FreshPosts    int       `json:"fresh_posts"`
	StalePercent  int       `json:"stale_percent"`
	ThresholdDays int       `json:"threshold_days"`
	PerType       bool      `json:"per_type_enabled"`
	HealthScore   int       `json:"health_score"`
	HealthGrade   string    `json:"health_grade"`
	HealthLabel   string    `json:"health_label"`
	ComputedAt    time.Time `json:"computed_at"`
}

func newStatsResponse(st *models.StatsSnapshot) statsResponse {
	h := freshness.Health(*st)
	return statsResponse{
		TotalPosts:    st.Total,
		StalePosts:    st.Stale,
		AgingPosts:    st.Aging,
		FreshPosts:    st.Fresh,
		StalePercent:  st.StalePercent,
		ThresholdDays: st.ThresholdDays,
		PerType:       st.PerTypeEnabled,
		HealthScore:   h.Score,
		HealthGrade:   h.Grade,
		HealthLabel:   h.Label,
		ComputedAt:    st.ComputedAt,
	}
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "true"
	st, err := s.deps.Engine.Stats(r.Context(), s.deps.Settings.Get(), force)
	if err != nil {
		s.internalError(w, "compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, newStatsResponse(st))
}

// parseListOptions validates the paging and sort query parameters
func parseListOptions(r *http.Request) (freshness.ListOptions, error) {
	q := r.URL.Query()
	opts := freshness.ListOptions{
		PerPage: defaultPerPage,
		Page:    1,
		OrderBy: freshness.OrderModified,
		Order:   "asc",
	}

	if v := q.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPerPage {
			return opts, fmt.Errorf("per_page must be an integer between 1 and %d", maxPerPage)
		}
		opts.PerPage = n
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, errors.New("page must be a positive integer")
		}
		opts.Page = n
	}
	if v := q.Get("orderby"); v != "" {
		f, ok := freshness.ParseOrderField(v)
		if !ok || f == freshness.OrderAuthor {
			return opts, errors.New("orderby must be one of: modified, title, date, id")
		}
		opts.OrderBy = f
	}
	if v := q.Get("order"); v != "" {
		o := strings.ToLower(v)
		if o != "asc" && o != "desc" {
			return opts, errors.New("order must be asc or desc")
		}
		opts.Order = o
	}
	if v := q.Get("post_type"); v != "" {
		opts.Types = strings.Split(v, ",")
	}
	return opts, nil
}

func (s *Server) getStale(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		return
	}

	page, err := s.deps.Engine.ListStale(r.Context(), s.deps.Settings.Get(), opts)
	if err != nil {
		s.internalError(w, "list stale content", err)
		return
	}

	w.Header().Set("X-Total", strconv.Itoa(page.Total))
	w.Header().Set("X-Total-Pages", strconv.Itoa(page.TotalPages))
	writeJSON(w, http.StatusOK, page)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

type freshnessResponse struct {
	*models.Freshness
	EditURL string `json:"edit_url"`
	ViewURL string `json:"view_url"`
}

func (s *Server) getFreshness(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Post not found.")
		return
	}

	f, err := s.deps.Engine.Check(r.Context(), s.deps.Settings.Get(), id)
	if errors.Is(err, freshness.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Post not found.")
		return
	}
	if err != nil {
		s.internalError(w, "check content", err)
		return
	}

	writeJSON(w, http.StatusOK, freshnessResponse{
		Freshness: f,
		EditURL:   s.links.EditURL(id),
		ViewURL:   s.links.ViewURL(id),
	})
}

func (s *Server) postReview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "Post not found.")
		return
	}

	at, err := s.deps.Engine.MarkReviewed(r.Context(), id)
	if errors.Is(err, freshness.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Post not found.")
		return
	}
	if err != nil {
		s.internalError(w, "mark reviewed", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"post_id":       id,
		"reviewed_date": at,
		"message":       "Post marked as reviewed.",
	})
}

type bulkReviewRequest struct {
	PostIDs []int64 `json:"post_ids"`
}

func (s *Server) postBulkReview(w http.ResponseWriter, r *http.Request) {
	var req bulkReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", "Request body must be a JSON object with post_ids.")
		return
	}
	if len(req.PostIDs) == 0 || len(req.PostIDs) > maxBulkIDs {
		writeError(w, http.StatusBadRequest, "invalid_param",
			fmt.Sprintf("post_ids must contain between 1 and %d ids", maxBulkIDs))
		return
	}
	ids := make([]int64, 0, len(req.PostIDs))
	seen := make(map[int64]bool, len(req.PostIDs))
	for _, id := range req.PostIDs {
		if id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_param", "post_ids must be positive integers")
			return
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	result := s.deps.Engine.MarkReviewedBulk(r.Context(), ids)
	noun := "posts"
	if len(result.Updated) == 1 {
		noun = "post"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       len(result.Failed) == 0,
		"updated_count": len(result.Updated),
		"updated_posts": result.Updated,
		"failed_posts":  result.Failed,
		"reviewed_date": result.ReviewedAt,
		"message":       fmt.Sprintf("%d %s marked as reviewed.", len(result.Updated), noun),
	})
}

type dashboardResponse struct {
	Stats  models.StatsSnapshot `json:"stats"`
	Health models.HealthScore   `json:"health"`
	Items  []models.StaleItem   `json:"items"`
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	settings := s.deps.Settings.Get()
	st, err := s.deps.Engine.Stats(r.Context(), settings, false)
	if err != nil {
		s.internalError(w, "compute stats", err)
		return
	}

	page, err := s.deps.Engine.ListStale(r.Context(), settings, freshness.ListOptions{
		PerPage: dashboardItems,
		Page:    1,
		OrderBy: freshness.OrderModified,
		Order:   "asc",
	})
	if err != nil {
		s.internalError(w, "list stale content", err)
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{Stats: *st, Health: freshness.Health(*st), Items: page.Items})
}

func (s *Server) getTrends(w http.ResponseWriter, r *http.Request) {
	days := defaultTrendDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_param", "days must be a positive integer")
			return
		}
		days = n
	}

	points, err := s.deps.Trends.History(r.Context(), days)
	if err != nil {
		s.internalError(w, "load trends", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days, "points": points})
}

// allStale returns the full unpaginated stale list oldest first
func (s *Server) allStale(r *http.Request) ([]models.StaleItem, error) {
	page, err := s.deps.Engine.ListStale(r.Context(), s.deps.Settings.Get(), freshness.ListOptions{
		OrderBy: freshness.OrderModified,
		Order:   "asc",
	})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (s *Server) getExportCSV(w http.ResponseWriter, r *http.Request) {
	items, err := s.allStale(r)
	if err != nil {
		s.internalError(w, "export stale content", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, items); err != nil {
		s.internalError(w, "write csv", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) getExportParquet(w http.ResponseWriter, r *http.Request) {
	items, err := s.allStale(r)
	if err != nil {
		s.internalError(w, "export stale content", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteParquet(&buf, items); err != nil {
		s.internalError(w, "write parquet", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.ParquetFilename(s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Settings.Get())
}

// putSettings merges the request body over the current settings
func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	next := s.deps.Settings.Get()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", fmt.Sprintf("Invalid settings: %v", err))
		return
	}

	saved, err := s.deps.Settings.Update(r.Context(), next)
	if err != nil {
		s.internalError(w, "save settings", err)
		return
	}
	logrus.Info("Settings updated through the API")
	writeJSON(w, http.StatusOK, saved)
}

// postContentHook applies a host content mutation and invalidates cached stats
func (s *Server) postContentHook(w http.ResponseWriter, r *http.Request) {
	var ev models.ContentEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_param", "Request body must be a content event.")
		return
	}
	if ev.ID <= 0 && ev.Item != nil {
		ev.ID = ev.Item.ID
	}
	if ev.ID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_param", "id must be a positive integer")
		return
	}
	if ev.IsRevision {
		writeJSON(w, http.StatusAccepted, map[string]any{"applied": false, "reason": "revision"})
		return
	}

	if err := s.applyContentEvent(r, ev); err != nil {
		switch {
		case errors.Is(err, freshness.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", "Post not found.")
		case errors.Is(err, content.ErrInvalidItem), errors.Is(err, errUnknownKind):
			writeError(w, http.StatusBadRequest, "invalid_param", err.Error())
		default:
			s.internalError(w, "apply content event", err)
		}
		return
	}

	s.deps.Engine.HandleContentEvent(ev)
	writeJSON(w, http.StatusAccepted, map[string]any{"applied": true, "id": ev.ID, "kind": ev.Kind})
}

var errUnknownKind = errors.New("unknown content event kind")

func (s *Server) applyContentEvent(r *http.Request, ev models.ContentEvent) error {
	ctx := r.Context()
	switch ev.Kind {
	case models.ContentCreated, models.ContentUpdated:
		if ev.Item == nil {
			return fmt.Errorf("%w: item payload is required for %s", content.ErrInvalidItem, ev.Kind)
		}
		item := *ev.Item
		item.ID = ev.ID
		return s.deps.Content.Upsert(ctx, item)
	case models.ContentDeleted:
		return s.deps.Content.Delete(ctx, ev.ID)
	case models.ContentTrashed:
		return s.deps.Content.SetStatus(ctx, ev.ID, statusTrash)
	case models.ContentUntrashed:
		if ev.Item != nil {
			item := *ev.Item
			item.ID = ev.ID
			return s.deps.Content.Upsert(ctx, item)
		}
		return s.deps.Content.SetStatus(ctx, ev.ID, models.StatusPublished)
	default:
		return fmt.Errorf("%w %q", errUnknownKind, ev.Kind)
	}
}

func (s *Server) getNetworkStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Network == nil {
		writeError(w, http.StatusNotFound, "not_found", "Network mode is not configured.")
		return
	}
	stats, err := s.deps.Network.Stats(r.Context())
	if err != nil {
		s.internalError(w, "aggregate network stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getNetworkStale(w http.ResponseWriter, r *http.Request) {
	if s.deps.Network == nil {
		writeError(w, http.StatusNotFound, "not_found", "Network mode is not configured.")
		return
	}
	limit := defaultNetworkN
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPerPage {
			writeError(w, http.StatusBadRequest, "invalid_param",
				fmt.Sprintf("limit must be between 1 and %d", maxPerPage))
			return
		}
		limit = n
	}

	items, err := s.deps.Network.StaleItems(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list network stale content", err)
		return
	}
	if items == nil {
		items = []models.NetworkStaleItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"limit": limit, "items": items})
}

// postTrigger starts a job in the background
func (s *Server) postTrigger(w http.ResponseWriter, r *http.Request) {
	if s.deps.Jobs == nil {
		writeError(w, http.StatusNotFound, "not_found", "The scheduler is not running.")
		return
	}
	job := mux.Vars(r)["job"]
	if !scheduler.KnownJob(job) {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("Unknown job %q.", job))
		return
	}
	go func() {
		if err := s.deps.Jobs.Trigger(job); err != nil {
			logrus.Errorf("Manual %s trigger failed: %v", job, err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": fmt.Sprintf("Job %s triggered", job)})
}

func (s *Server) internalError(w http.ResponseWriter, action string, err error) {
	logrus.Errorf("Failed to %s: %v", action, err)
	writeError(w, http.StatusInternalServerError, "internal_error", fmt.Sprintf("Failed to %s.", action))
}
