// Package mcp exposes the freshness engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const version = "1.0.0"

// Engine is the engine surface offered to agents
type Engine interface {
	Stats(ctx context.Context, settings models.Settings, force bool) (*models.StatsSnapshot, error)
	ListStale(ctx context.Context, settings models.Settings, opts freshness.ListOptions) (*models.StalePage, error)
	Check(ctx context.Context, settings models.Settings, id int64) (*models.Freshness, error)
	MarkReviewedBulk(ctx context.Context, ids []int64) models.BulkReviewResult
}

// SettingsSource returns the current settings
type SettingsSource interface {
	Get() models.Settings
}

// NewServer configures the tool server without starting it
func NewServer(engine Engine, settings SettingsSource) *server.MCPServer {
	s := server.NewMCPServer(
		"Content Freshness Monitor",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{engine: engine, settings: settings}

	s.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Get fresh, aging and stale content counts with the site health grade."),
		mcp.WithBoolean("refresh", mcp.Description("Recompute instead of using cached statistics.")),
	), h.handleGetStats)

	s.AddTool(mcp.NewTool("list_stale",
		mcp.WithDescription("List content that has not been updated within its staleness threshold."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of items (1-100). Defaults to 20.")),
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1.")),
		mcp.WithString("orderby", mcp.Description("Sort field."), mcp.Enum("modified", "title", "date", "author", "id")),
		mcp.WithString("order", mcp.Description("Sort direction."), mcp.Enum("asc", "desc")),
		mcp.WithString("post_type", mcp.Description("Restrict the listing to one content type.")),
	), h.handleListStale)

	s.AddTool(mcp.NewTool("check_content",
		mcp.WithDescription("Classify a single content item as fresh, aging or stale."),
		mcp.WithNumber("id", mcp.Description("Content identifier."), mcp.Required()),
	), h.handleCheckContent)

	s.AddTool(mcp.NewTool("mark_reviewed",
		mcp.WithDescription("Mark content items as reviewed now, clearing their stale flag."),
		mcp.WithString("ids", mcp.Description("Comma separated content identifiers."), mcp.Required()),
	), h.handleMarkReviewed)

	return s
}

// Serve runs the tool server over stdio until the input closes
func Serve(_ context.Context, engine Engine, settings SettingsSource) error {
	return server.ServeStdio(NewServer(engine, settings))
}

type statsResult struct {
	Stats  models.StatsSnapshot `json:"stats"`
	Health models.HealthScore   `json:"health"`
	AsOf   time.Time            `json:"as_of"`
}
