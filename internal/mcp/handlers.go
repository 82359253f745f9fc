package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cfmlabs/freshness-monitor/internal/freshness"
	"github.com/cfmlabs/freshness-monitor/internal/settings"
	"github.com/mark3labs/mcp-go/mcp"
)

const maxLimit = 100

type toolHandler struct {
	engine   Engine
	settings SettingsSource
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *toolHandler) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := h.engine.Stats(ctx, h.settings.Get(), request.GetBool("refresh", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	return jsonResult(statsResult{Stats: *st, Health: freshness.Health(*st), AsOf: st.ComputedAt})
}

func (h *toolHandler) handleListStale(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := freshness.ListOptions{
		PerPage: request.GetInt("limit", 20),
		Page:    request.GetInt("page", 1),
		OrderBy: freshness.OrderModified,
		Order:   request.GetString("order", "asc"),
	}
	if opts.PerPage < 1 || opts.PerPage > maxLimit {
		return mcp.NewToolResultError(fmt.Sprintf("limit must be between 1 and %d", maxLimit)), nil
	}
	if opts.Page < 1 {
		return mcp.NewToolResultError("page must be at least 1"), nil
	}
	if o := request.GetString("orderby", ""); o != "" {
		f, ok := freshness.ParseOrderField(o)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid orderby %q", o)), nil
		}
		opts.OrderBy = f
	}
	if opts.Order != "asc" && opts.Order != "desc" {
		return mcp.NewToolResultError("order must be asc or desc"), nil
	}
	if t := request.GetString("post_type", ""); t != "" {
		opts.Types = []string{t}
	}

	page, err := h.engine.ListStale(ctx, h.settings.Get(), opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing failed: %v", err)), nil
	}
	return jsonResult(page)
}

func (h *toolHandler) handleCheckContent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(request.GetInt("id", 0))
	if id <= 0 {
		return mcp.NewToolResultError("id must be a positive integer"), nil
	}

	f, err := h.engine.Check(ctx, h.settings.Get(), id)
	if errors.Is(err, freshness.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("content #%d not found", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("check failed: %v", err)), nil
	}
	return jsonResult(f)
}

func (h *toolHandler) handleMarkReviewed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := settings.ParseIDList(request.GetString("ids", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid ids: %v", err)), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultError("at least one id is required"), nil
	}
	return jsonResult(h.engine.MarkReviewedBulk(ctx, ids))
}
