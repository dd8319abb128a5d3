package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/readlater/internal/auth"
	"github.com/hpungsan/readlater/internal/config"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
// Every tool acts as the account named by cfg.MCPUserEmail.
type Handlers struct {
	env *ops.Env
	cfg *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env, cfg *config.Config) *Handlers {
	return &Handlers{env: env, cfg: cfg}
}

// Request types for each tool

// ImportRequest represents the arguments for item_import.
type ImportRequest struct {
	URL string `json:"url"`
}

// BulkImportRequest represents the arguments for item_bulk_import.
type BulkImportRequest struct {
	URLs []string `json:"urls"`
}

// MapRequest represents the arguments for item_map.
type MapRequest struct {
	URL    string `json:"url"`
	Search string `json:"search,omitempty"`
}

// ListRequest represents the arguments for item_list.
type ListRequest struct {
	Query  string `json:"query,omitempty"`
	Status string `json:"status,omitempty"`
}

// IDRequest represents the arguments for item_get and item_summarize.
type IDRequest struct {
	ID string `json:"id"`
}

// SaveSummaryRequest represents the arguments for item_save_summary.
type SaveSummaryRequest struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
}

// identity resolves the configured account.
func (h *Handlers) identity(ctx context.Context) (auth.Identity, error) {
	email := strings.TrimSpace(h.cfg.MCPUserEmail)
	if email == "" {
		return auth.Identity{}, errors.NewUnauthorized("mcp_user_email is not configured")
	}
	return auth.IdentityForEmail(ctx, h.env.DB, email)
}

// Handler implementations

// HandleImport handles the item_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := h.identity(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Import(ctx, h.env, id, ops.ImportInput{URL: input.URL})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleBulkImport handles the item_bulk_import tool call.
func (h *Handlers) HandleBulkImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[BulkImportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := h.identity(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.BulkImport(ctx, h.env, id, ops.BulkImportInput{URLs: input.URLs})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleMap handles the item_map tool call.
func (h *Handlers) HandleMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MapRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := h.identity(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.MapLinks(ctx, h.env, id, ops.MapInput{URL: input.URL, Search: input.Search})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the item_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := h.identity(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.List(ctx, h.env, id, ops.ListInput{Query: input.Query, Status: input.Status})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGet handles the item_get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := h.identity(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Get(ctx, h.env, id, ops.GetInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSummarize handles the item_summarize tool call. The stream is
// collected and returned whole.
func (h *Handlers) HandleSummarize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := h.identity(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	var buf strings.Builder
	if err := ops.StreamSummary(ctx, h.env, id, ops.StreamSummaryInput{ID: input.ID}, &buf); err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"id":      strings.TrimSpace(input.ID),
		"summary": strings.TrimSpace(buf.String()),
	})
}

// HandleSaveSummary handles the item_save_summary tool call.
func (h *Handlers) HandleSaveSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveSummaryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	id, err := h.identity(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.SaveSummary(ctx, h.env, id, ops.SaveSummaryInput{ID: input.ID, Summary: input.Summary})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are never exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) && appErr.Code != errors.ErrInternal {
		message := appErr.Message
		// Keep wrapper context such as "urls[2]: ".
		if err != error(appErr) {
			message = strings.TrimSuffix(err.Error(), appErr.Error()) + appErr.Message
		}
		errorObj := map[string]any{
			"code":    appErr.Code,
			"message": message,
			"status":  appErr.Status,
		}
		if appErr.Details != nil {
			errorObj["details"] = appErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
