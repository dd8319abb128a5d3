package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hpungsan/readlater/internal/config"
	"github.com/hpungsan/readlater/internal/errors"
	"github.com/hpungsan/readlater/internal/item"
	"github.com/hpungsan/readlater/internal/ops"
)

// maxBodyBytes bounds JSON and form request bodies.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	env      *ops.Env
	cfg      *config.Config
	renderer *Renderer
	logger   *slog.Logger
}

func (h *Handlers) page(r *http.Request, title, nav string) PageData {
	return PageData{
		Title:   title,
		Version: h.renderer.version,
		Nav:     nav,
		User:    userFrom(r),
	}
}

// HandleList handles GET /items: the caller's items, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	status := r.URL.Query().Get("status")
	if status == "" {
		status = item.StatusAll
	}

	result, err := ops.List(r.Context(), h.env, id, ops.ListInput{Query: query, Status: status})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	data := ListPageData{
		PageData: h.page(r, "Items", "items"),
		Items:    result.Items,
		Total:    result.Total,
		Query:    query,
		Status:   status,
		Statuses: []string{
			item.StatusAll,
			string(item.StatusProcessing),
			string(item.StatusCompleted),
			string(item.StatusFailed),
		},
	}

	// If htmx targets #results, render only the results fragment
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "list", "item-results", data)
		return
	}
	h.renderer.renderPage(w, r, "list", data)
}

// HandleDetail handles GET /items/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	it, err := ops.Get(r.Context(), h.env, id, ops.GetInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, it)
		return
	}

	h.renderer.renderPage(w, r, "detail", h.detailData(r, it))
}

func (h *Handlers) detailData(r *http.Request, it *item.Item) DetailPageData {
	title := titleOf(it.Title, it.URL)
	data := DetailPageData{
		PageData:     h.page(r, title, "items"),
		Item:         it,
		DisplayTitle: title,
	}
	if it.Content != nil {
		data.ContentHTML = h.renderer.renderMarkdown(*it.Content)
	}
	if it.Summary != nil {
		data.SummaryHTML = h.renderer.renderMarkdown(*it.Summary)
	}
	return data
}

type saveSummaryRequest struct {
	Summary string `json:"summary"`
}

// HandleSaveSummary handles POST /items/{id}/summary: stores a finished
// summary and the tags derived from it.
func (h *Handlers) HandleSaveSummary(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req saveSummaryRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	} else {
		if err := parseForm(w, r); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		req.Summary = r.FormValue("summary")
	}

	itemID := r.PathValue("id")
	it, err := ops.SaveSummary(r.Context(), h.env, id, ops.SaveSummaryInput{ID: itemID, Summary: req.Summary})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, it)
		return
	}
	if isHTMX(r) {
		h.renderer.renderBlock(w, http.StatusOK, "detail", "summary", h.detailData(r, it))
		return
	}
	http.Redirect(w, r, "/items/"+it.ID, http.StatusSeeOther)
}

type streamSummaryRequest struct {
	ItemID string `json:"itemId"`
}

// HandleStreamSummary handles POST /api/ai/summary. The summary of the
// item's content is streamed back as plain text and not stored.
func (h *Handlers) HandleStreamSummary(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req streamSummaryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ItemID) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidField("itemId", "is required"))
		return
	}

	sw := &streamWriter{w: w}
	err := ops.StreamSummary(r.Context(), h.env, id, ops.StreamSummaryInput{ID: req.ItemID}, sw)
	if err == nil {
		sw.start()
		return
	}
	if !sw.started {
		h.renderer.renderError(w, r, err)
		return
	}
	// Headers are gone; the client sees a truncated stream.
	h.logger.Error("summary stream interrupted", "item_id", req.ItemID, "request_id", RequestID(r.Context()), "error", err)
}

// streamWriter commits a 200 text/plain response on the first write, so
// errors raised before any output can still use a proper status.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
}

func (s *streamWriter) start() {
	if s.started {
		return
	}
	s.started = true
	s.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	s.w.Header().Set("Cache-Control", "no-cache")
	s.w.Header().Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *streamWriter) Write(p []byte) (int, error) {
	s.start()
	return s.w.Write(p)
}

func (s *streamWriter) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleImportPage handles GET /import.
func (h *Handlers) HandleImportPage(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if tab != "bulk" {
		tab = "single"
	}
	h.renderer.renderPage(w, r, "import", ImportPageData{
		PageData: h.page(r, "Import", "import"),
		Tab:      tab,
	})
}

type importRequest struct {
	URL string `json:"url"`
}

// HandleImport handles POST /import: one URL, scraped synchronously.
func (h *Handlers) HandleImport(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req importRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	} else {
		if err := parseForm(w, r); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		req.URL = r.FormValue("url")
	}

	result, err := ops.Import(r.Context(), h.env, id, ops.ImportInput{URL: req.URL})
	if err != nil {
		if !wantsJSON(r) && !isHTMX(r) && errors.Is(err, errors.ErrInvalidRequest) {
			h.renderer.renderPageStatus(w, r, http.StatusBadRequest, "import", ImportPageData{
				PageData: h.page(r, "Import", "import"),
				Tab:      "single",
				URL:      req.URL,
				Error:    err.(*errors.AppError).Message,
			})
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	switch {
	case wantsJSON(r):
		renderJSON(w, http.StatusOK, result)
	case isHTMX(r):
		h.renderer.renderBlock(w, http.StatusOK, "import", "import-result", ImportPageData{
			PageData: h.page(r, "Import", "import"),
			Tab:      "single",
			Single:   result,
		})
	default:
		http.Redirect(w, r, "/items/"+result.ID, http.StatusSeeOther)
	}
}

type bulkImportRequest struct {
	URLs []string `json:"urls"`
}

// HandleBulkImport handles POST /import/bulk. The batch runs to completion
// even if the client disconnects.
func (h *Handlers) HandleBulkImport(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req bulkImportRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	} else {
		if err := parseForm(w, r); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		req.URLs = formURLs(r)
	}

	ctx := context.WithoutCancel(r.Context())
	result, err := ops.BulkImport(ctx, h.env, id, ops.BulkImportInput{URLs: req.URLs})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := ImportPageData{
		PageData: h.page(r, "Import", "import"),
		Tab:      "bulk",
		Bulk:     result,
	}
	switch {
	case wantsJSON(r):
		renderJSON(w, http.StatusOK, result)
	case isHTMX(r):
		h.renderer.renderBlock(w, http.StatusOK, "import", "bulk-result", data)
	default:
		h.renderer.renderPage(w, r, "import", data)
	}
}

type mapRequest struct {
	URL    string `json:"url"`
	Search string `json:"search"`
}

// HandleMap handles POST /import/map: previews links found on a site so the
// user can pick which ones to bulk import.
func (h *Handlers) HandleMap(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())

	var req mapRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
	} else {
		if err := parseForm(w, r); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		req.URL = r.FormValue("url")
		req.Search = r.FormValue("search")
	}

	result, err := ops.MapLinks(r.Context(), h.env, id, ops.MapInput{URL: req.URL, Search: req.Search})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := ImportPageData{
		PageData: h.page(r, "Import", "import"),
		Tab:      "bulk",
		URL:      req.URL,
		Search:   req.Search,
		Links:    result.Links,
		Mapped:   true,
	}
	switch {
	case wantsJSON(r):
		renderJSON(w, http.StatusOK, result)
	case isHTMX(r):
		h.renderer.renderBlock(w, http.StatusOK, "import", "map-result", data)
	default:
		h.renderer.renderPage(w, r, "import", data)
	}
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.env.DB.PingContext(r.Context()); err != nil {
		h.logger.Error("health check failed", "error", err)
		renderJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// isJSONBody reports whether the request body is JSON.
func isJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.NewInvalidRequest("request body is empty")
		}
		return errors.NewInvalidRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}

// parseForm parses a bounded urlencoded or multipart form.
func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return errors.NewInvalidRequest("invalid form data")
	}
	return nil
}

// formURLs collects URLs from checkbox values ("urls") and a
// newline-separated textarea ("urls_text"), skipping blank lines.
func formURLs(r *http.Request) []string {
	var urls []string
	for _, u := range r.Form["urls"] {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	for _, line := range strings.Split(r.FormValue("urls_text"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	return urls
}
