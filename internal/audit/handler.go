package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/centinela-ac/centinela/internal/platform/httpx"
)

// AuthzMiddleware guards routes with capability checks.
type AuthzMiddleware interface {
	RequireAny(caps ...string) func(http.Handler) http.Handler
}

// Handler exposes the audit trail for compliance review. Read-only by
// construction: the package offers no mutating endpoint.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authz    AuthzMiddleware
	viewCaps []string
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz AuthzMiddleware, viewCaps []string) *Handler {
	return &Handler{logger: logger, service: service, authz: authz, viewCaps: viewCaps}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(h.viewCaps...))
		r.Get("/", h.trail)
		r.Get("/export.csv", h.exportCSV)
	})
}

func (h *Handler) trail(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
		return
	}
	result, err := h.service.Trail(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit trail", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	entries := make([]map[string]any, 0, len(result.Entries))
	for _, entry := range result.Entries {
		entries = append(entries, toEntryResponse(entry))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"paging": map[string]any{
			"page":      result.Paging.Page,
			"page_size": result.Paging.PageSize,
			"has_next":  result.Paging.HasNext,
		},
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filters", err.Error())
		return
	}
	entries, err := h.service.Export(r.Context(), filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	if err := WriteCSV(w, entries); err != nil {
		h.logger.Error("write audit csv", slog.Any("error", err))
	}
}

func parseFilters(r *http.Request) (Filters, error) {
	var filters Filters
	query := r.URL.Query()
	if raw := query.Get("user_id"); raw != "" {
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Filters{}, err
		}
		filters.UserID = userID
	}
	filters.CapabilityCode = query.Get("capability")
	filters.Action = Action(query.Get("action"))
	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filters{}, err
		}
		filters.From = from
	}
	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filters{}, err
		}
		filters.To = to
	}
	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return Filters{}, err
		}
		filters.Page = page
	}
	if raw := query.Get("page_size"); raw != "" {
		pageSize, err := strconv.Atoi(raw)
		if err != nil {
			return Filters{}, err
		}
		filters.PageSize = pageSize
	}
	return filters, nil
}

func toEntryResponse(entry Entry) map[string]any {
	return map[string]any{
		"id":          entry.ID.String(),
		"user_id":     entry.UserID,
		"capability":  entry.CapabilityCode,
		"action":      string(entry.Action),
		"outcome":     string(entry.Outcome),
		"resource":    entry.Resource,
		"endpoint":    entry.Endpoint,
		"ip_address":  entry.IPAddress,
		"user_agent":  entry.UserAgent,
		"context":     entry.Context,
		"occurred_at": entry.OccurredAt,
	}
}
