package exceptions

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/centinela-ac/centinela/internal/platform/httpx"
	"github.com/centinela-ac/centinela/internal/shared"
)

// AuthzMiddleware guards routes with capability checks.
type AuthzMiddleware interface {
	RequireAny(caps ...string) func(http.Handler) http.Handler
}

// Handler manages exceptional permission endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     AuthzMiddleware
	viewCaps  []string
	editCaps  []string
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz AuthzMiddleware, viewCaps, editCaps []string) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		authz:     authz,
		viewCaps:  viewCaps,
		editCaps:  editCaps,
		validator: validator.New(),
	}
}

// MountRoutes registers exception routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(h.viewCaps...))
		r.Get("/users/{userID}", h.listForUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(h.editCaps...))
		r.Post("/grants", h.grant)
		r.Post("/revocations", h.revokeCapability)
		r.Post("/{exceptionID}/deactivate", h.deactivate)
	})
}

type grantPayload struct {
	UserID     int64      `json:"user_id" validate:"required"`
	Capability string     `json:"capability" validate:"required"`
	Reason     string     `json:"reason"`
	StartsAt   *time.Time `json:"starts_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	var payload grantPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	startsAt := time.Time{}
	if payload.StartsAt != nil {
		startsAt = *payload.StartsAt
	}
	perm, err := h.service.Grant(r.Context(), payload.UserID, payload.Capability, h.authorizedBy(r), payload.Reason, startsAt, payload.ExpiresAt)
	if err != nil {
		h.respondApplyError(w, err, "grant exception")
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

type revokePayload struct {
	UserID     int64  `json:"user_id" validate:"required"`
	Capability string `json:"capability" validate:"required"`
	Reason     string `json:"reason"`
}

func (h *Handler) revokeCapability(w http.ResponseWriter, r *http.Request) {
	var payload revokePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	perm, err := h.service.RevokeCapability(r.Context(), payload.UserID, payload.Capability, h.authorizedBy(r), payload.Reason)
	if err != nil {
		h.respondApplyError(w, err, "revoke capability")
		return
	}
	httpx.JSON(w, http.StatusCreated, toPermissionResponse(perm))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "exceptionID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Exception ID", "exception id must be numeric")
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("deactivate exception", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "user id must be numeric")
		return
	}
	perms, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list exceptions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]map[string]any, 0, len(perms))
	now := time.Now()
	for _, perm := range perms {
		resp := toPermissionResponse(perm)
		resp["in_effect"] = perm.InEffect(now)
		out = append(out, resp)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondApplyError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, ErrMissingJustification):
		httpx.Problem(w, http.StatusBadRequest, "Missing Justification", err.Error())
	case errors.Is(err, ErrInvalidWindow):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Window", err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (h *Handler) authorizedBy(r *http.Request) int64 {
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		return principal.UserID
	}
	return 0
}

func toPermissionResponse(p Permission) map[string]any {
	resp := map[string]any{
		"id":            p.ID,
		"user_id":       p.UserID,
		"capability":    p.CapabilityCode,
		"kind":          string(p.Kind),
		"authorized_by": p.AuthorizedBy,
		"reason":        p.Reason,
		"starts_at":     p.StartsAt,
		"active":        p.Active,
	}
	if p.ExpiresAt != nil {
		resp["expires_at"] = p.ExpiresAt
	}
	return resp
}
