package groups

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

// Handler manages group and membership endpoints.
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

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(h.viewCaps...))
		r.Get("/{code}", h.getGroup)
		r.Get("/{code}/capabilities", h.groupCapabilities)
		r.Get("/users/{userID}/memberships", h.userMemberships)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(h.editCaps...))
		r.Post("/", h.createGroup)
		r.Post("/{code}/deactivate", h.deactivateGroup)
		r.Post("/memberships", h.assign)
		r.Post("/memberships/{membershipID}/revoke", h.revoke)
	})
}

type groupPayload struct {
	Code        string `json:"code" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
	AccessType  string `json:"access_type" validate:"required,oneof=operational supervisory admin"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var payload groupPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.CreateGroup(r.Context(), payload.Code, payload.DisplayName, AccessType(payload.AccessType))
	if err != nil {
		if errors.Is(err, ErrDuplicateGroup) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("create group", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, toGroupResponse(group))
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get group", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, toGroupResponse(group))
}

func (h *Handler) deactivateGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateGroup(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.logger.Error("deactivate group", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) groupCapabilities(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get group", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	codes, err := h.service.GroupCapabilities(r.Context(), group.ID)
	if err != nil {
		h.logger.Error("group capabilities", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if codes == nil {
		codes = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"code": group.Code, "capabilities": codes})
}

type assignPayload struct {
	UserID    int64      `json:"user_id" validate:"required"`
	GroupCode string     `json:"group_code" validate:"required"`
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var payload assignPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.GetGroup(r.Context(), payload.GroupCode)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get group", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	assignedBy := int64(0)
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		assignedBy = principal.UserID
	}
	membership, err := h.service.Assign(r.Context(), payload.UserID, group.ID, assignedBy, payload.ExpiresAt)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateMembership):
			httpx.Problem(w, http.StatusConflict, "Duplicate Membership", err.Error())
		case errors.Is(err, ErrInvalidExpiry):
			httpx.Problem(w, http.StatusBadRequest, "Invalid Expiry", err.Error())
		default:
			h.logger.Error("assign membership", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, toMembershipResponse(membership))
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	membershipID, err := strconv.ParseInt(chi.URLParam(r, "membershipID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Membership ID", "membership id must be numeric")
		return
	}
	revokedBy := int64(0)
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		revokedBy = principal.UserID
	}
	if err := h.service.Revoke(r.Context(), membershipID, revokedBy); err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("revoke membership", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userMemberships(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "user id must be numeric")
		return
	}
	memberships, err := h.service.UserMemberships(r.Context(), userID)
	if err != nil {
		h.logger.Error("user memberships", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]map[string]any, 0, len(memberships))
	now := time.Now()
	for _, m := range memberships {
		resp := toMembershipResponse(m)
		resp["in_effect"] = m.InEffect(now)
		out = append(out, resp)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toGroupResponse(group Group) map[string]any {
	return map[string]any{
		"code":         group.Code,
		"display_name": group.DisplayName,
		"access_type":  string(group.AccessType),
		"active":       group.Active,
	}
}

func toMembershipResponse(m Membership) map[string]any {
	resp := map[string]any{
		"id":          m.ID,
		"user_id":     m.UserID,
		"group_id":    m.GroupID,
		"assigned_by": m.AssignedBy,
		"assigned_at": m.AssignedAt,
		"active":      m.Active,
	}
	if m.ExpiresAt != nil {
		resp["expires_at"] = m.ExpiresAt
	}
	return resp
}
