package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/centinela-ac/centinela/internal/platform/httpx"
)

// AuthzMiddleware guards mutating routes with capability checks.
type AuthzMiddleware interface {
	RequireAny(caps ...string) func(http.Handler) http.Handler
}

// Handler manages capability catalog endpoints.
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

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(h.viewCaps...))
		r.Get("/capabilities", h.listCapabilities)
		r.Get("/functions/{fullName}/capabilities", h.functionCapabilities)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(h.editCaps...))
		r.Post("/capabilities", h.registerCapability)
		r.Post("/capabilities/{code}/deactivate", h.deactivateCapability)
		r.Post("/functions", h.registerFunction)
		r.Post("/functions/{fullName}/capabilities", h.linkCapability)
	})
}

type capabilityPayload struct {
	Code          string `json:"code" validate:"required"`
	Sensitivity   string `json:"sensitivity" validate:"required,oneof=low normal high critical"`
	RequiresAudit bool   `json:"requires_audit"`
}

type capabilityResponse struct {
	Code          string `json:"code"`
	Sensitivity   string `json:"sensitivity"`
	RequiresAudit bool   `json:"requires_audit"`
	Active        bool   `json:"active"`
}

func toCapabilityResponse(cap Capability) capabilityResponse {
	return capabilityResponse{
		Code:          cap.Code,
		Sensitivity:   string(cap.Sensitivity),
		RequiresAudit: cap.RequiresAudit,
		Active:        cap.Active,
	}
}

func (h *Handler) listCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := h.service.ListCapabilities(r.Context())
	if err != nil {
		h.logger.Error("list capabilities", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]capabilityResponse, 0, len(caps))
	for _, cap := range caps {
		out = append(out, toCapabilityResponse(cap))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) registerCapability(w http.ResponseWriter, r *http.Request) {
	var payload capabilityPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cap, err := h.service.RegisterCapability(r.Context(), payload.Code, Sensitivity(payload.Sensitivity), payload.RequiresAudit)
	if err != nil {
		if errors.Is(err, ErrDuplicateCapability) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("register capability", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, toCapabilityResponse(cap))
}

func (h *Handler) deactivateCapability(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeactivateCapability(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.logger.Error("deactivate capability", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type functionPayload struct {
	FullName string `json:"full_name" validate:"required"`
	Domain   string `json:"domain"`
	Category string `json:"category"`
}

func (h *Handler) registerFunction(w http.ResponseWriter, r *http.Request) {
	var payload functionPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	fn, err := h.service.RegisterFunction(r.Context(), payload.FullName, payload.Domain, payload.Category)
	if err != nil {
		if errors.Is(err, ErrDuplicateFunction) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("register function", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"full_name": fn.FullName,
		"domain":    fn.Domain,
		"category":  fn.Category,
		"active":    fn.Active,
	})
}

type linkPayload struct {
	CapabilityCode string `json:"capability_code" validate:"required"`
	Required       bool   `json:"required"`
	VisibleInUI    bool   `json:"visible_in_ui"`
}

func (h *Handler) linkCapability(w http.ResponseWriter, r *http.Request) {
	var payload linkPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.LinkCapability(r.Context(), chi.URLParam(r, "fullName"), payload.CapabilityCode, payload.Required, payload.VisibleInUI)
	if err != nil {
		if errors.Is(err, ErrFunctionNotFound) || errors.Is(err, ErrCapabilityNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("link capability", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) functionCapabilities(w http.ResponseWriter, r *http.Request) {
	links, err := h.service.FunctionCapabilities(r.Context(), chi.URLParam(r, "fullName"))
	if err != nil {
		if errors.Is(err, ErrFunctionNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("function capabilities", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	out := make([]map[string]any, 0, len(links))
	for _, link := range links {
		out = append(out, map[string]any{
			"capability_code": link.Code,
			"required":        link.Required,
			"visible_in_ui":   link.VisibleInUI,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
