package resolver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/centinela-ac/centinela/internal/platform/httpx"
)

// Handler exposes the resolver to the platform's REST layer. The caller maps a
// negative decision to its own 403; this surface only reports the decision.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers resolver routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
	r.Get("/users/{userID}/capabilities", h.effective)
}

type checkRequest struct {
	UserID     int64  `json:"user_id" validate:"required"`
	Capability string `json:"capability" validate:"required"`
	Resource   string `json:"resource"`
	Endpoint   string `json:"endpoint"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	allowed, err := h.service.HasPermission(r.Context(), req.UserID, req.Capability, CheckMeta{
		Resource:  req.Resource,
		Endpoint:  req.Endpoint,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			httpx.Problem(w, http.StatusNotFound, "Unknown User", err.Error())
			return
		}
		h.logger.Error("permission check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

type effectiveResponse struct {
	UserID       int64    `json:"user_id"`
	Capabilities []string `json:"capabilities"`
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid User ID", "user id must be numeric")
		return
	}
	caps, err := h.service.EffectiveCapabilities(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUnknownUser) {
			httpx.Problem(w, http.StatusNotFound, "Unknown User", err.Error())
			return
		}
		h.logger.Error("effective capabilities", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if caps == nil {
		caps = []string{}
	}
	httpx.JSON(w, http.StatusOK, effectiveResponse{UserID: userID, Capabilities: caps})
}
