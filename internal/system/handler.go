package system

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sagra-pos/sagra-pos/internal/platform/httpx"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// Handler exposes the reset endpoint.
type Handler struct {
	logger   *slog.Logger
	resetter *Resetter
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, resetter *Resetter) *Handler {
	return &Handler{logger: logger, resetter: resetter}
}

// MountRoutes registers system routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reset", h.reset)
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	result, err := h.resetter.Reset(r.Context())
	if err != nil {
		if errors.Is(err, shared.ErrForbidden) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
			return
		}
		h.logger.Error("system reset", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
