package transfer

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sagra-pos/sagra-pos/internal/platform/httpx"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// Handler exposes export and import of the full system state.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/export", h.export)
	r.Post("/import", h.importArchive)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf); err != nil {
		if errors.Is(err, shared.ErrForbidden) {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
			return
		}
		h.logger.Error("transfer export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sagra-transfer.csv"`)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) importArchive(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Import(r.Context(), r.Body)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrForbidden):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
		default:
			h.logger.Error("transfer import", slog.Any("error", err))
			httpx.Problem(w, http.StatusBadRequest, "Import Failed", err.Error())
		}
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
