package availability

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/platform/httpx"
)

// SnapshotPort provides the catalog view the computation runs against.
type SnapshotPort interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}

// Handler serves availability queries for the register.
type Handler struct {
	logger  *slog.Logger
	catalog SnapshotPort
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, cat SnapshotPort) *Handler {
	return &Handler{logger: logger, catalog: cat}
}

// MountRoutes registers availability routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.compute)
}

type computeRequest struct {
	Cart Cart `json:"cart"`
}

// compute returns sellable quantities for the posted cart. An empty cart is
// valid and yields raw stock availability.
func (h *Handler) compute(w http.ResponseWriter, r *http.Request) {
	var req computeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	snapshot, err := h.catalog.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("availability snapshot", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, Compute(*snapshot, req.Cart))
}
