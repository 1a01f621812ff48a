package kitchen

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sagra-pos/sagra-pos/internal/platform/httpx"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// Handler exposes the kitchen queue, the delivery queue and the shared
// selection marks.
type Handler struct {
	logger     *slog.Logger
	feed       *Feed
	selections *SelectionStore
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, feed *Feed, selections *SelectionStore) *Handler {
	return &Handler{logger: logger, feed: feed, selections: selections}
}

// MountRoutes registers kitchen routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/queue", h.queue)
	r.Get("/delivery", h.deliveryQueue)
	r.Post("/selections/{orderID}/toggle", h.toggleSelection)
}

func (h *Handler) queue(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.feed.Queue(r.Context())
	if err != nil {
		h.logger.Error("kitchen queue", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tickets)
}

func (h *Handler) deliveryQueue(w http.ResponseWriter, r *http.Request) {
	tickets, err := h.feed.DeliveryQueue(r.Context())
	if err != nil {
		h.logger.Error("delivery queue", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tickets)
}

type toggleRequest struct {
	Dish string `json:"dish"`
}

func (h *Handler) toggleSelection(w http.ResponseWriter, r *http.Request) {
	if err := shared.Authorize(r.Context(), shared.CapKitchenSelect); err != nil {
		h.respondError(w, "toggle selection", err)
		return
	}
	var req toggleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil || req.Dish == "" {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "dish is required")
		return
	}
	selected, err := h.selections.Toggle(r.Context(), chi.URLParam(r, "orderID"), req.Dish)
	if err != nil {
		h.respondError(w, "toggle selection", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"selected": selected})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
