package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/platform/httpx"
	"github.com/sagra-pos/sagra-pos/internal/shared"
)

// Handler exposes order lifecycle endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.confirm)
	r.Get("/{id}", h.get)
	r.Post("/{id}/complete", h.transition(h.service.Complete))
	r.Post("/{id}/deliver", h.transition(h.service.Deliver))
	r.Post("/{id}/restore", h.transition(h.service.Restore))
	r.Post("/{id}/cancel", h.transition(h.service.Cancel))
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	order, err := h.service.Confirm(r.Context(), req)
	if err != nil {
		h.respondError(w, "confirm order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	req := ListRequest{}
	for _, raw := range r.URL.Query()["status"] {
		status := Status(raw)
		switch status {
		case StatusInPreparation, StatusReady, StatusDelivered, StatusCancelled:
			req.Statuses = append(req.Statuses, status)
		default:
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "unknown status "+raw)
			return
		}
	}
	orders, err := h.service.List(r.Context(), req)
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) transition(apply func(ctx context.Context, id string) (*Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		order, err := apply(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			h.respondError(w, "order transition", err)
			return
		}
		httpx.JSON(w, http.StatusOK, order)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, shared.ErrForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, ErrEmptyOrder), errors.Is(err, catalog.ErrUnknownProduct):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.As(err, &validationErrs):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
