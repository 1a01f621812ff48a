package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sagra-pos/sagra-pos/internal/auth"
	"github.com/sagra-pos/sagra-pos/internal/availability"
	"github.com/sagra-pos/sagra-pos/internal/catalog"
	"github.com/sagra-pos/sagra-pos/internal/kitchen"
	"github.com/sagra-pos/sagra-pos/internal/orders"
	"github.com/sagra-pos/sagra-pos/internal/platform/pubsub"
	"github.com/sagra-pos/sagra-pos/internal/reports"
	"github.com/sagra-pos/sagra-pos/internal/shared"
	"github.com/sagra-pos/sagra-pos/internal/system"
	"github.com/sagra-pos/sagra-pos/internal/transfer"
	"github.com/sagra-pos/sagra-pos/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager

	AuthHandler         *auth.Handler
	CatalogHandler      *catalog.Handler
	OrdersHandler       *orders.Handler
	AvailabilityHandler *availability.Handler
	KitchenHandler      *kitchen.Handler
	ReportsHandler      *reports.Handler
	TransferHandler     *transfer.Handler
	SystemHandler       *system.Handler
	FeedHandler         *pubsub.Handler
	JobHandler          *jobs.Handler
}

// NewRouter constructs the chi.Router with the standard middleware chain.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	timeout := 30 * time.Second
	if params.Config != nil && params.Config.AppRequestTimeout > 0 {
		timeout = params.Config.AppRequestTimeout
	}

	r.Route("/api", func(api chi.Router) {
		// The feed is a long-lived stream and stays outside the request
		// timeout.
		if params.FeedHandler != nil {
			api.Method(http.MethodGet, "/feed", params.FeedHandler)
		}

		api.Group(func(api chi.Router) {
			api.Use(chimw.Timeout(timeout))

			api.Route("/auth", params.AuthHandler.MountRoutes)
			api.Route("/catalog", params.CatalogHandler.MountRoutes)
			api.Route("/orders", params.OrdersHandler.MountRoutes)
			api.Route("/availability", params.AvailabilityHandler.MountRoutes)
			api.Route("/kitchen", params.KitchenHandler.MountRoutes)
			api.Route("/reports", params.ReportsHandler.MountRoutes)
			api.Route("/transfer", params.TransferHandler.MountRoutes)
			api.Route("/system", params.SystemHandler.MountRoutes)
			if params.JobHandler != nil {
				api.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}
