package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/deskhub/helpdesk/internal/api/handler"
	apimw "github.com/deskhub/helpdesk/internal/api/middleware"
	"github.com/deskhub/helpdesk/internal/service"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
//
// The WebSocket gateway is mounted as a plain handler: it does its own
// authentication and must see the original ResponseWriter for the upgrade
// handshake, so the request logger steps aside for /ws.
func NewRouter(
	tickets *service.TicketService,
	trigger handler.ImportTrigger,
	ws http.Handler,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	th := handler.NewTicketHandler(tickets, logger)
	mh := handler.NewMailHandler(trigger, logger)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint (for Prometheus server / Grafana)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	// Live notification socket
	r.Handle("/ws", ws)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/tickets", th.Create)
		r.Get("/tickets/{id}", th.GetByID)
		r.Patch("/tickets/{id}", th.Update)
		r.Post("/tickets/{id}/co-assignees", th.AddCoAssignee)
		r.Post("/tickets/{id}/comments", th.AddComment)

		// Manual mail pull, outside the polling schedule
		r.Post("/mail/import", mh.TriggerImport)
	})

	return r
}
