/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, logged with every line
  2. RealIP:     Client address behind the load balancer
  3. Logger:     zerolog request logging (logging.RequestLogger)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for the booking app and dashboard

ROUTE GROUPS:
  /api/quotes, /api/overtime, /api/final-charge   Pricing
  /api/tasks/*                                     Task catalog
  /api/policy                                      Pricing policy override
  /api/surge/*                                     Surge schedule
  /api/geo/*                                       Postal codes and proximity
  /api/scenarios/*                                 Demo scenarios
  /api/health                                      Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public to whatever can
  reach the listener.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/carepoint/booking-engine/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Pricing routes
		r.Post("/quotes", h.CreateQuote)
		r.Post("/overtime", h.CalculateOvertime)
		r.Post("/final-charge", h.CalculateFinalCharge)

		// Task catalog routes
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", h.ListTasks)
			r.Post("/", h.CreateTask)
			r.Get("/category", h.GetTaskCategory)
			r.Get("/{id}", h.GetTask)
			r.Put("/{id}", h.UpdateTask)
			r.Delete("/{id}", h.DeleteTask)
		})

		// Policy routes
		r.Route("/policy", func(r chi.Router) {
			r.Get("/", h.GetPolicy)
			r.Put("/", h.UpdatePolicy)
			r.Delete("/", h.ResetPolicy)
		})

		// Surge routes
		r.Route("/surge", func(r chi.Router) {
			r.Get("/rules", h.ListSurgeRules)
			r.Put("/rules", h.ReplaceSurgeRules)
			r.Post("/rules", h.SaveSurgeRule)
			r.Delete("/rules/{id}", h.DeleteSurgeRule)
			r.Get("/active", h.GetActiveSurge)
		})

		// Geo routes
		r.Route("/geo", func(r chi.Router) {
			r.Get("/postal/{code}", h.GetPostalCode)
			r.Post("/service-area", h.CheckServiceArea)
			r.Post("/check-in", h.CheckIn)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetStore)
		})
	})

	return r
}
