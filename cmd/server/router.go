package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/assessment-engine/internal/api"
	apiMiddleware "github.com/phrazzld/assessment-engine/internal/api/middleware"
	"github.com/phrazzld/assessment-engine/internal/api/shared"
)

// healthResponse reports engine load on /health.
type healthResponse struct {
	Status  string `json:"status"`
	Running int    `json:"running"`
	Pending int    `json:"pending"`
}

// setupRouter builds the router: public health check, everything under
// /api behind bearer authentication.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	taskHandler := api.NewTaskHandler(app.engine, app.logger)
	validationHandler := api.NewValidationHandler(app.pipeline, app.snapshots, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		api.RegisterRoutes(r, taskHandler, validationHandler)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, healthResponse{
			Status:  "ok",
			Running: app.engine.Running(),
			Pending: len(app.engine.Pending()),
		})
	})

	return r
}
