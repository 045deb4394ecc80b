package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/phrazzld/voicetask/internal/api"
	apiMiddleware "github.com/phrazzld/voicetask/internal/api/middleware"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(app.corsHandler().Handler)

	authHandler := api.NewAuthHandler(app.userService, app.jwtService, &app.config.Auth, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, api.PageLimits{
		Default: app.config.Tasks.DefaultPageLimit,
		Max:     app.config.Tasks.MaxPageLimit,
	}, app.config.Storage.MaxUploadBytes, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.userService)

	// Authentication endpoints (public)
	r.Post("/register", authHandler.Register)
	r.Post("/login", authHandler.Login)
	r.Get("/health", api.Health)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Get("/me", authHandler.Me)

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.Post("/", taskHandler.CreateTask)
			r.Get("/search", taskHandler.SearchTasks)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", taskHandler.GetTask)
				r.Put("/", taskHandler.UpdateTask)
				r.Patch("/", taskHandler.UpdateTask)
				r.Post("/upload", taskHandler.UploadFiles)
				r.Delete("/files", taskHandler.DeleteFiles)
				r.Patch("/files/{fileID}", taskHandler.RenameFile)
				r.Get("/files/{identifier}", taskHandler.DownloadFile)
			})
		})
	})

	return r
}

func (app *application) corsHandler() *cors.Cors {
	origins := app.config.Server.CORSAllowedOrigins
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Trace-ID", "Content-Disposition"},
		// Credentials cannot be combined with a wildcard origin.
		AllowCredentials: !containsWildcard(origins),
	})
}

func containsWildcard(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
