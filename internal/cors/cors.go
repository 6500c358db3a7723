// Package cors configures cross-origin access for the HTTP and WebSocket
// surfaces.
package cors

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/fawa-io/monocanvas/internal/config"
)

// New builds a *cors.Cors wired from the current configuration.
func New() *cors.Cors {
	cfg := config.Get()
	origins := cfg.CORSAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
}

// Handler wraps h with the configured CORS policy.
func Handler(h http.Handler) http.Handler {
	return New().Handler(h)
}
