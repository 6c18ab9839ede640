package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/orro3790/drive-sub008/pkg/config"
)

// CORS applies the configured origin policy for the dispatch console.
func CORS(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Content-Type", HeaderIdempotencyKey, HeaderRequestID,
			HeaderOrganizationID, HeaderUserID, HeaderUserRole,
		},
		ExposedHeaders:   []string{HeaderRequestID, "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
