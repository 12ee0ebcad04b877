// Package api exposes the matching service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/listing-match/internal/matching"
	"github.com/sells-group/listing-match/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server holds the handler dependencies.
type Server struct {
	svc   *matching.Service
	store store.Store
}

// NewRouter builds the chi router with CORS restricted to allowedOrigins.
func NewRouter(svc *matching.Service, st store.Store, allowedOrigins []string) http.Handler {
	s := &Server{svc: svc, store: st}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/score", s.handleScore)

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", s.handleCreateListing)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetListing)
			r.Put("/", s.handleUpdateListing)
			r.Post("/archive", s.handleArchiveListing)
			r.Post("/rematch", s.handleRematchListing)
			r.Get("/matches", s.handleListingMatches)
		})
	})

	r.Route("/requests", func(r chi.Router) {
		r.Post("/", s.handleCreateRequest)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRequest)
			r.Put("/", s.handleUpdateRequest)
			r.Post("/archive", s.handleArchiveRequest)
			r.Post("/rematch", s.handleRematchRequest)
			r.Get("/matches", s.handleRequestMatches)
		})
	})

	return r
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
