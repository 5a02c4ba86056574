package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dpetrov/speedrun-tracker/internal/handler"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/auth"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/observability"
	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/redis"
	"github.com/gorilla/mux"
)

// SetupRouter wires the public and session-protected routes plus the
// prometheus scrape endpoint.
func SetupRouter(h *handler.Handler, tokens *auth.TokenManager, redisClient redis.RedisClient, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(metricsMiddleware)

	h.RegisterPublicRoutes(r)

	protected := r.NewRoute().Subrouter()
	protected.Use(auth.Middleware(tokens, redisClient))
	h.RegisterProtectedRoutes(protected)

	r.Handle("/metrics", metricsHandler).Methods("GET")
	return r
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(recorder, r)

		status := fmt.Sprintf("%d", recorder.status)
		observability.RequestCounter.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		observability.RequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder captures the response status for the metrics labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
