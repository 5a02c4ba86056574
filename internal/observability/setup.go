package observability

import (
	"context"
	"net/http"

	"github.com/dpetrov/speedrun-tracker/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup initializes logging, metrics and tracing. It returns the
// tracing shutdown func and the prometheus scrape handler.
func Setup(serviceName string) (func(context.Context) error, http.Handler) {
	observability.InitLogger()
	observability.InitMetrics()
	tracerShutdown := observability.InitTracing(serviceName)
	return tracerShutdown, promhttp.Handler()
}
