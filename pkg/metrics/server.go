package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// StartServer serves /metrics on port in the background for processes
// without an API server of their own. The returned func shuts it down.
func StartServer(port int) (shutdown func(context.Context) error) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
	go func() {
		slog.Info("metrics server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return server.Shutdown
}

// Push sends everything gathered by g to a Prometheus Pushgateway under
// job, replacing the job's previous push. A rebuild exits before any scrape
// would see its stage timings; this is how they reach Prometheus.
func Push(ctx context.Context, gateway, job string, g prometheus.Gatherer) error {
	err := push.New(gateway, job).Gatherer(g).PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", gateway, err)
	}
	return nil
}
