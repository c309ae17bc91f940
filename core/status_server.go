package core

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetricsCollector holds the Prometheus instruments the judgment
// supervisor reports through (C8, §4.8).
type WorkerMetricsCollector struct {
	JobsProcessed   *prometheus.CounterVec
	FailureCauses   *prometheus.CounterVec
	SandboxWallTime prometheus.Histogram
	WebhookLatency  *prometheus.HistogramVec
}

// NewWorkerMetricsCollector registers and returns the worker's metrics.
func NewWorkerMetricsCollector(registry *prometheus.Registry) *WorkerMetricsCollector {
	c := &WorkerMetricsCollector{
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judgment_jobs_processed_total",
			Help: "Total number of judgment jobs processed, by outcome.",
		}, []string{"outcome"}),
		FailureCauses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judgment_failure_cause_total",
			Help: "Total number of judgments by failure cause.",
		}, []string{"cause"}),
		SandboxWallTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "judgment_sandbox_wall_seconds",
			Help:    "Observed wall-clock duration of sandbox executions.",
			Buckets: prometheus.DefBuckets,
		}),
		WebhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "judgment_webhook_dispatch_seconds",
			Help:    "Webhook dispatch latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	registry.MustRegister(c.JobsProcessed, c.FailureCauses, c.SandboxWallTime, c.WebhookLatency)
	return c
}

// StatusServer exposes /healthz, /debug/status, and /metrics for operators,
// the way the teacher's admin dashboard exposed system status, without
// reintroducing its user-facing problem/submission CRUD surface (C8).
type StatusServer struct {
	engine    *gin.Engine
	metrics   *MetricsService
	startedAt time.Time
}

// NewStatusServer builds the gin router for the worker's ops surface.
func NewStatusServer(metrics *MetricsService, registry *prometheus.Registry, startedAt time.Time) *StatusServer {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &StatusServer{engine: engine, metrics: metrics, startedAt: startedAt}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/debug/status", func(c *gin.Context) {
		status, err := CollectSystemStatus(c.Request.Context(), s.metrics, s.startedAt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, status)
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return s
}

// Run starts listening and blocks until ctx is cancelled or an error
// occurs.
func (s *StatusServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
