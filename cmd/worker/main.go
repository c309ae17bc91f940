package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"devolt-judgment-worker/core"
)

func main() {
	cfg := core.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logCloser, err := core.SetupLogging(cfg, "judgment-worker.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	var catalog *core.LimitsCatalog
	if cfg.LimitsCatalogYAMLPath != "" {
		catalog, err = core.LoadLimitsCatalogFromYAML(cfg.LimitsCatalogYAMLPath)
		if err != nil {
			log.Fatalf("failed to load limits catalog from %s: %v", cfg.LimitsCatalogYAMLPath, err)
		}
	} else {
		db, err := core.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect database: %v", err)
		}
		defer db.Close()
		catalog, err = core.LoadLimitsCatalogFromPostgres(ctx, db)
		if err != nil {
			log.Fatalf("failed to load limits catalog: %v", err)
		}
	}

	registry := prometheus.NewRegistry()
	workerMetrics := core.NewWorkerMetricsCollector(registry)

	queue := core.NewRedisQueue(redisClient)
	jobTTL := time.Duration(cfg.JobTTLSeconds) * time.Second
	jobStore := core.NewJobStore(redisClient, jobTTL)
	dispatcher := core.NewWebhookDispatcher(cfg.WebhookEndpointSet(), workerMetrics)
	defer dispatcher.Shutdown()

	supervisor := &core.JudgmentSupervisor{
		Catalog:         catalog,
		JobStore:        jobStore,
		Dispatcher:      dispatcher,
		Images:          cfg.SandboxImageMap(),
		RunnerScripts:   cfg.RunnerScriptMap(),
		SeccompProfile:  cfg.SeccompProfilePath,
		ScratchBaseDir:  cfg.ScratchBaseDir,
		CPUFraction:     cfg.SandboxCPUFraction,
		CompileBonusSec: float64(cfg.CompileTimeLimitMs) / 1000.0,
		Metrics:         workerMetrics,
	}

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	workerID := core.NewWorkerID()
	hostname, _ := os.Hostname()
	log.Printf("judgment worker started. id=%s concurrency=%d queue=%s", workerID, concurrency, core.PendingQueueKey)

	metricsService := core.NewMetricsService(redisClient)
	statusServer := core.NewStatusServer(metricsService, registry, time.Now())
	go func() {
		if err := statusServer.Run(ctx, ":"+cfg.Port); err != nil {
			log.Printf("status server stopped: %v", err)
		}
	}()

	const pendingKey = core.PendingQueueKey
	const processingKey = core.ProcessingQueueKey
	visibility := time.Duration(cfg.QueueVisibilityMs) * time.Millisecond
	if visibility <= 0 {
		visibility = core.DefaultVisibilityTimeout
	}
	reclaimInterval := 15 * time.Second

	state := core.NewHeartbeatState(workerID, hostname, concurrency)
	go state.Start(ctx, redisClient)

	go func() {
		ticker := time.NewTicker(reclaimInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if jobIDs, err := queue.RequeueExpired(ctx, processingKey, pendingKey, time.Now()); err != nil {
					log.Printf("[reclaimer] requeue expired error: %v", err)
				} else if len(jobIDs) > 0 {
					log.Printf("[reclaimer] requeued %d expired jobs", len(jobIDs))
				}
			}
		}
	}()

	done := make(chan struct{})
	for i := 0; i < concurrency; i++ {
		go func(workerIdx int) {
			for {
				payload, err := queue.Reserve(ctx, pendingKey, processingKey, visibility)
				if err != nil {
					if errors.Is(err, redis.Nil) {
						select {
						case <-ctx.Done():
							done <- struct{}{}
							return
						case <-time.After(100 * time.Millisecond):
							continue
						}
					}
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						done <- struct{}{}
						return
					}
					log.Printf("[worker %d] dequeue error: %v", workerIdx, err)
					time.Sleep(time.Second)
					continue
				}

				job, parseErr := core.ParseJobPayload([]byte(payload))
				if parseErr != nil {
					log.Printf("[worker %d] parse job payload error: %v", workerIdx, parseErr)
					_ = queue.Ack(ctx, processingKey, payload)
					continue
				}
				if validateErr := job.Validate(); validateErr != nil {
					log.Printf("[worker %d] invalid job %s: %v", workerIdx, job.JobID, validateErr)
					_ = queue.Ack(ctx, processingKey, payload)
					continue
				}

				log.Printf("[worker %d] received job %s", workerIdx, job.JobID)
				state.JobStarted(job.JobID)

				procErr := supervisor.Process(ctx, job.UserID, job.JobID)
				if procErr != nil {
					log.Printf("[worker %d] job %s failed: %v", workerIdx, job.JobID, procErr)
				}

				if err := queue.Ack(ctx, processingKey, payload); err != nil {
					log.Printf("[worker %d] ack failed for job %s: %v", workerIdx, job.JobID, err)
				}
				state.JobFinished(job.JobID, procErr)
			}
		}(i + 1)
	}

	for i := 0; i < concurrency; i++ {
		<-done
	}
}
