package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ballotbrief/ballotbrief/internal/bootstrap"
	"github.com/ballotbrief/ballotbrief/internal/config"
	"github.com/ballotbrief/ballotbrief/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerMetrics := metrics.NewWorkerMetrics("worker")
	app, err := bootstrap.New(ctx, cfg, "worker", workerMetrics.Pipeline)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		log.Printf("worker subscribed to %s", cfg.NATSJobsSubject)
		err := app.Queue.SubscribeAnnotationJobs(ctx, func(handlerCtx context.Context, jobID string) error {
			workerMetrics.StartJob()
			start := time.Now()
			if job, err := app.AnnotationRepo.GetJob(handlerCtx, jobID); err == nil {
				workerMetrics.ObserveQueueLag("worker", start.Sub(job.CreatedAt))
			}

			runCtx, cancel := context.WithTimeout(handlerCtx, 15*time.Minute)
			defer cancel()
			runErr := app.JobRunner.RunJob(runCtx, jobID)

			workerMetrics.FinishJob("worker", time.Since(start), runErr)
			return runErr
		})
		if err != nil {
			log.Printf("job subscription error: %v", err)
		}
	}()

	go func() {
		defer wg.Done()
		log.Printf("worker subscribed to %s", cfg.NATSSourcesSubject)
		err := app.Queue.SubscribeSourceIngested(ctx, func(handlerCtx context.Context, sourceID string) error {
			processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
			defer cancel()
			return app.Processor.ProcessByID(processCtx, sourceID)
		})
		if err != nil {
			log.Printf("source subscription error: %v", err)
		}
	}()

	wg.Wait()
}
