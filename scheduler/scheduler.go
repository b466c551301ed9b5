package main

import (
	"context"
	"errors"
	"hsmeta/aggregator/modules"
	"hsmeta/pkg/config"
	"hsmeta/pkg/database"
	"hsmeta/pkg/logger"
	"hsmeta/pkg/models/meta"
	"hsmeta/scheduler/jobs"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Couldn't initialize the configuration: %v", err)
	}

	runLogger, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Couldn't create the logger: %v", err)
	}
	defer runLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	module, err := modules.NewModule(ctx, &modules.ModuleDependencies{
		Config:     cfg,
		Logger:     runLogger.Logger,
		Registerer: registry,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer module.Close()

	// Runs the migrations.
	rawDb, err := module.DB.DB()
	if err != nil {
		log.Fatalf("Couldn't get raw db connection: %v", err)
	}

	if err := database.RunMigrations(cfg, rawDb); err != nil {
		log.Fatal(err)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Scheduler.MetricsPort,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runLogger.Error("Metrics server stopped", "error", err)
		}
	}()

	runLogger.Info("Starting scheduler")

	// Create a new scheduler with options.
	s, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		log.Fatalf("Failed to create scheduler: %v", err)
	}

	// Jobs share the run log, uploads are serialized.
	var uploadMu sync.Mutex
	shipLog := func() {
		if module.Logs == nil {
			return
		}
		uploadMu.Lock()
		defer uploadMu.Unlock()

		uploadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := runLogger.UploadToBucket(uploadCtx, module.Logs, runLogger.ObjectKey(time.Now())); err != nil {
			runLogger.Error("Couldn't upload the run log", "error", err)
		}
	}

	// Register the daily rollup of the previous day - once per day at 00:30.
	_, err = s.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(
				gocron.NewAtTime(0, 30, 0),
			),
		),
		gocron.NewTask(func() {
			defer shipLog()
			day := time.Now().UTC().AddDate(0, 0, -1)
			if err := module.RollupJobs.RunDayRollups(ctx, meta.Selector{}, day); err != nil {
				runLogger.Error("Daily rollup finished with errors", "error", err)
			}
		}),
		gocron.WithName("daily-rollup"),
		gocron.WithTags("rollup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Fatalf("Failed to create daily rollup job: %v", err)
	}

	// Register the rolling window rollups.
	_, err = s.NewJob(
		gocron.DurationJob(cfg.Scheduler.WindowInterval),
		gocron.NewTask(func() {
			defer shipLog()
			if err := module.RollupJobs.RunWindowRollups(ctx, meta.Selector{}, time.Now().UTC()); err != nil {
				runLogger.Error("Window rollup finished with errors", "error", err)
			}
		}),
		gocron.WithName("window-rollup"),
		gocron.WithTags("rollup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		log.Fatalf("Failed to create window rollup job: %v", err)
	}

	// Register card reference revalidation job - once per day at 4:00 AM.
	_, err = s.NewJob(
		gocron.DailyJob(
			1,
			gocron.NewAtTimes(
				gocron.NewAtTime(4, 0, 0),
			),
		),
		gocron.NewTask(func() {
			defer shipLog()
			jobs.RevalidateCards(ctx, module.Cards, runLogger.Logger)
		}),
		gocron.WithName("cards-revalidation"),
		gocron.WithTags("cache"),
	)
	if err != nil {
		log.Fatalf("Failed to create cards revalidation job: %v", err)
	}

	// Start the scheduler.
	s.Start()

	defer func() {
		// Shutdown the scheduler when main() exits.
		if err := s.Shutdown(); err != nil {
			runLogger.Error("Error shutting down scheduler", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
		shipLog()
	}()

	// Wait for termination signal.
	<-ctx.Done()
	runLogger.Info("Shutting down scheduler...")
}
