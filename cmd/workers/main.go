package main

import (
	"context"
	"flag"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	v1 "github.com/Kaustab2003/co2-emission-forecasting/api/v1"
	"github.com/Kaustab2003/co2-emission-forecasting/internal/config"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	runReports := flag.Bool("reports", true, "run the scheduled report delivery")
	runStale := flag.Bool("stale", true, "run the stale data alerts")
	runNow := flag.Bool("run-now", false, "deliver reports once at startup")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := v1.NewLogger(cfg.Logging.Level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := v1.Setup(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer components.Close()

	var wg sync.WaitGroup
	if *runReports {
		worker := NewReportWorker(components.Schedule, logger, ReportWorkerConfig{RunOnStart: *runNow})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.Start(ctx); err != nil {
				logger.Error("Report worker error", zap.Error(err))
				stop()
			}
		}()
	}
	if *runStale {
		worker := NewStaleWorker(components.Companies, components.Notifier, logger, DefaultStaleWorkerConfig())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.Start(ctx); err != nil {
				logger.Error("Stale data worker error", zap.Error(err))
			}
		}()
	}

	wg.Wait()
	logger.Info("Workers stopped")
}
