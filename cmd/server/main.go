package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hanbitlab/coursemap/internal/alarm"
	"github.com/hanbitlab/coursemap/internal/api"
	"github.com/hanbitlab/coursemap/internal/config"
	"github.com/hanbitlab/coursemap/internal/storage/sqlite"
	"github.com/hanbitlab/coursemap/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.toml", "path to config file")
	flag.Parse()

	// .env is optional; real env vars win either way
	_ = godotenv.Load()
	if v := os.Getenv("COURSEMAP_CONFIG"); v != "" {
		*configPath = v
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	db, err := sqlite.Open(cfg.Storage.DBPath, log)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	// Stores create their own tables; courses first so foreign keys hold.
	courseStorage := sqlite.NewCourseStorage(db, log)
	placeStorage := sqlite.NewPlaceStorage(db, log)
	coursePlaceStorage := sqlite.NewCoursePlaceStorage(db, log)
	alarmStorage := sqlite.NewAlarmStorage(db, log)
	scheduleStorage := sqlite.NewScheduleStorage(db, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	center := alarm.NewCenter(log)
	scheduler := alarm.NewScheduler(alarmStorage, center, cfg.Alarms.CourseID, log)
	if err := scheduler.Load(ctx); err != nil {
		log.Error("Failed to load alarms at startup", logger.Error(err))
	}
	go scheduler.Run(ctx, cfg.Alarms.ReloadInterval())
	defer scheduler.Stop()

	handler := api.NewHandler(
		courseStorage,
		placeStorage,
		coursePlaceStorage,
		alarmStorage,
		scheduleStorage,
		scheduler,
		center,
		log,
	)
	router := api.NewRouter(handler, cfg, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		log.Info("Shutting down", logger.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
