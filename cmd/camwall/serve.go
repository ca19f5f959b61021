package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"camwall/internal/camera"
	"camwall/internal/events"
	"camwall/internal/hls"
	"camwall/internal/platform/config"
	"camwall/internal/platform/logger"
	"camwall/internal/platform/metrics"
	"camwall/internal/wall"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// CreateServeCmd creates the serve command.
func CreateServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the camera wall HTTP service",
		Long: `Polls the backend camera list, keeps one playback session per camera and exposes ` +
			`session state, controls, metrics and a WebSocket event feed over HTTP. ` +
			`Configured through the environment (PORT, BACKEND_URL, PLAYER_CONFIG, ...).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			_ = config.Load(envFile)
			return serve()
		},
	}
}

func serve() error {
	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	backendURL := config.GetEnv("BACKEND_URL", "http://localhost:8000")
	refresh := config.GetEnvSeconds("CAMERA_REFRESH_INTERVAL_SEC", wall.DefaultRefreshInterval)
	playerConfig := config.GetEnv("PLAYER_CONFIG", "")

	log := logger.New(logLevel, logFormat)

	player, err := loadPlayerOptions(playerConfig)
	if err != nil {
		log.Error("invalid player config", "path", playerConfig, "error", err)
		return err
	}

	client, err := camera.NewClient(backendURL, camera.DefaultClientOptions(), logger.Component(log, "camera"))
	if err != nil {
		log.Error("invalid backend url", "error", err)
		return err
	}

	met := metrics.New()
	svc, err := wall.NewService(client, wall.Config{
		Player:          player,
		Engine:          hls.DefaultOptions(),
		RefreshInterval: refresh,
		Bus:             events.New(),
		Metrics:         met,
		Logger:          log,
	})
	if err != nil {
		return fmt.Errorf("build service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- svc.Run(ctx) }()

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: wall.NewRouter(svc, log, met)}

	srvErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	log.Info("server starting",
		"port", port,
		"backend_url", backendURL,
		"camera_refresh_interval", refresh.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var failure error
	select {
	case <-sigCh:
		log.Info("shutdown signal received, draining connections")
	case failure = <-srvErr:
		log.Error("server error", "error", failure)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		failure = errors.Join(failure, err)
	}
	cancel()
	if err := <-runDone; err != nil {
		failure = errors.Join(failure, err)
	}

	log.Info("server stopped")
	return failure
}
