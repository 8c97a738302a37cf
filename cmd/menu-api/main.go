// Command menu-api serves the restaurant menu REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/R3E-Network/menu_layer/internal/app"
	"github.com/R3E-Network/menu_layer/internal/config"
	"github.com/R3E-Network/menu_layer/internal/metrics"
	"github.com/R3E-Network/menu_layer/pkg/logger"
)

func main() {
	var (
		envFile    = flag.String("env", ".env", "Path to a .env file (ignored when missing)")
		configFile = flag.String("config", "", "Path to a YAML config file (default $MENU_CONFIG)")
		addr       = flag.String("addr", "", "Listen address, overrides MENU_HOST/MENU_PORT")
	)
	flag.Parse()

	cfg, err := config.Load(config.Options{EnvFile: *envFile, File: *configFile})
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	lg := logger.New(logger.LoggingConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}).Named(app.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, lg, metrics.New(true))
	if err != nil {
		lg.WithError(err).Fatal("build application")
	}
	defer application.Close()

	cleanupStop := make(chan struct{})
	application.Limiter.StartCleanup(time.Minute, cleanupStop)
	defer close(cleanupStop)

	listen := cfg.Server.Addr()
	if *addr != "" {
		listen = *addr
	}
	srv := &http.Server{
		Addr:              listen,
		Handler:           application.Router(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.WithFields(map[string]interface{}{
			"addr":   listen,
			"driver": cfg.Database.Driver,
			"auth":   cfg.Server.Auth,
		}).Info("menu-api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			lg.WithError(err).Error("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Error("graceful shutdown failed")
	}
}
