package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookwell/bookwell/internal/pkg/logger"
)

func main() {
	// Bootstrap logging covers config loading errors before the real
	// logger is configured.
	logger.InitBootstrap()

	app, err := initializeApplication()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer app.Cleanup()

	if err := logger.Init(logger.OptionsFromConfig(app.Config.Log)); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	app.Scheduler.Start()

	go func() {
		logger.S().Infof("server listening on %s", app.Server.Addr)
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.S().Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.S().Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Server.Shutdown(ctx); err != nil {
		logger.S().Errorf("server shutdown error: %v", err)
	}
}
