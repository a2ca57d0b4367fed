package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"prawnik-web/internal/bootstrap"
	"prawnik-web/internal/config"
	"prawnik-web/internal/pkg/logger"
	"prawnik-web/internal/server"
	"prawnik-web/internal/tracer"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	// 2. Initialize Tracer
	shutdownTracer := tracer.InitTracer(cfg.Tracing, sysLogger)

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(cfg, sysLogger)
	defer container.Close()

	// 4. Initialize Server
	srv := server.New(cfg, container)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// 5. Start Background Services
	g.Go(func() error {
		container.WebSocketHub.Run(gctx)
		return nil
	})
	for _, consumer := range container.Consumers {
		consumer := consumer
		g.Go(func() error {
			if err := consumer.Consume(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	// 6. Run Server
	g.Go(func() error {
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		sysLogger.Info("Main", "Shutting down", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sysLogger.Warn("Main", "Server shutdown failed", map[string]interface{}{"error": err.Error()})
		}
		if err := shutdownTracer(shutdownCtx); err != nil {
			sysLogger.Warn("Main", "Tracer shutdown failed", map[string]interface{}{"error": err.Error()})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		sysLogger.Error("Main", "Exited with error", map[string]interface{}{"error": err.Error()})
	}
}
