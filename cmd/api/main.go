// backend/cmd/api/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpin "assetmarket/internal/adapters/in/http"
	appcfg "assetmarket/internal/infra/config"
	otelinfra "assetmarket/internal/infra/otel"
	"assetmarket/internal/platform/di"
)

const serviceName = "assetmarket-api"

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	ctx := context.Background()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("[boot] config: %v", err)
	}

	shutdownTracing, err := otelinfra.Setup(ctx, otelinfra.Options{
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Printf("[boot] WARN: otel setup failed: %v (tracing disabled)", err)
	}

	cont, err := di.NewContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("[boot] di init failed: %v", err)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpin.NewRouter(cont.RouterDeps()),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ─────────────────────────────────────────────────────────────
	// Graceful shutdown: HTTP → 通知キュー → クライアント → tracing
	// ─────────────────────────────────────────────────────────────
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		sig := <-c
		log.Printf("[boot] received signal: %v; shutting down...", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[boot] server shutdown error: %v", err)
		}
		if err := cont.Close(shutdownCtx); err != nil {
			log.Printf("[boot] container close error: %v", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Printf("[boot] otel shutdown error: %v", err)
		}
		close(idleConnsClosed)
	}()

	log.Printf("[boot] listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[boot] server error: %v", err)
	}

	<-idleConnsClosed
	log.Printf("[boot] server stopped")
}
