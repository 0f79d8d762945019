package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/celerix-dev/celerix-objects/internal/api"
	"github.com/celerix-dev/celerix-objects/internal/config"
	"github.com/celerix-dev/celerix-objects/internal/engine"
	"github.com/celerix-dev/celerix-objects/internal/logger"
	"github.com/celerix-dev/celerix-objects/internal/server"
	"github.com/celerix-dev/celerix-objects/internal/vault"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const serviceName = "celerix-objects"

func main() {
	l := logger.New(serviceName)
	log.Logger = l

	// 1. Configuration
	cfg, err := config.New()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := logger.Install(l, cfg.LogLevel); err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("Invalid log level")
	}
	if cfg.Environment == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Store
	dialer, err := engine.NewDialer(engine.Options{
		Backend:        cfg.Backend,
		MongoURL:       cfg.MongoURL,
		Database:       cfg.Database,
		Collection:     cfg.Collection,
		DataDir:        cfg.DataDir,
		ConnectTimeout: cfg.ConnectTimeout,
	})
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("Failed to initialize store")
	}
	store := engine.NewStore(dialer)

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	if err := store.Ping(pingCtx); err != nil {
		// Requests degrade to 500 until the store is reachable.
		log.Warn().Err(err).Msg("Store not reachable at startup")
	}
	cancel()

	// 3. HTTP API
	h := &api.Handler{Store: store}
	srv := server.New(api.NewRouter(h, l))

	if cfg.TLS {
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("Failed to generate TLS certificate")
		}
		srv.SetCertificate(cert)
	}

	// 4. Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("Shutdown signal received. Draining requests...")
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP shutdown")
		}
	}()

	// 5. Serve
	if err := srv.Listen(strconv.Itoa(cfg.HTTPPort)); err != nil {
		log.Fatal().Err(err).Msg("HTTP server failed")
	}

	if w, ok := dialer.(interface{ Wait() }); ok {
		log.Info().Msg("Finalizing snapshot writes...")
		w.Wait()
	}
	log.Info().Msg("Exiting.")
}
