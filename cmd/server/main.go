package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/config"
	"github.com/Sebas931/Local-sim-main/internal/infra"
	"github.com/Sebas931/Local-sim-main/internal/metrics"
	"github.com/Sebas931/Local-sim-main/internal/repository"
	"github.com/Sebas931/Local-sim-main/internal/router"
	"github.com/Sebas931/Local-sim-main/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	// ── Partners ─────────────────────────────────────────────────────────────
	winred := infra.NewWinredClient(infra.WinredConfig{
		BaseURL:    cfg.WinredBaseURL,
		APIVersion: cfg.WinredAPIVersion,
		UserID:     cfg.WinredUserID,
		APIKey:     cfg.WinredAPIKey,
		SecretKey:  cfg.WinredSecretKey,
		BasicUser:  cfg.WinredBasicUser,
		BasicPass:  cfg.WinredBasicPass,
		Millis:     cfg.WinredMillis,
		Timeout:    cfg.ExternalTimeout(),
	})
	siigo := infra.NewSiigoClient(infra.SiigoConfig{
		APIURL:     cfg.SiigoAPIURL,
		User:       cfg.SiigoUser,
		AccessKey:  cfg.SiigoKey,
		PartnerID:  cfg.SiigoPartnerID,
		DocumentID: cfg.SiigoDocumentID,
		SellerID:   cfg.SiigoSellerID,
		PaymentID:  cfg.SiigoPaymentID,
		Timeout:    cfg.ExternalTimeout(),
	}, infra.NewTokenCache(time.Minute), time.Now)
	cbCfg := infra.DefaultCBConfig()
	cbCfg.Counts = infra.SiigoOutage
	cbCfg.OnTransition = func(name string, from, to infra.CBState) {
		log.Warn().Str("partner", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker transition")
		m.CircuitState(name, int(to))
	}
	siigoCB := infra.NewCircuitBreaker(cbCfg)
	mailer := infra.NewMailer(cfg)

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	dispatcher := worker.NewDispatcher(rdb)
	facturaRepo := repository.NewFacturaRepository(db)
	ventaRepo := repository.NewVentaRepository(db)

	facturacionW := worker.NewFacturacionWorker(siigo, facturaRepo, ventaRepo)
	emailW := worker.NewEmailWorker(mailer)
	worker.StartWorkerPool(ctx, rdb, worker.WorkerHandlers{
		Facturacion: facturacionW.Process,
		Email:       emailW.Process,
		Metrics:     m,
	}, cfg.WorkerPoolSize)
	worker.StartRetryCron(ctx, worker.RetryCronConfig{
		Facturas: facturaRepo,
		Ventas:   ventaRepo,
		Siigo:    siigo,
		CB:       siigoCB,
		RDB:      rdb,
	})
	worker.StartESimSweeper(ctx, repository.NewESimRepository(db), cfg.ESimSweepInterval)

	r := router.New(ctx, router.Deps{
		Config:     cfg,
		DB:         db,
		RDB:        rdb,
		SiigoCB:    siigoCB,
		Metrics:    m,
		Winred:     winred,
		Dispatcher: dispatcher,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Batch top-ups stream progress for minutes; the per-write deadline is disabled.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("Local SIM backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
