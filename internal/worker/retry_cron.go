package worker

// retry_cron.go
// Background goroutine that periodically re-attempts Siigo invoices stuck in
// estado='pendiente' with a next_retry_at in the past.
// Uses the Circuit Breaker to avoid hammering Siigo while it is down.

import (
	"context"
	"fmt"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/infra"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10

	// MaxFacturaRetries is the number of cron attempts before a factura goes to error/DLQ.
	MaxFacturaRetries = 5
	maxRetryBackoff   = time.Hour
)

// computeRetryBackoff returns 1m, 2m, 4m … capped at one hour.
func computeRetryBackoff(retries int) time.Duration {
	if retries < 1 {
		retries = 1
	}
	d := time.Minute
	for i := 1; i < retries && d < maxRetryBackoff; i++ {
		d *= 2
	}
	if d > maxRetryBackoff {
		d = maxRetryBackoff
	}
	return d
}

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	Facturas repository.FacturaRepository
	Ventas   repository.VentaRepository
	Siigo    SiigoInvoicer
	CB       *infra.CircuitBreaker
	RDB      *redis.Client
	Now      func() time.Time
}

// StartRetryCron launches a goroutine that ticks every 30s and re-attempts
// due facturas through the CB. It stops with ctx.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	facturas, err := cfg.Facturas.FindPendientesRetry(ctx, cfg.Now(), retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending retries")
		return
	}
	if len(facturas) == 0 {
		return
	}

	log.Info().Int("count", len(facturas)).Msg("retry_cron: processing pending facturas")

	for i := range facturas {
		f := &facturas[i]

		// the CB may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		venta, err := cfg.Ventas.FindByID(ctx, f.VentaID)
		if err != nil {
			log.Error().Err(err).Str("venta_id", f.VentaID.String()).Msg("retry_cron: venta not found")
			continue
		}

		var numero string
		cbErr := cfg.CB.Execute(func() error {
			n, err := cfg.Siigo.CrearFactura(ctx, buildInvoiceRequest(venta))
			if err != nil {
				return err
			}
			numero = n
			return nil
		})

		if cbErr == nil {
			if err := markEmitida(ctx, cfg.Facturas, cfg.Ventas, f, numero); err != nil {
				log.Error().Err(err).Str("factura_id", f.ID.String()).Msg("retry_cron: failed to store invoice")
			}
			continue
		}

		scheduleRetry(f, cbErr, cfg.Now())
		if f.RetryCount >= MaxFacturaRetries {
			f.Estado = model.FacturaError
			f.NextRetryAt = nil
			log.Error().
				Str("factura_id", f.ID.String()).
				Str("venta_id", f.VentaID.String()).
				Int("retries", f.RetryCount).
				Msg("retry_cron: max retries exceeded, moving to error/DLQ")

			payload := fmt.Sprintf(`{"venta_id":"%s","factura_id":"%s"}`, f.VentaID, f.ID)
			SendToDLQ(ctx, cfg.RDB, QueueFacturacion, JobFacturacion, []byte(payload),
				fmt.Sprintf("max retries (%d) exceeded: %s", MaxFacturaRetries, cbErr),
				f.RetryCount)
		} else {
			log.Warn().
				Str("factura_id", f.ID.String()).
				Int("retry_count", f.RetryCount).
				Time("next_retry_at", *f.NextRetryAt).
				Msg("retry_cron: Siigo retry failed, scheduled next attempt")
		}
		if err := cfg.Facturas.Update(ctx, f); err != nil {
			log.Error().Err(err).Str("factura_id", f.ID.String()).Msg("retry_cron: failed to update factura")
		}
	}
}
