package worker

import (
	"context"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/rs/zerolog/log"
)

// esimAvisoVencimiento is how far ahead the sweeper warns about expiring eSIMs.
const esimAvisoVencimiento = 3 * 24 * time.Hour

// ESimSweeper is the part of repository.ESimRepository the sweeper needs.
type ESimSweeper interface {
	VencerVendidas(ctx context.Context, now time.Time) (int64, error)
	PorVencer(ctx context.Context, now, hasta time.Time) ([]model.ESim, error)
}

// StartESimSweeper expires sold eSIMs past their plan every interval.
func StartESimSweeper(ctx context.Context, repo ESimSweeper, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("esim_sweeper: started")
		sweepESims(ctx, repo, time.Now())

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("esim_sweeper: shutting down")
				return
			case now := <-ticker.C:
				sweepESims(ctx, repo, now)
			}
		}
	}()
}

// sweepESims returns how many eSIMs were expired.
func sweepESims(ctx context.Context, repo ESimSweeper, now time.Time) int64 {
	n, err := repo.VencerVendidas(ctx, now)
	if err != nil {
		log.Error().Err(err).Msg("esim_sweeper: expire failed")
		return 0
	}
	if n > 0 {
		log.Info().Int64("vencidas", n).Msg("esim_sweeper: eSIMs expired")
	}

	proximas, err := repo.PorVencer(ctx, now, now.Add(esimAvisoVencimiento))
	if err != nil {
		log.Error().Err(err).Msg("esim_sweeper: expiring query failed")
		return n
	}
	for _, e := range proximas {
		ev := log.Warn().Str("iccid", e.ICCID).Str("numero", e.NumeroTelefono)
		if e.FechaVencimiento != nil {
			ev = ev.Time("vence", *e.FechaVencimiento)
		}
		ev.Msg("esim_sweeper: eSIM expiring soon")
	}
	return n
}
