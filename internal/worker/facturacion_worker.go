package worker

// facturacion_worker.go
// Processes invoicing jobs from QueueFacturacion: creates the Siigo invoice
// of an electronic sale and stores its number. Failures after the in-job
// retries are left pendiente with a next_retry_at for the retry cron.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/infra"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// consumidorFinal is the DIAN identification used when the customer gave none.
const consumidorFinal = "222222222222"

// FacturacionJobPayload is the job envelope sent to QueueFacturacion.
type FacturacionJobPayload struct {
	VentaID string `json:"venta_id"`
}

// SiigoInvoicer is satisfied by *infra.SiigoClient.
type SiigoInvoicer interface {
	CrearFactura(ctx context.Context, in infra.SiigoInvoiceRequest) (string, error)
}

type FacturacionWorker struct {
	siigo    SiigoInvoicer
	facturas repository.FacturaRepository
	ventas   repository.VentaRepository
	// backoff is the first wait of withRetry; tests shrink it
	backoff time.Duration
	now     func() time.Time
}

func NewFacturacionWorker(siigo SiigoInvoicer, facturas repository.FacturaRepository, ventas repository.VentaRepository) *FacturacionWorker {
	return &FacturacionWorker{
		siigo:    siigo,
		facturas: facturas,
		ventas:   ventas,
		backoff:  time.Second,
		now:      time.Now,
	}
}

// Process handles a single invoicing job:
//  1. Load the sale with its items
//  2. Create (or reuse) the Factura row in estado pendiente
//  3. Call Siigo with exponential backoff (3 attempts)
//  4. Store the invoice number on the factura and the sale, or schedule a retry
func (w *FacturacionWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload FacturacionJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("facturacion_worker: invalid payload: %w", err)
	}
	ventaID, err := uuid.Parse(payload.VentaID)
	if err != nil {
		return fmt.Errorf("facturacion_worker: invalid venta_id %q", payload.VentaID)
	}

	venta, err := w.ventas.FindByID(ctx, ventaID)
	if err != nil {
		return fmt.Errorf("facturacion_worker: venta %s: %w", ventaID, err)
	}
	if venta.SiigoInvoiceID != nil && *venta.SiigoInvoiceID != "" {
		log.Info().Str("venta_id", payload.VentaID).Msg("facturacion_worker: sale already invoiced, skipping")
		return nil
	}

	factura := &model.Factura{VentaID: ventaID, MontoTotal: venta.Total, Estado: model.FacturaPendiente}
	if err := w.facturas.CreateIfAbsent(ctx, factura); err != nil {
		return fmt.Errorf("facturacion_worker: create factura: %w", err)
	}
	if factura.Estado == model.FacturaEmitida {
		return nil
	}

	req := buildInvoiceRequest(venta)
	var numero string
	siigoErr := withRetry(ctx, 3, w.backoff, func(attempt int) error {
		n, err := w.siigo.CrearFactura(ctx, req)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("venta_id", payload.VentaID).
				Msg("facturacion_worker: Siigo attempt failed")
			return err
		}
		numero = n
		return nil
	})

	if siigoErr != nil {
		scheduleRetry(factura, siigoErr, w.now())
		if err := w.facturas.Update(ctx, factura); err != nil {
			return fmt.Errorf("facturacion_worker: update factura: %w", err)
		}
		log.Error().Err(siigoErr).
			Str("venta_id", payload.VentaID).
			Time("next_retry_at", *factura.NextRetryAt).
			Msg("facturacion_worker: Siigo failed after all retries, left for retry cron")
		return nil
	}

	return markEmitida(ctx, w.facturas, w.ventas, factura, numero)
}

// markEmitida stores the invoice number on both the factura and the sale.
func markEmitida(ctx context.Context, facturas repository.FacturaRepository, ventas repository.VentaRepository, f *model.Factura, numero string) error {
	f.Estado = model.FacturaEmitida
	f.Numero = &numero
	f.NextRetryAt = nil
	f.LastError = nil
	if err := facturas.Update(ctx, f); err != nil {
		return fmt.Errorf("facturacion: update factura: %w", err)
	}
	if err := ventas.SetSiigoInvoiceID(ctx, f.VentaID, numero); err != nil {
		return fmt.Errorf("facturacion: stamp venta: %w", err)
	}
	log.Info().Str("numero", numero).Str("venta_id", f.VentaID.String()).Msg("facturacion: invoice issued")
	return nil
}

// scheduleRetry records a failed attempt and when the cron should try again.
func scheduleRetry(f *model.Factura, cause error, now time.Time) {
	f.RetryCount++
	msg := cause.Error()
	f.LastError = &msg
	next := now.Add(computeRetryBackoff(f.RetryCount))
	f.NextRetryAt = &next
}

func buildInvoiceRequest(v *model.Venta) infra.SiigoInvoiceRequest {
	req := infra.SiigoInvoiceRequest{
		VentaID:               v.ID.String(),
		ClienteIdentificacion: consumidorFinal,
		Fecha:                 v.CreatedAt,
		Total:                 v.Total,
	}
	if v.ClienteIdentificacion != nil && *v.ClienteIdentificacion != "" {
		req.ClienteIdentificacion = *v.ClienteIdentificacion
	}
	for _, it := range v.Items {
		req.Items = append(req.Items, infra.SiigoItem{
			Code:        it.ProductCode,
			Description: it.Descripcion,
			Quantity:    it.Cantidad,
			Price:       it.PrecioUnitario,
		})
	}
	return req
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = base, 3 = 2×base.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, base time.Duration, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := base * time.Duration(1<<uint(i-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
