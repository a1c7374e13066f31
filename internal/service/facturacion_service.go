package service

import (
	"context"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"
	"github.com/Sebas931/Local-sim-main/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// FacturacionService exposes the Siigo invoice state of a sale. Invoices are
// issued by the facturacion worker.
type FacturacionService interface {
	ObtenerFactura(ctx context.Context, ventaID uuid.UUID) (*dto.FacturaResponse, error)
	// Reintentar queues the sale again unless its invoice was already issued.
	Reintentar(ctx context.Context, ventaID uuid.UUID) error
}

type facturacionService struct {
	repo       repository.FacturaRepository
	ventas     repository.VentaRepository
	dispatcher JobDispatcher
}

func NewFacturacionService(repo repository.FacturaRepository, ventas repository.VentaRepository, dispatcher JobDispatcher) FacturacionService {
	return &facturacionService{repo: repo, ventas: ventas, dispatcher: dispatcher}
}

func (s *facturacionService) ObtenerFactura(ctx context.Context, ventaID uuid.UUID) (*dto.FacturaResponse, error) {
	f, err := s.repo.FindByVentaID(ctx, ventaID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("la venta %s no tiene factura", ventaID)
		}
		return nil, domainerr.Internal(err, "buscar factura")
	}
	return facturaToResponse(f), nil
}

func (s *facturacionService) Reintentar(ctx context.Context, ventaID uuid.UUID) error {
	venta, err := s.ventas.FindByID(ctx, ventaID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domainerr.NotFound("venta %s no encontrada", ventaID)
		}
		return domainerr.Internal(err, "buscar venta")
	}
	if venta.MetodoPago != model.MetodoElectronico {
		return domainerr.Validation("solo las ventas con pago electrónico se facturan en Siigo")
	}
	if venta.SiigoInvoiceID != nil {
		return domainerr.Conflict("la venta ya tiene la factura %s", *venta.SiigoInvoiceID)
	}
	if s.dispatcher == nil {
		return domainerr.Precondition("la cola de facturación no está disponible")
	}
	if err := s.dispatcher.EnqueueFacturacion(ctx, worker.FacturacionJobPayload{VentaID: ventaID.String()}); err != nil {
		return domainerr.External(err, "no se pudo encolar la factura")
	}
	log.Info().Str("venta_id", ventaID.String()).Msg("facturacion: reintento encolado")
	return nil
}

func facturaToResponse(f *model.Factura) *dto.FacturaResponse {
	return &dto.FacturaResponse{
		ID:          f.ID.String(),
		VentaID:     f.VentaID.String(),
		Numero:      f.Numero,
		MontoTotal:  f.MontoTotal,
		Estado:      f.Estado,
		RetryCount:  f.RetryCount,
		NextRetryAt: timePtr(f.NextRetryAt),
		LastError:   f.LastError,
		CreatedAt:   f.CreatedAt.Format(time.RFC3339),
	}
}
