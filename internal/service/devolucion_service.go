package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxUnidadesBusqueda = 50

// DevolucionService handles defective SIMs: exchange for another unit or
// refund of the sale. Each operation is a single transaction.
type DevolucionService interface {
	Exchange(ctx context.Context, usuarioID uuid.UUID, req dto.IntercambioRequest) (*dto.DevolucionResponse, error)
	Refund(ctx context.Context, usuarioID uuid.UUID, req dto.DevolucionDineroRequest) (*dto.DevolucionResponse, error)
	List(ctx context.Context, page, limit int) (*dto.DevolucionListResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.DevolucionResponse, error)
	// SoldUnits lists units that can be returned.
	SoldUnits(ctx context.Context, q string) ([]dto.SimResponse, error)
	// ReplacementUnits lists units that can be handed out in an exchange.
	ReplacementUnits(ctx context.Context, q string) ([]dto.SimResponse, error)
}

type devolucionService struct {
	repo       repository.DevolucionRepository
	sims       repository.SimRepository
	turnos     repository.TurnoRepository
	ventasRepo repository.VentaRepository
	ventas     VentaService
	now        func() time.Time
}

func NewDevolucionService(
	repo repository.DevolucionRepository,
	sims repository.SimRepository,
	turnos repository.TurnoRepository,
	ventasRepo repository.VentaRepository,
	ventas VentaService,
) DevolucionService {
	return &devolucionService{repo: repo, sims: sims, turnos: turnos, ventasRepo: ventasRepo, ventas: ventas, now: time.Now}
}

// ── Exchange ──────────────────────────────────────────────────────────────────
// The defective unit is quarantined (defectuosa) and keeps its sale linkage;
// the replacement becomes vendido under the same sale and plan.

func (s *devolucionService) Exchange(ctx context.Context, usuarioID uuid.UUID, req dto.IntercambioRequest) (*dto.DevolucionResponse, error) {
	ventaID, err := uuid.Parse(req.VentaID)
	if err != nil {
		return nil, domainerr.Validation("venta_id inválido")
	}
	defIccid := strings.TrimSpace(req.SimDefectuosaICCID)
	repIccid := strings.TrimSpace(req.SimReemplazoICCID)
	if defIccid == "" || repIccid == "" {
		return nil, domainerr.Validation("los ICCID de la SIM defectuosa y de reemplazo son requeridos")
	}
	if defIccid == repIccid {
		return nil, domainerr.Validation("la SIM de reemplazo debe ser distinta de la defectuosa")
	}

	now := s.now()
	var dev *model.DevolucionSim
	txErr := runTx(ctx, s.sims.DB(), func(tx *gorm.DB) error {
		if err := s.ventaActivaTx(tx, ventaID); err != nil {
			return err
		}
		defectuosa, err := s.simVendidaDeVentaTx(tx, defIccid, ventaID)
		if err != nil {
			return err
		}

		reemplazo, err := s.sims.FindByICCIDTx(tx, repIccid)
		if err != nil {
			if repository.IsNotFound(err) {
				return domainerr.NotFound("SIM de reemplazo %s no encontrada", repIccid)
			}
			return err
		}
		if reemplazo.ID == defectuosa.ID {
			return domainerr.Validation("la SIM de reemplazo debe ser distinta de la defectuosa")
		}
		if !reemplazo.Estado.Vendible() {
			return domainerr.State("la SIM de reemplazo %s no está disponible: estado %s", reemplazo.ICCID, reemplazo.Estado)
		}

		turnoID, err := s.turnoAbiertoTx(tx, usuarioID)
		if err != nil {
			return err
		}
		dev = &model.DevolucionSim{
			Tipo:                model.DevolucionIntercambio,
			VentaID:             ventaID,
			SimDefectuosaID:     defectuosa.ID,
			SimDefectuosaICCID:  defectuosa.ICCID,
			SimDefectuosaNumero: defectuosa.NumeroLinea,
			SimReemplazoID:      &reemplazo.ID,
			SimReemplazoICCID:   &reemplazo.ICCID,
			SimReemplazoNumero:  &reemplazo.NumeroLinea,
			Motivo:              strings.TrimSpace(req.Motivo),
			UsuarioID:           usuarioID,
			TurnoID:             turnoID,
			FechaDevolucion:     now,
		}
		aplicarCliente(dev, req.Cliente)
		if err := s.repo.CreateTx(tx, dev); err != nil {
			return err
		}

		defectuosa.Estado = model.SimDefectuosa
		defectuosa.Vendida = false
		if err := s.sims.UpdateSimTx(tx, defectuosa); err != nil {
			return err
		}

		anterior := reemplazo.Estado
		reemplazo.Estado = model.SimVendida
		reemplazo.Vendida = true
		reemplazo.VentaID = &ventaID
		reemplazo.FechaVenta = &now
		if defectuosa.PlanAsignado != nil {
			plan := *defectuosa.PlanAsignado
			reemplazo.PlanAsignado = &plan
		}
		if err := s.sims.UpdateSimTx(tx, reemplazo); err != nil {
			return err
		}

		for _, m := range []model.MovimientoSim{
			{SimID: defectuosa.ID, Tipo: "intercambio", EstadoAnterior: model.SimVendida, EstadoNuevo: model.SimDefectuosa, ReferenciaID: &dev.ID, Detalle: "reemplazada por " + reemplazo.ICCID},
			{SimID: reemplazo.ID, Tipo: "intercambio", EstadoAnterior: anterior, EstadoNuevo: model.SimVendida, ReferenciaID: &dev.ID, Detalle: "reemplaza a " + defectuosa.ICCID},
		} {
			m := m
			if err := s.sims.CreateMovimientoTx(tx, &m); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, asDomain(txErr, "registrar intercambio")
	}

	log.Info().
		Str("venta_id", ventaID.String()).
		Str("defectuosa", defIccid).
		Str("reemplazo", repIccid).
		Msg("devolucion: intercambio registrado")
	return devolucionToResponse(dev), nil
}

// ── Refund ────────────────────────────────────────────────────────────────────
// The sale is annulled, which removes it from every reconciliation sum, so no
// cash movement is written. The unit returns to stock without sale linkage.

func (s *devolucionService) Refund(ctx context.Context, usuarioID uuid.UUID, req dto.DevolucionDineroRequest) (*dto.DevolucionResponse, error) {
	ventaID, err := uuid.Parse(req.VentaID)
	if err != nil {
		return nil, domainerr.Validation("venta_id inválido")
	}
	defIccid := strings.TrimSpace(req.SimDefectuosaICCID)
	if defIccid == "" {
		return nil, domainerr.Validation("el ICCID de la SIM defectuosa es requerido")
	}
	if !req.Monto.IsPositive() {
		return nil, domainerr.Validation("el monto a devolver debe ser mayor a cero")
	}
	if !model.EnCentavos(req.Monto) {
		return nil, domainerr.Validation("el monto a devolver admite máximo dos decimales")
	}
	metodo, ok := model.NormalizarMetodoPago(req.MetodoDevolucion)
	if !ok {
		return nil, domainerr.Validation("método de devolución inválido: %s", req.MetodoDevolucion)
	}

	now := s.now()
	var dev *model.DevolucionSim
	txErr := runTx(ctx, s.sims.DB(), func(tx *gorm.DB) error {
		if err := s.ventaActivaTx(tx, ventaID); err != nil {
			return err
		}
		defectuosa, err := s.simVendidaDeVentaTx(tx, defIccid, ventaID)
		if err != nil {
			return err
		}

		venta, err := s.ventas.AnnulSaleTx(tx, ventaID)
		if err != nil {
			return err
		}
		if req.Monto.GreaterThan(venta.Total) {
			return domainerr.Validation("el monto a devolver (%s) supera el total de la venta (%s)", req.Monto.StringFixed(2), venta.Total.StringFixed(2))
		}

		turnoID, err := s.turnoAbiertoTx(tx, usuarioID)
		if err != nil {
			return err
		}
		monto := req.Monto
		dev = &model.DevolucionSim{
			Tipo:                model.DevolucionDinero,
			VentaID:             ventaID,
			SimDefectuosaID:     defectuosa.ID,
			SimDefectuosaICCID:  defectuosa.ICCID,
			SimDefectuosaNumero: defectuosa.NumeroLinea,
			Motivo:              strings.TrimSpace(req.Motivo),
			UsuarioID:           usuarioID,
			TurnoID:             turnoID,
			MontoDevuelto:       &monto,
			MetodoDevolucion:    &metodo,
			FechaDevolucion:     now,
		}
		aplicarCliente(dev, req.Cliente)
		if err := s.repo.CreateTx(tx, dev); err != nil {
			return err
		}

		defectuosa.Estado = model.SimDisponible
		defectuosa.Vendida = false
		defectuosa.VentaID = nil
		defectuosa.FechaVenta = nil
		if err := s.sims.UpdateSimTx(tx, defectuosa); err != nil {
			return err
		}
		return s.sims.CreateMovimientoTx(tx, &model.MovimientoSim{
			SimID:          defectuosa.ID,
			Tipo:           "devolucion",
			EstadoAnterior: model.SimVendida,
			EstadoNuevo:    model.SimDisponible,
			ReferenciaID:   &dev.ID,
			Detalle:        "venta " + ventaID.String() + " anulada",
		})
	})
	if txErr != nil {
		return nil, asDomain(txErr, "registrar devolución")
	}

	log.Info().
		Str("venta_id", ventaID.String()).
		Str("iccid", defIccid).
		Str("monto", req.Monto.StringFixed(2)).
		Msg("devolucion: dinero devuelto, venta anulada")
	return devolucionToResponse(dev), nil
}

// ventaActivaTx locks the sale so concurrent returns on it are serialized.
func (s *devolucionService) ventaActivaTx(tx *gorm.DB, ventaID uuid.UUID) error {
	venta, err := s.ventasRepo.FindByIDTx(tx, ventaID)
	if err != nil {
		if repository.IsNotFound(err) {
			return domainerr.NotFound("venta %s no encontrada", ventaID)
		}
		return err
	}
	if venta.Estado != model.VentaActiva {
		return domainerr.Conflict("la venta %s no está activa", ventaID)
	}
	return nil
}

// simVendidaDeVentaTx loads the defective unit and checks it was sold in ventaID.
func (s *devolucionService) simVendidaDeVentaTx(tx *gorm.DB, iccid string, ventaID uuid.UUID) (*model.SimDetalle, error) {
	sim, err := s.sims.FindByICCIDTx(tx, iccid)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("SIM %s no encontrada", iccid)
		}
		return nil, err
	}
	if sim.Estado != model.SimVendida {
		return nil, domainerr.State("la SIM %s no está vendida: estado %s", sim.ICCID, sim.Estado)
	}
	if sim.VentaID != nil && *sim.VentaID != ventaID {
		return nil, domainerr.Conflict("la SIM %s pertenece a otra venta", sim.ICCID)
	}
	return sim, nil
}

// turnoAbiertoTx returns the operator's open turno, or nil when there is none.
// A return may be processed outside a shift; a failed lookup is still an error.
func (s *devolucionService) turnoAbiertoTx(tx *gorm.DB, usuarioID uuid.UUID) (*uuid.UUID, error) {
	t, err := s.turnos.FindAbiertoTx(tx, usuarioID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("buscar turno abierto: %w", err)
	}
	return &t.ID, nil
}

func aplicarCliente(d *model.DevolucionSim, c *dto.ClienteInfo) {
	if c == nil {
		return
	}
	d.ClienteNombre = trimPtr(c.Nombre)
	d.ClienteIdentificacion = trimPtr(c.Identificacion)
	d.ClienteTelefono = trimPtr(c.Telefono)
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *devolucionService) List(ctx context.Context, page, limit int) (*dto.DevolucionListResponse, error) {
	devs, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, domainerr.Internal(err, "listar devoluciones")
	}
	resp := &dto.DevolucionListResponse{Data: make([]dto.DevolucionResponse, len(devs)), Total: total, Page: page, Limit: limit}
	for i := range devs {
		resp.Data[i] = *devolucionToResponse(&devs[i])
	}
	return resp, nil
}

func (s *devolucionService) Get(ctx context.Context, id uuid.UUID) (*dto.DevolucionResponse, error) {
	d, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("devolución %s no encontrada", id)
		}
		return nil, domainerr.Internal(err, "buscar devolución")
	}
	return devolucionToResponse(d), nil
}

func (s *devolucionService) SoldUnits(ctx context.Context, q string) ([]dto.SimResponse, error) {
	return s.buscar(ctx, q, model.SimVendida)
}

func (s *devolucionService) ReplacementUnits(ctx context.Context, q string) ([]dto.SimResponse, error) {
	return s.buscar(ctx, q, model.SimDisponible, model.SimRecargada)
}

func (s *devolucionService) buscar(ctx context.Context, q string, estados ...model.SimEstado) ([]dto.SimResponse, error) {
	sims, err := s.sims.ListSims(ctx, repository.SimFilter{Estados: estados, Q: q, Limit: maxUnidadesBusqueda})
	if err != nil {
		return nil, domainerr.Internal(err, "buscar SIMs")
	}
	return simsToResponse(sims), nil
}

func devolucionToResponse(d *model.DevolucionSim) *dto.DevolucionResponse {
	resp := &dto.DevolucionResponse{
		ID:                    d.ID.String(),
		Tipo:                  d.Tipo,
		VentaID:               d.VentaID.String(),
		SimDefectuosaID:       d.SimDefectuosaID.String(),
		SimDefectuosaICCID:    d.SimDefectuosaICCID,
		SimDefectuosaNumero:   d.SimDefectuosaNumero,
		SimReemplazoID:        uuidPtr(d.SimReemplazoID),
		SimReemplazoICCID:     d.SimReemplazoICCID,
		SimReemplazoNumero:    d.SimReemplazoNumero,
		Motivo:                d.Motivo,
		MontoDevuelto:         d.MontoDevuelto,
		UsuarioID:             d.UsuarioID.String(),
		ClienteNombre:         d.ClienteNombre,
		ClienteIdentificacion: d.ClienteIdentificacion,
		ClienteTelefono:       d.ClienteTelefono,
		FechaDevolucion:       d.FechaDevolucion.Format(time.RFC3339),
	}
	if d.MetodoDevolucion != nil {
		m := string(*d.MetodoDevolucion)
		resp.MetodoDevolucion = &m
	}
	return resp
}
