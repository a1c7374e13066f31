package service

import (
	"context"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CajaService is the cash movement journal. Movements are insert-only and
// always belong to an open turno.
type CajaService interface {
	AppendTx(tx *gorm.DB, turnoID uuid.UUID, tipo string, monto decimal.Decimal, metodo model.MetodoPago, ventaID *uuid.UUID, descripcion string) (*model.MovimientoCaja, error)
	// Append registers a manual ingreso/egreso on the operator's open turno.
	Append(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoManualRequest) (*dto.MovimientoResponse, error)
	SumByMethod(ctx context.Context, turnoID uuid.UUID) (model.TotalesPorMetodo, error)
	SumByMethodRange(ctx context.Context, desde, hasta time.Time) (model.TotalesPorMetodo, error)
	ListMovimientos(ctx context.Context, turnoID uuid.UUID) ([]dto.MovimientoResponse, error)
	Dashboard(ctx context.Context) (*dto.DashboardResponse, error)
}

type cajaService struct {
	repo       repository.CajaRepository
	turnos     repository.TurnoRepository
	inventario InventarioService
	now        func() time.Time
}

func NewCajaService(repo repository.CajaRepository, turnos repository.TurnoRepository, inventario InventarioService) CajaService {
	return &cajaService{repo: repo, turnos: turnos, inventario: inventario, now: time.Now}
}

func (s *cajaService) AppendTx(tx *gorm.DB, turnoID uuid.UUID, tipo string, monto decimal.Decimal, metodo model.MetodoPago, ventaID *uuid.UUID, descripcion string) (*model.MovimientoCaja, error) {
	turno, err := s.turnos.FindByIDTx(tx, turnoID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("turno %s no encontrado", turnoID)
		}
		return nil, err
	}
	if turno.Estado != model.TurnoAbierto {
		return nil, domainerr.NotFound("el turno %s no está abierto", turnoID)
	}

	mov := &model.MovimientoCaja{
		TurnoID:     turnoID,
		Tipo:        tipo,
		Monto:       monto,
		MetodoPago:  metodo,
		Descripcion: descripcion,
		VentaID:     ventaID,
		Fecha:       s.now(),
	}
	if err := s.repo.CreateMovimientoTx(tx, mov); err != nil {
		return nil, err
	}
	return mov, nil
}

func (s *cajaService) Append(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoManualRequest) (*dto.MovimientoResponse, error) {
	if req.Tipo != model.MovimientoIngreso && req.Tipo != model.MovimientoEgreso {
		return nil, domainerr.Validation("tipo debe ser ingreso o egreso")
	}
	if !req.Monto.IsPositive() {
		return nil, domainerr.Validation("el monto debe ser mayor a cero")
	}
	if !model.EnCentavos(req.Monto) {
		return nil, domainerr.Validation("el monto admite máximo dos decimales")
	}
	metodo, ok := model.NormalizarMetodoPago(req.MetodoPago)
	if !ok {
		return nil, domainerr.Validation("método de pago inválido: %s", req.MetodoPago)
	}

	var mov *model.MovimientoCaja
	txErr := runTx(ctx, s.turnos.DB(), func(tx *gorm.DB) error {
		turno, err := s.turnos.FindAbiertoTx(tx, usuarioID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domainerr.NotFound("no hay un turno abierto")
			}
			return err
		}
		mov, err = s.AppendTx(tx, turno.ID, req.Tipo, req.Monto, metodo, nil, req.Descripcion)
		return err
	})
	if txErr != nil {
		return nil, asDomain(txErr, "registrar movimiento")
	}

	log.Info().
		Str("turno_id", mov.TurnoID.String()).
		Str("tipo", mov.Tipo).
		Str("monto", mov.Monto.StringFixed(2)).
		Msg("caja: movimiento manual registrado")
	resp := movimientoToResponse(mov)
	return &resp, nil
}

func (s *cajaService) SumByMethod(ctx context.Context, turnoID uuid.UUID) (model.TotalesPorMetodo, error) {
	t, err := s.repo.SumByMetodoTx(s.turnos.DB().WithContext(ctx), turnoID)
	if err != nil {
		return t, domainerr.Internal(err, "sumar movimientos del turno")
	}
	return t, nil
}

func (s *cajaService) SumByMethodRange(ctx context.Context, desde, hasta time.Time) (model.TotalesPorMetodo, error) {
	if !hasta.After(desde) {
		return model.TotalesPorMetodo{}, domainerr.Validation("el rango de fechas es inválido")
	}
	t, err := s.repo.SumByMetodoRango(ctx, desde, hasta)
	if err != nil {
		return t, domainerr.Internal(err, "sumar movimientos por rango")
	}
	return t, nil
}

func (s *cajaService) ListMovimientos(ctx context.Context, turnoID uuid.UUID) ([]dto.MovimientoResponse, error) {
	movs, err := s.repo.ListMovimientos(ctx, turnoID)
	if err != nil {
		return nil, domainerr.Internal(err, "listar movimientos")
	}
	resp := make([]dto.MovimientoResponse, len(movs))
	for i := range movs {
		resp[i] = movimientoToResponse(&movs[i])
	}
	return resp, nil
}

// ── Dashboard ─────────────────────────────────────────────────────────────────

const diasSerieDashboard = 14

func (s *cajaService) Dashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	now := s.now()
	hoy := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	manana := hoy.AddDate(0, 0, 1)

	porMetodoHoy, err := s.repo.SumByMetodoRango(ctx, hoy, manana)
	if err != nil {
		return nil, domainerr.Internal(err, "ventas del día")
	}
	semana, err := s.repo.SumByMetodoRango(ctx, hoy.AddDate(0, 0, -6), manana)
	if err != nil {
		return nil, domainerr.Internal(err, "ventas de la semana")
	}
	mes, err := s.repo.SumByMetodoRango(ctx, time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), manana)
	if err != nil {
		return nil, domainerr.Internal(err, "ventas del mes")
	}
	serie, err := s.repo.SerieDiaria(ctx, hoy.AddDate(0, 0, -(diasSerieDashboard-1)), manana)
	if err != nil {
		return nil, domainerr.Internal(err, "serie diaria")
	}
	abiertos, err := s.turnos.CountAbiertos(ctx)
	if err != nil {
		return nil, domainerr.Internal(err, "turnos abiertos")
	}
	planes, err := s.inventario.PlanesDisponibles(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.DashboardResponse{
		VentasHoy:       porMetodoHoy.Total(),
		VentasSemana:    semana.Total(),
		VentasMes:       mes.Total(),
		PorMetodoHoy:    porMetodoHoy,
		Serie:           make([]dto.PuntoSerie, len(serie)),
		TurnosAbiertos:  abiertos,
		PlanesBajoStock: []dto.PlanDisponibleResponse{},
	}
	for i, p := range serie {
		resp.Serie[i] = dto.PuntoSerie{Fecha: p.Dia.Format("2006-01-02"), Total: p.Total}
	}
	for _, p := range planes {
		resp.SimsVendibles += p.Cantidad
		if p.StockBajo {
			resp.PlanesBajoStock = append(resp.PlanesBajoStock, p)
		}
	}
	return resp, nil
}

func movimientoToResponse(m *model.MovimientoCaja) dto.MovimientoResponse {
	return dto.MovimientoResponse{
		ID:          m.ID.String(),
		TurnoID:     m.TurnoID.String(),
		Tipo:        m.Tipo,
		Monto:       m.Monto,
		MetodoPago:  string(m.MetodoPago),
		Descripcion: m.Descripcion,
		VentaID:     uuidPtr(m.VentaID),
		Fecha:       m.Fecha.Format(time.RFC3339),
	}
}
