package service

import (
	"context"
	"errors"
	"sort"
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

type InventarioService interface {
	CreateBatch(ctx context.Context, req dto.CrearLoteRequest) (*dto.CrearLoteResponse, error)
	AddUnit(ctx context.Context, req dto.AgregarSimRequest) (*dto.SimResponse, error)
	AssignPlan(ctx context.Context, loteID, plan string) (int64, error)
	RemoveUnit(ctx context.Context, c model.CandidatoSim, force bool) error

	Resolve(ctx context.Context, c model.CandidatoSim) (*model.SimDetalle, error)
	// ResolveTx locks the resolved row.
	ResolveTx(tx *gorm.DB, c model.CandidatoSim) (*model.SimDetalle, error)
	// MarkSoldTx moves a sellable unit to vendido and links it to the sale.
	MarkSoldTx(tx *gorm.DB, c model.CandidatoSim, ventaID uuid.UUID, at time.Time) (*model.SimDetalle, error)

	ListLotes(ctx context.Context) ([]dto.LoteResponse, error)
	ListSims(ctx context.Context, f dto.SimFilter) ([]dto.SimResponse, error)
	ListByLote(ctx context.Context, loteID string) ([]dto.SimResponse, error)
	PlanesDisponibles(ctx context.Context) ([]dto.PlanDisponibleResponse, error)
	// Historial lists the state transitions of one unit, oldest first.
	Historial(ctx context.Context, c model.CandidatoSim) (*dto.HistorialSimResponse, error)
}

type inventarioService struct {
	repo     repository.SimRepository
	lowStock int
}

func NewInventarioService(repo repository.SimRepository, lowStockThreshold int) InventarioService {
	return &inventarioService{repo: repo, lowStock: lowStockThreshold}
}

// ── CreateBatch ───────────────────────────────────────────────────────────────
// Size, duplicate and existing-ICCID checks run before the transaction so they
// surface as ValidationError without touching the store.

func (s *inventarioService) CreateBatch(ctx context.Context, req dto.CrearLoteRequest) (*dto.CrearLoteResponse, error) {
	loteID := strings.TrimSpace(req.LoteID)
	if loteID == "" {
		return nil, domainerr.Validation("lote_id es requerido")
	}
	if len(req.Sims) == 0 {
		return nil, domainerr.Validation("el lote no tiene SIMs")
	}
	if len(req.Sims) > model.MaxSimsPorLote {
		return nil, domainerr.Validation("un lote admite máximo %d SIMs, se recibieron %d", model.MaxSimsPorLote, len(req.Sims))
	}

	sims := make([]model.SimDetalle, 0, len(req.Sims))
	iccids := make([]string, 0, len(req.Sims))
	vistos := make(map[string]bool, len(req.Sims))
	for i, in := range req.Sims {
		iccid := strings.TrimSpace(in.ICCID)
		numero := model.SoloDigitos(in.NumeroLinea)
		if iccid == "" || numero == "" {
			return nil, domainerr.Validation("fila %d: iccid y numero_linea son requeridos", i+1)
		}
		if vistos[iccid] {
			return nil, domainerr.Validation("ICCID duplicado en el lote: %s", iccid)
		}
		vistos[iccid] = true
		iccids = append(iccids, iccid)
		sims = append(sims, model.SimDetalle{LoteID: loteID, NumeroLinea: numero, ICCID: iccid, Estado: model.SimDisponible})
	}

	existentes, err := s.repo.ExistingICCIDs(ctx, iccids)
	if err != nil {
		return nil, domainerr.Internal(err, "consultar ICCIDs")
	}
	if len(existentes) > 0 {
		return nil, domainerr.Validation("ICCIDs ya registrados: %s", strings.Join(existentes, ", "))
	}

	lote := &model.SimLote{ID: loteID, Operador: strings.TrimSpace(req.Operador), Estado: string(model.SimDisponible)}
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if _, err := s.repo.FindLoteTx(tx, loteID); err == nil {
			return domainerr.Conflict("el lote %s ya existe", loteID)
		} else if !repository.IsNotFound(err) {
			return err
		}
		if err := s.repo.CreateLoteTx(tx, lote); err != nil {
			return err
		}
		for i := range sims {
			if err := s.repo.CreateSimTx(tx, &sims[i]); err != nil {
				return err
			}
			if err := s.repo.CreateMovimientoTx(tx, &model.MovimientoSim{
				SimID:       sims[i].ID,
				Tipo:        "alta",
				EstadoNuevo: model.SimDisponible,
				Detalle:     "lote " + loteID,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		if repository.IsUniqueViolation(txErr) {
			return nil, domainerr.Conflict("el lote %s o alguno de sus ICCIDs ya existe", loteID)
		}
		return nil, asDomain(txErr, "crear lote")
	}

	log.Info().Str("lote_id", loteID).Int("sims", len(sims)).Msg("inventario: lote creado")

	resp := &dto.CrearLoteResponse{
		Lote: loteToResponse(repository.LoteResumen{SimLote: *lote, Total: len(sims), Disponibles: len(sims)}),
		Sims: make([]dto.SimResponse, len(sims)),
	}
	for i := range sims {
		resp.Sims[i] = SimToResponse(&sims[i])
	}
	return resp, nil
}

// ── AddUnit ───────────────────────────────────────────────────────────────────

func (s *inventarioService) AddUnit(ctx context.Context, req dto.AgregarSimRequest) (*dto.SimResponse, error) {
	loteID := strings.TrimSpace(req.LoteID)
	iccid := strings.TrimSpace(req.ICCID)
	numero := model.SoloDigitos(req.NumeroLinea)
	if loteID == "" || iccid == "" || numero == "" {
		return nil, domainerr.Validation("lote_id, iccid y numero_linea son requeridos")
	}

	sim := &model.SimDetalle{LoteID: loteID, NumeroLinea: numero, ICCID: iccid, Estado: model.SimDisponible}
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if _, err := s.repo.FindByICCIDTx(tx, iccid); err == nil {
			return domainerr.Conflict("el ICCID %s ya está registrado", iccid)
		} else if !repository.IsNotFound(err) {
			return err
		}

		_, err := s.repo.FindLoteTx(tx, loteID)
		switch {
		case repository.IsNotFound(err) && req.CrearLote:
			operador := strings.TrimSpace(req.Operador)
			if operador == "" {
				return domainerr.Validation("operador es requerido para crear el lote")
			}
			if err := s.repo.CreateLoteTx(tx, &model.SimLote{ID: loteID, Operador: operador, Estado: string(model.SimDisponible)}); err != nil {
				return err
			}
		case repository.IsNotFound(err):
			return domainerr.NotFound("el lote %s no existe", loteID)
		case err != nil:
			return err
		}

		n, err := s.repo.CountByLoteTx(tx, loteID)
		if err != nil {
			return err
		}
		if n >= model.MaxSimsPorLote {
			return domainerr.Capacity("el lote %s ya tiene %d SIMs", loteID, model.MaxSimsPorLote)
		}

		if err := s.repo.CreateSimTx(tx, sim); err != nil {
			return err
		}
		return s.repo.CreateMovimientoTx(tx, &model.MovimientoSim{
			SimID: sim.ID, Tipo: "alta", EstadoNuevo: model.SimDisponible, Detalle: "lote " + loteID,
		})
	})
	if txErr != nil {
		if repository.IsUniqueViolation(txErr) {
			return nil, domainerr.Conflict("el ICCID %s ya está registrado", iccid)
		}
		return nil, asDomain(txErr, "agregar SIM")
	}

	resp := SimToResponse(sim)
	return &resp, nil
}

// ── AssignPlan ────────────────────────────────────────────────────────────────
// All or none: the batch and its unsold units are stamped in one transaction.

func (s *inventarioService) AssignPlan(ctx context.Context, loteID, plan string) (int64, error) {
	plan = normalizarPlan(plan)
	if plan == "" {
		return 0, domainerr.Validation("plan es requerido")
	}
	var n int64
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		n, err = s.repo.AsignarPlanLoteTx(tx, loteID, plan)
		return err
	})
	if txErr != nil {
		if repository.IsNotFound(txErr) {
			return 0, domainerr.NotFound("el lote %s no existe", loteID)
		}
		return 0, asDomain(txErr, "asignar plan")
	}
	log.Info().Str("lote_id", loteID).Str("plan", plan).Int64("sims", n).Msg("inventario: plan asignado")
	return n, nil
}

// ── RemoveUnit ────────────────────────────────────────────────────────────────

func (s *inventarioService) RemoveUnit(ctx context.Context, c model.CandidatoSim, force bool) error {
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		sim, err := s.ResolveTx(tx, c)
		if err != nil {
			return err
		}
		if sim.Estado == model.SimVendida && !force {
			return domainerr.Conflict("la SIM %s está vendida; use force para eliminarla", sim.ICCID)
		}
		if sim.Estado == model.SimVendida {
			log.Warn().Str("iccid", sim.ICCID).Msg("inventario: eliminando SIM vendida (force)")
		}
		return s.repo.DeleteSimTx(tx, sim.ID)
	})
	return asDomain(txErr, "eliminar SIM")
}

// ── Resolution ────────────────────────────────────────────────────────────────
// Keys are tried in order ID, ICCID, MSISDN. A key that finds nothing is
// skipped; keys that find different units make the candidate ambiguous.

func (s *inventarioService) Resolve(ctx context.Context, c model.CandidatoSim) (*model.SimDetalle, error) {
	var sim *model.SimDetalle
	err := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		var err error
		sim, err = s.ResolveTx(tx, c)
		return err
	})
	if err != nil {
		return nil, asDomain(err, "resolver SIM")
	}
	return sim, nil
}

func (s *inventarioService) ResolveTx(tx *gorm.DB, c model.CandidatoSim) (*model.SimDetalle, error) {
	if c.Vacio() {
		return nil, domainerr.Validation("se requiere sim_id, iccid o numero_linea")
	}

	var found *model.SimDetalle
	claves := make([]string, 0, 3)
	agregar := func(clave string, sim *model.SimDetalle) error {
		claves = append(claves, clave)
		if found != nil && found.ID != sim.ID {
			return domainerr.Ambiguous("los identificadores (%s) apuntan a SIMs distintas", strings.Join(claves, ", "))
		}
		if found == nil {
			found = sim
		}
		return nil
	}

	if c.ID != nil {
		sim, err := s.repo.FindByIDTx(tx, *c.ID)
		switch {
		case err == nil:
			if err := agregar("sim_id", sim); err != nil {
				return nil, err
			}
		case !repository.IsNotFound(err):
			return nil, err
		}
	}

	if iccid := strings.TrimSpace(c.ICCID); iccid != "" {
		sim, err := s.repo.FindByICCIDTx(tx, iccid)
		switch {
		case err == nil:
			if err := agregar("iccid", sim); err != nil {
				return nil, err
			}
		case !repository.IsNotFound(err):
			return nil, err
		}
	}

	if digitos := model.SoloDigitos(c.MSISDN); digitos != "" {
		sims, err := s.repo.FindByNumeroTx(tx, digitos, model.Ultimos10(digitos))
		if err != nil {
			return nil, err
		}
		if len(sims) > 1 {
			return nil, domainerr.Ambiguous("el número %s coincide con más de una SIM", digitos)
		}
		if len(sims) == 1 {
			if err := agregar("numero_linea", &sims[0]); err != nil {
				return nil, err
			}
		}
	}

	if found == nil {
		return nil, domainerr.NotFound("SIM no encontrada")
	}
	return found, nil
}

// ── MarkSoldTx ────────────────────────────────────────────────────────────────

func (s *inventarioService) MarkSoldTx(tx *gorm.DB, c model.CandidatoSim, ventaID uuid.UUID, at time.Time) (*model.SimDetalle, error) {
	sim, err := s.ResolveTx(tx, c)
	if err != nil {
		return nil, err
	}
	if !sim.Estado.Vendible() {
		return nil, domainerr.State("la SIM %s no se puede vender: estado %s", sim.ICCID, sim.Estado)
	}

	anterior := sim.Estado
	sim.Estado = model.SimVendida
	sim.Vendida = true
	sim.VentaID = &ventaID
	sim.FechaVenta = &at
	if err := s.repo.UpdateSimTx(tx, sim); err != nil {
		return nil, err
	}
	if err := s.repo.CreateMovimientoTx(tx, &model.MovimientoSim{
		SimID:          sim.ID,
		Tipo:           "venta",
		EstadoAnterior: anterior,
		EstadoNuevo:    model.SimVendida,
		ReferenciaID:   &ventaID,
	}); err != nil {
		return nil, err
	}
	return sim, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *inventarioService) ListLotes(ctx context.Context) ([]dto.LoteResponse, error) {
	lotes, err := s.repo.ListLotes(ctx)
	if err != nil {
		return nil, domainerr.Internal(err, "listar lotes")
	}
	resp := make([]dto.LoteResponse, len(lotes))
	for i := range lotes {
		resp[i] = loteToResponse(lotes[i])
	}
	return resp, nil
}

func (s *inventarioService) ListSims(ctx context.Context, f dto.SimFilter) ([]dto.SimResponse, error) {
	filter := repository.SimFilter{LoteID: f.LoteID, Q: f.Q, Limit: f.Limit}
	if f.Estado != "" {
		estado, ok := model.ParseSimEstado(f.Estado)
		if !ok {
			return nil, domainerr.Validation("estado inválido: %s", f.Estado)
		}
		filter.Estados = []model.SimEstado{estado}
	}
	return s.listar(ctx, filter)
}

func (s *inventarioService) listar(ctx context.Context, filter repository.SimFilter) ([]dto.SimResponse, error) {
	sims, err := s.repo.ListSims(ctx, filter)
	if err != nil {
		return nil, domainerr.Internal(err, "listar SIMs")
	}
	return simsToResponse(sims), nil
}

func (s *inventarioService) ListByLote(ctx context.Context, loteID string) ([]dto.SimResponse, error) {
	if _, err := s.repo.FindLote(ctx, loteID); err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("el lote %s no existe", loteID)
		}
		return nil, domainerr.Internal(err, "buscar lote")
	}
	sims, err := s.repo.ListByLote(ctx, loteID)
	if err != nil {
		return nil, domainerr.Internal(err, "listar SIMs del lote")
	}
	return simsToResponse(sims), nil
}

// PlanesDisponibles returns the sellable stock per plan, flagging plans below
// the low-stock threshold.
func (s *inventarioService) PlanesDisponibles(ctx context.Context) ([]dto.PlanDisponibleResponse, error) {
	conteo, err := s.repo.CountVendiblesPorPlanTx(s.repo.DB().WithContext(ctx))
	if err != nil {
		return nil, domainerr.Internal(err, "contar SIMs por plan")
	}
	resp := make([]dto.PlanDisponibleResponse, 0, len(conteo))
	for plan, n := range conteo {
		resp = append(resp, dto.PlanDisponibleResponse{Plan: plan, Cantidad: n, StockBajo: n < s.lowStock})
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].Plan < resp[j].Plan })
	return resp, nil
}

func (s *inventarioService) Historial(ctx context.Context, c model.CandidatoSim) (*dto.HistorialSimResponse, error) {
	sim, err := s.Resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	movs, err := s.repo.ListMovimientos(ctx, sim.ID)
	if err != nil {
		return nil, domainerr.Internal(err, "listar movimientos de la SIM")
	}
	resp := &dto.HistorialSimResponse{Sim: SimToResponse(sim), Movimientos: make([]dto.MovimientoSimResponse, len(movs))}
	for i, m := range movs {
		resp.Movimientos[i] = dto.MovimientoSimResponse{
			ID:             m.ID.String(),
			Tipo:           m.Tipo,
			EstadoAnterior: string(m.EstadoAnterior),
			EstadoNuevo:    string(m.EstadoNuevo),
			ReferenciaID:   uuidPtr(m.ReferenciaID),
			Detalle:        m.Detalle,
			Fecha:          m.CreatedAt.Format(time.RFC3339),
		}
	}
	return resp, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func normalizarPlan(plan string) string {
	return strings.ToUpper(strings.TrimSpace(plan))
}

// SimToResponse is shared with the HTTP layer for endpoints that resolve a unit.
func SimToResponse(s *model.SimDetalle) dto.SimResponse {
	resp := dto.SimResponse{
		ID:                 s.ID.String(),
		LoteID:             s.LoteID,
		NumeroLinea:        s.NumeroLinea,
		ICCID:              s.ICCID,
		Estado:             string(s.Estado),
		PlanAsignado:       s.PlanAsignado,
		WinredProductID:    s.WinredProductID,
		FechaUltimaRecarga: timePtr(s.FechaUltimaRecarga),
		Vendida:            s.Vendida,
		VentaID:            uuidPtr(s.VentaID),
		FechaVenta:         timePtr(s.FechaVenta),
		FechaRegistro:      s.FechaRegistro.Format(time.RFC3339),
	}
	return resp
}

func simsToResponse(sims []model.SimDetalle) []dto.SimResponse {
	resp := make([]dto.SimResponse, len(sims))
	for i := range sims {
		resp[i] = SimToResponse(&sims[i])
	}
	return resp
}

func loteToResponse(l repository.LoteResumen) dto.LoteResponse {
	return dto.LoteResponse{
		ID:            l.ID,
		Operador:      l.Operador,
		PlanAsignado:  l.PlanAsignado,
		Estado:        l.Estado,
		FechaRegistro: l.FechaRegistro.Format(time.RFC3339),
		Total:         l.Total,
		Disponibles:   l.Disponibles,
		Recargadas:    l.Recargadas,
		Vendidas:      l.Vendidas,
		Defectuosas:   l.Defectuosas,
	}
}

// asDomain passes *domainerr.Error through, maps record-not-found and wraps
// anything else as an internal error.
func asDomain(err error, op string) error {
	if err == nil {
		return nil
	}
	var de *domainerr.Error
	if errors.As(err, &de) {
		return err
	}
	if repository.IsNotFound(err) {
		return domainerr.NotFound("%s: registro no encontrado", op)
	}
	return domainerr.Internal(err, "%s", op)
}
