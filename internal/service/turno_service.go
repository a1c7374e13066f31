package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/infra"
	"github.com/Sebas931/Local-sim-main/internal/metrics"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"
	"github.com/Sebas931/Local-sim-main/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// TurnoService enforces one open turno per operator and reconciles the cash
// drawer and the SIM counts at close.
type TurnoService interface {
	OpenShift(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirTurnoRequest) (*dto.TurnoResponse, error)
	CloseShift(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarTurnoRequest) (*dto.TurnoResponse, error)
	Estado(ctx context.Context, usuarioID uuid.UUID) (*dto.EstadoTurnoResponse, error)
	Get(ctx context.Context, turnoID uuid.UUID) (*dto.TurnoResponse, error)
	Historial(ctx context.Context, filter dto.TurnoFilter) (*dto.TurnoListResponse, error)
	Inventarios(ctx context.Context, turnoID uuid.UUID) ([]dto.InventarioTurnoResponse, error)
	Movimientos(ctx context.Context, turnoID uuid.UUID) ([]dto.MovimientoResponse, error)
	Cierre(ctx context.Context, turnoID uuid.UUID) (*dto.CierreResponse, error)
	Descuadres(ctx context.Context, limit int) ([]dto.DescuadreResponse, error)
}

// TurnoConfig controls what happens after a turno is closed.
type TurnoConfig struct {
	// PDFPath is where closure reports are written; empty disables them
	PDFPath string
	// EmailTo receives the closure report when SMTP is configured
	EmailTo []string
}

type turnoService struct {
	repo       repository.TurnoRepository
	caja       repository.CajaRepository
	sims       repository.SimRepository
	usuarios   repository.UsuarioRepository
	dispatcher JobDispatcher
	metrics    *metrics.Metrics
	cfg        TurnoConfig
	now        func() time.Time
}

func NewTurnoService(
	repo repository.TurnoRepository,
	caja repository.CajaRepository,
	sims repository.SimRepository,
	usuarios repository.UsuarioRepository,
	dispatcher JobDispatcher,
	m *metrics.Metrics,
	cfg TurnoConfig,
) TurnoService {
	return &turnoService{
		repo:       repo,
		caja:       caja,
		sims:       sims,
		usuarios:   usuarios,
		dispatcher: dispatcher,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
	}
}

// ── OpenShift ─────────────────────────────────────────────────────────────────
// The system opening count is a snapshot of the sellable units per plan taken
// inside the same transaction. The partial unique index on turnos backs the
// in-transaction check against concurrent opens.

func (s *turnoService) OpenShift(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirTurnoRequest) (*dto.TurnoResponse, error) {
	conteos, err := normalizarConteos(req.Inventarios)
	if err != nil {
		return nil, err
	}

	now := s.now()
	turno := &model.Turno{UsuarioID: usuarioID, Estado: model.TurnoAbierto, FechaApertura: now}
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if _, err := s.repo.FindAbiertoTx(tx, usuarioID); err == nil {
			return domainerr.Conflict("el usuario ya tiene un turno abierto")
		} else if !repository.IsNotFound(err) {
			return err
		}
		if err := s.repo.CreateTx(tx, turno); err != nil {
			return err
		}

		snapshot, err := s.sims.CountVendiblesPorPlanTx(tx)
		if err != nil {
			return err
		}
		for _, c := range conteos {
			sistema := snapshot[c.Plan]
			inv := model.InventarioSimTurno{
				TurnoID:                  turno.ID,
				Plan:                     c.Plan,
				CantidadInicialReportada: c.Cantidad,
				CantidadInicialSistema:   sistema,
				DiferenciaInicial:        c.Cantidad - sistema,
				TieneApertura:            true,
				ObservacionesApertura:    c.Observaciones,
				FechaRegistro:            now,
			}
			if err := s.repo.CreateInventarioTx(tx, &inv); err != nil {
				return err
			}
			turno.Inventarios = append(turno.Inventarios, inv)
		}
		return nil
	})
	if txErr != nil {
		if repository.IsUniqueViolation(txErr) {
			return nil, domainerr.Conflict("el usuario ya tiene un turno abierto")
		}
		return nil, asDomain(txErr, "abrir turno")
	}

	s.metrics.TurnoAbierto()
	log.Info().
		Str("turno_id", turno.ID.String()).
		Str("usuario_id", usuarioID.String()).
		Int("planes", len(turno.Inventarios)).
		Msg("turno: abierto")
	return turnoToResponse(turno), nil
}

// ── CloseShift ────────────────────────────────────────────────────────────────
// Steps 1–5 run in one transaction with the turno row locked:
//   1. Locate the open turno (NotFoundError when there is none)
//   2. Sum the venta movements of active sales per method
//   3. Complete the inventory rows; a plan without an opening count gets a
//      closing-only row whose theoretical stock stays nil
//   4. Persist the CierreCaja with differences derived by NuevoCierreCaja
//   5. Flip the turno to cerrado
// The PDF and the email job run after commit and never fail the close.

func (s *turnoService) CloseShift(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarTurnoRequest) (*dto.TurnoResponse, error) {
	conteos, err := normalizarConteos(req.Inventarios)
	if err != nil {
		return nil, err
	}
	reportado := req.Reportado.Totales()
	if reportado.Efectivo.IsNegative() || reportado.Tarjeta.IsNegative() ||
		reportado.Electronico.IsNegative() || reportado.Dolares.IsNegative() {
		return nil, domainerr.Validation("los totales reportados no pueden ser negativos")
	}
	if !reportado.EnCentavos() {
		return nil, domainerr.Validation("los totales reportados admiten máximo dos decimales")
	}
	obs := ""
	if req.Observaciones != nil {
		obs = strings.TrimSpace(*req.Observaciones)
	}

	now := s.now()
	var (
		turno  *model.Turno
		cierre *model.CierreCaja
	)
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		// 1.
		var err error
		turno, err = s.repo.FindAbiertoTx(tx, usuarioID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domainerr.NotFound("no hay un turno abierto para cerrar")
			}
			return err
		}

		// 2.
		sistema, err := s.caja.SumByMetodoTx(tx, turno.ID)
		if err != nil {
			return fmt.Errorf("sumar movimientos: %w", err)
		}

		// 3.
		items, err := s.caja.ItemsVendidosTx(tx, turno.ID)
		if err != nil {
			return fmt.Errorf("items vendidos: %w", err)
		}
		planes := make([]string, len(conteos))
		for i, c := range conteos {
			planes[i] = c.Plan
		}
		vendidas, degradadas := unidadesVendidasPorPlan(items, planes)
		if degradadas > 0 {
			log.Warn().
				Str("turno_id", turno.ID.String()).
				Int("items", degradadas).
				Msg("turno: unidades asignadas a un plan por coincidencia parcial del código")
		}

		for _, c := range conteos {
			inv, err := s.repo.FindInventarioTx(tx, turno.ID, c.Plan)
			switch {
			case repository.IsNotFound(err):
				reportada := c.Cantidad
				inv = &model.InventarioSimTurno{
					TurnoID:                turno.ID,
					Plan:                   c.Plan,
					TieneApertura:          false,
					CantidadFinalReportada: &reportada,
					ObservacionesCierre:    c.Observaciones,
					FechaRegistro:          now,
					FechaCierre:            &now,
				}
				if err := s.repo.CreateInventarioTx(tx, inv); err != nil {
					return err
				}
				log.Warn().
					Str("turno_id", turno.ID.String()).
					Str("plan", c.Plan).
					Msg("turno: plan sin conteo de apertura, diferencia no calculable")
			case err != nil:
				return err
			default:
				inv.CerrarConteo(c.Cantidad, vendidas[c.Plan], c.Observaciones, now)
				if err := s.repo.UpdateInventarioTx(tx, inv); err != nil {
					return err
				}
			}
		}

		// 4.
		cierre = model.NuevoCierreCaja(turno.ID, sistema, reportado, obs, now)
		if err := s.repo.CreateCierreTx(tx, cierre); err != nil {
			return err
		}

		// 5.
		ok, err := s.repo.CerrarTx(tx, turno.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domainerr.Conflict("el turno %s ya fue cerrado", turno.ID)
		}
		turno.Estado = model.TurnoCerrado
		turno.FechaCierre = &now

		turno.Inventarios, err = s.repo.ListInventariosTx(tx, turno.ID)
		return err
	})
	if txErr != nil {
		if repository.IsUniqueViolation(txErr) {
			return nil, domainerr.Conflict("el turno ya tiene un cierre registrado")
		}
		return nil, asDomain(txErr, "cerrar turno")
	}
	turno.Cierre = cierre

	descuadrado := !cierre.DiferenciaEfectivo.IsZero() || !cierre.DiferenciaDatafono.IsZero() ||
		!cierre.DiferenciaElectronico.IsZero() || !cierre.DiferenciaDolares.IsZero()
	s.metrics.TurnoCerrado(descuadrado)
	log.Info().
		Str("turno_id", turno.ID.String()).
		Str("usuario_id", usuarioID.String()).
		Bool("descuadrado", descuadrado).
		Msg("turno: cerrado")

	s.reportarCierre(ctx, turno, cierre)
	return turnoToResponse(turno), nil
}

// reportarCierre renders the closure PDF and queues it for email.
func (s *turnoService) reportarCierre(ctx context.Context, turno *model.Turno, cierre *model.CierreCaja) {
	if s.cfg.PDFPath == "" {
		return
	}
	operador := turno.UsuarioID.String()
	if s.usuarios != nil {
		if u, err := s.usuarios.FindByID(ctx, turno.UsuarioID); err == nil {
			operador = u.Nombre
		}
	}
	path, err := infra.GenerateCierrePDF(infra.CierreReporte{
		Turno:       turno,
		Operador:    operador,
		Cierre:      cierre,
		Inventarios: turno.Inventarios,
	}, s.cfg.PDFPath)
	if err != nil {
		log.Error().Err(err).Str("turno_id", turno.ID.String()).Msg("turno: no se pudo generar el PDF de cierre")
		return
	}
	if len(s.cfg.EmailTo) == 0 || s.dispatcher == nil {
		return
	}
	err = s.dispatcher.EnqueueEmail(ctx, worker.EmailJobPayload{
		To:      s.cfg.EmailTo,
		Subject: fmt.Sprintf("Cierre de turno %s", operador),
		Body:    fmt.Sprintf("Cierre del turno %s registrado el %s.", turno.ID, cierre.FechaCierre.Format("2006-01-02 15:04")),
		PDFPath: path,
	})
	if err != nil {
		log.Error().Err(err).Str("turno_id", turno.ID.String()).Msg("turno: no se pudo encolar el correo de cierre")
	}
}

// unidadesVendidasPorPlan counts sold units per closing plan. An exact code
// match always wins; codes matching no plan exactly fall back to the longest
// plan they contain. The second result is how many lines took the fallback.
func unidadesVendidasPorPlan(items []model.ItemVendido, planes []string) (map[string]int, int) {
	vendidas := make(map[string]int, len(planes))
	porLongitud := append([]string(nil), planes...)
	sort.Slice(porLongitud, func(i, j int) bool { return len(porLongitud[i]) > len(porLongitud[j]) })

	degradadas := 0
	for _, it := range items {
		code := strings.ToUpper(strings.TrimSpace(it.ProductCode))
		exacto := false
		for _, p := range planes {
			if strings.EqualFold(code, p) {
				vendidas[p] += it.Cantidad
				exacto = true
				break
			}
		}
		if exacto {
			continue
		}
		for _, p := range porLongitud {
			if p != "" && strings.Contains(code, strings.ToUpper(p)) {
				vendidas[p] += it.Cantidad
				degradadas++
				break
			}
		}
	}
	return vendidas, degradadas
}

// normalizarConteos uppercases plan codes and rejects repeated plans.
func normalizarConteos(in []dto.ConteoInventarioRequest) ([]dto.ConteoInventarioRequest, error) {
	out := make([]dto.ConteoInventarioRequest, 0, len(in))
	vistos := make(map[string]bool, len(in))
	for _, c := range in {
		c.Plan = normalizarPlan(c.Plan)
		if c.Plan == "" {
			return nil, domainerr.Validation("plan es requerido en cada conteo")
		}
		if c.Cantidad < 0 {
			return nil, domainerr.Validation("la cantidad del plan %s no puede ser negativa", c.Plan)
		}
		if vistos[c.Plan] {
			return nil, domainerr.Validation("el plan %s aparece más de una vez", c.Plan)
		}
		vistos[c.Plan] = true
		out = append(out, c)
	}
	return out, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *turnoService) Estado(ctx context.Context, usuarioID uuid.UUID) (*dto.EstadoTurnoResponse, error) {
	turno, err := s.repo.FindAbierto(ctx, usuarioID)
	if err != nil {
		if repository.IsNotFound(err) {
			return &dto.EstadoTurnoResponse{Abierto: false}, nil
		}
		return nil, domainerr.Internal(err, "consultar turno abierto")
	}
	totales, err := s.caja.SumByMetodoTx(s.repo.DB().WithContext(ctx), turno.ID)
	if err != nil {
		return nil, domainerr.Internal(err, "totales del turno")
	}
	return &dto.EstadoTurnoResponse{Abierto: true, Turno: turnoToResponse(turno), Totales: &totales}, nil
}

func (s *turnoService) Get(ctx context.Context, turnoID uuid.UUID) (*dto.TurnoResponse, error) {
	turno, err := s.repo.FindByID(ctx, turnoID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("turno %s no encontrado", turnoID)
		}
		return nil, domainerr.Internal(err, "buscar turno")
	}
	return turnoToResponse(turno), nil
}

func (s *turnoService) Historial(ctx context.Context, filter dto.TurnoFilter) (*dto.TurnoListResponse, error) {
	var usuarioID *uuid.UUID
	if filter.UsuarioID != "" {
		id, err := uuid.Parse(filter.UsuarioID)
		if err != nil {
			return nil, domainerr.Validation("usuario_id inválido")
		}
		usuarioID = &id
	}
	turnos, total, err := s.repo.List(ctx, usuarioID, filter.Page, filter.Limit)
	if err != nil {
		return nil, domainerr.Internal(err, "historial de turnos")
	}
	resp := &dto.TurnoListResponse{Data: make([]dto.TurnoResponse, len(turnos)), Total: total, Page: filter.Page, Limit: filter.Limit}
	for i := range turnos {
		resp.Data[i] = *turnoToResponse(&turnos[i])
	}
	return resp, nil
}

func (s *turnoService) Inventarios(ctx context.Context, turnoID uuid.UUID) ([]dto.InventarioTurnoResponse, error) {
	invs, err := s.repo.ListInventarios(ctx, turnoID)
	if err != nil {
		return nil, domainerr.Internal(err, "inventarios del turno")
	}
	resp := make([]dto.InventarioTurnoResponse, len(invs))
	for i := range invs {
		resp[i] = inventarioToResponse(&invs[i])
	}
	return resp, nil
}

func (s *turnoService) Movimientos(ctx context.Context, turnoID uuid.UUID) ([]dto.MovimientoResponse, error) {
	movs, err := s.caja.ListMovimientos(ctx, turnoID)
	if err != nil {
		return nil, domainerr.Internal(err, "movimientos del turno")
	}
	resp := make([]dto.MovimientoResponse, len(movs))
	for i := range movs {
		resp[i] = movimientoToResponse(&movs[i])
	}
	return resp, nil
}

func (s *turnoService) Cierre(ctx context.Context, turnoID uuid.UUID) (*dto.CierreResponse, error) {
	c, err := s.repo.FindCierre(ctx, turnoID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("el turno %s no tiene cierre", turnoID)
		}
		return nil, domainerr.Internal(err, "buscar cierre")
	}
	return cierreToResponse(c), nil
}

func (s *turnoService) Descuadres(ctx context.Context, limit int) ([]dto.DescuadreResponse, error) {
	rows, err := s.repo.ListDescuadres(ctx, limit)
	if err != nil {
		return nil, domainerr.Internal(err, "listar descuadres")
	}
	resp := make([]dto.DescuadreResponse, len(rows))
	for i, r := range rows {
		resp[i] = dto.DescuadreResponse{
			TurnoID:         r.TurnoID.String(),
			UsuarioID:       r.UsuarioID.String(),
			Plan:            r.Plan,
			DiferenciaFinal: r.DiferenciaFinal,
			FechaCierre:     r.FechaCierre.Format(time.RFC3339),
		}
	}
	return resp, nil
}

// ── mappers ──────────────────────────────────────────────────────────────────

func turnoToResponse(t *model.Turno) *dto.TurnoResponse {
	resp := &dto.TurnoResponse{
		ID:            t.ID.String(),
		UsuarioID:     t.UsuarioID.String(),
		Estado:        string(t.Estado),
		FechaApertura: t.FechaApertura.Format(time.RFC3339),
		FechaCierre:   timePtr(t.FechaCierre),
		Inventarios:   make([]dto.InventarioTurnoResponse, len(t.Inventarios)),
	}
	for i := range t.Inventarios {
		resp.Inventarios[i] = inventarioToResponse(&t.Inventarios[i])
	}
	if t.Cierre != nil {
		resp.Cierre = cierreToResponse(t.Cierre)
	}
	return resp
}

func inventarioToResponse(i *model.InventarioSimTurno) dto.InventarioTurnoResponse {
	return dto.InventarioTurnoResponse{
		Plan:                     i.Plan,
		CantidadInicialReportada: i.CantidadInicialReportada,
		CantidadInicialSistema:   i.CantidadInicialSistema,
		DiferenciaInicial:        i.DiferenciaInicial,
		TieneApertura:            i.TieneApertura,
		CantidadFinalReportada:   i.CantidadFinalReportada,
		UnidadesVendidas:         i.UnidadesVendidas,
		CantidadFinalSistema:     i.CantidadFinalSistema,
		DiferenciaFinal:          i.DiferenciaFinal,
		ObservacionesApertura:    i.ObservacionesApertura,
		ObservacionesCierre:      i.ObservacionesCierre,
		FechaCierre:              timePtr(i.FechaCierre),
	}
}

func cierreToResponse(c *model.CierreCaja) *dto.CierreResponse {
	sistema, reportado := c.Sistema(), c.Reportado()
	return &dto.CierreResponse{
		TurnoID:     c.TurnoID.String(),
		FechaCierre: c.FechaCierre.Format(time.RFC3339),
		Sistema:     sistema,
		Reportado:   reportado,
		Diferencia: model.TotalesPorMetodo{
			Efectivo:    c.DiferenciaEfectivo,
			Tarjeta:     c.DiferenciaDatafono,
			Electronico: c.DiferenciaElectronico,
			Dolares:     c.DiferenciaDolares,
		},
		Observaciones: c.Observaciones,
	}
}
