package service

import (
	"context"
	"encoding/json"
	"errors"
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

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	defaultTopupAmount   = "0"
	defaultTopupSellFrom = "S"
)

// WinredAPI is the part of infra.WinredClient the top-up flows use.
type WinredAPI interface {
	Topup(ctx context.Context, data infra.TopupData) (*infra.WinredResponse, error)
	QueryTx(ctx context.Context, suscriber string) (*infra.WinredResponse, error)
	QueryPackages(ctx context.Context, parentID string) ([]infra.WinredPackage, error)
}

type RecargaConfig struct {
	// Delay is the minimum spacing between provider calls in a batch
	Delay       time.Duration
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles afterwards
	Backoff    time.Duration
	AllowedIDs []string
	// ProbeSubscriber answers Balance when the caller gives no number
	ProbeSubscriber string
}

// ProgressFunc receives batch top-up events in order.
type ProgressFunc func(dto.EventoProgreso)

type RecargaService interface {
	// TopUp calls the provider once; a rejection is returned without touching the unit.
	TopUp(ctx context.Context, req dto.RecargaRequest) (*dto.RecargaResponse, error)
	TopUpBatch(ctx context.Context, req dto.RecargaLoteRequest, progress ProgressFunc) (*dto.RecargaLoteResponse, error)
	Packages(ctx context.Context, parentID string) ([]dto.PaqueteResponse, error)
	Balance(ctx context.Context, suscriber string) (*dto.SaldoResponse, error)
}

type recargaService struct {
	winred     WinredAPI
	sims       repository.SimRepository
	planes     repository.PlanRepository
	inventario InventarioService
	metrics    *metrics.Metrics
	cfg        RecargaConfig
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewRecargaService(
	winred WinredAPI,
	sims repository.SimRepository,
	planes repository.PlanRepository,
	inventario InventarioService,
	m *metrics.Metrics,
	cfg RecargaConfig,
) RecargaService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	return &recargaService{
		winred:     winred,
		sims:       sims,
		planes:     planes,
		inventario: inventario,
		metrics:    m,
		cfg:        cfg,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ── TopUp ─────────────────────────────────────────────────────────────────────

func (s *recargaService) TopUp(ctx context.Context, req dto.RecargaRequest) (*dto.RecargaResponse, error) {
	c, err := req.Candidato()
	if err != nil {
		return nil, err
	}
	productID := strings.TrimSpace(req.ProductID)
	if productID == "" {
		return nil, domainerr.Validation("product_id es requerido")
	}

	sim, err := s.inventario.Resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	if !sim.Estado.Vendible() {
		return nil, domainerr.State("la SIM %s no se puede recargar: estado %s", sim.ICCID, sim.Estado)
	}

	resp, err := s.winred.Topup(ctx, s.topupData(productID, req.Amount, req.SellFrom, sim))
	if err != nil {
		s.metrics.Recarga("individual", false)
		return nil, domainerr.External(err, "Winred no respondió")
	}
	if !resp.OK() {
		s.metrics.Recarga("individual", false)
		return nil, domainerr.External(errors.New(resp.Mensaje()), "Winred rechazó la recarga: %s", resp.Mensaje())
	}

	plan, err := s.aplicarRecarga(ctx, sim.ID, productID, resp.RequestID)
	if err != nil {
		return nil, err
	}
	s.metrics.Recarga("individual", true)
	log.Info().
		Str("iccid", sim.ICCID).
		Str("product_id", productID).
		Str("request_id", resp.RequestID).
		Msg("recarga: exitosa")

	return &dto.RecargaResponse{
		SimID:       sim.ID.String(),
		ICCID:       sim.ICCID,
		NumeroLinea: sim.NumeroLinea,
		Estado:      string(model.SimRecargada),
		Plan:        plan,
		RequestID:   resp.RequestID,
		Mensaje:     resp.Mensaje(),
	}, nil
}

func (s *recargaService) topupData(productID, amount, sellFrom string, sim *model.SimDetalle) infra.TopupData {
	if amount = strings.TrimSpace(amount); amount == "" {
		amount = defaultTopupAmount
	}
	if sellFrom = strings.TrimSpace(sellFrom); sellFrom == "" {
		sellFrom = defaultTopupSellFrom
	}
	return infra.TopupData{
		ProductID: productID,
		Amount:    amount,
		Suscriber: model.Ultimos10(model.SoloDigitos(sim.NumeroLinea)),
		SellFrom:  sellFrom,
	}
}

// homologar maps a Winred product to the local plan code. A product without
// homologation leaves the plan untouched.
func (s *recargaService) homologar(ctx context.Context, productID string) *string {
	p, err := s.planes.FindActivo(ctx, productID)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error().Err(err).Str("product_id", productID).Msg("recarga: error consultando homologación")
		} else {
			log.Warn().Str("product_id", productID).Msg("recarga: producto sin homologación de plan")
		}
		return nil
	}
	code := p.SiigoCode
	return &code
}

// aplicarRecarga stamps the unit in one update: recargado, plan, product and timestamp.
// It runs once the provider already charged the line, so the caller going away
// must not cancel the local record.
func (s *recargaService) aplicarRecarga(ctx context.Context, simID uuid.UUID, productID, requestID string) (*string, error) {
	ctx = context.WithoutCancel(ctx)
	plan := s.homologar(ctx, productID)
	now := s.now()
	txErr := runTx(ctx, s.sims.DB(), func(tx *gorm.DB) error {
		sim, err := s.sims.FindByIDTx(tx, simID)
		if err != nil {
			return err
		}
		anterior := sim.Estado
		if !anterior.Vendible() {
			return domainerr.State("la SIM %s cambió a %s durante la recarga", sim.ICCID, anterior)
		}
		pid := productID
		sim.Estado = model.SimRecargada
		sim.WinredProductID = &pid
		sim.FechaUltimaRecarga = &now
		if plan != nil {
			sim.PlanAsignado = plan
		}
		if err := s.sims.UpdateSimTx(tx, sim); err != nil {
			return err
		}
		return s.sims.CreateMovimientoTx(tx, &model.MovimientoSim{
			SimID:          sim.ID,
			Tipo:           "recarga",
			EstadoAnterior: anterior,
			EstadoNuevo:    model.SimRecargada,
			Detalle:        fmt.Sprintf("producto %s, request %s", productID, requestID),
		})
	})
	if txErr != nil {
		return nil, asDomain(txErr, "registrar recarga")
	}
	return plan, nil
}

// ── TopUpBatch ────────────────────────────────────────────────────────────────
// Units are processed one at a time, spaced by the rate limiter. Transient
// failures and signature rejections are retried with exponential backoff;
// any other rejection fails the unit immediately. Partial success is normal.
// A started batch runs to the end even if the requesting client disconnects.

func (s *recargaService) TopUpBatch(ctx context.Context, req dto.RecargaLoteRequest, progress ProgressFunc) (*dto.RecargaLoteResponse, error) {
	ctx = context.WithoutCancel(ctx)
	if progress == nil {
		progress = func(dto.EventoProgreso) {}
	}
	loteID := strings.TrimSpace(req.LoteID)
	productID := strings.TrimSpace(req.ProductID)
	if loteID == "" || productID == "" {
		return nil, domainerr.Validation("lote_id y product_id son requeridos")
	}
	if _, err := s.sims.FindLote(ctx, loteID); err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("el lote %s no existe", loteID)
		}
		return nil, domainerr.Internal(err, "buscar lote")
	}

	sims, err := s.sims.ListSims(ctx, repository.SimFilter{
		LoteID:  loteID,
		Estados: []model.SimEstado{model.SimDisponible, model.SimRecargada},
		Limit:   model.MaxSimsPorLote,
	})
	if err != nil {
		return nil, domainerr.Internal(err, "listar SIMs del lote")
	}
	sort.Slice(sims, func(i, j int) bool { return sims[i].NumeroLinea < sims[j].NumeroLinea })

	result := &dto.RecargaLoteResponse{
		LoteID:     loteID,
		ProductID:  productID,
		Total:      len(sims),
		Successful: []dto.RecargaResultado{},
		Failed:     []dto.RecargaResultado{},
	}
	progress(dto.EventoProgreso{Tipo: dto.EventoInicio, Total: len(sims), Mensaje: "lote " + loteID})

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.Delay), 1)
	}

	for i := range sims {
		sim := &sims[i]
		progress(dto.EventoProgreso{Tipo: dto.EventoProcesando, Indice: i + 1, Total: len(sims), ICCID: sim.ICCID, NumeroLinea: sim.NumeroLinea})

		res := s.recargarConReintentos(ctx, limiter, sim, req, i+1, len(sims), progress)
		if res.Error == "" {
			result.Successful = append(result.Successful, res)
			progress(dto.EventoProgreso{Tipo: dto.EventoExito, Indice: i + 1, Total: len(sims), ICCID: sim.ICCID, NumeroLinea: sim.NumeroLinea, Intento: res.Intentos, Mensaje: res.Mensaje})
		} else {
			result.Failed = append(result.Failed, res)
			progress(dto.EventoProgreso{Tipo: dto.EventoError, Indice: i + 1, Total: len(sims), ICCID: sim.ICCID, NumeroLinea: sim.NumeroLinea, Intento: res.Intentos, Mensaje: res.Error})
		}
	}

	if len(result.Successful) > 0 {
		if plan := s.homologar(ctx, productID); plan != nil {
			if err := s.actualizarPlanLote(ctx, loteID, *plan); err != nil {
				log.Error().Err(err).Str("lote_id", loteID).Msg("recarga: no se pudo actualizar el plan del lote")
			} else {
				result.PlanAsignado = plan
			}
		}
	}

	log.Info().
		Str("lote_id", loteID).
		Int("exitosas", len(result.Successful)).
		Int("fallidas", len(result.Failed)).
		Msg("recarga: lote procesado")
	progress(dto.EventoProgreso{Tipo: dto.EventoCompleto, Indice: len(sims), Total: len(sims), Resultado: result})
	return result, nil
}

func (s *recargaService) recargarConReintentos(
	ctx context.Context,
	limiter *rate.Limiter,
	sim *model.SimDetalle,
	req dto.RecargaLoteRequest,
	indice, total int,
	progress ProgressFunc,
) dto.RecargaResultado {
	res := dto.RecargaResultado{SimID: sim.ID.String(), ICCID: sim.ICCID, NumeroLinea: sim.NumeroLinea}
	data := s.topupData(strings.TrimSpace(req.ProductID), req.Amount, req.SellFrom, sim)

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		res.Intentos = attempt
		if attempt > 1 {
			s.metrics.RecargaReintento()
			progress(dto.EventoProgreso{Tipo: dto.EventoProcesando, Indice: indice, Total: total, ICCID: sim.ICCID, NumeroLinea: sim.NumeroLinea, Intento: attempt, Mensaje: "reintentando"})
			if err := s.sleep(ctx, s.cfg.Backoff<<(attempt-2)); err != nil {
				res.Error = err.Error()
				break
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			res.Error = err.Error()
			break
		}

		resp, err := s.winred.Topup(ctx, data)
		if err != nil {
			res.Error = err.Error()
			if infra.IsTransient(err) {
				log.Warn().Err(err).Str("iccid", sim.ICCID).Int("intento", attempt).Msg("recarga: error transitorio")
				continue
			}
			break
		}
		if !resp.OK() {
			res.Error = resp.Mensaje()
			if resp.FirmaInvalida() {
				log.Warn().Str("iccid", sim.ICCID).Int("intento", attempt).Msg("recarga: firma rechazada")
				continue
			}
			break
		}

		if _, err := s.aplicarRecarga(ctx, sim.ID, data.ProductID, resp.RequestID); err != nil {
			res.Error = err.Error()
			break
		}
		res.Error = ""
		res.RequestID = resp.RequestID
		res.Mensaje = resp.Mensaje()
		break
	}

	s.metrics.Recarga("lote", res.Error == "")
	return res
}

func (s *recargaService) actualizarPlanLote(ctx context.Context, loteID, plan string) error {
	return runTx(ctx, s.sims.DB(), func(tx *gorm.DB) error {
		lote, err := s.sims.FindLoteTx(tx, loteID)
		if err != nil {
			return err
		}
		lote.PlanAsignado = &plan
		return s.sims.UpdateLoteTx(tx, lote)
	})
}

// ── Catalog / balance ─────────────────────────────────────────────────────────

// Packages returns the allowed packages sorted by price.
func (s *recargaService) Packages(ctx context.Context, parentID string) ([]dto.PaqueteResponse, error) {
	pkgs, err := s.winred.QueryPackages(ctx, strings.TrimSpace(parentID))
	if err != nil {
		return nil, domainerr.External(err, "no se pudo consultar el catálogo de Winred")
	}
	permitidos := make(map[string]bool, len(s.cfg.AllowedIDs))
	for _, id := range s.cfg.AllowedIDs {
		permitidos[id] = true
	}

	out := make([]dto.PaqueteResponse, 0, len(pkgs))
	for _, p := range pkgs {
		id := string(p.ProductID)
		if len(permitidos) > 0 && !permitidos[id] {
			continue
		}
		out = append(out, dto.PaqueteResponse{ProductID: id, Nombre: p.Name, Precio: string(p.Price), Vigencia: string(p.Validity)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return precio(out[i].Precio).LessThan(precio(out[j].Precio))
	})
	return out, nil
}

func precio(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (s *recargaService) Balance(ctx context.Context, suscriber string) (*dto.SaldoResponse, error) {
	suscriber = model.SoloDigitos(suscriber)
	if suscriber == "" {
		suscriber = s.cfg.ProbeSubscriber
	}
	if suscriber == "" {
		return nil, domainerr.Validation("suscriber es requerido")
	}
	resp, err := s.winred.QueryTx(ctx, suscriber)
	if err != nil {
		return nil, domainerr.External(err, "no se pudo consultar Winred")
	}
	out := &dto.SaldoResponse{Suscriber: suscriber, OK: resp.OK(), Mensaje: resp.Mensaje()}
	if len(resp.Data) > 0 {
		var data any
		if err := json.Unmarshal(resp.Data, &data); err == nil {
			out.Data = data
		}
	}
	return out, nil
}
