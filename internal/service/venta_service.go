package service

import (
	"context"
	"strings"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/metrics"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"
	"github.com/Sebas931/Local-sim-main/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JobDispatcher queues background jobs. *worker.Dispatcher satisfies it.
type JobDispatcher interface {
	EnqueueFacturacion(ctx context.Context, p worker.FacturacionJobPayload) error
	EnqueueEmail(ctx context.Context, p worker.EmailJobPayload) error
}

type VentaService interface {
	RecordSale(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	// AnnulSaleTx flips the sale to anulada inside the caller's transaction.
	AnnulSaleTx(tx *gorm.DB, ventaID uuid.UUID) (*model.Venta, error)
	Get(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error)
	List(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error)
	FindByICCID(ctx context.Context, iccid string) ([]dto.VentaResponse, error)
}

type ventaService struct {
	repo       repository.VentaRepository
	turnos     repository.TurnoRepository
	inventario InventarioService
	caja       CajaService
	dispatcher JobDispatcher
	metrics    *metrics.Metrics
	now        func() time.Time
}

func NewVentaService(
	repo repository.VentaRepository,
	turnos repository.TurnoRepository,
	inventario InventarioService,
	caja CajaService,
	dispatcher JobDispatcher,
	m *metrics.Metrics,
) VentaService {
	return &ventaService{
		repo:       repo,
		turnos:     turnos,
		inventario: inventario,
		caja:       caja,
		dispatcher: dispatcher,
		metrics:    m,
		now:        time.Now,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── RecordSale ────────────────────────────────────────────────────────────────
// One transaction:
//   1. Lock the operator's open turno (PreconditionError when there is none)
//   2. Insert venta + items
//   3. Mark every SIM line sold inside its own savepoint; a failure is logged
//      and reported in sims_no_vinculadas without aborting the sale
//   4. Append the venta cash movement
// After commit, electronic sales without an invoice are queued for Siigo.

func (s *ventaService) RecordSale(ctx context.Context, usuarioID uuid.UUID, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	metodo, ok := model.NormalizarMetodoPago(req.MetodoPago)
	if !ok {
		return nil, domainerr.Validation("método de pago inválido: %s", req.MetodoPago)
	}
	if len(req.Items) == 0 {
		return nil, domainerr.Validation("la venta no tiene ítems")
	}

	items := make([]model.VentaItem, 0, len(req.Items))
	total := decimal.Zero
	for i, in := range req.Items {
		item, err := itemFromRequest(i, in)
		if err != nil {
			return nil, err
		}
		total = total.Add(item.Subtotal)
		items = append(items, item)
	}

	venta := model.Venta{
		UsuarioID:             usuarioID,
		ClienteID:             trimPtr(req.ClienteID),
		ClienteIdentificacion: trimPtr(req.ClienteIdentificacion),
		MetodoPago:            metodo,
		SiigoInvoiceID:        trimPtr(req.SiigoInvoiceID),
		Total:                 total,
		Estado:                model.VentaActiva,
		Items:                 items,
	}
	var noVinculadas []string

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		turno, err := s.turnos.FindAbiertoTx(tx, usuarioID)
		if err != nil {
			if repository.IsNotFound(err) {
				return domainerr.Precondition("no hay un turno abierto; abra un turno antes de vender")
			}
			return err
		}
		venta.TurnoID = turno.ID
		venta.CreatedAt = s.now()

		if err := s.repo.Create(ctx, tx, &venta); err != nil {
			return err
		}

		for _, item := range venta.Items {
			c := item.Candidato()
			if c.Vacio() {
				continue
			}
			spErr := tx.Transaction(func(sp *gorm.DB) error {
				_, err := s.inventario.MarkSoldTx(sp, c, venta.ID, venta.CreatedAt)
				return err
			})
			if spErr != nil {
				ref := candidatoRef(c)
				log.Warn().Err(spErr).
					Str("venta_id", venta.ID.String()).
					Str("sim", ref).
					Msg("venta: SIM no vinculada a la venta")
				noVinculadas = append(noVinculadas, ref)
			}
		}

		ventaID := venta.ID
		_, err = s.caja.AppendTx(tx, turno.ID, model.MovimientoVenta, venta.Total, metodo, &ventaID, "Venta "+ventaID.String()[:8])
		return err
	})
	if txErr != nil {
		return nil, asDomain(txErr, "registrar venta")
	}

	resp := ventaToResponse(&venta)
	resp.SimsNoVinculadas = noVinculadas

	if metodo == model.MetodoElectronico && venta.SiigoInvoiceID == nil && s.dispatcher != nil {
		err := s.dispatcher.EnqueueFacturacion(ctx, worker.FacturacionJobPayload{VentaID: venta.ID.String()})
		if err != nil {
			log.Error().Err(err).Str("venta_id", venta.ID.String()).Msg("venta: no se pudo encolar la factura")
		}
		resp.EnviadaFacturacion = err == nil
	}

	s.metrics.VentaRegistrada(string(metodo), venta.Total.InexactFloat64(), len(noVinculadas))
	log.Info().
		Str("venta_id", venta.ID.String()).
		Str("metodo", string(metodo)).
		Str("total", venta.Total.StringFixed(2)).
		Msg("venta: registrada")
	return resp, nil
}

func itemFromRequest(i int, in dto.ItemVentaRequest) (model.VentaItem, error) {
	code := strings.TrimSpace(in.ProductCode)
	if code == "" {
		return model.VentaItem{}, domainerr.Validation("ítem %d: product_code es requerido", i+1)
	}
	if in.Cantidad < 1 {
		return model.VentaItem{}, domainerr.Validation("ítem %d: la cantidad debe ser mayor a cero", i+1)
	}
	if in.PrecioUnitario.IsNegative() {
		return model.VentaItem{}, domainerr.Validation("ítem %d: el precio no puede ser negativo", i+1)
	}
	if !model.EnCentavos(in.PrecioUnitario) {
		return model.VentaItem{}, domainerr.Validation("ítem %d: el precio admite máximo dos decimales", i+1)
	}

	item := model.VentaItem{
		ProductCode:    code,
		Descripcion:    strings.TrimSpace(in.Descripcion),
		Cantidad:       in.Cantidad,
		PrecioUnitario: in.PrecioUnitario,
		IVA:            in.IVA,
		Subtotal:       in.PrecioUnitario.Mul(decimal.NewFromInt(int64(in.Cantidad))),
		ICCID:          trimPtr(in.ICCID),
		MSISDN:         trimPtr(in.MSISDN),
	}
	if item.Descripcion == "" {
		item.Descripcion = code
	}
	if in.SimID != nil && *in.SimID != "" {
		id, err := uuid.Parse(*in.SimID)
		if err != nil {
			return model.VentaItem{}, domainerr.Validation("ítem %d: sim_id inválido", i+1)
		}
		item.SimID = &id
	}
	if !item.Candidato().Vacio() && item.Cantidad != 1 {
		return model.VentaItem{}, domainerr.Validation("ítem %d: una línea con SIM debe tener cantidad 1", i+1)
	}
	return item, nil
}

// ── AnnulSaleTx ───────────────────────────────────────────────────────────────
// Cash movements are never touched: reconciliation sums skip annulled sales.

func (s *ventaService) AnnulSaleTx(tx *gorm.DB, ventaID uuid.UUID) (*model.Venta, error) {
	venta, err := s.repo.FindByIDTx(tx, ventaID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("venta %s no encontrada", ventaID)
		}
		return nil, err
	}
	ok, err := s.repo.AnularTx(tx, ventaID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainerr.Conflict("la venta %s ya está anulada", ventaID)
	}
	venta.Estado = model.VentaAnulada
	return venta, nil
}

// ── Queries ───────────────────────────────────────────────────────────────────

func (s *ventaService) Get(ctx context.Context, id uuid.UUID) (*dto.VentaResponse, error) {
	venta, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerr.NotFound("venta %s no encontrada", id)
		}
		return nil, domainerr.Internal(err, "buscar venta")
	}
	return ventaToResponse(venta), nil
}

// List returns a page of sales; desde/hasta are calendar days in local time,
// hasta inclusive.
func (s *ventaService) List(ctx context.Context, filter dto.VentaFilter) (*dto.VentaListResponse, error) {
	f := repository.VentaFilter{Page: filter.Page, Limit: filter.Limit}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
	if filter.Desde != "" {
		d, err := time.ParseInLocation("2006-01-02", filter.Desde, time.Local)
		if err != nil {
			return nil, domainerr.Validation("desde inválido, use YYYY-MM-DD")
		}
		f.Desde = &d
	}
	if filter.Hasta != "" {
		h, err := time.ParseInLocation("2006-01-02", filter.Hasta, time.Local)
		if err != nil {
			return nil, domainerr.Validation("hasta inválido, use YYYY-MM-DD")
		}
		h = h.AddDate(0, 0, 1)
		f.Hasta = &h
	}
	switch model.EstadoVenta(filter.Estado) {
	case "":
	case model.VentaActiva, model.VentaAnulada:
		f.Estado = model.EstadoVenta(filter.Estado)
	default:
		return nil, domainerr.Validation("estado inválido: %s", filter.Estado)
	}

	ventas, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, domainerr.Internal(err, "listar ventas")
	}
	resp := &dto.VentaListResponse{Data: make([]dto.VentaResponse, len(ventas)), Total: total, Page: f.Page, Limit: f.Limit}
	for i := range ventas {
		resp.Data[i] = *ventaToResponse(&ventas[i])
	}
	return resp, nil
}

func (s *ventaService) FindByICCID(ctx context.Context, iccid string) ([]dto.VentaResponse, error) {
	iccid = strings.TrimSpace(iccid)
	if iccid == "" {
		return nil, domainerr.Validation("iccid es requerido")
	}
	ventas, err := s.repo.FindByICCID(ctx, iccid)
	if err != nil {
		return nil, domainerr.Internal(err, "buscar ventas por ICCID")
	}
	resp := make([]dto.VentaResponse, len(ventas))
	for i := range ventas {
		resp[i] = *ventaToResponse(&ventas[i])
	}
	return resp, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func ventaToResponse(v *model.Venta) *dto.VentaResponse {
	items := make([]dto.ItemVentaResponse, len(v.Items))
	for i, it := range v.Items {
		items[i] = dto.ItemVentaResponse{
			ProductCode:    it.ProductCode,
			Descripcion:    it.Descripcion,
			Cantidad:       it.Cantidad,
			PrecioUnitario: it.PrecioUnitario,
			IVA:            it.IVA,
			Subtotal:       it.Subtotal,
			ICCID:          it.ICCID,
			MSISDN:         it.MSISDN,
		}
	}
	return &dto.VentaResponse{
		ID:             v.ID.String(),
		TurnoID:        v.TurnoID.String(),
		UsuarioID:      v.UsuarioID.String(),
		MetodoPago:     string(v.MetodoPago),
		Total:          v.Total,
		Estado:         string(v.Estado),
		SiigoInvoiceID: v.SiigoInvoiceID,
		Items:          items,
		CreatedAt:      v.CreatedAt.Format(time.RFC3339),
	}
}

// candidatoRef is the identifier echoed back for an unlinked SIM.
func candidatoRef(c model.CandidatoSim) string {
	switch {
	case strings.TrimSpace(c.ICCID) != "":
		return strings.TrimSpace(c.ICCID)
	case model.SoloDigitos(c.MSISDN) != "":
		return model.SoloDigitos(c.MSISDN)
	case c.ID != nil:
		return c.ID.String()
	}
	return ""
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func timePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func uuidPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
