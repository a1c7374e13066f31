package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"
	"github.com/Sebas931/Local-sim-main/internal/testutil"
	"github.com/Sebas931/Local-sim-main/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeDispatcher struct {
	mu          sync.Mutex
	facturacion []worker.FacturacionJobPayload
	emails      []worker.EmailJobPayload
	err         error
}

var _ JobDispatcher = (*fakeDispatcher)(nil)

func (d *fakeDispatcher) EnqueueFacturacion(_ context.Context, p worker.FacturacionJobPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.facturacion = append(d.facturacion, p)
	return nil
}

func (d *fakeDispatcher) EnqueueEmail(_ context.Context, p worker.EmailJobPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.emails = append(d.emails, p)
	return nil
}

// ── fixture ───────────────────────────────────────────────────────────────────

// fixture wires the real repositories over a private SQLite database.
type fixture struct {
	db *gorm.DB

	sims       repository.SimRepository
	turnosRepo repository.TurnoRepository
	cajaRepo   repository.CajaRepository
	ventasRepo repository.VentaRepository
	planes     repository.PlanRepository
	dispatcher *fakeDispatcher
	inventario InventarioService
	caja       CajaService
	ventas     VentaService
	turnos     TurnoService
	devolucion DevolucionService
	usuarioID  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	f := &fixture{
		db:         db,
		sims:       repository.NewSimRepository(db),
		turnosRepo: repository.NewTurnoRepository(db),
		cajaRepo:   repository.NewCajaRepository(db),
		ventasRepo: repository.NewVentaRepository(db),
		planes:     repository.NewPlanRepository(db),
		dispatcher: &fakeDispatcher{},
		usuarioID:  uuid.New(),
	}
	f.inventario = NewInventarioService(f.sims, 5)
	f.caja = NewCajaService(f.cajaRepo, f.turnosRepo, f.inventario)
	f.ventas = NewVentaService(f.ventasRepo, f.turnosRepo, f.inventario, f.caja, f.dispatcher, nil)
	f.turnos = NewTurnoService(f.turnosRepo, f.cajaRepo, f.sims, nil, f.dispatcher, nil, TurnoConfig{})
	f.devolucion = NewDevolucionService(repository.NewDevolucionRepository(db), f.sims, f.turnosRepo, f.ventasRepo, f.ventas)
	return f
}

// seedLote creates a batch of n units numbered from base. When plan is not
// empty it is assigned, which moves the units to recargado.
func (f *fixture) seedLote(t *testing.T, loteID string, base, n int, plan string) []dto.SimResponse {
	t.Helper()
	req := dto.CrearLoteRequest{LoteID: loteID, Operador: "CLARO"}
	for i := 0; i < n; i++ {
		req.Sims = append(req.Sims, dto.SimRequest{
			NumeroLinea: fmt.Sprintf("300%07d", base+i),
			ICCID:       fmt.Sprintf("895710100%010d", base+i),
		})
	}
	resp, err := f.inventario.CreateBatch(context.Background(), req)
	require.NoError(t, err)
	if plan != "" {
		_, err = f.inventario.AssignPlan(context.Background(), loteID, plan)
		require.NoError(t, err)
	}
	return resp.Sims
}

func (f *fixture) openTurno(t *testing.T, conteos ...dto.ConteoInventarioRequest) *dto.TurnoResponse {
	t.Helper()
	resp, err := f.turnos.OpenShift(context.Background(), f.usuarioID, dto.AbrirTurnoRequest{Inventarios: conteos})
	require.NoError(t, err)
	return resp
}

// sellSIM records a one-line sale of the unit with the given ICCID.
func (f *fixture) sellSIM(t *testing.T, iccid, plan string, precio int64, metodo string) *dto.VentaResponse {
	t.Helper()
	resp, err := f.ventas.RecordSale(context.Background(), f.usuarioID, dto.RegistrarVentaRequest{
		MetodoPago: metodo,
		Items: []dto.ItemVentaRequest{{
			ProductCode:    plan,
			Cantidad:       1,
			PrecioUnitario: decimal.NewFromInt(precio),
			ICCID:          &iccid,
		}},
	})
	require.NoError(t, err)
	return resp
}

func (f *fixture) sim(t *testing.T, iccid string) *model.SimDetalle {
	t.Helper()
	var s model.SimDetalle
	require.NoError(t, f.db.Where("iccid = ?", iccid).First(&s).Error)
	return &s
}

func requireCode(t *testing.T, err error, code domainerr.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, domainerr.CodeOf(err), err.Error())
}

func requireDecimal(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.NewFromInt(want)), "want %d, got %s", want, got.String())
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }
