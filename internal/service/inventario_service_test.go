package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func loteRequest(loteID string, n int) dto.CrearLoteRequest {
	req := dto.CrearLoteRequest{LoteID: loteID, Operador: "CLARO"}
	for i := 0; i < n; i++ {
		req.Sims = append(req.Sims, dto.SimRequest{
			NumeroLinea: fmt.Sprintf("310%07d", i),
			ICCID:       fmt.Sprintf("8957102000%09d", i),
		})
	}
	return req
}

func TestCreateBatch_AcceptsTwentyUnits(t *testing.T) {
	f := newFixture(t)

	resp, err := f.inventario.CreateBatch(context.Background(), loteRequest("L-20", model.MaxSimsPorLote))
	require.NoError(t, err)
	assert.Len(t, resp.Sims, model.MaxSimsPorLote)
	assert.Equal(t, model.MaxSimsPorLote, resp.Lote.Total)
	assert.Equal(t, model.MaxSimsPorLote, resp.Lote.Disponibles)

	for _, s := range resp.Sims {
		assert.Equal(t, string(model.SimDisponible), s.Estado)
		assert.False(t, s.Vendida)
	}

	var movs int64
	require.NoError(t, f.db.Model(&model.MovimientoSim{}).Where("tipo = ?", "alta").Count(&movs).Error)
	assert.EqualValues(t, model.MaxSimsPorLote, movs)
}

func TestCreateBatch_RejectsTwentyOneUnits(t *testing.T) {
	f := newFixture(t)

	_, err := f.inventario.CreateBatch(context.Background(), loteRequest("L-21", model.MaxSimsPorLote+1))
	requireCode(t, err, domainerr.CodeValidation)

	var n int64
	require.NoError(t, f.db.Model(&model.SimDetalle{}).Count(&n).Error)
	assert.Zero(t, n, "a rejected batch must not store units")
	require.NoError(t, f.db.Model(&model.SimLote{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateBatch_RejectsDuplicatesInsideTheBatch(t *testing.T) {
	f := newFixture(t)
	req := loteRequest("L-DUP", 3)
	req.Sims[2].ICCID = req.Sims[0].ICCID

	_, err := f.inventario.CreateBatch(context.Background(), req)
	requireCode(t, err, domainerr.CodeValidation)
	assert.Contains(t, err.Error(), req.Sims[0].ICCID)
}

func TestCreateBatch_RejectsRegisteredICCIDs(t *testing.T) {
	f := newFixture(t)
	_, err := f.inventario.CreateBatch(context.Background(), loteRequest("L-A", 2))
	require.NoError(t, err)

	_, err = f.inventario.CreateBatch(context.Background(), loteRequest("L-B", 2))
	requireCode(t, err, domainerr.CodeValidation)

	var n int64
	require.NoError(t, f.db.Model(&model.SimLote{}).Where("id = ?", "L-B").Count(&n).Error)
	assert.Zero(t, n)
}

func TestCreateBatch_ExistingLote(t *testing.T) {
	f := newFixture(t)
	f.seedLote(t, "L-1", 100, 1, "")

	_, err := f.inventario.CreateBatch(context.Background(), loteRequest("L-1", 1))
	requireCode(t, err, domainerr.CodeConflict)
}

func TestAddUnit_FullBatchIsCapacityError(t *testing.T) {
	f := newFixture(t)
	_, err := f.inventario.CreateBatch(context.Background(), loteRequest("L-FULL", model.MaxSimsPorLote))
	require.NoError(t, err)

	_, err = f.inventario.AddUnit(context.Background(), dto.AgregarSimRequest{
		LoteID:      "L-FULL",
		NumeroLinea: "3209999999",
		ICCID:       "8957109999999999999",
	})
	requireCode(t, err, domainerr.CodeCapacity)

	var n int64
	require.NoError(t, f.db.Model(&model.SimDetalle{}).Where("lote_id = ?", "L-FULL").Count(&n).Error)
	assert.EqualValues(t, model.MaxSimsPorLote, n)
}

func TestAddUnit_UnknownLote(t *testing.T) {
	f := newFixture(t)
	req := dto.AgregarSimRequest{LoteID: "L-NEW", NumeroLinea: "3201234567", ICCID: "8957101234567890123"}

	_, err := f.inventario.AddUnit(context.Background(), req)
	requireCode(t, err, domainerr.CodeNotFound)

	req.CrearLote = true
	_, err = f.inventario.AddUnit(context.Background(), req)
	requireCode(t, err, domainerr.CodeValidation)

	req.Operador = "CLARO"
	sim, err := f.inventario.AddUnit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "L-NEW", sim.LoteID)
	assert.Equal(t, string(model.SimDisponible), sim.Estado)
}

func TestAddUnit_DuplicateICCID(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "")

	_, err := f.inventario.AddUnit(context.Background(), dto.AgregarSimRequest{
		LoteID: "L-1", NumeroLinea: "3207654321", ICCID: sims[0].ICCID,
	})
	requireCode(t, err, domainerr.CodeConflict)
}

func TestAssignPlan_MovesSellableUnitsToRecargado(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 3, "")
	require.NoError(t, f.db.Model(&model.SimDetalle{}).
		Where("iccid = ?", sims[2].ICCID).Update("estado", model.SimDefectuosa).Error)

	n, err := f.inventario.AssignPlan(context.Background(), "L-1", " r7d ")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, s := range sims[:2] {
		got := f.sim(t, s.ICCID)
		assert.Equal(t, model.SimRecargada, got.Estado)
		require.NotNil(t, got.PlanAsignado)
		assert.Equal(t, "R7D", *got.PlanAsignado)
	}
	def := f.sim(t, sims[2].ICCID)
	assert.Equal(t, model.SimDefectuosa, def.Estado)
	require.NotNil(t, def.PlanAsignado)

	_, err = f.inventario.AssignPlan(context.Background(), "NOPE", "R7D")
	requireCode(t, err, domainerr.CodeNotFound)
}

// ── Resolution ────────────────────────────────────────────────────────────────

func TestResolve_KeysPointingToDifferentUnitsAreAmbiguous(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 2, "")

	_, err := f.inventario.Resolve(context.Background(), model.CandidatoSim{
		ICCID:  sims[0].ICCID,
		MSISDN: sims[1].NumeroLinea,
	})
	requireCode(t, err, domainerr.CodeAmbiguous)
}

func TestResolve_KeyThatFindsNothingIsSkipped(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 2, "")

	got, err := f.inventario.Resolve(context.Background(), model.CandidatoSim{
		ICCID:  "0000000000000000000",
		MSISDN: sims[1].NumeroLinea,
	})
	require.NoError(t, err)
	assert.Equal(t, sims[1].ICCID, got.ICCID)
}

func TestResolve_AgreeingKeys(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 2, "")
	id := uuid.MustParse(sims[0].ID)

	got, err := f.inventario.Resolve(context.Background(), model.CandidatoSim{
		ID: &id, ICCID: sims[0].ICCID, MSISDN: sims[0].NumeroLinea,
	})
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
}

func TestResolve_NumberWithCountryPrefix(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "")

	got, err := f.inventario.Resolve(context.Background(), model.CandidatoSim{MSISDN: "+57 " + sims[0].NumeroLinea})
	require.NoError(t, err)
	assert.Equal(t, sims[0].ICCID, got.ICCID)
}

func TestResolve_EmptyAndUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.inventario.Resolve(context.Background(), model.CandidatoSim{})
	requireCode(t, err, domainerr.CodeValidation)

	_, err = f.inventario.Resolve(context.Background(), model.CandidatoSim{ICCID: "8957100000000000000"})
	requireCode(t, err, domainerr.CodeNotFound)
}

// ── MarkSoldTx / RemoveUnit ───────────────────────────────────────────────────

func TestMarkSoldTx_SecondSaleIsStateError(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "R7D")
	c := model.CandidatoSim{ICCID: sims[0].ICCID}
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ventaID := uuid.New()

	err := f.db.Transaction(func(tx *gorm.DB) error {
		sold, err := f.inventario.MarkSoldTx(tx, c, ventaID, at)
		if err != nil {
			return err
		}
		assert.Equal(t, model.SimVendida, sold.Estado)
		return nil
	})
	require.NoError(t, err)

	got := f.sim(t, sims[0].ICCID)
	assert.Equal(t, model.SimVendida, got.Estado)
	assert.True(t, got.Vendida)
	require.NotNil(t, got.VentaID)
	assert.Equal(t, ventaID, *got.VentaID)
	require.NotNil(t, got.FechaVenta)

	err = f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.inventario.MarkSoldTx(tx, c, uuid.New(), at)
		return err
	})
	requireCode(t, err, domainerr.CodeState)
	assert.Equal(t, ventaID, *f.sim(t, sims[0].ICCID).VentaID, "the first sale keeps the unit")
}

func TestRemoveUnit_SoldUnitNeedsForce(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 2, "")
	require.NoError(t, f.db.Model(&model.SimDetalle{}).
		Where("iccid = ?", sims[0].ICCID).Update("estado", model.SimVendida).Error)
	c := model.CandidatoSim{ICCID: sims[0].ICCID}

	requireCode(t, f.inventario.RemoveUnit(context.Background(), c, false), domainerr.CodeConflict)
	require.NoError(t, f.inventario.RemoveUnit(context.Background(), c, true))
	require.NoError(t, f.inventario.RemoveUnit(context.Background(), model.CandidatoSim{ICCID: sims[1].ICCID}, false))

	var n int64
	require.NoError(t, f.db.Model(&model.SimDetalle{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestPlanesDisponibles_FlagsLowStock(t *testing.T) {
	f := newFixture(t)
	f.seedLote(t, "L-7", 1, 6, "R7D")
	f.seedLote(t, "L-30", 50, 2, "R30D")

	planes, err := f.inventario.PlanesDisponibles(context.Background())
	require.NoError(t, err)

	byPlan := map[string]dto.PlanDisponibleResponse{}
	for _, p := range planes {
		byPlan[p.Plan] = p
	}
	assert.Equal(t, 6, byPlan["R7D"].Cantidad)
	assert.False(t, byPlan["R7D"].StockBajo)
	assert.Equal(t, 2, byPlan["R30D"].Cantidad)
	assert.True(t, byPlan["R30D"].StockBajo)
}

func TestHistorial_ListsTransitionsOldestFirst(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "R7D")
	f.openTurno(t)
	venta := f.sellSIM(t, sims[0].ICCID, "R7D", 10000, "cash")

	h, err := f.inventario.Historial(context.Background(), model.CandidatoSim{ICCID: sims[0].ICCID})
	require.NoError(t, err)
	assert.Equal(t, sims[0].ICCID, h.Sim.ICCID)
	require.Len(t, h.Movimientos, 2)
	assert.Equal(t, "alta", h.Movimientos[0].Tipo)
	assert.Equal(t, "venta", h.Movimientos[1].Tipo)
	assert.Equal(t, string(model.SimVendida), h.Movimientos[1].EstadoNuevo)
	require.NotNil(t, h.Movimientos[1].ReferenciaID)
	assert.Equal(t, venta.ID, *h.Movimientos[1].ReferenciaID)

	_, err = f.inventario.Historial(context.Background(), model.CandidatoSim{ICCID: "0000"})
	requireCode(t, err, domainerr.CodeNotFound)
}

func TestAsDomain(t *testing.T) {
	assert.NoError(t, asDomain(nil, "x"))

	state := domainerr.State("vendida")
	assert.Same(t, state, asDomain(state, "x"))

	requireCode(t, asDomain(gorm.ErrRecordNotFound, "buscar sim"), domainerr.CodeNotFound)

	boom := errors.New("conn reset")
	err := asDomain(boom, "recargar 100% del lote")
	requireCode(t, err, domainerr.CodeInternal)
	assert.ErrorIs(t, err, boom)
	var de *domainerr.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "recargar 100% del lote", de.Message)
}
