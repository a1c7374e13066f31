package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/infra"
	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWinred answers Topup with the function configured per subscriber.
type fakeWinred struct {
	mu       sync.Mutex
	calls    []infra.TopupData
	topup    func(n int, d infra.TopupData) (*infra.WinredResponse, error)
	packages []infra.WinredPackage
	queryTx  *infra.WinredResponse
}

var _ WinredAPI = (*fakeWinred)(nil)

func (w *fakeWinred) Topup(_ context.Context, d infra.TopupData) (*infra.WinredResponse, error) {
	w.mu.Lock()
	w.calls = append(w.calls, d)
	n := 0
	for _, c := range w.calls {
		if c.Suscriber == d.Suscriber {
			n++
		}
	}
	w.mu.Unlock()
	if w.topup == nil {
		return winredOK("req-" + d.Suscriber), nil
	}
	return w.topup(n, d)
}

func (w *fakeWinred) QueryTx(_ context.Context, _ string) (*infra.WinredResponse, error) {
	if w.queryTx == nil {
		return nil, errors.New("not configured")
	}
	return w.queryTx, nil
}

func (w *fakeWinred) QueryPackages(_ context.Context, _ string) ([]infra.WinredPackage, error) {
	return w.packages, nil
}

func winredOK(requestID string) *infra.WinredResponse {
	return &infra.WinredResponse{Result: &infra.WinredResult{Success: true, Message: "Transacción exitosa"}, RequestID: requestID}
}

func winredRejected(msg string) *infra.WinredResponse {
	return &infra.WinredResponse{Result: &infra.WinredResult{Success: false, Message: msg}}
}

func newRecargaService(t *testing.T, f *fixture, w *fakeWinred, cfg RecargaConfig) *recargaService {
	t.Helper()
	svc := NewRecargaService(w, f.sims, f.planes, f.inventario, nil, cfg).(*recargaService)
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	return svc
}

func seedHomologacion(t *testing.T, f *fixture) {
	t.Helper()
	require.NoError(t, f.planes.Upsert(context.Background(), &model.PlanHomologacion{
		WinredProductID: "1163",
		Operador:        "CLARO",
		NombreWinred:    "RECARGA / 7 DIAS / CLARO",
		SiigoCode:       "R7D",
		Activo:          true,
	}))
}

func TestTopUp_StampsUnitWithHomologatedPlan(t *testing.T) {
	f := newFixture(t)
	seedHomologacion(t, f)
	sims := f.seedLote(t, "L-1", 1, 1, "")
	w := &fakeWinred{}
	svc := newRecargaService(t, f, w, RecargaConfig{})

	resp, err := svc.TopUp(context.Background(), dto.RecargaRequest{
		SimRefRequest: dto.SimRefRequest{NumeroLinea: "57" + sims[0].NumeroLinea},
		ProductID:     "1163",
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, "R7D", *resp.Plan)
	assert.Equal(t, "req-"+sims[0].NumeroLinea, resp.RequestID)

	require.Len(t, w.calls, 1)
	assert.Equal(t, sims[0].NumeroLinea, w.calls[0].Suscriber)
	assert.Equal(t, "0", w.calls[0].Amount)
	assert.Equal(t, "S", w.calls[0].SellFrom)

	got := f.sim(t, sims[0].ICCID)
	assert.Equal(t, model.SimRecargada, got.Estado)
	require.NotNil(t, got.WinredProductID)
	assert.Equal(t, "1163", *got.WinredProductID)
	require.NotNil(t, got.PlanAsignado)
	assert.Equal(t, "R7D", *got.PlanAsignado)
	assert.NotNil(t, got.FechaUltimaRecarga)
}

func TestTopUp_ProductWithoutHomologationKeepsPlan(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "R30D")
	svc := newRecargaService(t, f, &fakeWinred{}, RecargaConfig{})

	resp, err := svc.TopUp(context.Background(), dto.RecargaRequest{
		SimRefRequest: dto.SimRefRequest{ICCID: sims[0].ICCID},
		ProductID:     "9999",
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Plan)
	assert.Equal(t, "R30D", *f.sim(t, sims[0].ICCID).PlanAsignado)
}

func TestTopUp_RejectionLeavesUnitUntouched(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "")
	w := &fakeWinred{topup: func(int, infra.TopupData) (*infra.WinredResponse, error) {
		return winredRejected("Saldo insuficiente"), nil
	}}
	svc := newRecargaService(t, f, w, RecargaConfig{})

	_, err := svc.TopUp(context.Background(), dto.RecargaRequest{
		SimRefRequest: dto.SimRefRequest{ICCID: sims[0].ICCID},
		ProductID:     "1163",
	})
	requireCode(t, err, domainerr.CodeExternal)
	assert.Contains(t, err.Error(), "Saldo insuficiente")
	assert.Len(t, w.calls, 1, "a single top-up is never retried")

	got := f.sim(t, sims[0].ICCID)
	assert.Equal(t, model.SimDisponible, got.Estado)
	assert.Nil(t, got.WinredProductID)
}

func TestTopUp_SoldUnitIsNotSentToProvider(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "R7D")
	f.openTurno(t)
	f.sellSIM(t, sims[0].ICCID, "R7D", 10000, "cash")
	w := &fakeWinred{}
	svc := newRecargaService(t, f, w, RecargaConfig{})

	_, err := svc.TopUp(context.Background(), dto.RecargaRequest{
		SimRefRequest: dto.SimRefRequest{ICCID: sims[0].ICCID},
		ProductID:     "1163",
	})
	requireCode(t, err, domainerr.CodeState)
	assert.Empty(t, w.calls)
}

func TestTopUp_Validation(t *testing.T) {
	f := newFixture(t)
	svc := newRecargaService(t, f, &fakeWinred{}, RecargaConfig{})

	_, err := svc.TopUp(context.Background(), dto.RecargaRequest{ProductID: "1163"})
	requireCode(t, err, domainerr.CodeValidation)

	_, err = svc.TopUp(context.Background(), dto.RecargaRequest{SimRefRequest: dto.SimRefRequest{ICCID: "8957100000000000001"}})
	requireCode(t, err, domainerr.CodeValidation)
}

func TestTopUpBatch_PartialSuccessWithRetries(t *testing.T) {
	f := newFixture(t)
	seedHomologacion(t, f)
	sims := f.seedLote(t, "L-1", 1, 4, "")
	require.NoError(t, f.db.Model(&model.SimDetalle{}).
		Where("iccid = ?", sims[3].ICCID).Update("estado", model.SimDefectuosa).Error)

	w := &fakeWinred{topup: func(n int, d infra.TopupData) (*infra.WinredResponse, error) {
		switch d.Suscriber {
		case sims[1].NumeroLinea:
			if n == 1 {
				return nil, &infra.WinredHTTPError{Status: 503, Body: "unavailable"}
			}
			if n == 2 {
				return winredRejected("Firma inválida"), nil
			}
		case sims[2].NumeroLinea:
			return winredRejected("Número no pertenece al operador"), nil
		}
		return winredOK("req-" + d.Suscriber), nil
	}}
	svc := newRecargaService(t, f, w, RecargaConfig{MaxAttempts: 3})

	var eventos []dto.EventoProgreso
	resp, err := svc.TopUpBatch(context.Background(), dto.RecargaLoteRequest{LoteID: "L-1", ProductID: "1163"},
		func(e dto.EventoProgreso) { eventos = append(eventos, e) })
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Total, "defective units are skipped")
	require.Len(t, resp.Successful, 2)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, sims[0].ICCID, resp.Successful[0].ICCID)
	assert.Equal(t, 1, resp.Successful[0].Intentos)
	assert.Equal(t, sims[1].ICCID, resp.Successful[1].ICCID)
	assert.Equal(t, 3, resp.Successful[1].Intentos)
	assert.Equal(t, sims[2].ICCID, resp.Failed[0].ICCID)
	assert.Equal(t, 1, resp.Failed[0].Intentos, "a business rejection is not retried")

	require.NotNil(t, resp.PlanAsignado)
	assert.Equal(t, "R7D", *resp.PlanAsignado)
	lote, err := f.sims.FindLote(context.Background(), "L-1")
	require.NoError(t, err)
	require.NotNil(t, lote.PlanAsignado)
	assert.Equal(t, "R7D", *lote.PlanAsignado)

	assert.Equal(t, model.SimRecargada, f.sim(t, sims[1].ICCID).Estado)
	assert.Equal(t, model.SimDisponible, f.sim(t, sims[2].ICCID).Estado)

	require.NotEmpty(t, eventos)
	assert.Equal(t, dto.EventoInicio, eventos[0].Tipo)
	last := eventos[len(eventos)-1]
	assert.Equal(t, dto.EventoCompleto, last.Tipo)
	assert.Same(t, resp, last.Resultado)
}

func TestTopUpBatch_RetriesAreBounded(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "")
	w := &fakeWinred{topup: func(int, infra.TopupData) (*infra.WinredResponse, error) {
		return nil, &infra.WinredHTTPError{Status: 502, Body: "bad gateway"}
	}}
	svc := newRecargaService(t, f, w, RecargaConfig{MaxAttempts: 2})

	resp, err := svc.TopUpBatch(context.Background(), dto.RecargaLoteRequest{LoteID: "L-1", ProductID: "1163"}, nil)
	require.NoError(t, err)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, 2, resp.Failed[0].Intentos)
	assert.Len(t, w.calls, 2)
	assert.Nil(t, resp.PlanAsignado)
	assert.Equal(t, model.SimDisponible, f.sim(t, sims[0].ICCID).Estado)
}

func TestTopUp_ChargedLineIsRecordedAfterClientLeaves(t *testing.T) {
	f := newFixture(t)
	seedHomologacion(t, f)
	sims := f.seedLote(t, "L-1", 1, 1, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &fakeWinred{topup: func(_ int, d infra.TopupData) (*infra.WinredResponse, error) {
		cancel()
		return winredOK("req-" + d.Suscriber), nil
	}}
	svc := newRecargaService(t, f, w, RecargaConfig{MaxAttempts: 3})

	resp, err := svc.TopUp(ctx, dto.RecargaRequest{SimRefRequest: dto.SimRefRequest{ICCID: sims[0].ICCID}, ProductID: "1163"})
	require.NoError(t, err)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, "R7D", *resp.Plan)

	sim := f.sim(t, sims[0].ICCID)
	assert.Equal(t, model.SimRecargada, sim.Estado)
	require.NotNil(t, sim.PlanAsignado)
	assert.Equal(t, "R7D", *sim.PlanAsignado)
}

func TestTopUpBatch_RunsToTheEndAfterClientLeaves(t *testing.T) {
	f := newFixture(t)
	seedHomologacion(t, f)
	sims := f.seedLote(t, "L-1", 1, 2, "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &fakeWinred{topup: func(_ int, d infra.TopupData) (*infra.WinredResponse, error) {
		cancel()
		return winredOK("req-" + d.Suscriber), nil
	}}
	svc := newRecargaService(t, f, w, RecargaConfig{MaxAttempts: 3})

	resp, err := svc.TopUpBatch(ctx, dto.RecargaLoteRequest{LoteID: "L-1", ProductID: "1163"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Successful, 2)
	assert.Empty(t, resp.Failed)
	assert.Len(t, w.calls, 2)
	for _, s := range sims {
		assert.Equal(t, model.SimRecargada, f.sim(t, s.ICCID).Estado)
	}
	require.NotNil(t, resp.PlanAsignado)
	assert.Equal(t, "R7D", *resp.PlanAsignado)
}

func TestTopUpBatch_UnknownLote(t *testing.T) {
	f := newFixture(t)
	svc := newRecargaService(t, f, &fakeWinred{}, RecargaConfig{})

	_, err := svc.TopUpBatch(context.Background(), dto.RecargaLoteRequest{LoteID: "NOPE", ProductID: "1163"}, nil)
	requireCode(t, err, domainerr.CodeNotFound)
}

func TestPackages_FiltersAndSortsByPrice(t *testing.T) {
	f := newFixture(t)
	w := &fakeWinred{packages: []infra.WinredPackage{
		{ProductID: "1189", Name: "30 dias", Price: "30000"},
		{ProductID: "1163", Name: "7 dias", Price: "10000"},
		{ProductID: "5000", Name: "otro", Price: "1000"},
		{ProductID: "1188", Name: "15 dias", Price: "18000"},
	}}
	svc := newRecargaService(t, f, w, RecargaConfig{AllowedIDs: []string{"1163", "1188", "1189"}})

	pkgs, err := svc.Packages(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, pkgs, 3)
	assert.Equal(t, "1163", pkgs[0].ProductID)
	assert.Equal(t, "1188", pkgs[1].ProductID)
	assert.Equal(t, "1189", pkgs[2].ProductID)
}

func TestBalance(t *testing.T) {
	f := newFixture(t)
	ok := true
	w := &fakeWinred{queryTx: &infra.WinredResponse{Success: &ok, Message: "ok", Data: []byte(`{"saldo":"15000"}`)}}

	svc := newRecargaService(t, f, w, RecargaConfig{})
	_, err := svc.Balance(context.Background(), "")
	requireCode(t, err, domainerr.CodeValidation)

	svc = newRecargaService(t, f, w, RecargaConfig{ProbeSubscriber: "3000000000"})
	saldo, err := svc.Balance(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, saldo.OK)
	assert.Equal(t, "3000000000", saldo.Suscriber)
	assert.Equal(t, map[string]any{"saldo": "15000"}, saldo.Data)
}
