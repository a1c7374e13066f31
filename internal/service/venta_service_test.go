package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSale_RequiresOpenTurno(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "R7D")
	iccid := sims[0].ICCID

	_, err := f.ventas.RecordSale(context.Background(), f.usuarioID, dto.RegistrarVentaRequest{
		MetodoPago: "cash",
		Items:      []dto.ItemVentaRequest{{ProductCode: "R7D", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(10000), ICCID: &iccid}},
	})
	requireCode(t, err, domainerr.CodePrecondition)

	var n int64
	require.NoError(t, f.db.Model(&model.Venta{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Equal(t, model.SimRecargada, f.sim(t, iccid).Estado)
}

func TestRecordSale_LinksUnitAndWritesCashMovement(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "R7D")
	turno := f.openTurno(t)

	resp := f.sellSIM(t, sims[0].ICCID, "R7D", 10000, "efectivo")
	assert.Equal(t, turno.ID, resp.TurnoID)
	assert.Equal(t, string(model.MetodoEfectivo), resp.MetodoPago)
	assert.Equal(t, string(model.VentaActiva), resp.Estado)
	assert.Empty(t, resp.SimsNoVinculadas)
	assert.False(t, resp.EnviadaFacturacion)
	requireDecimal(t, 10000, resp.Total)

	got := f.sim(t, sims[0].ICCID)
	assert.Equal(t, model.SimVendida, got.Estado)
	require.NotNil(t, got.VentaID)
	assert.Equal(t, resp.ID, got.VentaID.String())

	totales, err := f.caja.SumByMethod(context.Background(), uuid.MustParse(turno.ID))
	require.NoError(t, err)
	requireDecimal(t, 10000, totales.Efectivo)
	requireDecimal(t, 0, totales.Tarjeta)
}

func TestRecordSale_TotalIsSumOfLines(t *testing.T) {
	f := newFixture(t)
	f.openTurno(t)

	resp, err := f.ventas.RecordSale(context.Background(), f.usuarioID, dto.RegistrarVentaRequest{
		MetodoPago: "card",
		Items: []dto.ItemVentaRequest{
			{ProductCode: "CHIP", Cantidad: 3, PrecioUnitario: decimal.NewFromInt(2500)},
			{ProductCode: "FUNDA", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(8000)},
		},
	})
	require.NoError(t, err)
	requireDecimal(t, 15500, resp.Total)
	require.Len(t, resp.Items, 2)
	requireDecimal(t, 7500, resp.Items[0].Subtotal)
	assert.Equal(t, "CHIP", resp.Items[0].Descripcion, "description defaults to the product code")
}

func TestRecordSale_UnitThatCannotBeLinkedIsReported(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 1, "R7D")
	f.openTurno(t)
	f.sellSIM(t, sims[0].ICCID, "R7D", 10000, "cash")

	unknown := "8957109999999999999"
	sold := sims[0].ICCID
	resp, err := f.ventas.RecordSale(context.Background(), f.usuarioID, dto.RegistrarVentaRequest{
		MetodoPago: "cash",
		Items: []dto.ItemVentaRequest{
			{ProductCode: "R7D", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(10000), ICCID: &sold},
			{ProductCode: "R7D", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(10000), ICCID: &unknown},
		},
	})
	require.NoError(t, err, "a unit that cannot be linked must not abort the sale")
	assert.ElementsMatch(t, []string{sold, unknown}, resp.SimsNoVinculadas)
	requireDecimal(t, 20000, resp.Total)

	stored, err := f.ventas.Get(context.Background(), uuid.MustParse(resp.ID))
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}

func TestRecordSale_ElectronicPaymentQueuesInvoice(t *testing.T) {
	f := newFixture(t)
	f.openTurno(t)
	item := dto.ItemVentaRequest{ProductCode: "R30D", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(30000)}

	resp, err := f.ventas.RecordSale(context.Background(), f.usuarioID, dto.RegistrarVentaRequest{
		MetodoPago: "transferencia",
		Items:      []dto.ItemVentaRequest{item},
	})
	require.NoError(t, err)
	assert.True(t, resp.EnviadaFacturacion)
	require.Len(t, f.dispatcher.facturacion, 1)
	assert.Equal(t, resp.ID, f.dispatcher.facturacion[0].VentaID)

	invoice := "FV-1-100"
	resp, err = f.ventas.RecordSale(context.Background(), f.usuarioID, dto.RegistrarVentaRequest{
		MetodoPago:     "electronic",
		SiigoInvoiceID: &invoice,
		Items:          []dto.ItemVentaRequest{item},
	})
	require.NoError(t, err)
	assert.False(t, resp.EnviadaFacturacion)
	assert.Len(t, f.dispatcher.facturacion, 1, "an invoiced sale is not queued again")
}

func TestRecordSale_QueueFailureKeepsTheSale(t *testing.T) {
	f := newFixture(t)
	f.openTurno(t)
	f.dispatcher.err = errors.New("redis down")

	resp, err := f.ventas.RecordSale(context.Background(), f.usuarioID, dto.RegistrarVentaRequest{
		MetodoPago: "electronic",
		Items:      []dto.ItemVentaRequest{{ProductCode: "R7D", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(10000)}},
	})
	require.NoError(t, err)
	assert.False(t, resp.EnviadaFacturacion)
}

func TestRecordSale_Validation(t *testing.T) {
	f := newFixture(t)
	f.openTurno(t)
	iccid := "8957101111111111111"
	badID := "not-a-uuid"

	cases := []struct {
		name string
		req  dto.RegistrarVentaRequest
	}{
		{"unknown method", dto.RegistrarVentaRequest{MetodoPago: "bitcoin", Items: []dto.ItemVentaRequest{{ProductCode: "X", Cantidad: 1}}}},
		{"no items", dto.RegistrarVentaRequest{MetodoPago: "cash"}},
		{"zero quantity", dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{{ProductCode: "X", Cantidad: 0}}}},
		{"negative price", dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{{ProductCode: "X", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(-1)}}}},
		{"sub-cent price", dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{{ProductCode: "X", Cantidad: 1, PrecioUnitario: decimal.RequireFromString("1000.005")}}}},
		{"sim line with quantity", dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{{ProductCode: "R7D", Cantidad: 2, ICCID: &iccid}}}},
		{"bad sim id", dto.RegistrarVentaRequest{Items: []dto.ItemVentaRequest{{ProductCode: "R7D", Cantidad: 1, SimID: &badID}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ventas.RecordSale(context.Background(), f.usuarioID, tc.req)
			requireCode(t, err, domainerr.CodeValidation)
		})
	}
}

func TestVentaQueries(t *testing.T) {
	f := newFixture(t)
	sims := f.seedLote(t, "L-1", 1, 2, "R7D")
	f.openTurno(t)
	first := f.sellSIM(t, sims[0].ICCID, "R7D", 10000, "cash")
	f.sellSIM(t, sims[1].ICCID, "R7D", 10000, "card")

	list, err := f.ventas.List(context.Background(), dto.VentaFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, 1, list.Page)

	_, err = f.ventas.List(context.Background(), dto.VentaFilter{Estado: "borrada"})
	requireCode(t, err, domainerr.CodeValidation)
	_, err = f.ventas.List(context.Background(), dto.VentaFilter{Desde: "01/02/2026"})
	requireCode(t, err, domainerr.CodeValidation)

	byICCID, err := f.ventas.FindByICCID(context.Background(), sims[0].ICCID)
	require.NoError(t, err)
	require.Len(t, byICCID, 1)
	assert.Equal(t, first.ID, byICCID[0].ID)

	_, err = f.ventas.Get(context.Background(), uuid.New())
	requireCode(t, err, domainerr.CodeNotFound)
}
