package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
	"github.com/Sebas931/Local-sim-main/internal/dto"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func electronicSale(t *testing.T, f *fixture, invoice *string) uuid.UUID {
	t.Helper()
	resp, err := f.ventas.RecordSale(context.Background(), f.usuarioID, dto.RegistrarVentaRequest{
		MetodoPago:     "electronic",
		SiigoInvoiceID: invoice,
		Items:          []dto.ItemVentaRequest{{ProductCode: "R30D", Cantidad: 1, PrecioUnitario: decimal.NewFromInt(30000)}},
	})
	require.NoError(t, err)
	return uuid.MustParse(resp.ID)
}

func TestReintentar(t *testing.T) {
	f := newFixture(t)
	f.openTurno(t)
	facturas := repository.NewFacturaRepository(f.db)
	svc := NewFacturacionService(facturas, f.ventasRepo, f.dispatcher)

	ventaID := electronicSale(t, f, nil)
	require.NoError(t, svc.Reintentar(context.Background(), ventaID))
	require.Len(t, f.dispatcher.facturacion, 2, "the sale itself queued once")
	assert.Equal(t, ventaID.String(), f.dispatcher.facturacion[1].VentaID)

	cash := f.sellSIM(t, f.seedLote(t, "L-1", 1, 1, "R7D")[0].ICCID, "R7D", 10000, "cash")
	err := svc.Reintentar(context.Background(), uuid.MustParse(cash.ID))
	requireCode(t, err, domainerr.CodeValidation)

	invoice := "FV-1-7"
	invoiced := electronicSale(t, f, &invoice)
	err = svc.Reintentar(context.Background(), invoiced)
	requireCode(t, err, domainerr.CodeConflict)

	err = svc.Reintentar(context.Background(), uuid.New())
	requireCode(t, err, domainerr.CodeNotFound)
}

func TestReintentar_QueueUnavailable(t *testing.T) {
	f := newFixture(t)
	f.openTurno(t)
	facturas := repository.NewFacturaRepository(f.db)
	ventaID := electronicSale(t, f, nil)

	err := NewFacturacionService(facturas, f.ventasRepo, nil).Reintentar(context.Background(), ventaID)
	requireCode(t, err, domainerr.CodePrecondition)

	f.dispatcher.err = errors.New("redis down")
	err = NewFacturacionService(facturas, f.ventasRepo, f.dispatcher).Reintentar(context.Background(), ventaID)
	requireCode(t, err, domainerr.CodeExternal)
}

func TestObtenerFactura(t *testing.T) {
	f := newFixture(t)
	f.openTurno(t)
	facturas := repository.NewFacturaRepository(f.db)
	svc := NewFacturacionService(facturas, f.ventasRepo, f.dispatcher)
	ventaID := electronicSale(t, f, nil)

	_, err := svc.ObtenerFactura(context.Background(), ventaID)
	requireCode(t, err, domainerr.CodeNotFound)

	require.NoError(t, facturas.CreateIfAbsent(context.Background(), &model.Factura{
		VentaID:    ventaID,
		MontoTotal: decimal.NewFromInt(30000),
		Estado:     "pendiente",
	}))
	got, err := svc.ObtenerFactura(context.Background(), ventaID)
	require.NoError(t, err)
	assert.Equal(t, ventaID.String(), got.VentaID)
	assert.Equal(t, "pendiente", got.Estado)
	assert.Nil(t, got.Numero)
}
