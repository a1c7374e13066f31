package repository

import (
	"context"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PuntoSerie is the revenue of one calendar day.
type PuntoSerie struct {
	Dia   time.Time
	Total decimal.Decimal
}

type CajaRepository interface {
	CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error
	ListMovimientos(ctx context.Context, turnoID uuid.UUID) ([]model.MovimientoCaja, error)
	// SumByMetodoTx adds up the venta movements of a turno whose sale is still activa.
	SumByMetodoTx(tx *gorm.DB, turnoID uuid.UUID) (model.TotalesPorMetodo, error)
	// SumByMetodoRango does the same over [desde, hasta) across turnos.
	SumByMetodoRango(ctx context.Context, desde, hasta time.Time) (model.TotalesPorMetodo, error)
	// ItemsVendidosTx returns the line items of activa sales linked to the
	// turno's venta movements.
	ItemsVendidosTx(tx *gorm.DB, turnoID uuid.UUID) ([]model.ItemVendido, error)
	SerieDiaria(ctx context.Context, desde, hasta time.Time) ([]PuntoSerie, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoCaja) error {
	return tx.Create(m).Error
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, turnoID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).Where("turno_id = ?", turnoID).Order("fecha ASC").Find(&movs).Error
	return movs, err
}

type sumaMetodo struct {
	MetodoPago model.MetodoPago
	Total      decimal.Decimal
}

// ventasActivas selects the venta movements whose sale was not annulled.
func ventasActivas(q *gorm.DB) *gorm.DB {
	return q.Table("movimientos_caja AS m").
		Joins("JOIN ventas v ON v.id = m.venta_id").
		Where("m.tipo = ? AND v.estado = ?", model.MovimientoVenta, model.VentaActiva)
}

func acumular(rows []sumaMetodo) model.TotalesPorMetodo {
	var t model.TotalesPorMetodo
	for _, row := range rows {
		t.Sumar(row.MetodoPago, row.Total)
	}
	return t
}

func (r *cajaRepo) SumByMetodoTx(tx *gorm.DB, turnoID uuid.UUID) (model.TotalesPorMetodo, error) {
	var rows []sumaMetodo
	err := ventasActivas(tx).
		Select("m.metodo_pago AS metodo_pago, COALESCE(SUM(m.monto), 0) AS total").
		Where("m.turno_id = ?", turnoID).
		Group("m.metodo_pago").
		Scan(&rows).Error
	return acumular(rows), err
}

func (r *cajaRepo) SumByMetodoRango(ctx context.Context, desde, hasta time.Time) (model.TotalesPorMetodo, error) {
	var rows []sumaMetodo
	err := ventasActivas(r.db.WithContext(ctx)).
		Select("m.metodo_pago AS metodo_pago, COALESCE(SUM(m.monto), 0) AS total").
		Where("m.fecha >= ? AND m.fecha < ?", desde, hasta).
		Group("m.metodo_pago").
		Scan(&rows).Error
	return acumular(rows), err
}

func (r *cajaRepo) ItemsVendidosTx(tx *gorm.DB, turnoID uuid.UUID) ([]model.ItemVendido, error) {
	var items []model.ItemVendido
	err := ventasActivas(tx).
		Joins("JOIN venta_items i ON i.venta_id = v.id").
		Select("i.product_code AS product_code, i.cantidad AS cantidad").
		Where("m.turno_id = ?", turnoID).
		Scan(&items).Error
	return items, err
}

func (r *cajaRepo) SerieDiaria(ctx context.Context, desde, hasta time.Time) ([]PuntoSerie, error) {
	var movs []model.MovimientoCaja
	err := ventasActivas(r.db.WithContext(ctx)).
		Select("m.monto, m.fecha").
		Where("m.fecha >= ? AND m.fecha < ?", desde, hasta).
		Scan(&movs).Error
	if err != nil {
		return nil, err
	}

	// grouped in Go so the day boundary follows the server time zone on both engines
	porDia := make(map[string]decimal.Decimal)
	for _, m := range movs {
		k := m.Fecha.In(desde.Location()).Format("2006-01-02")
		porDia[k] = porDia[k].Add(m.Monto)
	}
	var serie []PuntoSerie
	for d := desde; d.Before(hasta); d = d.AddDate(0, 0, 1) {
		serie = append(serie, PuntoSerie{Dia: d, Total: porDia[d.Format("2006-01-02")]})
	}
	return serie, nil
}
