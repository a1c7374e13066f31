package repository

import (
	"context"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VentaFilter narrows List. Zero values mean "no filter".
type VentaFilter struct {
	Desde  *time.Time
	Hasta  *time.Time
	Estado model.EstadoVenta
	Page   int
	Limit  int
}

type VentaRepository interface {
	Create(ctx context.Context, tx *gorm.DB, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	// FindByIDTx locks the sale row for the returns flow.
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	// AnularTx flips activa → anulada; it affects zero rows when the sale was
	// already annulled, which is reported as ok=false.
	AnularTx(tx *gorm.DB, id uuid.UUID) (ok bool, err error)
	SetSiigoInvoiceID(ctx context.Context, id uuid.UUID, invoiceID string) error
	List(ctx context.Context, filter VentaFilter) ([]model.Venta, int64, error)
	FindByICCID(ctx context.Context, iccid string) ([]model.Venta, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) DB() *gorm.DB { return r.db }

func (r *ventaRepo) Create(ctx context.Context, tx *gorm.DB, v *model.Venta) error {
	return tx.WithContext(ctx).Create(v).Error
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).First(&v).Error
	return &v, err
}

func (r *ventaRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&v).Error
	if err != nil {
		return &v, err
	}
	err = tx.Where("venta_id = ?", id).Find(&v.Items).Error
	return &v, err
}

func (r *ventaRepo) AnularTx(tx *gorm.DB, id uuid.UUID) (bool, error) {
	res := tx.Model(&model.Venta{}).
		Where("id = ? AND estado = ?", id, model.VentaActiva).
		Update("estado", model.VentaAnulada)
	return res.RowsAffected == 1, res.Error
}

func (r *ventaRepo) SetSiigoInvoiceID(ctx context.Context, id uuid.UUID, invoiceID string) error {
	return r.db.WithContext(ctx).Model(&model.Venta{}).Where("id = ?", id).Update("siigo_invoice_id", invoiceID).Error
}

func (r *ventaRepo) List(ctx context.Context, filter VentaFilter) ([]model.Venta, int64, error) {
	var ventas []model.Venta
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Venta{})
	if filter.Estado != "" {
		q = q.Where("estado = ?", filter.Estado)
	}
	if filter.Desde != nil {
		q = q.Where("created_at >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		q = q.Where("created_at < ?", *filter.Hasta)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := pageLimit(filter.Page, filter.Limit, 50)
	err := q.Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&ventas).Error

	return ventas, total, err
}

func (r *ventaRepo) FindByICCID(ctx context.Context, iccid string) ([]model.Venta, error) {
	var ventas []model.Venta
	sub := r.db.Model(&model.VentaItem{}).Select("venta_id").Where("iccid = ?", iccid)
	err := r.db.WithContext(ctx).Preload("Items").
		Where("id IN (?) OR id IN (?)", sub,
			r.db.Model(&model.SimDetalle{}).Select("venta_id").Where("iccid = ? AND venta_id IS NOT NULL", iccid)).
		Order("created_at DESC").
		Find(&ventas).Error
	return ventas, err
}

// pageLimit normalises pagination parameters.
func pageLimit(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = def
	}
	return page, limit
}
