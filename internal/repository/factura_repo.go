package repository

import (
	"context"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type FacturaRepository interface {
	// CreateIfAbsent inserts a pendiente factura for the sale unless one exists.
	CreateIfAbsent(ctx context.Context, f *model.Factura) error
	FindByVentaID(ctx context.Context, ventaID uuid.UUID) (*model.Factura, error)
	Update(ctx context.Context, f *model.Factura) error
	// FindPendientesRetry returns pendiente facturas whose next_retry_at is due.
	FindPendientesRetry(ctx context.Context, now time.Time, limit int) ([]model.Factura, error)
}

type facturaRepo struct{ db *gorm.DB }

func NewFacturaRepository(db *gorm.DB) FacturaRepository { return &facturaRepo{db: db} }

func (r *facturaRepo) CreateIfAbsent(ctx context.Context, f *model.Factura) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "venta_id"}}, DoNothing: true}).
		Create(f).Error
	if err != nil {
		return err
	}
	// a fresh value: First would also filter on f's own (unsaved) primary key
	var stored model.Factura
	if err := r.db.WithContext(ctx).Where("venta_id = ?", f.VentaID).First(&stored).Error; err != nil {
		return err
	}
	*f = stored
	return nil
}

func (r *facturaRepo) FindByVentaID(ctx context.Context, ventaID uuid.UUID) (*model.Factura, error) {
	var f model.Factura
	err := r.db.WithContext(ctx).Where("venta_id = ?", ventaID).First(&f).Error
	return &f, err
}

func (r *facturaRepo) Update(ctx context.Context, f *model.Factura) error {
	return r.db.WithContext(ctx).Save(f).Error
}

func (r *facturaRepo) FindPendientesRetry(ctx context.Context, now time.Time, limit int) ([]model.Factura, error) {
	var out []model.Factura
	err := r.db.WithContext(ctx).
		Where("estado = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.FacturaPendiente, now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
