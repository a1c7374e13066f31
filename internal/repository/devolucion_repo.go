package repository

import (
	"context"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DevolucionRepository interface {
	CreateTx(tx *gorm.DB, d *model.DevolucionSim) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.DevolucionSim, error)
	List(ctx context.Context, page, limit int) ([]model.DevolucionSim, int64, error)
}

type devolucionRepo struct{ db *gorm.DB }

func NewDevolucionRepository(db *gorm.DB) DevolucionRepository { return &devolucionRepo{db: db} }

func (r *devolucionRepo) CreateTx(tx *gorm.DB, d *model.DevolucionSim) error {
	return tx.Create(d).Error
}

func (r *devolucionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.DevolucionSim, error) {
	var d model.DevolucionSim
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&d).Error
	return &d, err
}

func (r *devolucionRepo) List(ctx context.Context, page, limit int) ([]model.DevolucionSim, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.DevolucionSim{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit = pageLimit(page, limit, 50)
	var out []model.DevolucionSim
	err := q.Order("fecha_devolucion DESC").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, err
}
