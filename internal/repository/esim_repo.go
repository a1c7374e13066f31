package repository

import (
	"context"
	"strings"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ESimFilter struct {
	Estado model.ESimEstado
	Q      string
	Page   int
	Limit  int
}

type ESimRepository interface {
	DB() *gorm.DB
	Create(ctx context.Context, e *model.ESim) error
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.ESim, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.ESim, error)
	UpdateTx(tx *gorm.DB, e *model.ESim) error
	List(ctx context.Context, f ESimFilter) ([]model.ESim, int64, error)
	CountByEstado(ctx context.Context) (map[model.ESimEstado]int64, error)
	// VencerVendidas moves every vendida eSIM whose expiry is before now to vencida.
	VencerVendidas(ctx context.Context, now time.Time) (int64, error)
	// PorVencer lists vendida eSIMs expiring in [now, hasta).
	PorVencer(ctx context.Context, now, hasta time.Time) ([]model.ESim, error)
}

type esimRepo struct{ db *gorm.DB }

func NewESimRepository(db *gorm.DB) ESimRepository { return &esimRepo{db: db} }

func (r *esimRepo) DB() *gorm.DB { return r.db }

func (r *esimRepo) Create(ctx context.Context, e *model.ESim) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *esimRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.ESim, error) {
	var e model.ESim
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&e).Error
	return &e, err
}

func (r *esimRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.ESim, error) {
	var e model.ESim
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error
	return &e, err
}

func (r *esimRepo) UpdateTx(tx *gorm.DB, e *model.ESim) error {
	return tx.Save(e).Error
}

func (r *esimRepo) List(ctx context.Context, f ESimFilter) ([]model.ESim, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.ESim{})
	if f.Estado != "" {
		q = q.Where("estado = ?", f.Estado)
	}
	if term := strings.TrimSpace(f.Q); term != "" {
		like := "%" + term + "%"
		q = q.Where("(iccid LIKE ? OR numero_telefono LIKE ?)", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit := pageLimit(f.Page, f.Limit, 50)
	var out []model.ESim
	err := q.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&out).Error
	return out, total, err
}

func (r *esimRepo) CountByEstado(ctx context.Context) (map[model.ESimEstado]int64, error) {
	var rows []struct {
		Estado   model.ESimEstado
		Cantidad int64
	}
	err := r.db.WithContext(ctx).Model(&model.ESim{}).
		Select("estado, COUNT(*) AS cantidad").
		Group("estado").
		Scan(&rows).Error
	out := make(map[model.ESimEstado]int64, len(rows))
	for _, row := range rows {
		out[row.Estado] = row.Cantidad
	}
	return out, err
}

func (r *esimRepo) VencerVendidas(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.ESim{}).
		Where("estado = ? AND fecha_vencimiento IS NOT NULL AND fecha_vencimiento < ?", model.ESimVendida, now).
		Updates(map[string]any{"estado": model.ESimVencida, "updated_at": now})
	return res.RowsAffected, res.Error
}

func (r *esimRepo) PorVencer(ctx context.Context, now, hasta time.Time) ([]model.ESim, error) {
	var out []model.ESim
	err := r.db.WithContext(ctx).
		Where("estado = ? AND fecha_vencimiento >= ? AND fecha_vencimiento < ?", model.ESimVendida, now, hasta).
		Order("fecha_vencimiento ASC").
		Find(&out).Error
	return out, err
}
