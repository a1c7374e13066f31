package repository

import (
	"context"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanRepository reads the Winred → Siigo homologation table.
type PlanRepository interface {
	// FindActivo returns the active homologation of a Winred product.
	FindActivo(ctx context.Context, winredProductID string) (*model.PlanHomologacion, error)
	List(ctx context.Context) ([]model.PlanHomologacion, error)
	// Upsert is used by the seed command.
	Upsert(ctx context.Context, p *model.PlanHomologacion) error
}

type planRepo struct{ db *gorm.DB }

func NewPlanRepository(db *gorm.DB) PlanRepository { return &planRepo{db: db} }

func (r *planRepo) FindActivo(ctx context.Context, winredProductID string) (*model.PlanHomologacion, error) {
	var p model.PlanHomologacion
	err := r.db.WithContext(ctx).
		Where("winred_product_id = ? AND activo = ?", winredProductID, true).
		First(&p).Error
	return &p, err
}

func (r *planRepo) List(ctx context.Context) ([]model.PlanHomologacion, error) {
	var out []model.PlanHomologacion
	err := r.db.WithContext(ctx).Order("winred_product_id ASC").Find(&out).Error
	return out, err
}

func (r *planRepo) Upsert(ctx context.Context, p *model.PlanHomologacion) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "winred_product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"operador", "nombre_winred", "siigo_code", "activo"}),
	}).Create(p).Error
}
