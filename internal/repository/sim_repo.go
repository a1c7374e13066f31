package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LoteResumen is a batch with its unit counters by state.
type LoteResumen struct {
	model.SimLote
	Total       int
	Disponibles int
	Recargadas  int
	Vendidas    int
	Defectuosas int
}

// SimFilter narrows ListSims. Estados is OR-ed; Q matches ICCID or line number.
type SimFilter struct {
	Estados []model.SimEstado
	LoteID  string
	Q       string
	Limit   int
}

type SimRepository interface {
	DB() *gorm.DB

	CreateLoteTx(tx *gorm.DB, l *model.SimLote) error
	FindLote(ctx context.Context, id string) (*model.SimLote, error)
	// FindLoteTx locks the batch row so concurrent adds cannot exceed its capacity.
	FindLoteTx(tx *gorm.DB, id string) (*model.SimLote, error)
	UpdateLoteTx(tx *gorm.DB, l *model.SimLote) error
	CountByLoteTx(tx *gorm.DB, loteID string) (int64, error)
	ListLotes(ctx context.Context) ([]LoteResumen, error)

	CreateSimTx(tx *gorm.DB, s *model.SimDetalle) error
	ExistingICCIDs(ctx context.Context, iccids []string) ([]string, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.SimDetalle, error)
	FindByICCIDTx(tx *gorm.DB, iccid string) (*model.SimDetalle, error)
	// FindByNumeroTx returns the rows whose line number equals numero, or when
	// none does, the rows ending with sufijo.
	FindByNumeroTx(tx *gorm.DB, numero, sufijo string) ([]model.SimDetalle, error)
	UpdateSimTx(tx *gorm.DB, s *model.SimDetalle) error
	DeleteSimTx(tx *gorm.DB, id uuid.UUID) error
	// AsignarPlanLoteTx stamps plan on the batch and its unsold units; sellable
	// units become recargado.
	AsignarPlanLoteTx(tx *gorm.DB, loteID, plan string) (int64, error)

	ListSims(ctx context.Context, f SimFilter) ([]model.SimDetalle, error)
	ListByLote(ctx context.Context, loteID string) ([]model.SimDetalle, error)
	// CountVendiblesPorPlanTx counts available|recargado units grouped by plan.
	CountVendiblesPorPlanTx(tx *gorm.DB) (map[string]int, error)

	CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoSim) error
	ListMovimientos(ctx context.Context, simID uuid.UUID) ([]model.MovimientoSim, error)
}

type simRepo struct{ db *gorm.DB }

func NewSimRepository(db *gorm.DB) SimRepository { return &simRepo{db: db} }

func (r *simRepo) DB() *gorm.DB { return r.db }

func (r *simRepo) CreateLoteTx(tx *gorm.DB, l *model.SimLote) error {
	return tx.Create(l).Error
}

func (r *simRepo) FindLote(ctx context.Context, id string) (*model.SimLote, error) {
	var l model.SimLote
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&l).Error
	return &l, err
}

func (r *simRepo) FindLoteTx(tx *gorm.DB, id string) (*model.SimLote, error) {
	var l model.SimLote
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&l).Error
	return &l, err
}

func (r *simRepo) UpdateLoteTx(tx *gorm.DB, l *model.SimLote) error {
	return tx.Save(l).Error
}

func (r *simRepo) CountByLoteTx(tx *gorm.DB, loteID string) (int64, error) {
	var n int64
	err := tx.Model(&model.SimDetalle{}).Where("lote_id = ?", loteID).Count(&n).Error
	return n, err
}

func (r *simRepo) ListLotes(ctx context.Context) ([]LoteResumen, error) {
	var lotes []model.SimLote
	if err := r.db.WithContext(ctx).Order("fecha_registro DESC").Find(&lotes).Error; err != nil {
		return nil, err
	}

	var rows []struct {
		LoteID   string
		Estado   model.SimEstado
		Cantidad int
	}
	err := r.db.WithContext(ctx).Model(&model.SimDetalle{}).
		Select("lote_id, estado, COUNT(*) AS cantidad").
		Group("lote_id, estado").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	byLote := make(map[string]*LoteResumen, len(lotes))
	out := make([]LoteResumen, len(lotes))
	for i := range lotes {
		out[i].SimLote = lotes[i]
		byLote[lotes[i].ID] = &out[i]
	}
	for _, row := range rows {
		res, ok := byLote[row.LoteID]
		if !ok {
			continue
		}
		res.Total += row.Cantidad
		switch row.Estado {
		case model.SimDisponible:
			res.Disponibles += row.Cantidad
		case model.SimRecargada:
			res.Recargadas += row.Cantidad
		case model.SimVendida:
			res.Vendidas += row.Cantidad
		case model.SimDefectuosa:
			res.Defectuosas += row.Cantidad
		}
	}
	return out, nil
}

func (r *simRepo) CreateSimTx(tx *gorm.DB, s *model.SimDetalle) error {
	return tx.Create(s).Error
}

func (r *simRepo) ExistingICCIDs(ctx context.Context, iccids []string) ([]string, error) {
	if len(iccids) == 0 {
		return nil, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&model.SimDetalle{}).
		Where("iccid IN ?", iccids).
		Pluck("iccid", &found).Error
	return found, err
}

func (r *simRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.SimDetalle, error) {
	var s model.SimDetalle
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&s).Error
	return &s, err
}

func (r *simRepo) FindByICCIDTx(tx *gorm.DB, iccid string) (*model.SimDetalle, error) {
	var s model.SimDetalle
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("iccid = ?", iccid).First(&s).Error
	return &s, err
}

func (r *simRepo) FindByNumeroTx(tx *gorm.DB, numero, sufijo string) ([]model.SimDetalle, error) {
	var sims []model.SimDetalle
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("numero_linea = ?", numero).Limit(2).Find(&sims).Error
	if err != nil || len(sims) > 0 || sufijo == "" {
		return sims, err
	}
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("numero_linea LIKE ?", "%"+sufijo).Limit(2).Find(&sims).Error
	return sims, err
}

func (r *simRepo) UpdateSimTx(tx *gorm.DB, s *model.SimDetalle) error {
	return tx.Save(s).Error
}

func (r *simRepo) DeleteSimTx(tx *gorm.DB, id uuid.UUID) error {
	res := tx.Where("id = ?", id).Delete(&model.SimDetalle{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *simRepo) AsignarPlanLoteTx(tx *gorm.DB, loteID, plan string) (int64, error) {
	res := tx.Model(&model.SimLote{}).Where("id = ?", loteID).Update("plan_asignado", plan)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}

	vendibles := tx.Model(&model.SimDetalle{}).
		Where("lote_id = ? AND estado IN ?", loteID, []model.SimEstado{model.SimDisponible, model.SimRecargada}).
		Updates(map[string]any{"plan_asignado": plan, "estado": model.SimRecargada})
	if vendibles.Error != nil {
		return 0, vendibles.Error
	}
	// defective units keep their state but carry the plan
	if err := tx.Model(&model.SimDetalle{}).
		Where("lote_id = ? AND estado = ?", loteID, model.SimDefectuosa).
		Update("plan_asignado", plan).Error; err != nil {
		return 0, err
	}
	return vendibles.RowsAffected, nil
}

func (r *simRepo) ListSims(ctx context.Context, f SimFilter) ([]model.SimDetalle, error) {
	q := r.db.WithContext(ctx).Model(&model.SimDetalle{})
	if len(f.Estados) > 0 {
		q = q.Where("estado IN ?", f.Estados)
	}
	if f.LoteID != "" {
		q = q.Where("lote_id = ?", f.LoteID)
	}
	if term := strings.TrimSpace(f.Q); term != "" {
		like := "%" + term + "%"
		q = q.Where("(iccid LIKE ? OR numero_linea LIKE ?)", like, like)
	}
	limit := f.Limit
	if limit < 1 || limit > 500 {
		limit = 100
	}
	var sims []model.SimDetalle
	err := q.Order("fecha_registro DESC").Limit(limit).Find(&sims).Error
	return sims, err
}

func (r *simRepo) ListByLote(ctx context.Context, loteID string) ([]model.SimDetalle, error) {
	var sims []model.SimDetalle
	err := r.db.WithContext(ctx).Where("lote_id = ?", loteID).Order("numero_linea ASC").Find(&sims).Error
	return sims, err
}

func (r *simRepo) CountVendiblesPorPlanTx(tx *gorm.DB) (map[string]int, error) {
	var rows []struct {
		Plan     string
		Cantidad int
	}
	err := tx.Model(&model.SimDetalle{}).
		Select("plan_asignado AS plan, COUNT(*) AS cantidad").
		Where("estado IN ? AND plan_asignado IS NOT NULL", []model.SimEstado{model.SimDisponible, model.SimRecargada}).
		Group("plan_asignado").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Plan] = row.Cantidad
	}
	return out, nil
}

func (r *simRepo) CreateMovimientoTx(tx *gorm.DB, m *model.MovimientoSim) error {
	return tx.Create(m).Error
}

func (r *simRepo) ListMovimientos(ctx context.Context, simID uuid.UUID) ([]model.MovimientoSim, error) {
	var movs []model.MovimientoSim
	err := r.db.WithContext(ctx).Where("sim_id = ?", simID).Order("created_at ASC").Find(&movs).Error
	return movs, err
}

// IsNotFound reports whether err is GORM's record-not-found.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation recognises unique-constraint failures from PostgreSQL and SQLite.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
