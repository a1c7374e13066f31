package repository

import (
	"context"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Descuadre is a closed inventory row with a non-zero closing difference.
type Descuadre struct {
	TurnoID         uuid.UUID
	UsuarioID       uuid.UUID
	Plan            string
	DiferenciaFinal int
	FechaCierre     time.Time
}

type TurnoRepository interface {
	DB() *gorm.DB
	CreateTx(tx *gorm.DB, t *model.Turno) error
	// FindAbiertoTx returns the usuario's open turno locked FOR UPDATE.
	FindAbiertoTx(tx *gorm.DB, usuarioID uuid.UUID) (*model.Turno, error)
	FindAbierto(ctx context.Context, usuarioID uuid.UUID) (*model.Turno, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Turno, error)
	FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Turno, error)
	// CerrarTx flips abierto → cerrado; ok is false when the turno was no longer open.
	CerrarTx(tx *gorm.DB, id uuid.UUID, at time.Time) (ok bool, err error)
	List(ctx context.Context, usuarioID *uuid.UUID, page, limit int) ([]model.Turno, int64, error)
	CountAbiertos(ctx context.Context) (int64, error)

	CreateInventarioTx(tx *gorm.DB, inv *model.InventarioSimTurno) error
	FindInventarioTx(tx *gorm.DB, turnoID uuid.UUID, plan string) (*model.InventarioSimTurno, error)
	UpdateInventarioTx(tx *gorm.DB, inv *model.InventarioSimTurno) error
	ListInventarios(ctx context.Context, turnoID uuid.UUID) ([]model.InventarioSimTurno, error)
	ListInventariosTx(tx *gorm.DB, turnoID uuid.UUID) ([]model.InventarioSimTurno, error)
	ListDescuadres(ctx context.Context, limit int) ([]Descuadre, error)

	CreateCierreTx(tx *gorm.DB, c *model.CierreCaja) error
	FindCierre(ctx context.Context, turnoID uuid.UUID) (*model.CierreCaja, error)
}

type turnoRepo struct{ db *gorm.DB }

func NewTurnoRepository(db *gorm.DB) TurnoRepository { return &turnoRepo{db: db} }

func (r *turnoRepo) DB() *gorm.DB { return r.db }

func (r *turnoRepo) CreateTx(tx *gorm.DB, t *model.Turno) error {
	return tx.Create(t).Error
}

func (r *turnoRepo) FindAbiertoTx(tx *gorm.DB, usuarioID uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("usuario_id = ? AND estado = ?", usuarioID, model.TurnoAbierto).
		First(&t).Error
	return &t, err
}

func (r *turnoRepo) FindAbierto(ctx context.Context, usuarioID uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := r.db.WithContext(ctx).
		Where("usuario_id = ? AND estado = ?", usuarioID, model.TurnoAbierto).
		Preload("Inventarios").
		First(&t).Error
	return &t, err
}

func (r *turnoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := r.db.WithContext(ctx).Preload("Inventarios").Preload("Cierre").Where("id = ?", id).First(&t).Error
	return &t, err
}

func (r *turnoRepo) FindByIDTx(tx *gorm.DB, id uuid.UUID) (*model.Turno, error) {
	var t model.Turno
	err := tx.Where("id = ?", id).First(&t).Error
	return &t, err
}

func (r *turnoRepo) CerrarTx(tx *gorm.DB, id uuid.UUID, at time.Time) (bool, error) {
	res := tx.Model(&model.Turno{}).
		Where("id = ? AND estado = ?", id, model.TurnoAbierto).
		Updates(map[string]any{"estado": model.TurnoCerrado, "fecha_cierre": at})
	return res.RowsAffected == 1, res.Error
}

func (r *turnoRepo) List(ctx context.Context, usuarioID *uuid.UUID, page, limit int) ([]model.Turno, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Turno{})
	if usuarioID != nil {
		q = q.Where("usuario_id = ?", *usuarioID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	page, limit = pageLimit(page, limit, 20)
	var turnos []model.Turno
	err := q.Preload("Inventarios").Preload("Cierre").
		Order("fecha_apertura DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&turnos).Error
	return turnos, total, err
}

func (r *turnoRepo) CountAbiertos(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Turno{}).Where("estado = ?", model.TurnoAbierto).Count(&n).Error
	return n, err
}

func (r *turnoRepo) CreateInventarioTx(tx *gorm.DB, inv *model.InventarioSimTurno) error {
	return tx.Create(inv).Error
}

func (r *turnoRepo) FindInventarioTx(tx *gorm.DB, turnoID uuid.UUID, plan string) (*model.InventarioSimTurno, error) {
	var inv model.InventarioSimTurno
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("turno_id = ? AND plan = ?", turnoID, plan).
		First(&inv).Error
	return &inv, err
}

func (r *turnoRepo) UpdateInventarioTx(tx *gorm.DB, inv *model.InventarioSimTurno) error {
	return tx.Save(inv).Error
}

func (r *turnoRepo) ListInventarios(ctx context.Context, turnoID uuid.UUID) ([]model.InventarioSimTurno, error) {
	return r.ListInventariosTx(r.db.WithContext(ctx), turnoID)
}

func (r *turnoRepo) ListInventariosTx(tx *gorm.DB, turnoID uuid.UUID) ([]model.InventarioSimTurno, error) {
	var invs []model.InventarioSimTurno
	err := tx.Where("turno_id = ?", turnoID).Order("plan ASC").Find(&invs).Error
	return invs, err
}

func (r *turnoRepo) ListDescuadres(ctx context.Context, limit int) ([]Descuadre, error) {
	_, limit = pageLimit(1, limit, 100)
	var out []Descuadre
	err := r.db.WithContext(ctx).Table("inventario_sim_turno AS i").
		Select("i.turno_id, t.usuario_id, i.plan, i.diferencia_final, i.fecha_cierre").
		Joins("JOIN turnos t ON t.id = i.turno_id").
		Where("i.diferencia_final IS NOT NULL AND i.diferencia_final <> 0").
		Order("i.fecha_cierre DESC").
		Limit(limit).
		Scan(&out).Error
	return out, err
}

func (r *turnoRepo) CreateCierreTx(tx *gorm.DB, c *model.CierreCaja) error {
	return tx.Create(c).Error
}

func (r *turnoRepo) FindCierre(ctx context.Context, turnoID uuid.UUID) (*model.CierreCaja, error) {
	var c model.CierreCaja
	err := r.db.WithContext(ctx).Where("turno_id = ?", turnoID).First(&c).Error
	return &c, err
}
