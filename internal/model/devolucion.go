package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DevolucionSim records the handling of a defective SIM.
// Tipo: "intercambio" (replacement unit handed out) | "devolucion_dinero" (sale annulled).
type DevolucionSim struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Tipo    string    `gorm:"type:varchar(20);not null;default:'intercambio'"`
	VentaID uuid.UUID `gorm:"type:uuid;not null;index"`

	SimDefectuosaID     uuid.UUID `gorm:"type:uuid;not null"`
	SimDefectuosaICCID  string    `gorm:"column:sim_defectuosa_iccid;not null"`
	SimDefectuosaNumero string    `gorm:"not null"`

	SimReemplazoID     *uuid.UUID `gorm:"type:uuid"`
	SimReemplazoICCID  *string    `gorm:"column:sim_reemplazo_iccid"`
	SimReemplazoNumero *string

	Motivo    string     `gorm:"type:text;not null"`
	UsuarioID uuid.UUID  `gorm:"type:uuid;not null"`
	TurnoID   *uuid.UUID `gorm:"type:uuid"`

	ClienteNombre         *string
	ClienteIdentificacion *string
	ClienteTelefono       *string

	MontoDevuelto    *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MetodoDevolucion *MetodoPago      `gorm:"type:varchar(20)"`

	FechaDevolucion time.Time `gorm:"not null;index"`
}

func (DevolucionSim) TableName() string { return "devoluciones_sim" }

func (d *DevolucionSim) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
