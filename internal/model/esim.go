package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ESim is a virtual SIM delivered as a QR code.
// Estado: disponible → vendida → vencida | inactiva; back to disponible only
// when the QR is regenerated.
type ESim struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ICCID          string     `gorm:"column:iccid;type:varchar(20);not null;uniqueIndex"`
	NumeroTelefono string     `gorm:"type:varchar(15);not null;uniqueIndex"`
	Estado         ESimEstado `gorm:"type:varchar(20);not null;default:'disponible';index"`
	QRCodeData     *string    `gorm:"column:qr_code_data;type:text"`
	QRCodeURL      *string    `gorm:"column:qr_code_url;type:varchar(500)"`

	FechaVenta       *time.Time
	FechaVencimiento *time.Time `gorm:"index"`
	PlanDias         *int
	PlanNombre       *string    `gorm:"type:varchar(50)"`
	VentaID          *uuid.UUID `gorm:"type:uuid"`

	HistorialRegeneraciones int `gorm:"not null;default:0"`
	UltimaRegeneracion      *time.Time
	Operador                *string `gorm:"type:varchar(50)"`
	Observaciones           *string `gorm:"type:text"`
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

func (ESim) TableName() string { return "esims" }

func (e *ESim) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
