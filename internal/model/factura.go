package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Factura tracks the electronic invoice requested to Siigo for a sale.
// Estado: "pendiente" | "emitida" | "error"
type Factura struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	VentaID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	// Numero is the invoice number (or id) returned by Siigo
	Numero     *string         `gorm:"type:varchar(64)"`
	MontoTotal decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado     string          `gorm:"type:varchar(20);not null;default:'pendiente'"`
	// Retry fields, used by the retry cron to re-attempt failed Siigo calls
	RetryCount  int `gorm:"not null;default:0"`
	NextRetryAt *time.Time
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (f *Factura) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

const (
	FacturaPendiente = "pendiente"
	FacturaEmitida   = "emitida"
	FacturaError     = "error"
)
