package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Venta is immutable except for annulment (activa → anulada).
// Total is always Σ cantidad × precio_unitario of its items.
type Venta struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey"`
	UsuarioID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	TurnoID               uuid.UUID       `gorm:"type:uuid;not null;index"`
	ClienteID             *string         `gorm:"type:varchar(64)"`
	ClienteIdentificacion *string         `gorm:"type:varchar(32)"`
	MetodoPago            MetodoPago      `gorm:"type:varchar(20);not null"`
	SiigoInvoiceID        *string         `gorm:"type:varchar(64)"`
	Total                 decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Estado                EstadoVenta     `gorm:"type:varchar(20);not null;default:'activa';index"`
	CreatedAt             time.Time

	Items []VentaItem `gorm:"foreignKey:VentaID"`
}

func (v *Venta) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// VentaItem is one line of a sale. ProductCode carries the plan code (R7D, R30D…)
// for SIM lines; the SIM identifiers are the ones the cashier scanned.
type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	VentaID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductCode    string          `gorm:"type:varchar(50);not null;index"`
	Descripcion    string          `gorm:"not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IVA            decimal.Decimal `gorm:"column:iva;type:decimal(5,2);not null;default:0"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	SimID          *uuid.UUID      `gorm:"type:uuid"`
	ICCID          *string         `gorm:"column:iccid;type:varchar(32)"`
	MSISDN         *string         `gorm:"column:msisdn;type:varchar(20)"`
}

func (i *VentaItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Candidato returns the SIM identifiers carried by the line.
func (i VentaItem) Candidato() CandidatoSim {
	c := CandidatoSim{ID: i.SimID}
	if i.ICCID != nil {
		c.ICCID = *i.ICCID
	}
	if i.MSISDN != nil {
		c.MSISDN = *i.MSISDN
	}
	return c
}
