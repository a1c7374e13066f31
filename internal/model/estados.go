package model

import "strings"

// SimEstado is the lifecycle state of a physical SIM.
type SimEstado string

const (
	SimDisponible SimEstado = "available"
	SimRecargada  SimEstado = "recargado"
	SimVendida    SimEstado = "vendido"
	SimDefectuosa SimEstado = "defectuosa"
)

// Vendible reports whether a unit in this state can be sold or used as a replacement.
func (e SimEstado) Vendible() bool {
	return e == SimDisponible || e == SimRecargada
}

var simEstadoAlias = map[string]SimEstado{
	"available":  SimDisponible,
	"disponible": SimDisponible,
	"recargado":  SimRecargada,
	"recharged":  SimRecargada,
	"vendido":    SimVendida,
	"sold":       SimVendida,
	"defectuosa": SimDefectuosa,
	"defective":  SimDefectuosa,
}

// ParseSimEstado canonicalizes a state filter coming from a client.
func ParseSimEstado(raw string) (SimEstado, bool) {
	e, ok := simEstadoAlias[strings.ToLower(strings.TrimSpace(raw))]
	return e, ok
}

// ESimEstado is the lifecycle state of an eSIM.
type ESimEstado string

const (
	ESimDisponible ESimEstado = "disponible"
	ESimVendida    ESimEstado = "vendida"
	ESimVencida    ESimEstado = "vencida"
	ESimInactiva   ESimEstado = "inactiva"
)

func ParseESimEstado(raw string) (ESimEstado, bool) {
	switch e := ESimEstado(strings.ToLower(strings.TrimSpace(raw))); e {
	case ESimDisponible, ESimVendida, ESimVencida, ESimInactiva:
		return e, true
	}
	return "", false
}

// EstadoVenta: activa → anulada, never reversed.
type EstadoVenta string

const (
	VentaActiva  EstadoVenta = "activa"
	VentaAnulada EstadoVenta = "anulada"
)

// EstadoTurno: abierto → cerrado.
type EstadoTurno string

const (
	TurnoAbierto EstadoTurno = "abierto"
	TurnoCerrado EstadoTurno = "cerrado"
)

// MetodoPago is the canonical payment method stored on sales and cash movements.
type MetodoPago string

const (
	MetodoEfectivo    MetodoPago = "cash"
	MetodoTarjeta     MetodoPago = "card"
	MetodoElectronico MetodoPago = "electronic"
	MetodoDolares     MetodoPago = "dollars"
)

// MetodosPago lists every canonical method in report order.
var MetodosPago = []MetodoPago{MetodoEfectivo, MetodoTarjeta, MetodoElectronico, MetodoDolares}

var metodoPagoAlias = map[string]MetodoPago{
	"":              MetodoEfectivo,
	"cash":          MetodoEfectivo,
	"efectivo":      MetodoEfectivo,
	"card":          MetodoTarjeta,
	"tarjeta":       MetodoTarjeta,
	"datafono":      MetodoTarjeta,
	"datáfono":      MetodoTarjeta,
	"dataphone":     MetodoTarjeta,
	"pos":           MetodoTarjeta,
	"electronic":    MetodoElectronico,
	"electronico":   MetodoElectronico,
	"electrónico":   MetodoElectronico,
	"transfer":      MetodoElectronico,
	"transferencia": MetodoElectronico,
	"dollars":       MetodoDolares,
	"dollar":        MetodoDolares,
	"dolares":       MetodoDolares,
	"dólares":       MetodoDolares,
	"dólar":         MetodoDolares,
	"usd":           MetodoDolares,
}

// NormalizarMetodoPago maps the spelling variants used by the POS clients to the
// canonical set. An empty value defaults to cash; anything unknown is rejected.
func NormalizarMetodoPago(raw string) (MetodoPago, bool) {
	m, ok := metodoPagoAlias[strings.ToLower(strings.TrimSpace(raw))]
	return m, ok
}

// Tipos de movimiento de caja.
const (
	MovimientoVenta      = "venta"
	MovimientoDevolucion = "devolucion"
	MovimientoIngreso    = "ingreso"
	MovimientoEgreso     = "egreso"
)

// Tipos de devolución.
const (
	DevolucionIntercambio = "intercambio"
	DevolucionDinero      = "devolucion_dinero"
)
