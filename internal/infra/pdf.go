package infra

// Shift closure report rendered with go-pdf/fpdf.
// One A4 page: turno header, reconciliation per payment method and the
// per-plan SIM count. Saved to storagePath/cierre_{turnoID}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// CierreReporte is everything the closure PDF prints.
type CierreReporte struct {
	Turno       *model.Turno
	Operador    string
	Cierre      *model.CierreCaja
	Inventarios []model.InventarioSimTurno
}

// GenerateCierrePDF renders the closure report and returns the file path.
func GenerateCierrePDF(rep CierreReporte, storagePath string) (string, error) {
	if rep.Turno == nil || rep.Cierre == nil {
		return "", fmt.Errorf("pdf: turno and cierre are required")
	}
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("cierre_%s.pdf", rep.Turno.ID))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 8, "Cierre de caja", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, tr("Operador: "+rep.Operador), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Apertura: "+rep.Turno.FechaApertura.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, "Cierre: "+rep.Cierre.FechaCierre.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	// ── Totals per method ────────────────────────────────────────────────────
	col := contentW / 4
	pdf.SetFont("Helvetica", "B", 9)
	for _, h := range []string{"Medio de pago", "Sistema", "Reportado", "Diferencia"} {
		pdf.CellFormat(col, 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	sistema, reportado := rep.Cierre.Sistema(), rep.Cierre.Reportado()
	filas := []struct {
		label    string
		sis, rep decimal.Decimal
	}{
		{"Efectivo", sistema.Efectivo, reportado.Efectivo},
		{"Datafono", sistema.Tarjeta, reportado.Tarjeta},
		{"Electronico", sistema.Electronico, reportado.Electronico},
		{"Dolares", sistema.Dolares, reportado.Dolares},
	}
	pdf.SetFont("Helvetica", "", 9)
	for _, f := range filas {
		pdf.CellFormat(col, 6, f.label, "1", 0, "L", false, 0, "")
		pdf.CellFormat(col, 6, "$"+f.sis.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(col, 6, "$"+f.rep.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(col, 6, "$"+f.rep.Sub(f.sis).StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col, 6, "TOTAL", "1", 0, "L", false, 0, "")
	pdf.CellFormat(col, 6, "$"+sistema.Total().StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(col, 6, "$"+reportado.Total().StringFixed(2), "1", 0, "R", false, 0, "")
	pdf.CellFormat(col, 6, "$"+reportado.Total().Sub(sistema.Total()).StringFixed(2), "1", 1, "R", false, 0, "")
	pdf.Ln(4)

	// ── Inventory ────────────────────────────────────────────────────────────
	if len(rep.Inventarios) > 0 {
		icol := contentW / 6
		pdf.SetFont("Helvetica", "B", 8)
		for _, h := range []string{"Plan", "Inicial", "Sistema ini.", "Vendidas", "Final", "Diferencia"} {
			pdf.CellFormat(icol, 6, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
		for _, inv := range rep.Inventarios {
			pdf.CellFormat(icol, 6, inv.Plan, "1", 0, "L", false, 0, "")
			pdf.CellFormat(icol, 6, strconv.Itoa(inv.CantidadInicialReportada), "1", 0, "R", false, 0, "")
			pdf.CellFormat(icol, 6, strconv.Itoa(inv.CantidadInicialSistema), "1", 0, "R", false, 0, "")
			pdf.CellFormat(icol, 6, optInt(inv.UnidadesVendidas), "1", 0, "R", false, 0, "")
			pdf.CellFormat(icol, 6, optInt(inv.CantidadFinalReportada), "1", 0, "R", false, 0, "")
			pdf.CellFormat(icol, 6, optInt(inv.DiferenciaFinal), "1", 1, "R", false, 0, "")
		}
	}

	if rep.Cierre.Observaciones != "" {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.MultiCell(contentW, 4, tr("Observaciones: "+rep.Cierre.Observaciones), "", "L", false)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

// optInt prints "N/C" (not computable) for counts that have no value.
func optInt(v *int) string {
	if v == nil {
		return "N/C"
	}
	return strconv.Itoa(*v)
}
