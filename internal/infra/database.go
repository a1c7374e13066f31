package infra

import (
	"fmt"

	"github.com/Sebas931/Local-sim-main/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Models lists every table managed by AutoMigrate, in dependency order.
func Models() []any {
	return []any{
		&model.Usuario{},
		&model.PlanHomologacion{},
		&model.SimLote{},
		&model.SimDetalle{},
		&model.MovimientoSim{},
		&model.ESim{},
		&model.Turno{},
		&model.Venta{},
		&model.VentaItem{},
		&model.MovimientoCaja{},
		&model.CierreCaja{},
		&model.InventarioSimTurno{},
		&model.DevolucionSim{},
		&model.Factura{},
	}
}

// NewDatabase opens the PostgreSQL connection, migrates every model and then
// applies the constraints GORM tags cannot express.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates every table. The CHECK constraints are only
// applied on PostgreSQL; the SQLite test databases get the tables and indexes.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// handle on its own. Each one is guarded so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// a sold SIM always carries its sale linkage
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_sim_vendida_vinculada') THEN
		    ALTER TABLE sim_detalle ADD CONSTRAINT chk_sim_vendida_vinculada
		      CHECK (estado <> 'vendido' OR (venta_id IS NOT NULL AND fecha_venta IS NOT NULL));
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_sim_estado') THEN
		    ALTER TABLE sim_detalle ADD CONSTRAINT chk_sim_estado
		      CHECK (estado IN ('available', 'recargado', 'vendido', 'defectuosa'));
		  END IF;
		END $$`,
		// closure differences are derived, never free values
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_cierre_diferencias') THEN
		    ALTER TABLE cierres_caja ADD CONSTRAINT chk_cierre_diferencias CHECK (
		          diferencia_efectivo    = efectivo_reportado    - total_efectivo
		      AND diferencia_datafono    = datafono_reportado    - total_datafono
		      AND diferencia_electronico = electronico_reportado - total_electronico
		      AND diferencia_dolares     = dolares_reportado     - total_dolares);
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_venta_estado') THEN
		    ALTER TABLE ventas ADD CONSTRAINT chk_venta_estado CHECK (estado IN ('activa', 'anulada'));
		  END IF;
		END $$`,
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'chk_movimiento_metodo') THEN
		    ALTER TABLE movimientos_caja ADD CONSTRAINT chk_movimiento_metodo
		      CHECK (metodo_pago IN ('cash', 'card', 'electronic', 'dollars'));
		  END IF;
		END $$`,
		// partial index for the invoicing retry cron
		`CREATE INDEX IF NOT EXISTS idx_facturas_pending_retry
		    ON facturas (next_retry_at)
		    WHERE estado = 'pendiente' AND next_retry_at IS NOT NULL`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
