// Carga la homologación de planes Winred → Siigo y el usuario administrador.
// Uso: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Sebas931/Local-sim-main/internal/config"
	"github.com/Sebas931/Local-sim-main/internal/infra"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"
	"github.com/Sebas931/Local-sim-main/internal/service"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm/clause"
)

var planes = []model.PlanHomologacion{
	{WinredProductID: "1067", Operador: "CLARO", NombreWinred: "RECARGA / 5 DIAS / CLARO", SiigoCode: "R5D", Activo: true},
	{WinredProductID: "1163", Operador: "CLARO", NombreWinred: "RECARGA / 7 DIAS / CLARO", SiigoCode: "R7D", Activo: true},
	{WinredProductID: "1188", Operador: "CLARO", NombreWinred: "RECARGA / 15 DIAS / CLARO", SiigoCode: "R15D", Activo: true},
	{WinredProductID: "1189", Operador: "CLARO", NombreWinred: "RECARGA / 30 DIAS / CLARO", SiigoCode: "R30D", Activo: true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	ctx := context.Background()

	planRepo := repository.NewPlanRepository(db)
	for i := range planes {
		p := planes[i]
		if err := planRepo.Upsert(ctx, &p); err != nil {
			log.Fatal().Err(err).Str("winred_product_id", p.WinredProductID).Msg("upsert plan")
		}
		fmt.Printf("plan %s → %s (%s)\n", p.WinredProductID, p.SiigoCode, p.NombreWinred)
	}

	username := envOr("SEED_ADMIN_USER", "admin")
	password := envOr("SEED_ADMIN_PASSWORD", "admin1234")
	hash, err := service.HashPassword(password)
	if err != nil {
		log.Fatal().Err(err).Msg("bcrypt")
	}
	admin := model.Usuario{
		Username:     username,
		Nombre:       "Administrador",
		PasswordHash: hash,
		Rol:          model.RolAdministrador,
		Activo:       true,
	}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}},
		DoUpdates: clause.AssignmentColumns([]string{"password_hash", "rol", "activo", "updated_at"}),
	}).Create(&admin).Error
	if err != nil {
		log.Fatal().Err(err).Msg("upsert admin")
	}
	fmt.Printf("usuario '%s' creado/actualizado\n", username)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
