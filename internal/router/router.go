package router

import (
	"context"
	"strings"
	"time"

	"github.com/Sebas931/Local-sim-main/internal/config"
	"github.com/Sebas931/Local-sim-main/internal/handler"
	"github.com/Sebas931/Local-sim-main/internal/infra"
	"github.com/Sebas931/Local-sim-main/internal/metrics"
	"github.com/Sebas931/Local-sim-main/internal/middleware"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"
	"github.com/Sebas931/Local-sim-main/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the infrastructure pieces built by the composition root.
type Deps struct {
	Config  *config.Config
	DB      *gorm.DB
	RDB     *redis.Client
	SiigoCB *infra.CircuitBreaker
	Metrics *metrics.Metrics
	Winred  service.WinredAPI
	// Dispatcher may be nil; sales and closures then skip their async jobs
	Dispatcher service.JobDispatcher
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// ctx bounds the background purge of the rate limiters.
func New(ctx context.Context, d Deps) *gin.Engine {
	cfg := d.Config
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	apiLimiter := middleware.NewIPRateLimiter(1000, time.Minute)
	loginLimiter := middleware.NewIPRateLimiter(20, time.Minute)
	apiLimiter.StartPurge(ctx, 5*time.Minute)
	loginLimiter.StartPurge(ctx, 5*time.Minute)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(d.Metrics.GinMiddleware())
	r.Use(apiLimiter.Middleware("Demasiadas solicitudes. Intente nuevamente en un momento."))

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(d.DB)
	simRepo := repository.NewSimRepository(d.DB)
	ventaRepo := repository.NewVentaRepository(d.DB)
	cajaRepo := repository.NewCajaRepository(d.DB)
	turnoRepo := repository.NewTurnoRepository(d.DB)
	planRepo := repository.NewPlanRepository(d.DB)
	devolucionRepo := repository.NewDevolucionRepository(d.DB)
	esimRepo := repository.NewESimRepository(d.DB)
	facturaRepo := repository.NewFacturaRepository(d.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)
	inventarioSvc := service.NewInventarioService(simRepo, cfg.LowStockThreshold)
	cajaSvc := service.NewCajaService(cajaRepo, turnoRepo, inventarioSvc)
	ventaSvc := service.NewVentaService(ventaRepo, turnoRepo, inventarioSvc, cajaSvc, d.Dispatcher, d.Metrics)
	turnoSvc := service.NewTurnoService(turnoRepo, cajaRepo, simRepo, usuarioRepo, d.Dispatcher, d.Metrics, service.TurnoConfig{
		PDFPath: cfg.PDFStoragePath,
		EmailTo: splitList(cfg.CierreEmailTo),
	})
	recargaSvc := service.NewRecargaService(d.Winred, simRepo, planRepo, inventarioSvc, d.Metrics, service.RecargaConfig{
		Delay:           cfg.TopupDelay(),
		MaxAttempts:     cfg.TopupMaxAttempts,
		AllowedIDs:      cfg.WinredAllowedIDs(),
		ProbeSubscriber: cfg.WinredProbeSubscriber,
	})
	devolucionSvc := service.NewDevolucionService(devolucionRepo, simRepo, turnoRepo, ventaRepo, ventaSvc)
	esimSvc := service.NewESimService(esimRepo)
	facturacionSvc := service.NewFacturacionService(facturaRepo, ventaRepo, d.Dispatcher)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	inventarioH := handler.NewInventarioHandler(inventarioSvc)
	ventasH := handler.NewVentasHandler(ventaSvc)
	cajaH := handler.NewCajaHandler(cajaSvc)
	turnosH := handler.NewTurnosHandler(turnoSvc)
	recargasH := handler.NewRecargasHandler(recargaSvc)
	devolucionesH := handler.NewDevolucionesHandler(devolucionSvc)
	esimsH := handler.NewESimsHandler(esimSvc)
	facturacionH := handler.NewFacturacionHandler(facturacionSvc, d.RDB)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.RDB, d.SiigoCB))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware("Demasiados intentos de login. Intente en 1 minuto."), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	todos := middleware.RequireRole(model.RolAsesor, model.RolSupervisor, model.RolAdministrador)
	gestion := middleware.RequireRole(model.RolSupervisor, model.RolAdministrador)
	admin := middleware.RequireRole(model.RolAdministrador)

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/auth/me", authH.Me)
		v1.GET("/dashboard", todos, cajaH.Dashboard)

		turnos := v1.Group("/turnos", todos)
		{
			turnos.POST("/abrir", turnosH.Abrir)
			turnos.POST("/cerrar", turnosH.Cerrar)
			turnos.GET("/estado", turnosH.Estado)
			turnos.GET("/historial", gestion, turnosH.Historial)
			turnos.GET("/descuadres", gestion, turnosH.Descuadres)
			turnos.GET("/:id", turnosH.Obtener)
			turnos.GET("/:id/inventarios", turnosH.Inventarios)
			turnos.GET("/:id/movimientos", turnosH.Movimientos)
			turnos.GET("/:id/cierre", turnosH.Cierre)
			turnos.GET("/:id/totales", cajaH.Totales)
		}

		caja := v1.Group("/caja", todos)
		{
			caja.POST("/movimiento", cajaH.RegistrarMovimiento)
			caja.GET("/totales", gestion, cajaH.TotalesRango)
		}

		ventas := v1.Group("/ventas", todos)
		{
			ventas.POST("", ventasH.RegistrarVenta)
			ventas.GET("", ventasH.ListarVentas)
			ventas.GET("/:id", ventasH.ObtenerVenta)
			ventas.GET("/por-iccid/:iccid", ventasH.VentasPorICCID)
		}

		sims := v1.Group("/sims", todos)
		{
			sims.GET("", inventarioH.ListarSims)
			sims.GET("/buscar", inventarioH.BuscarSim)
			sims.GET("/historial", inventarioH.HistorialSim)
			sims.GET("/planes-disponibles", inventarioH.PlanesDisponibles)
			sims.GET("/lotes", inventarioH.ListarLotes)
			sims.GET("/lotes/:id", inventarioH.SimsDeLote)
			sims.POST("/lotes", gestion, inventarioH.CrearLote)
			sims.PUT("/lotes/:id/plan", gestion, inventarioH.AsignarPlan)
			sims.POST("", gestion, inventarioH.AgregarSim)
			sims.DELETE("", admin, inventarioH.EliminarSim)
		}

		recargas := v1.Group("/recargas", todos)
		{
			recargas.POST("", recargasH.Recargar)
			recargas.GET("/paquetes", recargasH.Paquetes)
			recargas.GET("/saldo", recargasH.Saldo)
			recargas.POST("/lote", gestion, recargasH.RecargarLote)
			recargas.POST("/lote/stream", gestion, recargasH.RecargarLoteStream)
			recargas.GET("/lote/ws", gestion, recargasH.RecargarLoteWS)
		}

		dev := v1.Group("/devoluciones", todos)
		{
			dev.POST("/intercambio", devolucionesH.Intercambio)
			dev.POST("/reembolso", gestion, devolucionesH.Reembolso)
			dev.GET("", devolucionesH.Listar)
			dev.GET("/sims-vendidas", devolucionesH.SimsVendidas)
			dev.GET("/sims-reemplazo", devolucionesH.SimsReemplazo)
			dev.GET("/:id", devolucionesH.Obtener)
		}

		esims := v1.Group("/esims", todos)
		{
			esims.GET("", esimsH.Listar)
			esims.GET("/estadisticas", esimsH.Estadisticas)
			esims.GET("/:id", esimsH.Obtener)
			esims.POST("/:id/vender", esimsH.Vender)
			esims.POST("", gestion, esimsH.Crear)
			esims.POST("/lote", gestion, esimsH.CrearLote)
			esims.POST("/:id/inactivar", gestion, esimsH.Inactivar)
			esims.POST("/:id/regenerar-qr", gestion, esimsH.RegenerarQR)
		}

		fact := v1.Group("/facturacion", gestion)
		{
			fact.GET("/dlq", admin, facturacionH.DLQ)
			fact.GET("/:venta_id", facturacionH.ObtenerFactura)
			fact.POST("/:venta_id/reintentar", facturacionH.Reintentar)
		}
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}

func splitList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
