//go:build integration

// Package e2e runs the HTTP API against real PostgreSQL and Redis containers.
// Run with: go test -tags integration ./internal/e2e/... -v
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Sebas931/Local-sim-main/internal/config"
	"github.com/Sebas931/Local-sim-main/internal/infra"
	"github.com/Sebas931/Local-sim-main/internal/metrics"
	"github.com/Sebas931/Local-sim-main/internal/model"
	"github.com/Sebas931/Local-sim-main/internal/repository"
	"github.com/Sebas931/Local-sim-main/internal/router"
	"github.com/Sebas931/Local-sim-main/internal/service"
	"github.com/Sebas931/Local-sim-main/internal/worker"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, token string) *http.Response {
	t.Helper()
	var buf *bytes.Buffer
	if body != nil {
		buf = jsonBody(t, body)
	} else {
		buf = &bytes.Buffer{}
	}
	req, err := http.NewRequest(method, srv.URL+path, buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, dest any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dest))
}

// ── Test Suite Setup ─────────────────────────────────────────────────────────

type testEnv struct {
	server *httptest.Server
	rdb    *redis.Client
	token  string // administrador JWT
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	pgC, err := tcPostgres.Run(ctx, "postgres:16-alpine",
		tcPostgres.WithDatabase("localsim_test"),
		tcPostgres.WithUsername("localsim"),
		tcPostgres.WithPassword("localsim"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(wait.ForLog("Ready to accept connections")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(context.Background()) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:               8000,
		Env:                "test",
		CORSOriginsRaw:     "*",
		JWTSecret:          "test-secret-key",
		JWTExpirationHours: 8,
		JWTRefreshHours:    24,
		DatabaseURL:        pgURL,
		RedisURL:           rdURL,
		WorkerPoolSize:     1,
		LowStockThreshold:  2,
		PDFStoragePath:     t.TempDir(),
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	require.NoError(t, err)
	require.NoError(t, infra.RunMigrations(db))

	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)

	hash, err := service.HashPassword("localsim2026")
	require.NoError(t, err)
	require.NoError(t, repository.NewUsuarioRepository(db).Create(ctx, &model.Usuario{
		Username:     "admin",
		Nombre:       "Admin E2E",
		PasswordHash: hash,
		Rol:          model.RolAdministrador,
		Activo:       true,
	}))

	r := router.New(ctx, router.Deps{
		Config:     cfg,
		DB:         db,
		RDB:        rdb,
		SiigoCB:    infra.NewCircuitBreaker(infra.DefaultCBConfig()),
		Metrics:    metrics.New(),
		Winred:     infra.NewWinredClient(infra.WinredConfig{BaseURL: "http://127.0.0.1:1"}),
		Dispatcher: worker.NewDispatcher(rdb),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	loginResp := do(t, srv, http.MethodPost, "/v1/auth/login",
		map[string]string{"username": "admin", "password": "localsim2026"}, "")
	require.Equal(t, http.StatusOK, loginResp.StatusCode)
	var login struct {
		AccessToken string `json:"access_token"`
	}
	decodeJSON(t, loginResp, &login)
	require.NotEmpty(t, login.AccessToken)

	return &testEnv{server: srv, rdb: rdb, token: login.AccessToken}
}

func (e *testEnv) seedLote(t *testing.T, loteID string, n int, plan string) []string {
	t.Helper()
	var sims []map[string]string
	var iccids []string
	for i := 0; i < n; i++ {
		iccid := fmt.Sprintf("89571%s%010d", loteID[len(loteID)-1:], i)
		sims = append(sims, map[string]string{"numero_linea": fmt.Sprintf("3%s%08d", loteID[len(loteID)-1:], i), "iccid": iccid})
		iccids = append(iccids, iccid)
	}
	resp := do(t, e.server, http.MethodPost, "/v1/sims/lotes",
		map[string]any{"lote_id": loteID, "operador": "CLARO", "sims": sims}, e.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, e.server, http.MethodPut, "/v1/sims/lotes/"+loteID+"/plan", map[string]string{"plan": plan}, e.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	return iccids
}

func (e *testEnv) sell(t *testing.T, iccid, metodo string, precio int) string {
	t.Helper()
	resp := do(t, e.server, http.MethodPost, "/v1/ventas", map[string]any{
		"payment_method": metodo,
		"items": []map[string]any{{
			"product_code": "R7D", "quantity": 1, "unit_price": precio, "iccid": iccid,
		}},
	}, e.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var venta struct {
		ID               string   `json:"id"`
		SimsNoVinculadas []string `json:"sims_no_vinculadas"`
	}
	decodeJSON(t, resp, &venta)
	require.Empty(t, venta.SimsNoVinculadas)
	return venta.ID
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2E_ShiftCycle(t *testing.T) {
	env := setupTestEnv(t)
	iccids := env.seedLote(t, "L-1", 4, "R7D")

	resp := do(t, env.server, http.MethodPost, "/v1/turnos/abrir",
		map[string]any{"inventarios": []map[string]any{{"plan": "R7D", "cantidad": 4}}}, env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	env.sell(t, iccids[0], "efectivo", 10000)
	env.sell(t, iccids[1], "transferencia", 10000)

	n, err := env.rdb.LLen(context.Background(), worker.QueueFacturacion).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "the electronic sale queued its invoice")

	resp = do(t, env.server, http.MethodPost, "/v1/turnos/cerrar", map[string]any{
		"reportado":   map[string]any{"cash": 9000, "electronic": 10000},
		"inventarios": []map[string]any{{"plan": "R7D", "cantidad": 2}},
	}, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var closed struct {
		Estado string `json:"estado"`
		Cierre struct {
			Diferencia model.TotalesPorMetodo `json:"diferencia"`
		} `json:"cierre"`
		Inventarios []struct {
			Plan            string `json:"plan"`
			DiferenciaFinal *int   `json:"diferencia_final"`
		} `json:"inventarios"`
	}
	decodeJSON(t, resp, &closed)
	assert.Equal(t, string(model.TurnoCerrado), closed.Estado)
	assert.True(t, closed.Cierre.Diferencia.Efectivo.Equal(decimal.NewFromInt(-1000)))
	assert.True(t, closed.Cierre.Diferencia.Electronico.IsZero())
	require.Len(t, closed.Inventarios, 1)
	require.NotNil(t, closed.Inventarios[0].DiferenciaFinal)
	assert.Equal(t, 0, *closed.Inventarios[0].DiferenciaFinal)
}

func TestE2E_ConcurrentOpenShiftYieldsOneTurno(t *testing.T) {
	env := setupTestEnv(t)

	var wg sync.WaitGroup
	codes := make([]int, 5)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp := do(t, env.server, http.MethodPost, "/v1/turnos/abrir", map[string]any{}, env.token)
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}(i)
	}
	wg.Wait()

	created := 0
	for _, c := range codes {
		if c == http.StatusCreated {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, c)
		}
	}
	assert.Equal(t, 1, created)
}

func TestE2E_ConcurrentSaleOfSameUnit(t *testing.T) {
	env := setupTestEnv(t)
	iccids := env.seedLote(t, "L-2", 1, "R7D")

	resp := do(t, env.server, http.MethodPost, "/v1/turnos/abrir", map[string]any{}, env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	linked := 0
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := do(t, env.server, http.MethodPost, "/v1/ventas", map[string]any{
				"payment_method": "cash",
				"items":          []map[string]any{{"product_code": "R7D", "quantity": 1, "unit_price": 10000, "iccid": iccids[0]}},
			}, env.token)
			var v struct {
				SimsNoVinculadas []string `json:"sims_no_vinculadas"`
			}
			defer r.Body.Close()
			if r.StatusCode == http.StatusCreated && json.NewDecoder(r.Body).Decode(&v) == nil && len(v.SimsNoVinculadas) == 0 {
				mu.Lock()
				linked++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, linked, "a unit is linked to exactly one sale")
}

func TestE2E_ExchangeDefectiveUnit(t *testing.T) {
	env := setupTestEnv(t)
	iccids := env.seedLote(t, "L-3", 2, "R7D")

	resp := do(t, env.server, http.MethodPost, "/v1/turnos/abrir", map[string]any{}, env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
	ventaID := env.sell(t, iccids[0], "cash", 10000)

	resp = do(t, env.server, http.MethodPost, "/v1/devoluciones/intercambio", map[string]any{
		"venta_id":             ventaID,
		"sim_defectuosa_iccid": iccids[0],
		"sim_reemplazo_iccid":  iccids[1],
		"motivo":               "no registra en red",
	}, env.token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = do(t, env.server, http.MethodGet, "/v1/ventas/por-iccid/"+iccids[1], nil, env.token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
