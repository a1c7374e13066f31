package infra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type siigoStub struct {
	auths    atomic.Int32
	invoices atomic.Int32
	// reject401 makes the first invoice call answer 401
	reject401 bool
	number    string
}

func (s *siigoStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		n := s.auths.Add(1)
		assert.Equal(t, "partner", r.Header.Get("Partner-Id"))
		_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-" + string(rune('0'+n)), "expires_in": 3600})
	})
	mux.HandleFunc("/v1/invoices", func(w http.ResponseWriter, r *http.Request) {
		n := s.invoices.Add(1)
		if s.reject401 && n == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "2026-04-01", body["date"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"inv-uuid","number":` + s.number + `}`))
	})
	return mux
}

func newTestSiigo(url string, now time.Time) *SiigoClient {
	return NewSiigoClient(SiigoConfig{APIURL: url, User: "u", AccessKey: "k", PartnerID: "partner"},
		NewTokenCache(time.Minute), func() time.Time { return now })
}

func invoiceRequest() SiigoInvoiceRequest {
	return SiigoInvoiceRequest{
		VentaID: "v-1",
		Fecha:   time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC),
		Items:   []SiigoItem{{Code: "R30D", Description: "Plan 30 dias", Quantity: 1, Price: decimal.NewFromInt(30000)}},
		Total:   decimal.NewFromInt(30000),
	}
}

func TestSiigo_TokenIsCached(t *testing.T) {
	stub := &siigoStub{number: "1042"}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	c := newTestSiigo(srv.URL, time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC))
	num, err := c.CrearFactura(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, "1042", num)

	_, err = c.CrearFactura(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stub.auths.Load())
	assert.EqualValues(t, 2, stub.invoices.Load())
}

func TestSiigo_ReauthenticatesOn401(t *testing.T) {
	stub := &siigoStub{reject401: true, number: "null"}
	srv := httptest.NewServer(stub.handler(t))
	defer srv.Close()

	c := newTestSiigo(srv.URL, time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC))
	num, err := c.CrearFactura(context.Background(), invoiceRequest())
	require.NoError(t, err)
	assert.Equal(t, "inv-uuid", num, "falls back to the id without a number")
	assert.EqualValues(t, 2, stub.auths.Load())
}

func TestSiigo_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth" {
			_, _ = w.Write([]byte(`{"access_token":"t"}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestSiigo(srv.URL, time.Now()).CrearFactura(context.Background(), invoiceRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
