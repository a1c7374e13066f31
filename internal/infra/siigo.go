package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// defaultTokenTTL is used when the auth answer carries no expires_in.
const defaultTokenTTL = 24 * time.Hour

// ErrSiigoUnauthorized is returned when Siigo rejects the bearer token.
var ErrSiigoUnauthorized = errors.New("siigo: unauthorized")

// SiigoConfig holds the invoicing partner credentials and document ids.
type SiigoConfig struct {
	APIURL     string
	User       string
	AccessKey  string
	PartnerID  string
	DocumentID int
	SellerID   int
	PaymentID  int
	Timeout    time.Duration
}

// SiigoItem is one invoice line.
type SiigoItem struct {
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Discount    int             `json:"discount"`
}

// SiigoInvoiceRequest carries the data the invoicing worker has about a sale.
type SiigoInvoiceRequest struct {
	VentaID               string
	ClienteIdentificacion string
	Fecha                 time.Time
	Items                 []SiigoItem
	Total                 decimal.Decimal
}

type siigoInvoiceResponse struct {
	ID     string          `json:"id"`
	Number json.RawMessage `json:"number"`
}

// SiigoClient creates electronic invoices. The token is cached in a TokenCache
// and renewed on expiry or on a 401.
type SiigoClient struct {
	cfg        SiigoConfig
	httpClient *http.Client
	tokens     *TokenCache
	now        func() time.Time
}

func NewSiigoClient(cfg SiigoConfig, tokens *TokenCache, now func() time.Time) *SiigoClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if tokens == nil {
		tokens = NewTokenCache(time.Minute)
	}
	if now == nil {
		now = time.Now
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &SiigoClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		now:        now,
	}
}

// Token returns a valid bearer token, authenticating only when the cache is stale.
func (c *SiigoClient) Token(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(c.now()); ok {
		return tok, nil
	}

	body, _ := json.Marshal(map[string]string{"username": c.cfg.User, "access_key": c.cfg.AccessKey})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/auth", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("siigo: create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Partner-Id", c.cfg.PartnerID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("siigo: auth unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("siigo: auth returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("siigo: decode auth: %w", err)
	}
	ttl := defaultTokenTTL
	if out.ExpiresIn > 0 {
		ttl = time.Duration(out.ExpiresIn) * time.Second
	}
	c.tokens.Set(out.AccessToken, c.now(), ttl)
	return out.AccessToken, nil
}

// CrearFactura posts an invoice and returns its number (or id when Siigo gives no number).
func (c *SiigoClient) CrearFactura(ctx context.Context, in SiigoInvoiceRequest) (string, error) {
	fecha := in.Fecha.Format("2006-01-02")
	items := make([]map[string]any, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, map[string]any{
			"code":              it.Code,
			"description":       it.Description,
			"quantity":          it.Quantity,
			"price":             it.Price,
			"price_include_tax": true,
			"discount":          it.Discount,
		})
	}
	payload := map[string]any{
		"document":     map[string]int{"id": c.cfg.DocumentID},
		"date":         fecha,
		"customer":     map[string]any{"identification": in.ClienteIdentificacion},
		"seller":       c.cfg.SellerID,
		"observations": "Venta " + in.VentaID,
		"stamp":        map[string]bool{"send": true},
		"mail":         map[string]bool{"send": true},
		"items":        items,
		"payments":     []map[string]any{{"id": c.cfg.PaymentID, "value": in.Total, "due_date": fecha}},
	}

	var out siigoInvoiceResponse
	err := c.do(ctx, http.MethodPost, "/v1/invoices", payload, &out)
	if errors.Is(err, ErrSiigoUnauthorized) {
		c.tokens.Invalidate()
		err = c.do(ctx, http.MethodPost, "/v1/invoices", payload, &out)
	}
	if err != nil {
		return "", err
	}
	if num := strings.Trim(string(out.Number), `"`); num != "" && num != "null" {
		return num, nil
	}
	return out.ID, nil
}

// SiigoHTTPError is a non-2xx answer other than 401.
type SiigoHTTPError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *SiigoHTTPError) Error() string {
	return fmt.Sprintf("siigo: %s returned %d: %s", e.Endpoint, e.Status, e.Body)
}

// SiigoOutage reports whether err reflects partner availability rather than
// a rejected document: transport errors and 5xx/429 answers count, 4xx do not.
func SiigoOutage(err error) bool {
	var he *SiigoHTTPError
	if errors.As(err, &he) {
		return he.Status >= 500 || he.Status == http.StatusTooManyRequests
	}
	return err != nil
}

func (c *SiigoClient) do(ctx context.Context, method, endpoint string, payload, out any) error {
	token, err := c.Token(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("siigo: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("siigo: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Partner-Id", c.cfg.PartnerID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("siigo: %s unreachable: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrSiigoUnauthorized
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SiigoHTTPError{Endpoint: endpoint, Status: resp.StatusCode, Body: truncate(string(raw), 300)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("siigo: decode response: %w", err)
	}
	return nil
}
