package infra

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ── Winred top-up provider ───────────────────────────────────────────────────
// Wire contract (fixed by the provider):
//   body      = {"header":{…},"data":{…},"signature":"…"} sent as text/plain over Basic Auth
//   hash_key  = b64(HMAC_SHA256(user_id + request_id + request_date + api_key, secret))
//   signature = b64(HMAC_SHA256(json(header) + json(data) + api_key, secret))
// JSON is compact, keys in declaration order, no HTML escaping.

// ErrWinredCredenciales is returned when any credential is missing.
var ErrWinredCredenciales = errors.New("winred: configuracion incompleta")

// WinredConfig holds the provider credentials.
type WinredConfig struct {
	BaseURL    string
	APIVersion string
	UserID     string
	APIKey     string
	SecretKey  string
	BasicUser  string
	BasicPass  string
	// Millis appends ".000" to request_date
	Millis  bool
	Timeout time.Duration
}

// WinredHeader field order is part of the signature.
type WinredHeader struct {
	APIVersion  string `json:"api_version"`
	APIKey      string `json:"api_key"`
	RequestID   string `json:"request_id"`
	HashKey     string `json:"hash_key"`
	RequestDate string `json:"request_date"`
}

// TopupData field order is part of the signature. "suscriber" is the provider's spelling.
type TopupData struct {
	ProductID string `json:"product_id"`
	Amount    string `json:"amount"`
	Suscriber string `json:"suscriber"`
	SellFrom  string `json:"sell_from"`
}

type queryTxData struct {
	Suscriber string `json:"suscriber"`
}

type queryPackagesData struct {
	ProductID string `json:"product_id"`
}

type winredEnvelope struct {
	Header    json.RawMessage `json:"header"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// WinredResult is the provider's result block.
type WinredResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// WinredResponse is the decoded provider answer. Success may come either in
// result.success or at the top level.
type WinredResponse struct {
	Result    *WinredResult   `json:"result"`
	Success   *bool           `json:"success"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"-"`
}

func (r *WinredResponse) OK() bool {
	if r.Result != nil && r.Result.Success {
		return true
	}
	return r.Success != nil && *r.Success
}

func (r *WinredResponse) Mensaje() string {
	if r.Result != nil && r.Result.Message != "" {
		return r.Result.Message
	}
	if r.Message != "" {
		return r.Message
	}
	return "sin detalle"
}

// FirmaInvalida reports a signature rejection, which the provider answers
// intermittently and is worth retrying with a fresh request id.
func (r *WinredResponse) FirmaInvalida() bool {
	msg := strings.ToLower(r.Mensaje())
	return strings.Contains(msg, "firma") || strings.Contains(msg, "signature")
}

// WinredHTTPError is a non-2xx answer from the provider.
type WinredHTTPError struct {
	Status int
	Body   string
}

func (e *WinredHTTPError) Error() string {
	return fmt.Sprintf("winred: HTTP %d: %s", e.Status, e.Body)
}

// IsTransient reports whether err is worth retrying: transport failures,
// timeouts and 5xx/429 answers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var he *WinredHTTPError
	if errors.As(err, &he) {
		return he.Status >= 500 || he.Status == http.StatusTooManyRequests
	}
	return false
}

// WinredPackage is one entry of the package catalog.
type WinredPackage struct {
	ProductID flexString `json:"product_id"`
	Name      string     `json:"name"`
	Price     flexString `json:"price"`
	Validity  flexString `json:"validity"`
}

// flexString accepts both JSON strings and numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexString(b)
	return nil
}

// WinredClient talks to the provider. now and requestID are swappable in tests.
type WinredClient struct {
	cfg        WinredConfig
	httpClient *http.Client
	now        func() time.Time
	requestID  func() string
}

func NewWinredClient(cfg WinredConfig) *WinredClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &WinredClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
		requestID: func() string {
			return strconv.Itoa(10_000_000 + rand.IntN(2_147_483_647-10_000_000+1))
		},
	}
}

func (c *WinredClient) credencialesCompletas() bool {
	return c.cfg.UserID != "" && c.cfg.APIKey != "" && c.cfg.SecretKey != "" &&
		c.cfg.BasicUser != "" && c.cfg.BasicPass != ""
}

// RequestDate formats t as YYYYMMDDHHMMSS in UTC, with ".000" when configured.
func (c *WinredClient) RequestDate(t time.Time) string {
	s := t.UTC().Format("20060102150405")
	if c.cfg.Millis {
		s += ".000"
	}
	return s
}

// BuildHeader creates a fresh header with its hash_key.
func (c *WinredClient) BuildHeader() WinredHeader {
	reqID := c.requestID()
	reqDate := c.RequestDate(c.now())
	return WinredHeader{
		APIVersion:  c.cfg.APIVersion,
		APIKey:      c.cfg.APIKey,
		RequestID:   reqID,
		HashKey:     hmacBase64(c.cfg.SecretKey, c.cfg.UserID+reqID+reqDate+c.cfg.APIKey),
		RequestDate: reqDate,
	}
}

// Sign returns the compact header/data encodings and the body signature.
func (c *WinredClient) Sign(header WinredHeader, data any) (hj, dj []byte, signature string, err error) {
	if hj, err = compactJSON(header); err != nil {
		return nil, nil, "", err
	}
	if dj, err = compactJSON(data); err != nil {
		return nil, nil, "", err
	}
	signature = hmacBase64(c.cfg.SecretKey, string(hj)+string(dj)+c.cfg.APIKey)
	return hj, dj, signature, nil
}

// Topup loads a package (or an amount) on a line. Called once; retries are the caller's decision.
func (c *WinredClient) Topup(ctx context.Context, data TopupData) (*WinredResponse, error) {
	if data.SellFrom == "" {
		data.SellFrom = "S"
	}
	if data.Amount == "" {
		data.Amount = "0"
	}
	return c.post(ctx, "topup", data)
}

// QueryTx returns the balance/last transactions for a subscriber.
func (c *WinredClient) QueryTx(ctx context.Context, suscriber string) (*WinredResponse, error) {
	return c.post(ctx, "querytx", queryTxData{Suscriber: suscriber})
}

// QueryPackages returns the catalog for an operator (0=all, 1=Claro, 2=Movistar, 3=Tigo).
func (c *WinredClient) QueryPackages(ctx context.Context, parentID string) ([]WinredPackage, error) {
	resp, err := c.post(ctx, "querypackages", queryPackagesData{ProductID: parentID})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("winred: querypackages: %s", resp.Mensaje())
	}
	var payload struct {
		Packages []WinredPackage `json:"packages"`
	}
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &payload); err != nil {
			return nil, fmt.Errorf("winred: decode packages: %w", err)
		}
	}
	return payload.Packages, nil
}

func (c *WinredClient) post(ctx context.Context, service string, data any) (*WinredResponse, error) {
	if !c.credencialesCompletas() {
		return nil, ErrWinredCredenciales
	}
	header := c.BuildHeader()
	hj, dj, signature, err := c.Sign(header, data)
	if err != nil {
		return nil, fmt.Errorf("winred: encode: %w", err)
	}
	body, err := compactJSON(winredEnvelope{Header: hj, Data: dj, Signature: signature})
	if err != nil {
		return nil, fmt.Errorf("winred: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/"+service, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("winred: create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Accept", "text/plain")
	req.SetBasicAuth(c.cfg.BasicUser, c.cfg.BasicPass)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("winred: %s unreachable: %w", service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("winred: read %s response: %w", service, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &WinredHTTPError{Status: resp.StatusCode, Body: truncate(string(raw), 300)}
	}

	var out WinredResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("winred: respuesta no JSON: %s", truncate(string(raw), 200))
	}
	out.RequestID = header.RequestID
	return &out, nil
}

func hmacBase64(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// compactJSON marshals v without spaces and without escaping <, > and &.
func compactJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
