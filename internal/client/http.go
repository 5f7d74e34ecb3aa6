package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client-side validation limits, matching the backend schemas.
const (
	MinPasswordLength = 8
	MinBinanceKeyLen  = 10
)

// CredentialSource hands out the current session credential. It returns
// "" when there is no session.
type CredentialSource interface {
	Credential() string
}

// HTTPClient makes REST calls to the trading bot backend.
type HTTPClient struct {
	baseURL string
	creds   CredentialSource
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPClient creates a client targeting baseURL (e.g.
// "http://localhost:8000/api/v1"). rps <= 0 disables pacing.
func NewHTTPClient(baseURL string, creds CredentialSource, timeout time.Duration, rps float64) *HTTPClient {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 3),
	}
}

// Login sends POST /auth/login as a form and returns the access token.
func (c *HTTPClient) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var tok Token
	err := c.do(ctx, http.MethodPost, "/auth/login", strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded", &tok)
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("login: empty access token")
	}
	return tok.AccessToken, nil
}

// Register sends POST /auth/register.
func (c *HTTPClient) Register(ctx context.Context, email, password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	body := map[string]string{"email": email, "password": password}
	return c.sendJSON(ctx, http.MethodPost, "/auth/register", body, nil)
}

// GetConfiguration fetches GET /configurations.
func (c *HTTPClient) GetConfiguration(ctx context.Context) (*Configuration, error) {
	var out Configuration
	if err := c.get(ctx, "/configurations", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateConfiguration sends PUT /configurations with only the changed
// fields (see Diff) and returns the stored configuration.
func (c *HTTPClient) UpdateConfiguration(ctx context.Context, changes map[string]any) (*Configuration, error) {
	var out Configuration
	if err := c.sendJSON(ctx, http.MethodPut, "/configurations", changes, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetDashboardSummary fetches GET /dashboard/summary.
func (c *HTTPClient) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	var out DashboardSummary
	if err := c.get(ctx, "/dashboard/summary", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTrades fetches GET /trades?status=<status>.
func (c *HTTPClient) ListTrades(ctx context.Context, status string) ([]Trade, error) {
	path := "/trades"
	if status != "" {
		path += "?" + url.Values{"status": {status}}.Encode()
	}
	var out []Trade
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPositions returns active trades, or the closed ones when history is
// set. Closed statuses are fetched one by one and merged; the result is
// ordered newest first.
func (c *HTTPClient) ListPositions(ctx context.Context, history bool) ([]Trade, error) {
	statuses := []string{StatusActive}
	if history {
		statuses = HistoryStatuses
	}
	var all []Trade
	for _, st := range statuses {
		trades, err := c.ListTrades(ctx, st)
		if err != nil {
			return nil, err
		}
		all = append(all, trades...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].OpenedAt.After(all[j].OpenedAt.Time)
	})
	return all, nil
}

// CloseTradeManual sends POST /trades/{id}/close-manual.
func (c *HTTPClient) CloseTradeManual(ctx context.Context, tradeID string) error {
	return c.do(ctx, http.MethodPost, "/trades/"+url.PathEscape(tradeID)+"/close-manual", nil, "", nil)
}

// ListSignals fetches GET /signals with optional filters.
func (c *HTTPClient) ListSignals(ctx context.Context, f SignalFilter) ([]Signal, error) {
	q := url.Values{}
	if f.RiskLevel != "" {
		q.Set("risk_level", f.RiskLevel)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	path := "/signals"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []Signal
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivateSignal sends POST /trades/activate.
func (c *HTTPClient) ActivateSignal(ctx context.Context, signalID string) error {
	return c.sendJSON(ctx, http.MethodPost, "/trades/activate", map[string]string{"signal_id": signalID}, nil)
}

// UpdateBinanceKeys sends PUT /users/me/binance-keys.
func (c *HTTPClient) UpdateBinanceKeys(ctx context.Context, apiKey, apiSecret string) error {
	if len(apiKey) < MinBinanceKeyLen || len(apiSecret) < MinBinanceKeyLen {
		return fmt.Errorf("API key and secret must be at least %d characters", MinBinanceKeyLen)
	}
	body := map[string]string{"api_key": apiKey, "api_secret": apiSecret}
	return c.sendJSON(ctx, http.MethodPut, "/users/me/binance-keys", body, nil)
}

func (c *HTTPClient) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out)
}

func (c *HTTPClient) sendJSON(ctx context.Context, method, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, method, path, bytes.NewReader(data), "application/json", out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	c.setAuth(req)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("method", method).Str("path", path).Str("request_id", reqID).Msg("http: request failed")
		return err
	}
	defer resp.Body.Close()

	log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).Str("request_id", reqID).Msg("http")

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &RequestError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Detail: parseDetail(respBody),
		}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.creds == nil {
		return
	}
	if tok := c.creds.Credential(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}
