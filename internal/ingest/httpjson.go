package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
	"github.com/BaekSe/tootoo-recomendation/pkg/httputil"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// HTTPJSONProvider fetches daily features from a generic JSON endpoint:
// GET {base_url}{features_path}?as_of_date=YYYY-MM-DD, 인증은 x-api-key 헤더.
type HTTPJSONProvider struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	path       string
	apiKey     string
	limiter    *rate.Limiter
}

// NewHTTPJSONProvider creates a provider from ingest configuration
func NewHTTPJSONProvider(cfg config.IngestConfig, httpClient *httputil.Client, log *logger.Logger) (*HTTPJSONProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("DATA_PROVIDER_BASE_URL is required for the http provider")
	}

	path := cfg.FeaturesPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 1
	}

	return &HTTPJSONProvider{
		httpClient: httpClient,
		logger:     log,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		path:       path,
		apiKey:     cfg.APIKey,
		limiter:    rate.NewLimiter(rate.Limit(perSec), 1),
	}, nil
}

// Name returns the provider identifier recorded with each ingest run.
func (p *HTTPJSONProvider) Name() string {
	return "external_http_json"
}

// FetchDailyFeatures fetches and validates one day of feature rows.
func (p *HTTPJSONProvider) FetchDailyFeatures(ctx context.Context, asOfDate time.Time) ([]contracts.FeatureRow, json.RawMessage, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("as_of_date", asOfDate.Format(contracts.DateFormat))
	fullURL := fmt.Sprintf("%s%s?%s", p.baseURL, p.path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("x-api-key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("data provider request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("read provider response: %w", err)
	}

	if !json.Valid(body) {
		return nil, nil, fmt.Errorf("provider response is not valid JSON (HTTP %d)", resp.StatusCode)
	}
	raw := json.RawMessage(body)

	if resp.StatusCode != http.StatusOK {
		return nil, raw, fmt.Errorf("data provider HTTP %d: %s", resp.StatusCode, body)
	}

	var parsed featuresResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, raw, fmt.Errorf("parse provider response: %w", err)
	}

	rows, err := parsed.toRows(asOfDate)
	if err != nil {
		return nil, raw, err
	}

	p.logger.WithFields(map[string]interface{}{
		"as_of_date": asOfDate.Format(contracts.DateFormat),
		"items":      len(rows),
	}).Info("fetched daily features from external provider")

	return rows, raw, nil
}
