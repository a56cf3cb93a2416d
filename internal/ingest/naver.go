package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/httputil"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

const (
	naverStockAPIURL  = "https://m.stock.naver.com/api/stocks/marketValue/%s?page=1&pageSize=%d"
	naverQuantHTMLURL = "https://finance.naver.com/sise/sise_quant.naver?sosok=%d"
	naverUserAgent    = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
	naverPageSize     = 100
)

// NaverProvider builds daily feature rows from Naver Finance rankings.
// ⭐ SSOT: Naver 호출은 이 프로바이더에서만
//
// 모바일 API(JSON)가 1차 원천이고, 실패하면 거래대금 상위 HTML 페이지를
// 파싱하는 백업 경로를 탄다.
type NaverProvider struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	markets    []string
}

// NewNaverProvider creates a Naver-backed feature provider
func NewNaverProvider(httpClient *httputil.Client, log *logger.Logger) *NaverProvider {
	return &NaverProvider{
		httpClient: httpClient,
		logger:     log,
		markets:    []string{"KOSPI", "KOSDAQ"},
	}
}

// Name returns the provider identifier recorded with each ingest run.
func (p *NaverProvider) Name() string {
	return "naver"
}

// naverAPIResponse is the mobile ranking API shape. 숫자 필드가 콤마 섞인
// 문자열로 온다.
type naverAPIResponse struct {
	Stocks []naverStockItem `json:"stocks"`
}

type naverStockItem struct {
	ItemCode                 string `json:"itemCode"`
	StockName                string `json:"stockName"`
	ClosePrice               string `json:"closePrice"`
	FluctuationsRatio        string `json:"fluctuationsRatio"`
	AccumulatedTradingVolume string `json:"accumulatedTradingVolume"`
	AccumulatedTradingValue  string `json:"accumulatedTradingValue"` // 백만원 단위
	MarketValue              string `json:"marketValue"`             // 억원 단위
}

// FetchDailyFeatures fetches ranking data per market and converts it into
// feature rows for the date.
func (p *NaverProvider) FetchDailyFeatures(ctx context.Context, asOfDate time.Time) ([]contracts.FeatureRow, json.RawMessage, error) {
	rows := make([]contracts.FeatureRow, 0, naverPageSize*len(p.markets))
	source := "m.stock.naver.com"

	for _, market := range p.markets {
		marketRows, err := p.fetchFromAPI(ctx, asOfDate, market)
		if err != nil {
			p.logger.WithError(err).WithField("market", market).
				Warn("Naver API fetch failed, falling back to HTML ranking page")
			marketRows, err = p.fetchFromHTML(ctx, asOfDate, market)
			if err != nil {
				return nil, nil, fmt.Errorf("naver fetch (%s): %w", market, err)
			}
			source = "finance.naver.com"
		}
		rows = append(rows, marketRows...)
	}

	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("naver returned no ranking rows for %s", asOfDate.Format(contracts.DateFormat))
	}

	raw, err := json.Marshal(struct {
		AsOfDate string                 `json:"as_of_date"`
		Source   string                 `json:"source"`
		Items    []contracts.FeatureRow `json:"items"`
	}{
		AsOfDate: asOfDate.Format(contracts.DateFormat),
		Source:   source,
		Items:    rows,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal raw payload: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"as_of_date": asOfDate.Format(contracts.DateFormat),
		"items":      len(rows),
		"source":     source,
	}).Info("fetched daily features from Naver")

	return rows, raw, nil
}

// fetchFromAPI reads the market-value ranking from the mobile JSON API.
func (p *NaverProvider) fetchFromAPI(ctx context.Context, asOfDate time.Time, market string) ([]contracts.FeatureRow, error) {
	apiURL := fmt.Sprintf(naverStockAPIURL, market, naverPageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", naverUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var apiResp naverAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	rows := make([]contracts.FeatureRow, 0, len(apiResp.Stocks))
	for _, stock := range apiResp.Stocks {
		if stock.ItemCode == "" || stock.StockName == "" {
			continue
		}

		tradingValue := parseNaverNumber(stock.AccumulatedTradingValue) * 1e6
		features := map[string]float64{
			"close_price":       parseNaverNumber(stock.ClosePrice),
			"fluctuation_ratio": parseNaverNumber(stock.FluctuationsRatio),
			"trading_volume":    parseNaverNumber(stock.AccumulatedTradingVolume),
			"market_cap":        parseNaverNumber(stock.MarketValue) * 1e8,
		}

		rows = append(rows, contracts.FeatureRow{
			AsOfDate:     asOfDate,
			Ticker:       "KRX:" + stock.ItemCode,
			Name:         stock.StockName,
			TradingValue: &tradingValue,
			Features:     features,
		})
	}

	return rows, nil
}

// fetchFromHTML scrapes the trading-value ranking page.
// 컬럼: N | 종목명 | 현재가 | 전일비 | 등락률 | 거래량 | 거래대금 | ...
func (p *NaverProvider) fetchFromHTML(ctx context.Context, asOfDate time.Time, market string) ([]contracts.FeatureRow, error) {
	sosok := 0 // KOSPI
	if market == "KOSDAQ" {
		sosok = 1
	}
	pageURL := fmt.Sprintf(naverQuantHTMLURL, sosok)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", naverUserAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return parseQuantHTML(string(body), asOfDate)
}

// parseQuantHTML extracts feature rows from the ranking table HTML.
func parseQuantHTML(html string, asOfDate time.Time) ([]contracts.FeatureRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var rows []contracts.FeatureRow
	doc.Find("table.type_2 tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		link := cells.Eq(1).Find("a")
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		code := codeFromHref(href)
		if code == "" {
			return
		}

		name := strings.TrimSpace(link.Text())
		if name == "" {
			return
		}

		tradingValue := parseNaverNumber(cells.Eq(6).Text()) * 1e6
		features := map[string]float64{
			"close_price":       parseNaverNumber(cells.Eq(2).Text()),
			"fluctuation_ratio": parseNaverNumber(cells.Eq(4).Text()),
			"trading_volume":    parseNaverNumber(cells.Eq(5).Text()),
		}

		rows = append(rows, contracts.FeatureRow{
			AsOfDate:     asOfDate,
			Ticker:       "KRX:" + code,
			Name:         name,
			TradingValue: &tradingValue,
			Features:     features,
		})
	})

	if len(rows) == 0 {
		return nil, fmt.Errorf("no ranking rows found in HTML")
	}
	return rows, nil
}

// codeFromHref extracts the 6-digit stock code from an item link like
// /item/main.naver?code=005930.
func codeFromHref(href string) string {
	_, after, found := strings.Cut(href, "code=")
	if !found {
		return ""
	}
	if idx := strings.IndexAny(after, "&#"); idx >= 0 {
		after = after[:idx]
	}
	if len(after) != 6 {
		return ""
	}
	return after
}

// parseNaverNumber parses Naver's comma-separated numeric strings.
// "1,234" → 1234, "-0.52%" → -0.52, 빈 값/대시는 0.
func parseNaverNumber(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimPrefix(s, "+")
	if s == "" || s == "-" {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}
