package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
)

// DataProvider fetches one day of feature rows from an external source.
// ⭐ SSOT: 원천별 차이는 구현체 안에 가두고 서비스는 rows만 본다
//
// FetchDailyFeatures returns the parsed rows plus the provider's raw payload
// for the ingest-run audit record.
type DataProvider interface {
	Name() string
	FetchDailyFeatures(ctx context.Context, asOfDate time.Time) ([]contracts.FeatureRow, json.RawMessage, error)
}

// featuresResponse is the wire shape of the daily features endpoint.
type featuresResponse struct {
	AsOfDate string        `json:"as_of_date"`
	Items    []featureItem `json:"items"`
}

type featureItem struct {
	Ticker       string             `json:"ticker"`
	Name         string             `json:"name"`
	TradingValue *float64           `json:"trading_value"`
	Features     map[string]float64 `json:"features"`
}

// toRows validates the response against the expected date and converts it.
// as_of_date 불일치는 데이터 오염이므로 저장 전에 거부한다.
func (r *featuresResponse) toRows(expectedDate time.Time) ([]contracts.FeatureRow, error) {
	got, err := time.Parse(contracts.DateFormat, strings.TrimSpace(r.AsOfDate))
	if err != nil {
		return nil, fmt.Errorf("provider as_of_date is not YYYY-MM-DD: %q", r.AsOfDate)
	}
	if !got.Equal(expectedDate) {
		return nil, fmt.Errorf("provider as_of_date mismatch: expected %s, got %s",
			expectedDate.Format(contracts.DateFormat), r.AsOfDate)
	}

	rows := make([]contracts.FeatureRow, 0, len(r.Items))
	for i, item := range r.Items {
		if strings.TrimSpace(item.Ticker) == "" {
			return nil, fmt.Errorf("item %d: ticker must be non-empty", i)
		}
		if strings.TrimSpace(item.Name) == "" {
			return nil, fmt.Errorf("item %d: name must be non-empty", i)
		}
		if len(item.Features) == 0 {
			return nil, fmt.Errorf("item %d (%s): features must be non-empty", i, item.Ticker)
		}

		rows = append(rows, contracts.FeatureRow{
			AsOfDate:     expectedDate,
			Ticker:       strings.TrimSpace(item.Ticker),
			Name:         strings.TrimSpace(item.Name),
			TradingValue: item.TradingValue,
			Features:     item.Features,
		})
	}

	return rows, nil
}
