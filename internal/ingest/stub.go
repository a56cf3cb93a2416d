package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
)

const maxStubSize = 5000

// StubProvider seeds deterministic synthetic feature rows. 로컬 개발과
// 통합 테스트 용도. 같은 (날짜, size)면 항상 같은 rows.
type StubProvider struct {
	size int
}

// NewStubProvider creates a stub provider producing size rows per call
func NewStubProvider(size int) (*StubProvider, error) {
	if size < 1 || size > maxStubSize {
		return nil, fmt.Errorf("stub ingest size must be 1..%d, got %d", maxStubSize, size)
	}
	return &StubProvider{size: size}, nil
}

// Name returns the provider identifier recorded with each ingest run.
func (p *StubProvider) Name() string {
	return "stub"
}

// FetchDailyFeatures generates the synthetic rows for the date.
func (p *StubProvider) FetchDailyFeatures(ctx context.Context, asOfDate time.Time) ([]contracts.FeatureRow, json.RawMessage, error) {
	base := math.Mod(float64(asOfDate.Unix()/86400), 10_000)

	rows := make([]contracts.FeatureRow, 0, p.size)
	for i := 1; i <= p.size; i++ {
		tradingValue := float64(p.size-i+1) * 1e8
		rows = append(rows, contracts.FeatureRow{
			AsOfDate:     asOfDate,
			Ticker:       fmt.Sprintf("KRX:%06d", i),
			Name:         fmt.Sprintf("Stub %06d", i),
			TradingValue: &tradingValue,
			Features: map[string]float64{
				"ret_1d":      (math.Mod(float64(i), 200) - 100) / 1000,
				"mom_5d":      (base + float64(i)) / 1000,
				"vol_20d":     math.Mod(float64(i), 50) / 100,
				"value_score": float64(p.size-i+1) / float64(p.size),
			},
		})
	}

	raw, err := json.Marshal(struct {
		AsOfDate string `json:"as_of_date"`
		Size     int    `json:"size"`
	}{AsOfDate: asOfDate.Format(contracts.DateFormat), Size: p.size})
	if err != nil {
		return nil, nil, fmt.Errorf("marshal raw payload: %w", err)
	}

	return rows, raw, nil
}
