package universe

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
)

// Builder constructs the bounded candidate set for one as-of date.
// ⭐ SSOT: 피처 행 → LLM 후보 변환은 여기서만
type Builder struct {
	features contracts.FeatureReader
	config   config.UniverseConfig
}

// NewBuilder creates a new candidate universe Builder
func NewBuilder(features contracts.FeatureReader, cfg config.UniverseConfig) *Builder {
	return &Builder{
		features: features,
		config:   cfg,
	}
}

// Build loads feature rows for the date, filters, ranks by trading value and
// truncates to the configured maximum.
//
// 결정성 보장: 같은 입력이면 항상 같은 순서의 후보를 돌려준다.
// trading_value 내림차순, 동률이면 ticker 오름차순.
func (b *Builder) Build(ctx context.Context, asOfDate time.Time) (*contracts.CandidateSet, error) {
	rows, err := b.features.ListByDate(ctx, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("list features: %w", err)
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoFeatureData, asOfDate.Format(contracts.DateFormat))
	}

	// 거래대금 필터 (0이면 비활성)
	filtered := make([]contracts.FeatureRow, 0, len(rows))
	for _, row := range rows {
		if b.config.MinTradingValue > 0 {
			if row.TradingValue == nil || *row.TradingValue < b.config.MinTradingValue {
				continue
			}
		}
		filtered = append(filtered, row)
	}

	sort.Slice(filtered, func(i, j int) bool {
		vi := tradingValue(filtered[i])
		vj := tradingValue(filtered[j])
		if vi != vj {
			return vi > vj
		}
		return filtered[i].Ticker < filtered[j].Ticker
	})

	if len(filtered) < b.config.MinCandidates {
		return nil, fmt.Errorf("%w: %d candidates, need %d",
			contracts.ErrUndersizedUniverse, len(filtered), b.config.MinCandidates)
	}

	if len(filtered) > b.config.MaxCandidates {
		filtered = filtered[:b.config.MaxCandidates]
	}

	candidates := make([]contracts.Candidate, 0, len(filtered))
	for _, row := range filtered {
		candidates = append(candidates, contracts.Candidate{
			Ticker:   row.Ticker,
			Name:     row.Name,
			Features: row.Features,
		})
	}

	return &contracts.CandidateSet{
		AsOfDate:   asOfDate,
		Candidates: candidates,
	}, nil
}

// tradingValue treats a missing trading value as zero for ranking purposes.
func tradingValue(row contracts.FeatureRow) float64 {
	if row.TradingValue == nil {
		return 0
	}
	return *row.TradingValue
}
