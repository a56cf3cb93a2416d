package contracts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SnapshotStatus enumerates terminal outcomes of one EOD run.
type SnapshotStatus string

const (
	StatusSuccess SnapshotStatus = "success"
	StatusFailed  SnapshotStatus = "failed"
)

// MaxItems is the largest item count a snapshot may carry.
const MaxItems = 20

// RecommendationSnapshot is one immutable, dated output of the EOD job
// ⭐ SSOT: as_of_date당 success는 최대 1건 (partial unique index로 저장소에서도 방어)
type RecommendationSnapshot struct {
	ID          uuid.UUID            `json:"id"`
	AsOfDate    time.Time            `json:"as_of_date"`
	GeneratedAt time.Time            `json:"generated_at"`
	Provider    string               `json:"provider"`
	Status      SnapshotStatus       `json:"status"`
	Error       *string              `json:"error,omitempty"`
	Items       []RecommendationItem `json:"items,omitempty"`
}

// RecommendationItem belongs to exactly one snapshot.
// rank/ticker는 스냅샷 내에서 유일, rationale은 정확히 3줄.
type RecommendationItem struct {
	Rank       int       `json:"rank"`
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Rationale  [3]string `json:"rationale"`
	RiskNotes  *string   `json:"risk_notes,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// LLMSnapshotPayload is the wire contract the provider must return.
// Loosely typed on purpose; Validate가 도메인 타입으로 승격시킴.
type LLMSnapshotPayload struct {
	AsOfDate    string           `json:"as_of_date"`
	GeneratedAt time.Time        `json:"generated_at"`
	Items       []LLMItemPayload `json:"items"`
}

// LLMItemPayload mirrors one item of the provider response.
type LLMItemPayload struct {
	Rank       int      `json:"rank"`
	Ticker     string   `json:"ticker"`
	Name       string   `json:"name"`
	Rationale  []string `json:"rationale"`
	RiskNotes  *string  `json:"risk_notes,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Validate checks the payload structurally and semantically and converts it
// into a success snapshot for expectedDate. The returned snapshot has no ID;
// the store assigns one at insert time.
//
// Rules: as_of_date 일치, 1..20개 아이템, rank는 정확히 {1..n} 순열,
// ticker 중복 금지, rationale 정확히 3줄(공백 불가), confidence는 [0,1].
func (p *LLMSnapshotPayload) Validate(expectedDate time.Time) (*RecommendationSnapshot, error) {
	got, err := time.Parse(DateFormat, strings.TrimSpace(p.AsOfDate))
	if err != nil {
		return nil, fmt.Errorf("as_of_date is not YYYY-MM-DD: %q", p.AsOfDate)
	}
	if !got.Equal(expectedDate) {
		return nil, fmt.Errorf("as_of_date mismatch: expected %s, got %s",
			expectedDate.Format(DateFormat), p.AsOfDate)
	}

	n := len(p.Items)
	if n < 1 || n > MaxItems {
		return nil, fmt.Errorf("items count must be in [1, %d], got %d", MaxItems, n)
	}

	seenRanks := make(map[int]bool, n)
	seenTickers := make(map[string]bool, n)
	items := make([]RecommendationItem, 0, n)

	for i, raw := range p.Items {
		item, err := raw.validate()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if seenRanks[item.Rank] {
			return nil, fmt.Errorf("item %d: duplicate rank %d", i, item.Rank)
		}
		if seenTickers[item.Ticker] {
			return nil, fmt.Errorf("item %d: duplicate ticker %s", i, item.Ticker)
		}
		seenRanks[item.Rank] = true
		seenTickers[item.Ticker] = true
		items = append(items, item)
	}

	// Ranks must be exactly 1..n, no gaps.
	for rank := 1; rank <= n; rank++ {
		if !seenRanks[rank] {
			return nil, fmt.Errorf("missing rank %d (got %d items)", rank, n)
		}
	}

	return &RecommendationSnapshot{
		AsOfDate:    expectedDate,
		GeneratedAt: p.GeneratedAt,
		Status:      StatusSuccess,
		Items:       items,
	}, nil
}

func (p LLMItemPayload) validate() (RecommendationItem, error) {
	var item RecommendationItem

	if p.Rank < 1 || p.Rank > MaxItems {
		return item, fmt.Errorf("rank out of range [1, %d]: %d", MaxItems, p.Rank)
	}

	ticker := strings.TrimSpace(p.Ticker)
	if ticker == "" {
		return item, fmt.Errorf("ticker must be non-empty")
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		return item, fmt.Errorf("name must be non-empty")
	}

	if len(p.Rationale) != 3 {
		return item, fmt.Errorf("rationale must have exactly 3 lines, got %d", len(p.Rationale))
	}
	var rationale [3]string
	for i, line := range p.Rationale {
		line = strings.TrimSpace(line)
		if line == "" {
			return item, fmt.Errorf("rationale line %d must be non-empty", i+1)
		}
		rationale[i] = line
	}

	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 1) {
		return item, fmt.Errorf("confidence must be in [0, 1], got %g", *p.Confidence)
	}

	riskNotes := p.RiskNotes
	if riskNotes != nil {
		trimmed := strings.TrimSpace(*riskNotes)
		if trimmed == "" {
			riskNotes = nil
		} else {
			riskNotes = &trimmed
		}
	}

	return RecommendationItem{
		Rank:       p.Rank,
		Ticker:     ticker,
		Name:       name,
		Rationale:  rationale,
		RiskNotes:  riskNotes,
		Confidence: p.Confidence,
	}, nil
}
