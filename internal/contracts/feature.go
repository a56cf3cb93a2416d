package contracts

import "time"

// DateFormat is the canonical as-of date layout used everywhere
// (DB, API paths, LLM payloads).
const DateFormat = "2006-01-02"

// FeatureRow represents one instrument's feature data for one trading date
// ⭐ SSOT: 인제스트 → 유니버스 빌더 전달 단위. Primary key (as_of_date, ticker).
type FeatureRow struct {
	AsOfDate     time.Time          `json:"as_of_date"`
	Ticker       string             `json:"ticker"`
	Name         string             `json:"name"`
	TradingValue *float64           `json:"trading_value,omitempty"`
	Features     map[string]float64 `json:"features"`
}

// Candidate is the compact view of a FeatureRow sent to the LLM.
// Ticker/name/숫자 피처만. 그 외 필드는 절대 포함하지 않음.
type Candidate struct {
	Ticker   string             `json:"ticker"`
	Name     string             `json:"name"`
	Features map[string]float64 `json:"features"`
}

// CandidateSet is the bounded, ordered universe for one as-of date.
// Ephemeral: run마다 새로 만들고 저장하지 않음.
type CandidateSet struct {
	AsOfDate   time.Time
	Candidates []Candidate
}

// Count returns the number of candidates
func (s *CandidateSet) Count() int {
	return len(s.Candidates)
}
