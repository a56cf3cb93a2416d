package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
)

// StubBuilder produces synthetic candidates without any database.
// 로컬 개발/드라이런 용도. 같은 날짜면 항상 같은 후보.
type StubBuilder struct {
	size int
}

// NewStubBuilder creates a stub builder producing size candidates per call
func NewStubBuilder(size int) *StubBuilder {
	return &StubBuilder{size: size}
}

// Build generates deterministic synthetic candidates for the date.
func (b *StubBuilder) Build(ctx context.Context, asOfDate time.Time) (*contracts.CandidateSet, error) {
	base := float64(asOfDate.Unix() / 86400)

	candidates := make([]contracts.Candidate, 0, b.size)
	for i := 0; i < b.size; i++ {
		candidates = append(candidates, contracts.Candidate{
			Ticker: fmt.Sprintf("KRX:%06d", i+1),
			Name:   fmt.Sprintf("Stub %06d", i+1),
			Features: map[string]float64{
				"stub_feature": base + float64(i),
			},
		})
	}

	return &contracts.CandidateSet{
		AsOfDate:   asOfDate,
		Candidates: candidates,
	}, nil
}
