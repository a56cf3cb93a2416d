package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// scriptedClient replays a fixed sequence of responses and records every call.
type scriptedClient struct {
	responses []string
	errs      []error
	calls     [][]Message
}

func (c *scriptedClient) Provider() string { return "scripted" }

func (c *scriptedClient) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	idx := len(c.calls)
	c.calls = append(c.calls, messages)
	if idx < len(c.errs) && c.errs[idx] != nil {
		return "", c.errs[idx]
	}
	if idx >= len(c.responses) {
		return "", errors.New("scripted client exhausted")
	}
	return c.responses[idx], nil
}

func testCandidateSet() *contracts.CandidateSet {
	return &contracts.CandidateSet{
		AsOfDate: time.Date(2026, 1, 27, 0, 0, 0, 0, time.UTC),
		Candidates: []contracts.Candidate{
			{Ticker: "KRX:000001", Name: "Alpha", Features: map[string]float64{"momentum": 1}},
			{Ticker: "KRX:000002", Name: "Beta", Features: map[string]float64{"momentum": 2}},
		},
	}
}

func TestGenerateFirstAttemptSucceeds(t *testing.T) {
	set := testCandidateSet()
	client := &scriptedClient{responses: []string{validSnapshotJSON(t, set.AsOfDate, 3)}}
	gen := NewGenerator(client, time.Minute, logger.NewNop())

	snapshot, raw, err := gen.Generate(context.Background(), set)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.Items, 3)
	assert.NotEmpty(t, raw)

	// 검증 통과 시 리페어 요청이 없어야 함
	require.Len(t, client.calls, 1)
	assert.Len(t, client.calls[0], 1)
	assert.Equal(t, RoleUser, client.calls[0][0].Role)
}

func TestGenerateRepairPassSucceeds(t *testing.T) {
	set := testCandidateSet()
	client := &scriptedClient{responses: []string{
		"here are my picks, hope this helps!",
		validSnapshotJSON(t, set.AsOfDate, 3),
	}}
	gen := NewGenerator(client, time.Minute, logger.NewNop())

	snapshot, _, err := gen.Generate(context.Background(), set)
	require.NoError(t, err)
	assert.Len(t, snapshot.Items, 3)

	// 리페어 요청은 이전 응답과 오류 설명을 함께 실어야 함
	require.Len(t, client.calls, 2)
	repair := client.calls[1]
	require.Len(t, repair, 3)
	assert.Equal(t, RoleUser, repair[0].Role)
	assert.Equal(t, RoleAssistant, repair[1].Role)
	assert.Equal(t, "here are my picks, hope this helps!", repair[1].Content)
	assert.Equal(t, RoleUser, repair[2].Role)
	assert.Contains(t, repair[2].Content, "failed validation")
}

func TestGenerateRepairPassAlsoFails(t *testing.T) {
	set := testCandidateSet()
	client := &scriptedClient{responses: []string{
		"still not json",
		"also not json",
	}}
	gen := NewGenerator(client, time.Minute, logger.NewNop())

	_, raw, err := gen.Generate(context.Background(), set)
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, StageValidate, provErr.Stage)
	assert.Equal(t, "also not json", provErr.RawOutput)
	assert.NotEmpty(t, raw)

	// 정확히 2회 호출 (리페어는 한 번뿐)
	assert.Len(t, client.calls, 2)
}

func TestGenerateTransportError(t *testing.T) {
	set := testCandidateSet()
	client := &scriptedClient{errs: []error{errors.New("connection refused")}}
	gen := NewGenerator(client, time.Minute, logger.NewNop())

	_, _, err := gen.Generate(context.Background(), set)
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, StageTransport, provErr.Stage)
	assert.Len(t, client.calls, 1)
}

func TestGenerateRepairTransportError(t *testing.T) {
	set := testCandidateSet()
	client := &scriptedClient{
		responses: []string{"not json", ""},
		errs:      []error{nil, errors.New("timeout")},
	}
	gen := NewGenerator(client, time.Minute, logger.NewNop())

	_, _, err := gen.Generate(context.Background(), set)
	require.Error(t, err)

	var provErr *ProviderError
	require.True(t, errors.As(err, &provErr))
	assert.Equal(t, StageTransport, provErr.Stage)
	assert.Equal(t, "not json", provErr.RawOutput)
}

func TestGenerateSemanticViolationTriggersRepair(t *testing.T) {
	set := testCandidateSet()

	// rank 2가 빠진 응답 → 구조는 맞지만 순열 위반
	bad := `{"as_of_date":"2026-01-27","generated_at":"2026-01-27T10:00:00Z","items":[
		{"rank":1,"ticker":"KRX:000001","name":"Alpha","rationale":["a","b","c"]},
		{"rank":3,"ticker":"KRX:000002","name":"Beta","rationale":["a","b","c"]}]}`

	client := &scriptedClient{responses: []string{bad, validSnapshotJSON(t, set.AsOfDate, 2)}}
	gen := NewGenerator(client, time.Minute, logger.NewNop())

	snapshot, _, err := gen.Generate(context.Background(), set)
	require.NoError(t, err)
	assert.Len(t, snapshot.Items, 2)
	require.Len(t, client.calls, 2)
	assert.Contains(t, client.calls[1][2].Content, "missing rank 2")
}
