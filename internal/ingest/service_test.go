package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

type fakeProvider struct {
	rows []contracts.FeatureRow
	raw  json.RawMessage
	err  error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FetchDailyFeatures(ctx context.Context, asOfDate time.Time) ([]contracts.FeatureRow, json.RawMessage, error) {
	return p.rows, p.raw, p.err
}

type recordedRun struct {
	provider string
	status   string
	errMsg   *string
}

type fakeWriter struct {
	upserted  []contracts.FeatureRow
	upsertErr error
	runs      []recordedRun
}

func (w *fakeWriter) UpsertBatch(ctx context.Context, asOfDate time.Time, rows []contracts.FeatureRow) (int64, error) {
	if w.upsertErr != nil {
		return 0, w.upsertErr
	}
	w.upserted = append(w.upserted, rows...)
	return int64(len(rows)), nil
}

func (w *fakeWriter) RecordIngestRun(ctx context.Context, asOfDate time.Time, provider, status string, errMsg *string, raw json.RawMessage) (uuid.UUID, error) {
	w.runs = append(w.runs, recordedRun{provider: provider, status: status, errMsg: errMsg})
	return uuid.New(), nil
}

func TestServiceRunSuccess(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	tv := 100.0
	provider := &fakeProvider{
		rows: []contracts.FeatureRow{
			{AsOfDate: date, Ticker: "KRX:005930", Name: "Samsung", TradingValue: &tv,
				Features: map[string]float64{"ret_1d": 0.01}},
		},
		raw: json.RawMessage(`{"ok":true}`),
	}
	writer := &fakeWriter{}

	svc := NewService(provider, writer, logger.NewNop())
	affected, err := svc.Run(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Len(t, writer.upserted, 1)

	require.Len(t, writer.runs, 1)
	assert.Equal(t, "fake", writer.runs[0].provider)
	assert.Equal(t, "success", writer.runs[0].status)
	assert.Nil(t, writer.runs[0].errMsg)
}

func TestServiceRunFetchFailure(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{err: errors.New("connection refused")}
	writer := &fakeWriter{}

	svc := NewService(provider, writer, logger.NewNop())
	_, err := svc.Run(context.Background(), date)
	require.Error(t, err)

	// 실패도 run으로 기록
	require.Len(t, writer.runs, 1)
	assert.Equal(t, "error", writer.runs[0].status)
	require.NotNil(t, writer.runs[0].errMsg)
	assert.Contains(t, *writer.runs[0].errMsg, "connection refused")
	assert.Empty(t, writer.upserted)
}

func TestServiceRunUpsertFailure(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		rows: []contracts.FeatureRow{{AsOfDate: date, Ticker: "KRX:005930", Name: "Samsung",
			Features: map[string]float64{"ret_1d": 0.01}}},
		raw: json.RawMessage(`{}`),
	}
	writer := &fakeWriter{upsertErr: errors.New("deadlock detected")}

	svc := NewService(provider, writer, logger.NewNop())
	_, err := svc.Run(context.Background(), date)
	require.Error(t, err)

	require.Len(t, writer.runs, 1)
	assert.Equal(t, "error", writer.runs[0].status)
}

func TestStubProviderDeterministic(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	stub, err := NewStubProvider(500)
	require.NoError(t, err)

	first, _, err := stub.FetchDailyFeatures(context.Background(), date)
	require.NoError(t, err)
	second, _, err := stub.FetchDailyFeatures(context.Background(), date)
	require.NoError(t, err)

	require.Len(t, first, 500)
	assert.Equal(t, first, second)

	// 거래대금은 순번 역순 (첫 행이 최대)
	assert.Equal(t, "KRX:000001", first[0].Ticker)
	require.NotNil(t, first[0].TradingValue)
	assert.Equal(t, 500.0*1e8, *first[0].TradingValue)
	assert.Equal(t, 1.0, first[0].Features["value_score"])
}

func TestStubProviderSizeBounds(t *testing.T) {
	_, err := NewStubProvider(0)
	require.Error(t, err)

	_, err = NewStubProvider(maxStubSize + 1)
	require.Error(t, err)
}
