package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quantHTMLFixture = `
<html><body>
<table class="type_2">
  <tr><th>N</th><th>종목명</th><th>현재가</th><th>전일비</th><th>등락률</th><th>거래량</th><th>거래대금</th><th>시가총액</th></tr>
  <tr>
    <td>1</td>
    <td><a href="/item/main.naver?code=005930">삼성전자</a></td>
    <td>71,900</td>
    <td>1,200</td>
    <td>+1.70%</td>
    <td>12,345,678</td>
    <td>887,654</td>
    <td>4,291,234</td>
  </tr>
  <tr><td colspan="8"></td></tr>
  <tr>
    <td>2</td>
    <td><a href="/item/main.naver?code=000660">SK하이닉스</a></td>
    <td>198,500</td>
    <td>-500</td>
    <td>-0.25%</td>
    <td>3,210,000</td>
    <td>637,185</td>
    <td>1,444,200</td>
  </tr>
</table>
</body></html>`

func TestParseQuantHTML(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	rows, err := parseQuantHTML(quantHTMLFixture, date)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "KRX:005930", first.Ticker)
	assert.Equal(t, "삼성전자", first.Name)
	require.NotNil(t, first.TradingValue)
	assert.Equal(t, 887654.0*1e6, *first.TradingValue)
	assert.Equal(t, 71900.0, first.Features["close_price"])
	assert.Equal(t, 1.70, first.Features["fluctuation_ratio"])
	assert.Equal(t, 12345678.0, first.Features["trading_volume"])

	second := rows[1]
	assert.Equal(t, "KRX:000660", second.Ticker)
	assert.Equal(t, -0.25, second.Features["fluctuation_ratio"])
}

func TestParseQuantHTMLEmpty(t *testing.T) {
	date := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := parseQuantHTML("<html><body></body></html>", date)
	require.Error(t, err)
}

func TestParseNaverNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"1,234", 1234},
		{"71,900", 71900},
		{"+1.70%", 1.7},
		{"-0.25%", -0.25},
		{"", 0},
		{"-", 0},
		{"abc", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseNaverNumber(tt.in), "input %q", tt.in)
	}
}

func TestCodeFromHref(t *testing.T) {
	assert.Equal(t, "005930", codeFromHref("/item/main.naver?code=005930"))
	assert.Equal(t, "005930", codeFromHref("/item/main.naver?code=005930&page=1"))
	assert.Equal(t, "", codeFromHref("/item/main.naver"))
	assert.Equal(t, "", codeFromHref("/item/main.naver?code=59"))
}
