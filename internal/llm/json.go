package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
)

// ExtractJSON pulls the JSON document out of a model response. Markdown
// 펜스(```json ... ```)를 먼저 벗기고, 없으면 첫 '{'부터 마지막 '}'까지를
// 최선 노력으로 잘라낸다. 둘 다 실패하면 ok=false.
func ExtractJSON(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "```") {
		inner := trimmed
		if _, after, found := strings.Cut(inner, "\n"); found {
			inner = after
		}
		if end := strings.LastIndex(inner, "```"); end >= 0 {
			inner = inner[:end]
		}
		return strings.TrimSpace(inner), true
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return strings.TrimSpace(trimmed[start : end+1]), true
}

// ParseSnapshot extracts, decodes and validates a model response into a
// success snapshot for expectedDate.
func ParseSnapshot(text string, expectedDate time.Time) (*contracts.RecommendationSnapshot, error) {
	jsonStr, ok := ExtractJSON(text)
	if !ok {
		jsonStr = strings.TrimSpace(text)
	}

	var payload contracts.LLMSnapshotPayload
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("output is not valid snapshot JSON: %w", err)
	}

	return payload.Validate(expectedDate)
}

// encodeRaw makes a model output safe for a JSONB column: 유효한 JSON이면
// 그대로, 아니면 raw_text로 감싼다.
func encodeRaw(text string) json.RawMessage {
	jsonStr, ok := ExtractJSON(text)
	if ok && json.Valid([]byte(jsonStr)) {
		return json.RawMessage(jsonStr)
	}

	wrapped, err := json.Marshal(struct {
		RawText string `json:"raw_text"`
	}{RawText: text})
	if err != nil {
		return json.RawMessage(`{"raw_text":""}`)
	}
	return wrapped
}
