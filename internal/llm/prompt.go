package llm

import (
	"encoding/json"
	"fmt"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
)

// systemPrompt pins the response contract. 모델이 JSON 이외의 산문을 섞지
// 않도록 출력 형식을 명시적으로 고정한다.
const systemPrompt = `You are an equity analyst producing end-of-day stock recommendations for the Korean market.

You will receive an as-of date and a JSON array of candidate instruments, each with a ticker, a name and a map of numeric features. Select up to 20 candidates and rank them.

Respond with a single JSON object and nothing else (no prose, no markdown fences):
{
  "as_of_date": "<echo the given date, YYYY-MM-DD>",
  "generated_at": "<current UTC time, RFC 3339>",
  "items": [
    {
      "rank": <1-based, contiguous from 1, no gaps or duplicates>,
      "ticker": "<from the candidate list, no duplicates>",
      "name": "<from the candidate list>",
      "rationale": ["<line 1>", "<line 2>", "<line 3>"],
      "risk_notes": "<optional>",
      "confidence": <optional, 0.0 to 1.0>
    }
  ]
}

Rules: at most 20 items, rationale must have exactly 3 non-empty lines, and every ticker must come from the candidate list.`

// buildUserPrompt renders the request body: as-of date + 후보의 compact view만.
// FeatureRow의 다른 필드는 절대 포함하지 않음.
func buildUserPrompt(set *contracts.CandidateSet) (string, error) {
	candidatesJSON, err := json.Marshal(set.Candidates)
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	return fmt.Sprintf("as_of_date: %s\ncandidates (%d): %s",
		set.AsOfDate.Format(contracts.DateFormat), set.Count(), candidatesJSON), nil
}

// buildRepairPrompt asks for corrected JSON after a failed validation.
func buildRepairPrompt(validationErr error) string {
	return fmt.Sprintf("Your previous response failed validation: %v\n"+
		"Return the corrected JSON object only, following the format rules exactly. No prose.",
		validationErr)
}
