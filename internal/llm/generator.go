package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaekSe/tootoo-recomendation/internal/contracts"
	"github.com/BaekSe/tootoo-recomendation/pkg/config"
	"github.com/BaekSe/tootoo-recomendation/pkg/logger"
)

// Generator drives the generate → validate → repair loop on top of a
// ChatClient. 첫 응답이 검증에 실패하면 정확히 1회 수정 요청을 보내고,
// 그것도 실패하면 ProviderError로 종료한다.
type Generator struct {
	client  ChatClient
	timeout time.Duration
	logger  *logger.Logger
}

// NewGenerator creates a Generator over the given chat client
func NewGenerator(client ChatClient, timeout time.Duration, log *logger.Logger) *Generator {
	return &Generator{
		client:  client,
		timeout: timeout,
		logger:  log,
	}
}

// NewGeneratorFromConfig wires the configured provider backend.
// ⭐ SSOT: provider 선택 분기는 여기서만
func NewGeneratorFromConfig(cfg config.LLMConfig, log *logger.Logger) (*Generator, error) {
	var client ChatClient
	var err error

	switch cfg.Provider {
	case "anthropic":
		client, err = NewAnthropicClient(cfg)
	case "openai":
		client, err = NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewGenerator(client, cfg.Timeout, log), nil
}

// Provider returns the backend identifier.
func (g *Generator) Provider() string {
	return g.client.Provider()
}

// Generate asks the backend for a recommendation snapshot for the candidate
// set. On success it returns the validated snapshot plus the raw payload for
// persistence. On failure the error is always a *ProviderError carrying the
// last raw output; the returned raw message is safe for a JSONB column.
func (g *Generator) Generate(ctx context.Context, set *contracts.CandidateSet) (*contracts.RecommendationSnapshot, json.RawMessage, error) {
	log := g.logger.WithFields(map[string]interface{}{
		"provider":   g.client.Provider(),
		"as_of_date": set.AsOfDate.Format(contracts.DateFormat),
		"candidates": set.Count(),
	})

	userPrompt, err := buildUserPrompt(set)
	if err != nil {
		return nil, nil, &ProviderError{
			Provider: g.client.Provider(),
			Stage:    StageParse,
			Detail:   err.Error(),
			Err:      err,
		}
	}

	messages := []Message{{Role: RoleUser, Content: userPrompt}}

	first, err := g.complete(ctx, messages)
	if err != nil {
		log.WithError(err).Error("generation request failed")
		return nil, nil, &ProviderError{
			Provider: g.client.Provider(),
			Stage:    StageTransport,
			Detail:   err.Error(),
			Err:      err,
		}
	}

	snapshot, validationErr := ParseSnapshot(first, set.AsOfDate)
	if validationErr == nil {
		log.Infof("generation succeeded on first attempt (%d items)", len(snapshot.Items))
		return snapshot, encodeRaw(first), nil
	}

	// 리페어 패스: 같은 후보 + 오류 설명을 다시 보냄. 딱 한 번.
	log.WithError(validationErr).Warn("first response failed validation, sending repair request")

	messages = append(messages,
		Message{Role: RoleAssistant, Content: first},
		Message{Role: RoleUser, Content: buildRepairPrompt(validationErr)},
	)

	second, err := g.complete(ctx, messages)
	if err != nil {
		log.WithError(err).Error("repair request failed")
		return nil, encodeRaw(first), &ProviderError{
			Provider:  g.client.Provider(),
			Stage:     StageTransport,
			Detail:    fmt.Sprintf("repair request: %v", err),
			RawOutput: first,
			Err:       err,
		}
	}

	snapshot, repairErr := ParseSnapshot(second, set.AsOfDate)
	if repairErr != nil {
		log.WithError(repairErr).Error("repair response failed validation")
		return nil, encodeRaw(second), &ProviderError{
			Provider:  g.client.Provider(),
			Stage:     StageValidate,
			Detail:    fmt.Sprintf("after repair pass: %v", repairErr),
			RawOutput: second,
			Err:       repairErr,
		}
	}

	log.Infof("generation succeeded after repair pass (%d items)", len(snapshot.Items))
	return snapshot, encodeRaw(second), nil
}

// complete runs one request under the configured hard timeout.
func (g *Generator) complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.client.Complete(ctx, systemPrompt, messages)
}
