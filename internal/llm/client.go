package llm

import "context"

// Message roles on the chat boundary.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string
	Content string
}

// ChatClient is the thin transport boundary over one chat-completion backend.
// ⭐ SSOT: SDK 호출은 구현체 안에서만. 파싱/검증/리페어 로직은 Generator가 소유
//
// Complete sends the system prompt plus the message history and returns the
// model's text output. Implementations must not retry; 리페어 1회가 유일한
// 재시도 예산이다.
type ChatClient interface {
	Provider() string
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}
