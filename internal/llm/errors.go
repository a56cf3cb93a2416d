package llm

import "fmt"

// Stages at which a provider call can fail.
const (
	StageTransport = "transport"
	StageParse     = "parse"
	StageValidate  = "validate"
)

// ProviderError is the terminal failure of a generation attempt, raised only
// after the repair pass is exhausted. RawOutput carries the last model output
// for diagnostics. 부분적으로 유효한 페이로드는 절대 반환하지 않음.
type ProviderError struct {
	Provider  string
	Stage     string
	Detail    string
	RawOutput string
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm error (provider=%s, stage=%s): %s", e.Provider, e.Stage, e.Detail)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
