package translate

import (
	"context"
	"io"

	"github.com/tributary-ai/llm-router/internal/config"
)

// Translator converts chat-completion traffic between wire formats.
type Translator interface {
	TranslateRequest(ctx context.Context, body []byte, from, to config.WireFormat) ([]byte, error)
	TranslateResponse(ctx context.Context, body []byte, from, to config.WireFormat) ([]byte, error)
	TranslateStream(ctx context.Context, upstream io.Reader, from, to config.WireFormat) io.Reader

	// ApplyEffort stamps a reasoning-effort hint (extracted from the
	// inbound body or a request header via ExtractEffort, so it may come
	// from outside the translated body's own native field) onto an
	// already-translated body shaped as to.
	ApplyEffort(body []byte, to config.WireFormat, e Effort) ([]byte, error)
}

type translator struct{}

// New returns the stateless OpenAI<->Claude Translator.
func New() Translator {
	return &translator{}
}
