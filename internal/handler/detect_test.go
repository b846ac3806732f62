package handler

import (
	"testing"

	"github.com/tributary-ai/llm-router/internal/config"
)

func TestDetectSourceFormatByPath(t *testing.T) {
	if got := DetectSourceFormat("/v1/messages", []byte(`{}`)); got != config.FormatClaude {
		t.Errorf("/v1/messages = %q, want claude", got)
	}
	if got := DetectSourceFormat("/anthropic/v1/messages", []byte(`{}`)); got != config.FormatClaude {
		t.Errorf("/anthropic/v1/messages = %q, want claude", got)
	}
	if got := DetectSourceFormat("/v1/chat/completions", []byte(`{}`)); got != config.FormatOpenAI {
		t.Errorf("/v1/chat/completions = %q, want openai", got)
	}
}

func TestDetectSourceFormatByBodyShape(t *testing.T) {
	claudeBody := []byte(`{"model":"claude-3-5-haiku","max_tokens":256,"messages":[{"role":"user","content":"hi"}]}`)
	if got := DetectSourceFormat("/", claudeBody); got != config.FormatClaude {
		t.Errorf("claude-shaped body on unknown path = %q, want claude", got)
	}

	openAIBody := []byte(`{"model":"gpt-4o-mini","messages":[{"role":"user","content":"hi"}]}`)
	if got := DetectSourceFormat("/", openAIBody); got != config.FormatOpenAI {
		t.Errorf("openai-shaped body (no max_tokens) on unknown path = %q, want openai", got)
	}
}

func TestExtractRequestedModel(t *testing.T) {
	if got := extractRequestedModel([]byte(`{"model":"gpt-4o-mini"}`)); got != "gpt-4o-mini" {
		t.Errorf("extractRequestedModel = %q, want gpt-4o-mini", got)
	}
	if got := extractRequestedModel([]byte(`not json`)); got != "" {
		t.Errorf("extractRequestedModel on invalid json = %q, want empty", got)
	}
}
