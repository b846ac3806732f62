package handler

import (
	"encoding/json"
	"strings"

	"github.com/tributary-ai/llm-router/internal/config"
)

// DetectSourceFormat determines the wire format of an inbound request: the
// request path wins when it names a format explicitly, otherwise the body
// shape is inferred (an Anthropic request has a top-level "messages" array
// plus "max_tokens"; everything else is treated as OpenAI-shaped).
func DetectSourceFormat(path string, body []byte) config.WireFormat {
	switch {
	case strings.Contains(path, "/anthropic/") || path == "/v1/messages":
		return config.FormatClaude
	case strings.Contains(path, "/openai/") || strings.Contains(path, "/chat/completions"):
		return config.FormatOpenAI
	}

	var probe struct {
		MaxTokens int              `json:"max_tokens"`
		Messages  []json.RawMessage `json:"messages"`
		Model     string           `json:"model"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.MaxTokens > 0 && len(probe.Messages) > 0 {
		return config.FormatClaude
	}
	return config.FormatOpenAI
}

// extractRequestedModel pulls the top-level "model" field shared by both
// wire formats.
func extractRequestedModel(body []byte) string {
	var probe struct {
		Model string `json:"model"`
	}
	_ = json.Unmarshal(body, &probe)
	return probe.Model
}
