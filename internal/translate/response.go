package translate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tributary-ai/llm-router/internal/config"
)

// TranslateResponse converts a non-streaming chat-completion response body
// from one wire format to the other. If from == to, the body is returned
// unchanged.
func (t *translator) TranslateResponse(_ context.Context, body []byte, from, to config.WireFormat) ([]byte, error) {
	if from == to {
		return body, nil
	}
	switch {
	case from == config.FormatOpenAI && to == config.FormatClaude:
		return openAIResponseToClaude(body)
	case from == config.FormatClaude && to == config.FormatOpenAI:
		return claudeResponseToOpenAI(body)
	default:
		return nil, fmt.Errorf("translate: unsupported response direction %s -> %s", from, to)
	}
}

var openAIToClaudeStopReason = map[string]string{
	"stop":           "end_turn",
	"length":         "max_tokens",
	"tool_calls":     "tool_use",
	"content_filter": "stop_sequence",
}

var claudeToOpenAIFinishReason = map[string]string{
	"end_turn":      "stop",
	"max_tokens":    "length",
	"tool_use":      "tool_calls",
	"stop_sequence": "stop",
}

func openAIResponseToClaude(body []byte) ([]byte, error) {
	var src openAIResponse
	if err := json.Unmarshal(body, &src); err != nil {
		return nil, fmt.Errorf("translate: decode openai response: %w", err)
	}
	if len(src.Choices) == 0 {
		return nil, fmt.Errorf("translate: openai response has no choices")
	}
	choice := src.Choices[0]

	var blocks []claudeContent
	if len(choice.Message.Content) > 0 {
		text, err := flattenOpenAIContentToText(choice.Message.Content)
		if err == nil && text != "" {
			blocks = append(blocks, claudeContent{Type: "text", Text: text})
		}
	}
	for _, tc := range choice.Message.ToolCalls {
		var input json.RawMessage
		if tc.Function.Arguments != "" {
			input = json.RawMessage(tc.Function.Arguments)
		}
		blocks = append(blocks, claudeContent{Type: "tool_use", ID: tc.ID, Name: tc.Function.Name, Input: input})
	}

	dst := claudeResponse{
		ID:         src.ID,
		Type:       "message",
		Role:       "assistant",
		Model:      src.Model,
		Content:    blocks,
		StopReason: mapReason(openAIToClaudeStopReason, choice.FinishReason, "end_turn"),
	}
	if src.Usage != nil {
		dst.Usage = claudeUsage{InputTokens: src.Usage.PromptTokens, OutputTokens: src.Usage.CompletionTokens}
	}
	return json.Marshal(dst)
}

func claudeResponseToOpenAI(body []byte) ([]byte, error) {
	var src claudeResponse
	if err := json.Unmarshal(body, &src); err != nil {
		return nil, fmt.Errorf("translate: decode claude response: %w", err)
	}

	var textParts string
	var toolCalls []openAIToolCall
	for _, block := range src.Content {
		switch block.Type {
		case "text":
			textParts += block.Text
		case "tool_use":
			args := "{}"
			if len(block.Input) > 0 {
				args = string(block.Input)
			}
			toolCalls = append(toolCalls, openAIToolCall{
				ID:   block.ID,
				Type: "function",
				Function: openAICallArgs{
					Name:      block.Name,
					Arguments: args,
				},
			})
		}
	}

	var content json.RawMessage
	if textParts != "" {
		content = mustRawString(textParts)
	}

	finish := mapReason(claudeToOpenAIFinishReason, src.StopReason, "stop")
	dst := openAIResponse{
		ID:      src.ID,
		Object:  "chat.completion",
		Model:   src.Model,
		Choices: []openAIChoice{{Index: 0, Message: openAIMessage{Role: "assistant", Content: content, ToolCalls: toolCalls}, FinishReason: finish}},
		Usage: &openAIUsage{
			PromptTokens:     src.Usage.InputTokens,
			CompletionTokens: src.Usage.OutputTokens,
			TotalTokens:      src.Usage.InputTokens + src.Usage.OutputTokens,
		},
	}
	return json.Marshal(dst)
}

func mapReason(table map[string]string, key, fallback string) string {
	if v, ok := table[key]; ok {
		return v
	}
	return fallback
}
