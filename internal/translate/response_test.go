package translate

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router/internal/config"
)

func TestTranslateResponseOpenAIToClaude(t *testing.T) {
	tr := New()
	body := []byte(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`)

	out, err := tr.TranslateResponse(context.Background(), body, config.FormatOpenAI, config.FormatClaude)
	require.NoError(t, err)

	var got claudeResponse
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "message", got.Type)
	assert.Equal(t, "end_turn", got.StopReason)
	require.Len(t, got.Content, 1)
	assert.Equal(t, "hello", got.Content[0].Text)
	assert.Equal(t, 10, got.Usage.InputTokens)
	assert.Equal(t, 5, got.Usage.OutputTokens)
}

func TestTranslateResponseClaudeToOpenAI(t *testing.T) {
	tr := New()
	body := []byte(`{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-haiku-20241022",
		"content": [{"type": "text", "text": "hello"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)

	out, err := tr.TranslateResponse(context.Background(), body, config.FormatClaude, config.FormatOpenAI)
	require.NoError(t, err)

	var got openAIResponse
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got.Choices, 1)
	assert.Equal(t, "stop", got.Choices[0].FinishReason)
	assert.Equal(t, 15, got.Usage.TotalTokens)
}

func TestTranslateResponseToolUse(t *testing.T) {
	tr := New()
	body := []byte(`{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-3-5-haiku",
		"content": [{"type": "tool_use", "id": "call_1", "name": "get_weather", "input": {"city": "nyc"}}],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 1, "output_tokens": 1}
	}`)
	out, err := tr.TranslateResponse(context.Background(), body, config.FormatClaude, config.FormatOpenAI)
	require.NoError(t, err)

	var got openAIResponse
	require.NoError(t, json.Unmarshal(out, &got))
	require.Len(t, got.Choices[0].Message.ToolCalls, 1)
	assert.Equal(t, "get_weather", got.Choices[0].Message.ToolCalls[0].Function.Name)
	assert.Equal(t, "tool_calls", got.Choices[0].FinishReason)
}
