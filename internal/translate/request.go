package translate

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tributary-ai/llm-router/internal/config"
)

// TranslateRequest converts a chat-completion request body from one wire
// format to the other. If from == to, the body is returned unchanged.
func (t *translator) TranslateRequest(_ context.Context, body []byte, from, to config.WireFormat) ([]byte, error) {
	if from == to {
		return body, nil
	}
	switch {
	case from == config.FormatOpenAI && to == config.FormatClaude:
		return openAIRequestToClaude(body)
	case from == config.FormatClaude && to == config.FormatOpenAI:
		return claudeRequestToOpenAI(body)
	default:
		return nil, fmt.Errorf("translate: unsupported request direction %s -> %s", from, to)
	}
}

func openAIRequestToClaude(body []byte) ([]byte, error) {
	var src openAIRequest
	if err := json.Unmarshal(body, &src); err != nil {
		return nil, fmt.Errorf("translate: decode openai request: %w", err)
	}

	dst := claudeRequest{
		Model:         src.Model,
		Temperature:   src.Temperature,
		TopP:          src.TopP,
		StopSequences: src.Stop,
		Stream:        src.Stream,
	}
	if src.MaxTokens != nil {
		dst.MaxTokens = *src.MaxTokens
	} else {
		dst.MaxTokens = 1024 // Claude requires max_tokens; OpenAI does not
	}

	for _, msg := range src.Messages {
		if msg.Role == "system" {
			text, err := flattenOpenAIContentToText(msg.Content)
			if err != nil {
				return nil, err
			}
			if dst.System != "" {
				dst.System += "\n\n"
			}
			dst.System += text
			continue
		}

		claudeMsg, err := openAIMessageToClaude(msg)
		if err != nil {
			return nil, err
		}
		dst.Messages = append(dst.Messages, claudeMsg)
	}

	for _, tool := range src.Tools {
		dst.Tools = append(dst.Tools, claudeTool{
			Name:        tool.Function.Name,
			Description: tool.Function.Description,
			InputSchema: tool.Function.Parameters,
		})
	}

	if e, ok := effortFromOpenAIRequest(&src); ok {
		applyEffortToClaude(&dst, e)
	}

	return json.Marshal(dst)
}

func openAIMessageToClaude(msg openAIMessage) (claudeMessage, error) {
	role := msg.Role
	if role == "tool" {
		role = "user"
		return claudeMessage{Role: role, Content: []claudeContent{{
			Type:          "tool_result",
			ToolUseID:     msg.ToolCallID,
			ResultContent: mustRawString(string(msg.Content)),
		}}}, nil
	}

	var blocks []claudeContent
	if len(msg.Content) > 0 {
		parts, err := parseOpenAIContent(msg.Content)
		if err != nil {
			return claudeMessage{}, err
		}
		for _, p := range parts {
			switch p.Type {
			case "text":
				blocks = append(blocks, claudeContent{Type: "text", Text: p.Text})
			case "image_url":
				if p.ImageURL != nil {
					blocks = append(blocks, claudeContent{Type: "image", Source: &claudeImgSrc{Type: "url", URL: p.ImageURL.URL}})
				}
			}
		}
	}
	for _, tc := range msg.ToolCalls {
		var input json.RawMessage
		if tc.Function.Arguments != "" {
			input = json.RawMessage(tc.Function.Arguments)
		}
		blocks = append(blocks, claudeContent{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: input,
		})
	}

	return claudeMessage{Role: role, Content: blocks}, nil
}

// parseOpenAIContent normalizes OpenAI's `content` field, which may be a
// bare string or an array of typed content parts, into a part list.
func parseOpenAIContent(raw json.RawMessage) ([]openAIContentPart, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []openAIContentPart{{Type: "text", Text: s}}, nil
	}
	var parts []openAIContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("translate: decode message content: %w", err)
	}
	return parts, nil
}

func flattenOpenAIContentToText(raw json.RawMessage) (string, error) {
	parts, err := parseOpenAIContent(raw)
	if err != nil {
		return "", err
	}
	text := ""
	for _, p := range parts {
		if p.Type == "text" {
			text += p.Text
		}
	}
	return text, nil
}

func claudeRequestToOpenAI(body []byte) ([]byte, error) {
	var src claudeRequest
	if err := json.Unmarshal(body, &src); err != nil {
		return nil, fmt.Errorf("translate: decode claude request: %w", err)
	}

	dst := openAIRequest{
		Model:       src.Model,
		Temperature: src.Temperature,
		TopP:        src.TopP,
		Stop:        src.StopSequences,
		Stream:      src.Stream,
		MaxTokens:   &src.MaxTokens,
	}

	if src.System != "" {
		dst.Messages = append(dst.Messages, openAIMessage{Role: "system", Content: mustRawString(src.System)})
	}
	for _, msg := range src.Messages {
		converted, err := claudeMessageToOpenAI(msg)
		if err != nil {
			return nil, err
		}
		dst.Messages = append(dst.Messages, converted...)
	}

	for _, tool := range src.Tools {
		dst.Tools = append(dst.Tools, openAITool{
			Type: "function",
			Function: openAIFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	if src.Thinking != nil {
		e := effortFromBudgetRatio(src.Thinking.BudgetTokens, src.MaxTokens)
		applyEffortToOpenAI(&dst, e, isReasoningFamily(src.Model))
	}

	return json.Marshal(dst)
}

// claudeMessageToOpenAI may expand one Claude message into several OpenAI
// messages: a tool_result block becomes its own `role: tool` message,
// since OpenAI has no equivalent of mixing tool results into a user turn.
func claudeMessageToOpenAI(msg claudeMessage) ([]openAIMessage, error) {
	var out []openAIMessage
	var parts []openAIContentPart
	var toolCalls []openAIToolCall

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			parts = append(parts, openAIContentPart{Type: "text", Text: block.Text})
		case "image":
			if block.Source != nil {
				url := block.Source.URL
				if block.Source.Type == "base64" {
					url = fmt.Sprintf("data:%s;base64,%s", block.Source.MediaType, block.Source.Data)
				}
				parts = append(parts, openAIContentPart{Type: "image_url", ImageURL: &openAIImage{URL: url}})
			}
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
		case "tool_result":
			content := string(block.ResultContent)
			var s string
			if json.Unmarshal(block.ResultContent, &s) == nil {
				content = s
			}
			out = append(out, openAIMessage{Role: "tool", ToolCallID: block.ToolUseID, Content: mustRawString(content)})
		}
	}

	if len(parts) > 0 || len(toolCalls) > 0 {
		var content json.RawMessage
		if len(parts) == 1 && parts[0].Type == "text" {
			content = mustRawString(parts[0].Text)
		} else if len(parts) > 0 {
			b, err := json.Marshal(parts)
			if err != nil {
				return nil, err
			}
			content = b
		}
		out = append([]openAIMessage{{Role: msg.Role, Content: content, ToolCalls: toolCalls}}, out...)
	}

	return out, nil
}

func mustRawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func effortFromOpenAIRequest(req *openAIRequest) (Effort, bool) {
	if req.ReasoningEffort != "" {
		return normalizeEffort(req.ReasoningEffort)
	}
	if req.Reasoning != nil && req.Reasoning.Effort != "" {
		return normalizeEffort(req.Reasoning.Effort)
	}
	return "", false
}
