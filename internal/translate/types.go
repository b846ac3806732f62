// Package translate maps chat-completion requests, responses, and
// streamed events between the OpenAI and Claude wire formats.
//
// Translation operates on raw JSON, not on either vendor SDK's Go types:
// the SDKs model a client's outbound call, not an arbitrary-direction
// wire-format rewrite, and pinning this package to their internal struct
// shapes would make it brittle across SDK versions for no benefit -- the
// two formats are public and stable. Field names below mirror the
// OpenAI chat completions and Anthropic Messages API bodies directly.
package translate

import "encoding/json"

// openAIRequest is the wire shape of a POST /v1/chat/completions body.
type openAIRequest struct {
	Model            string          `json:"model"`
	Messages         []openAIMessage `json:"messages"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	MaxTokens        *int            `json:"max_tokens,omitempty"`
	Stop             []string        `json:"stop,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	Tools            []openAITool    `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	ReasoningEffort  string          `json:"reasoning_effort,omitempty"`
	Reasoning        *openAIReasoning `json:"reasoning,omitempty"`
}

type openAIReasoning struct {
	Effort string `json:"effort,omitempty"`
}

type openAIMessage struct {
	Role       string             `json:"role"`
	Content    json.RawMessage    `json:"content,omitempty"`
	Name       string             `json:"name,omitempty"`
	ToolCalls  []openAIToolCall   `json:"tool_calls,omitempty"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
}

type openAIContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *openAIImage  `json:"image_url,omitempty"`
}

type openAIImage struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function openAIFunction `json:"function"`
}

type openAIFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type openAIToolCall struct {
	Index    *int           `json:"index,omitempty"` // only populated in streaming deltas
	ID       string         `json:"id,omitempty"`
	Type     string         `json:"type,omitempty"`
	Function openAICallArgs `json:"function"`
}

type openAICallArgs struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// openAIResponse is the wire shape of a non-streaming chat completion.
type openAIResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage,omitempty"`
}

type openAIChoice struct {
	Index        int            `json:"index"`
	Message      openAIMessage  `json:"message"`
	FinishReason string         `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// openAIStreamChunk is the wire shape of one `data: {...}` SSE event for
// a streaming chat completion.
type openAIStreamChunk struct {
	ID      string              `json:"id"`
	Object  string              `json:"object"`
	Created int64               `json:"created"`
	Model   string              `json:"model"`
	Choices []openAIStreamChoice `json:"choices"`
}

type openAIStreamChoice struct {
	Index        int           `json:"index"`
	Delta        openAIDelta   `json:"delta"`
	FinishReason *string       `json:"finish_reason"`
}

type openAIDelta struct {
	Role      string           `json:"role,omitempty"`
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

// claudeRequest is the wire shape of a POST /v1/messages body.
type claudeRequest struct {
	Model         string          `json:"model"`
	Messages      []claudeMessage `json:"messages"`
	System        string          `json:"system,omitempty"`
	MaxTokens     int             `json:"max_tokens"`
	Temperature   *float64        `json:"temperature,omitempty"`
	TopP          *float64        `json:"top_p,omitempty"`
	StopSequences []string        `json:"stop_sequences,omitempty"`
	Stream        bool            `json:"stream,omitempty"`
	Tools         []claudeTool    `json:"tools,omitempty"`
	Thinking      *claudeThinking `json:"thinking,omitempty"`
}

type claudeThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type claudeMessage struct {
	Role    string            `json:"role"`
	Content []claudeContent   `json:"content"`
}

type claudeContent struct {
	Type      string          `json:"type"` // text, image, tool_use, tool_result
	Text      string          `json:"text,omitempty"`
	Source    *claudeImgSrc   `json:"source,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	// ResultContent carries a tool_result block's "content" field, which
	// Anthropic allows to be a bare string or an array of content blocks;
	// this package only ever emits/reads the string form.
	ResultContent json.RawMessage `json:"content,omitempty"`
	CacheCtrl     *claudeCacheCtl `json:"cache_control,omitempty"`
}

type claudeCacheCtl struct {
	Type string `json:"type"`
}

type claudeImgSrc struct {
	Type      string `json:"type"` // "base64" or "url"
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

type claudeTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// claudeResponse is the wire shape of a non-streaming Messages response.
type claudeResponse struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Role         string          `json:"role"`
	Model        string          `json:"model"`
	Content      []claudeContent `json:"content"`
	StopReason   string          `json:"stop_reason"`
	Usage        claudeUsage     `json:"usage"`
}

type claudeUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// claudeStreamEvent is the wire shape of one Anthropic SSE event body.
// The `event:` line name travels in Type; Anthropic's stream interleaves
// several event types (message_start, content_block_delta, message_delta,
// message_stop) rather than OpenAI's single repeated chunk shape.
type claudeStreamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index,omitempty"`
	Delta        *claudeDelta    `json:"delta,omitempty"`
	ContentBlock *claudeContent  `json:"content_block,omitempty"`
	Message      *claudeResponse `json:"message,omitempty"`
	Usage        *claudeUsage    `json:"usage,omitempty"`
}

type claudeDelta struct {
	Type         string `json:"type,omitempty"`
	Text         string `json:"text,omitempty"`
	PartialJSON  string `json:"partial_json,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}
