package translate

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tributary-ai/llm-router/internal/config"
)

// sseEvent is one parsed `event:`/`data:` block from a Server-Sent Events
// stream. Claude names its events; OpenAI's stream carries only `data:`
// lines, so Name is empty for those.
type sseEvent struct {
	Name string
	Data string
}

// readSSE scans upstream for SSE blocks, one per call, blank-line
// terminated. Returns io.EOF when the stream is exhausted.
func readSSE(scanner *bufio.Scanner) (sseEvent, error) {
	var ev sseEvent
	sawAny := false
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if sawAny {
				return ev, nil
			}
			continue
		}
		sawAny = true
		switch {
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.Data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if err := scanner.Err(); err != nil {
		return ev, err
	}
	if sawAny {
		return ev, nil
	}
	return ev, io.EOF
}

func writeSSE(w io.Writer, name string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

func writeSSEDone(w io.Writer) error {
	_, err := fmt.Fprint(w, "data: [DONE]\n\n")
	return err
}

// TranslateStream re-encodes a streaming chat-completion response from one
// wire format's SSE framing to the other's. The returned reader is
// produced incrementally as upstream is read; a translation error ends
// the stream early on the reader side.
func (t *translator) TranslateStream(ctx context.Context, upstream io.Reader, from, to config.WireFormat) io.Reader {
	pr, pw := io.Pipe()
	if from == to {
		go func() {
			_, err := io.Copy(pw, upstream)
			pw.CloseWithError(err)
		}()
		return pr
	}

	go func() {
		var err error
		switch {
		case from == config.FormatOpenAI && to == config.FormatClaude:
			err = streamOpenAIToClaude(ctx, upstream, pw)
		case from == config.FormatClaude && to == config.FormatOpenAI:
			err = streamClaudeToOpenAI(ctx, upstream, pw)
		default:
			err = fmt.Errorf("translate: unsupported stream direction %s -> %s", from, to)
		}
		pw.CloseWithError(err)
	}()
	return pr
}

func streamOpenAIToClaude(ctx context.Context, upstream io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	started := false
	textBlockOpen := false
	// maps an OpenAI delta tool_call index to the Claude content_block index
	// it was assigned (content block 0 is reserved for text, if any).
	toolBlockIndex := map[int]int{}
	nextBlockIndex := 1

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ev, err := readSSE(scanner)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if ev.Data == "[DONE]" {
			if textBlockOpen {
				_ = writeSSE(w, "content_block_stop", map[string]interface{}{"type": "content_block_stop", "index": 0})
			}
			_ = writeSSE(w, "message_stop", map[string]interface{}{"type": "message_stop"})
			return nil
		}

		var chunk openAIStreamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			continue
		}
		if !started {
			started = true
			if err := writeSSE(w, "message_start", map[string]interface{}{
				"type": "message_start",
				"message": map[string]interface{}{
					"id": chunk.ID, "type": "message", "role": "assistant",
					"model": chunk.Model, "content": []interface{}{},
				},
			}); err != nil {
				return err
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			if !textBlockOpen {
				textBlockOpen = true
				if err := writeSSE(w, "content_block_start", map[string]interface{}{
					"type": "content_block_start", "index": 0,
					"content_block": map[string]interface{}{"type": "text", "text": ""},
				}); err != nil {
					return err
				}
			}
			if err := writeSSE(w, "content_block_delta", map[string]interface{}{
				"type": "content_block_delta", "index": 0,
				"delta": map[string]interface{}{"type": "text_delta", "text": choice.Delta.Content},
			}); err != nil {
				return err
			}
		}

		for _, tc := range choice.Delta.ToolCalls {
			deltaIdx := 0
			if tc.Index != nil {
				deltaIdx = *tc.Index
			}
			blockIdx, seen := toolBlockIndex[deltaIdx]
			if !seen {
				blockIdx = nextBlockIndex
				nextBlockIndex++
				toolBlockIndex[deltaIdx] = blockIdx
				if err := writeSSE(w, "content_block_start", map[string]interface{}{
					"type": "content_block_start", "index": blockIdx,
					"content_block": map[string]interface{}{"type": "tool_use", "id": tc.ID, "name": tc.Function.Name},
				}); err != nil {
					return err
				}
			}
			if tc.Function.Arguments != "" {
				if err := writeSSE(w, "content_block_delta", map[string]interface{}{
					"type": "content_block_delta", "index": blockIdx,
					"delta": map[string]interface{}{"type": "input_json_delta", "partial_json": tc.Function.Arguments},
				}); err != nil {
					return err
				}
			}
		}

		if choice.FinishReason != nil {
			if textBlockOpen {
				_ = writeSSE(w, "content_block_stop", map[string]interface{}{"type": "content_block_stop", "index": 0})
				textBlockOpen = false
			}
			for _, blockIdx := range toolBlockIndex {
				_ = writeSSE(w, "content_block_stop", map[string]interface{}{"type": "content_block_stop", "index": blockIdx})
			}
			stop := mapReason(openAIToClaudeStopReason, *choice.FinishReason, "end_turn")
			if err := writeSSE(w, "message_delta", map[string]interface{}{
				"type": "message_delta",
				"delta": map[string]interface{}{"stop_reason": stop},
			}); err != nil {
				return err
			}
		}
	}
}

func streamClaudeToOpenAI(ctx context.Context, upstream io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sentRole := false
	toolCallIndex := map[int]int{} // content block index -> openai tool_calls index
	nextToolIdx := 0

	emitChunk := func(delta openAIDelta, finish *string) error {
		return writeSSE(w, "", openAIStreamChunk{
			Object:  "chat.completion.chunk",
			Choices: []openAIStreamChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		})
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		ev, err := readSSE(scanner)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var payload claudeStreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
			continue
		}

		switch payload.Type {
		case "message_start":
			if !sentRole {
				sentRole = true
				if err := emitChunk(openAIDelta{Role: "assistant"}, nil); err != nil {
					return err
				}
			}
		case "content_block_start":
			if payload.ContentBlock != nil && payload.ContentBlock.Type == "tool_use" {
				idx := nextToolIdx
				nextToolIdx++
				toolCallIndex[payload.Index] = idx
				if err := emitChunk(openAIDelta{ToolCalls: []openAIToolCall{{
					Index: &idx, ID: payload.ContentBlock.ID, Type: "function",
					Function: openAICallArgs{Name: payload.ContentBlock.Name},
				}}}, nil); err != nil {
					return err
				}
			}
		case "content_block_delta":
			if payload.Delta == nil {
				continue
			}
			switch payload.Delta.Type {
			case "text_delta":
				if err := emitChunk(openAIDelta{Content: payload.Delta.Text}, nil); err != nil {
					return err
				}
			case "input_json_delta":
				idx, ok := toolCallIndex[payload.Index]
				if !ok {
					idx = 0
				}
				if err := emitChunk(openAIDelta{ToolCalls: []openAIToolCall{{
					Index: &idx, Function: openAICallArgs{Arguments: payload.Delta.PartialJSON},
				}}}, nil); err != nil {
					return err
				}
			}
		case "message_delta":
			if payload.Delta != nil && payload.Delta.StopReason != "" {
				finish := mapReason(claudeToOpenAIFinishReason, payload.Delta.StopReason, "stop")
				if err := emitChunk(openAIDelta{}, &finish); err != nil {
					return err
				}
			}
		case "message_stop":
			return writeSSEDone(w)
		}
	}
}
