package handler

import "strings"

// Operation selects which OpenAI-shaped endpoint a request targets.
// Claude candidates ignore this; they always compose /v1/messages.
type Operation string

const (
	OperationChatCompletions Operation = ""
	OperationResponses       Operation = "responses"
	OperationCompletions     Operation = "completions"
)

// resolveProviderURL composes the upstream URL for a candidate's provider,
// target format, and operation, appending the provider's base URL with the
// right suffix and avoiding a doubled /v1 when the base already carries it.
func resolveProviderURL(baseURL string, format string, op Operation) string {
	base := strings.TrimRight(baseURL, "/")

	var suffix string
	switch format {
	case "claude":
		suffix = "/messages"
		if !strings.HasSuffix(base, "/v1") {
			suffix = "/v1/messages"
		}
	default: // openai
		path := "/chat/completions"
		switch op {
		case OperationResponses:
			path = "/responses"
		case OperationCompletions:
			path = "/completions"
		}
		suffix = path
		if !strings.HasSuffix(base, "/v1") {
			suffix = "/v1" + path
		}
	}

	if strings.HasSuffix(base, suffix) {
		return base
	}
	return base + suffix
}
