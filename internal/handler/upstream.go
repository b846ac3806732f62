package handler

import (
	"net/http"
	"strings"

	"github.com/tributary-ai/llm-router/internal/config"
)

// authSpecFor returns the auth spec governing requests shaped as format,
// preferring a format-specific override over the provider's default.
func authSpecFor(p *config.ProviderSpec, format config.WireFormat) config.AuthSpec {
	if p.AuthByFormat != nil {
		if a, ok := p.AuthByFormat[format]; ok {
			return a
		}
	}
	return p.Auth
}

// buildUpstreamHeaders composes the headers sent to the upstream provider:
// content-type, auth, anthropic-version/beta when targeting claude, and a
// bounded passthrough set copied from the inbound request.
func buildUpstreamHeaders(p *config.ProviderSpec, format config.WireFormat, inbound http.Header) http.Header {
	out := make(http.Header)
	out.Set("Content-Type", "application/json")

	auth := authSpecFor(p, format)
	headerName := auth.HeaderName
	prefix := auth.Prefix
	switch auth.Type {
	case "api-key", "header":
		if headerName == "" {
			headerName = "x-api-key"
		}
		out.Set(headerName, prefix+p.APIKey)
	case "none":
		// no credential sent
	default: // "", "bearer"
		if headerName == "" {
			headerName = "Authorization"
		}
		if prefix == "" {
			prefix = "Bearer "
		}
		out.Set(headerName, prefix+p.APIKey)
	}

	if format == config.FormatClaude {
		version := p.AnthropicVersion
		if version == "" {
			version = "2023-06-01"
		}
		out.Set("anthropic-version", version)
		if p.AnthropicBeta != "" {
			out.Set("anthropic-beta", p.AnthropicBeta)
		}
	}

	for k, v := range p.Headers {
		out.Set(k, v)
	}

	for _, name := range passthroughHeaders {
		if v := inbound.Get(name); v != "" {
			out.Set(name, v)
		}
	}
	return out
}

// operationFromPath infers the OpenAI operation (responses vs completions
// vs default chat) from the inbound request path, used only for
// openai-targeted candidates.
func operationFromPath(path string) Operation {
	switch {
	case strings.Contains(path, "/responses"):
		return OperationResponses
	case strings.HasSuffix(path, "/completions") && !strings.HasSuffix(path, "/chat/completions"):
		return OperationCompletions
	default:
		return OperationChatCompletions
	}
}
