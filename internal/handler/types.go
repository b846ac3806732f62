// Package handler implements the request handler pipeline: detecting the
// source wire format, resolving a route, ranking candidates, translating
// and dispatching the upstream call, and classifying failures for retry
// and fallback.
package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/tributary-ai/llm-router/internal/config"
	"github.com/tributary-ai/llm-router/internal/resolver"
)

const (
	defaultRequestTimeout = 90 * time.Second
	retryBaseMs           = 200
	retryCapMs            = 2000
)

// passthroughHeaders is the bounded set of inbound headers forwarded
// verbatim to the upstream provider, in addition to auth and
// anthropic-version.
var passthroughHeaders = []string{
	"x-request-id",
	"x-amp-mode",
	"x-amp-agent",
	"x-amp-application",
	"user-agent",
}

// Result is what ServeRequest hands back to internal/server to write onto
// the wire: either a complete body, a live stream, or a structured error.
type Result struct {
	Status      int
	Header      http.Header
	Body        []byte
	Stream      *StreamResult
	DebugFields DebugFields
}

// StreamResult carries a translated upstream body for the server to copy
// until EOF or client disconnect. Closing it releases the underlying
// upstream connection.
type StreamResult struct {
	Body        io.ReadCloser
	ContentType string
}

// DebugFields mirrors the x-llm-router-* debug headers emitted when
// debug routing is enabled.
type DebugFields struct {
	Enabled            bool
	RequestedModel     string
	RouteType          string
	RouteRef           string
	RouteStrategy      string
	SelectedCandidate  string
	SkippedCandidates  []string
	Attempts           []string
}

// attemptRecord is one upstream call outcome, kept for the debug headers
// and for deciding whether to retry the originally selected candidate.
type attemptRecord struct {
	candidateKey string
	status       int
	category     string
	attempt      int
}

func (a attemptRecord) String() string {
	return a.candidateKey + ":" + itoa(a.status) + "/" + a.category + "#" + itoa(a.attempt)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// supportsFormat narrows config.WireFormat to the two formats the
// translator understands; format-incompatible candidates never reach the
// balancer.
func supportsFormat(c resolver.Candidate) bool {
	return c.TargetFormat == config.FormatOpenAI || c.TargetFormat == config.FormatClaude
}
