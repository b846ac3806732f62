// Package amproute implements the Amp-client routing overlay: a rewrite
// rule applied to the requested route string before the resolver ever
// sees it, keyed off a handful of client-identifying request headers.
package amproute

import (
	"net/http"

	"github.com/tributary-ai/llm-router/internal/config"
)

const (
	headerMode        = "x-amp-mode"
	headerAgent       = "x-amp-agent"
	headerApplication = "x-amp-application"
)

// Rewriter substitutes a requested route for Amp-originated traffic.
type Rewriter struct {
	overlay *config.AmpRoutingOverlay
}

// New returns a Rewriter for the given overlay config. A nil or disabled
// overlay makes Rewrite a no-op.
func New(overlay *config.AmpRoutingOverlay) *Rewriter {
	return &Rewriter{overlay: overlay}
}

// Rewrite returns the route the request should resolve against: the
// requested model rewritten by the first matching overlay rule, or the
// requested model unchanged if the overlay is absent, disabled, or no
// rule matches. Precedence, most to least specific: agent+mode pair,
// agent, application, mode, explicit model map, fallback route.
func (r *Rewriter) Rewrite(requestedModel string, hdrs http.Header) string {
	if r == nil || r.overlay == nil || !r.overlay.Enabled {
		return requestedModel
	}
	o := r.overlay

	agent := hdrs.Get(headerAgent)
	mode := hdrs.Get(headerMode)
	application := hdrs.Get(headerApplication)

	if agent != "" && mode != "" {
		if target, ok := o.AgentModeMap[agent+":"+mode]; ok {
			return target
		}
	}
	if agent != "" {
		if target, ok := o.AgentMap[agent]; ok {
			return target
		}
	}
	if application != "" {
		if target, ok := o.ApplicationMap[application]; ok {
			return target
		}
	}
	if mode != "" {
		if target, ok := o.ModeMap[mode]; ok {
			return target
		}
	}
	if target, ok := o.ModelMap[requestedModel]; ok {
		return target
	}
	if requestedModel == "" && o.FallbackRoute != "" {
		return o.FallbackRoute
	}
	return requestedModel
}
