// Package resolver turns a requested route reference into an ordered plan
// of concrete (provider, model, wire format) candidates: alias expansion,
// cycle detection, per-model fallback lists, and format compatibility.
package resolver

import "github.com/tributary-ai/llm-router/internal/config"

// RouteType classifies how a route reference was parsed.
type RouteType string

const (
	RouteDirect  RouteType = "direct"
	RouteAlias   RouteType = "alias"
	RouteUnknown RouteType = "unknown"
)

// RouteTier marks whether a candidate came from an alias's primary targets
// or its fallback targets.
type RouteTier string

const (
	TierPrimary  RouteTier = "primary"
	TierFallback RouteTier = "fallback"
)

// Candidate is one concrete (provider, model, wire format) scheduling unit.
type Candidate struct {
	ProviderID          string
	Provider            *config.ProviderSpec
	ModelID             string
	Model               *config.ModelSpec
	RequestModelID      string // providerId + "/" + modelId
	TargetFormat        config.WireFormat
	RouteWeight         *float64
	RouteTier           RouteTier
	RouteTargetRef      string
	RouteTargetMetadata map[string]string
}

// RoutePlan is the resolver's output for one request.
type RoutePlan struct {
	RequestedModel string
	ResolvedModel  string
	RouteType      RouteType
	RouteRef       string
	RouteStrategy  config.AliasStrategy
	Primary        *Candidate
	Fallbacks      []Candidate
	Error          string
}

// AllCandidates returns primary followed by fallbacks, or nil if the plan
// failed to resolve a primary.
func (p *RoutePlan) AllCandidates() []Candidate {
	if p.Primary == nil {
		return nil
	}
	out := make([]Candidate, 0, 1+len(p.Fallbacks))
	out = append(out, *p.Primary)
	out = append(out, p.Fallbacks...)
	return out
}
