package resolver

import (
	"fmt"
	"strings"

	"github.com/tributary-ai/llm-router/internal/config"
)

// Resolve turns a requested route reference into a RoutePlan. Resolution
// is pure: it reads only cfg, never the state store.
func Resolve(cfg *config.RuntimeConfig, requestedModel string, sourceFormat config.WireFormat) *RoutePlan {
	plan := &RoutePlan{RequestedModel: requestedModel}

	model := strings.TrimSpace(requestedModel)
	if model == "" {
		model = "smart"
	}
	if model == "smart" {
		model = strings.TrimSpace(cfg.DefaultModel)
		if model == "" || model == "smart" {
			plan.Error = "No default model is configured."
			plan.RouteType = RouteUnknown
			return plan
		}
	}
	plan.ResolvedModel = model

	ref := parseRouteRef(model)
	plan.RouteType = ref.routeType
	switch ref.routeType {
	case RouteDirect:
		plan.RouteRef = ref.providerID + "/" + ref.modelID
		resolveDirect(cfg, ref.providerID, ref.modelID, sourceFormat, plan)
	case RouteAlias:
		plan.RouteRef = ref.aliasID
		resolveAliasRef(cfg, ref.aliasID, sourceFormat, plan)
	default:
		plan.RouteRef = model
		plan.Error = fmt.Sprintf("Invalid route reference: %q", model)
	}
	return plan
}

func buildCandidate(provider *config.ProviderSpec, model *config.ModelSpec, sourceFormat config.WireFormat) Candidate {
	targetFormat := chooseTargetFormat(provider, model, sourceFormat)
	return Candidate{
		ProviderID:     provider.ID,
		Provider:       provider,
		ModelID:        model.ID,
		Model:          model,
		RequestModelID: provider.ID + "/" + model.ID,
		TargetFormat:   targetFormat,
		RouteTier:      TierPrimary,
	}
}

// lookupModel finds a model by id, or by one of its configured aliases.
func lookupModel(provider *config.ProviderSpec, modelID string) *config.ModelSpec {
	for i := range provider.Models {
		if provider.Models[i].ID == modelID {
			return &provider.Models[i]
		}
	}
	for i := range provider.Models {
		for _, a := range provider.Models[i].Aliases {
			if a == modelID {
				return &provider.Models[i]
			}
		}
	}
	return nil
}

// resolveDirectCandidate resolves a bare "provider/model" reference to a
// single Candidate without expanding fallbacks, for use inside alias and
// fallback-model expansion.
func resolveDirectCandidate(cfg *config.RuntimeConfig, providerID, modelID string, sourceFormat config.WireFormat) (Candidate, error) {
	provider := cfg.ProviderByID(providerID)
	if provider == nil || !provider.Enabled {
		return Candidate{}, fmt.Errorf("unknown or disabled provider %q", providerID)
	}
	model := lookupModel(provider, modelID)
	if model == nil || !model.Enabled {
		return Candidate{}, fmt.Errorf("unknown or disabled model %q on provider %q", modelID, providerID)
	}
	if !formatCompatible(provider, model) {
		return Candidate{}, fmt.Errorf("model %q on provider %q is not compatible with any provider format", modelID, providerID)
	}
	return buildCandidate(provider, model, sourceFormat), nil
}

func resolveDirect(cfg *config.RuntimeConfig, providerID, modelID string, sourceFormat config.WireFormat, plan *RoutePlan) {
	primary, err := resolveDirectCandidate(cfg, providerID, modelID, sourceFormat)
	if err != nil {
		plan.Error = err.Error()
		return
	}
	plan.Primary = &primary

	seen := map[string]bool{primary.RequestModelID: true}
	var fallbacks []Candidate
	for _, fbRef := range primary.Model.FallbackModels {
		parsed := parseRouteRef(fbRef)
		if parsed.routeType != RouteDirect {
			continue // fallbackModels entries must themselves be direct references
		}
		cand, err := resolveDirectCandidate(cfg, parsed.providerID, parsed.modelID, sourceFormat)
		if err != nil {
			continue
		}
		cand.RouteTier = TierFallback
		if seen[cand.RequestModelID] {
			continue
		}
		seen[cand.RequestModelID] = true
		fallbacks = append(fallbacks, cand)
	}
	plan.Fallbacks = fallbacks
}

func resolveAliasRef(cfg *config.RuntimeConfig, aliasID string, sourceFormat config.WireFormat, plan *RoutePlan) {
	aliasID = strings.TrimSpace(aliasID)
	alias, ok := cfg.AliasByID(aliasID)
	if !ok {
		plan.Error = fmt.Sprintf("Unknown alias %q", aliasID)
		return
	}
	plan.RouteStrategy = alias.Strategy

	expanded, err := expandAlias(cfg, aliasID, sourceFormat, nil)
	if err != nil {
		plan.Error = err.Error()
		return
	}

	seen := make(map[string]bool)
	var primaryList, fallbackList []Candidate
	for _, c := range expanded {
		if seen[c.RequestModelID] {
			continue
		}
		seen[c.RequestModelID] = true
		if c.RouteTier == TierPrimary {
			primaryList = append(primaryList, c)
		} else {
			fallbackList = append(fallbackList, c)
		}
	}

	if len(primaryList) == 0 {
		plan.Error = fmt.Sprintf("Alias %q resolved to no eligible candidates", aliasID)
		return
	}
	first := primaryList[0]
	plan.Primary = &first
	plan.Fallbacks = append(append([]Candidate{}, primaryList[1:]...), fallbackList...)
}

// expandAlias recursively expands one alias's targets and fallbackTargets,
// in that order, threading a visiting-stack to detect cycles. Nested alias
// targets inherit the tier they were reached under; a nested alias's own
// fallbackTargets are always folded into the fallback tier.
func expandAlias(cfg *config.RuntimeConfig, aliasID string, sourceFormat config.WireFormat, visiting []string) ([]Candidate, error) {
	for _, v := range visiting {
		if v == aliasID {
			path := append(append([]string{}, visiting...), aliasID)
			return nil, fmt.Errorf("Alias cycle detected: %s", strings.Join(path, " -> "))
		}
	}
	alias, ok := cfg.AliasByID(aliasID)
	if !ok {
		return nil, fmt.Errorf("Unknown alias %q", aliasID)
	}
	nextVisiting := append(append([]string{}, visiting...), aliasID)

	var out []Candidate
	primary, err := expandTargets(cfg, alias.Targets, TierPrimary, sourceFormat, nextVisiting)
	if err != nil {
		return nil, err
	}
	out = append(out, primary...)

	fallback, err := expandTargets(cfg, alias.FallbackTargets, TierFallback, sourceFormat, nextVisiting)
	if err != nil {
		return nil, err
	}
	out = append(out, fallback...)
	return out, nil
}

func expandTargets(cfg *config.RuntimeConfig, targets []config.AliasTarget, tier RouteTier, sourceFormat config.WireFormat, visiting []string) ([]Candidate, error) {
	var out []Candidate
	for _, t := range targets {
		ref := parseRouteRef(strings.TrimSpace(t.Ref))
		switch ref.routeType {
		case RouteDirect:
			cand, err := resolveDirectCandidate(cfg, ref.providerID, ref.modelID, sourceFormat)
			if err != nil {
				continue
			}
			cand.RouteTier = tier
			cand.RouteWeight = t.Weight
			cand.RouteTargetRef = t.Ref
			cand.RouteTargetMetadata = t.Metadata
			out = append(out, cand)
		case RouteAlias:
			nested, err := expandAlias(cfg, ref.aliasID, sourceFormat, visiting)
			if err != nil {
				return nil, err
			}
			for i := range nested {
				if nested[i].RouteTier == TierPrimary {
					nested[i].RouteTier = tier
				} else {
					nested[i].RouteTier = TierFallback
				}
			}
			out = append(out, nested...)
		default:
			continue
		}
	}
	return out, nil
}
