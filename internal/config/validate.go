package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	providerIDPattern = regexp.MustCompile(`^[a-z][a-zA-Z0-9-]*$`)
	aliasIDPattern    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)
	slugNonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
)

var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"content-length":      true,
	"host":                true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// ValidationErrors aggregates every invariant violation found in one pass.
type ValidationErrors struct {
	Errors []error
}

func (v *ValidationErrors) Error() string {
	msgs := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d configuration validation error(s): %s", len(v.Errors), strings.Join(msgs, "; "))
}

func (v *ValidationErrors) add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Errorf(format, args...))
}

// Validate checks every configuration invariant. c must already have been
// passed through Normalize. It mutates c.Providers in place to strip
// credentials/fragments from URLs and drop hop-by-hop headers, and to
// assign auto-generated bucket ids.
func Validate(c *RuntimeConfig) error {
	ve := &ValidationErrors{}

	if c.Version != 1 && c.Version != 2 {
		ve.add("unsupported config version %d (expected 1 or 2)", c.Version)
	}

	for i := range c.Providers {
		p := &c.Providers[i]
		if !providerIDPattern.MatchString(p.ID) {
			ve.add("provider id %q does not match ^[a-z][a-zA-Z0-9-]*$", p.ID)
		}
		validateAndCleanURL(ve, p, p.BaseURL, "baseUrl")
		for fmtKey, u := range p.BaseURLByFormat {
			validateAndCleanURL(ve, p, u, fmt.Sprintf("baseUrlByFormat[%s]", fmtKey))
		}
		cleanHeaders(ve, p)
		assignBucketIDs(ve, p)
		validateBucketModelLists(ve, p)
	}

	for id, alias := range c.ModelAliases {
		if !aliasIDPattern.MatchString(id) {
			ve.add("alias id %q does not match ^[A-Za-z0-9][A-Za-z0-9._:-]*$", id)
		}
		switch alias.Strategy {
		case StrategyOrdered, StrategyRoundRobin, StrategyWeightedRR, StrategyQuotaAwareWeightedRR, StrategyAuto:
		default:
			ve.add("alias %q has unknown strategy %q", id, alias.Strategy)
		}
	}

	if c.DefaultModel != "" && c.DefaultModel != "smart" {
		validateRouteRefExists(ve, c, c.DefaultModel, "defaultModel")
	}

	for id, alias := range c.ModelAliases {
		for i, t := range alias.Targets {
			validateRouteRefExists(ve, c, t.Ref, fmt.Sprintf("modelAliases[%s].targets[%d]", id, i))
		}
		for i, t := range alias.FallbackTargets {
			validateRouteRefExists(ve, c, t.Ref, fmt.Sprintf("modelAliases[%s].fallbackTargets[%d]", id, i))
		}
	}

	for _, p := range c.Providers {
		for _, m := range p.Models {
			for _, fb := range m.FallbackModels {
				if !strings.Contains(fb, "/") {
					ve.add("provider %q model %q fallbackModels entry %q must be a direct provider/model reference", p.ID, m.ID, fb)
					continue
				}
				validateRouteRefExists(ve, c, fb, fmt.Sprintf("providers[%s].models[%s].fallbackModels", p.ID, m.ID))
			}
		}
	}

	if c.AmpRouting != nil {
		validateAmpMap(ve, c, c.AmpRouting.ModeMap, "ampRouting.modeMap")
		validateAmpMap(ve, c, c.AmpRouting.AgentMap, "ampRouting.agentMap")
		validateAmpMap(ve, c, c.AmpRouting.AgentModeMap, "ampRouting.agentModeMap")
		validateAmpMap(ve, c, c.AmpRouting.ApplicationMap, "ampRouting.applicationMap")
		validateAmpMap(ve, c, c.AmpRouting.ModelMap, "ampRouting.modelMap")
		if c.AmpRouting.FallbackRoute != "" {
			validateRouteRefExists(ve, c, c.AmpRouting.FallbackRoute, "ampRouting.fallbackRoute")
		}
	}

	detectAliasCycles(ve, c)

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateAmpMap(ve *ValidationErrors, c *RuntimeConfig, m map[string]string, label string) {
	for k, ref := range m {
		validateRouteRefExists(ve, c, ref, fmt.Sprintf("%s[%s]", label, k))
	}
}

// validateRouteRefExists checks that ref names an existing, enabled alias
// or an existing, enabled provider/model pair.
func validateRouteRefExists(ve *ValidationErrors, c *RuntimeConfig, ref, label string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ve.add("%s: empty route reference", label)
		return
	}
	if idx := strings.IndexByte(ref, '/'); idx >= 0 {
		providerID, modelID := ref[:idx], ref[idx+1:]
		p := c.ProviderByID(providerID)
		if p == nil || !p.Enabled {
			ve.add("%s: references unknown or disabled provider %q", label, providerID)
			return
		}
		var model *ModelSpec
		for i := range p.Models {
			if p.Models[i].ID == modelID {
				model = &p.Models[i]
				break
			}
		}
		if model == nil {
			ve.add("%s: references unknown model %q on provider %q", label, modelID, providerID)
			return
		}
		if !model.Enabled {
			ve.add("%s: references disabled model %q on provider %q", label, modelID, providerID)
		}
		return
	}
	aliasRef := strings.TrimPrefix(ref, "alias:")
	if _, ok := c.AliasByID(aliasRef); !ok {
		ve.add("%s: references unknown alias %q", label, aliasRef)
	}
}

func validateAndCleanURL(ve *ValidationErrors, p *ProviderSpec, raw string, label string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		ve.add("provider %q %s: must be an http:// or https:// URL, got %q", p.ID, label, raw)
		return
	}
	if u.User != nil || u.Fragment != "" {
		u.User = nil
		u.Fragment = ""
		cleaned := u.String()
		if label == "baseUrl" {
			p.BaseURL = cleaned
		} else if p.BaseURLByFormat != nil {
			for k, v := range p.BaseURLByFormat {
				if v == raw {
					p.BaseURLByFormat[k] = cleaned
				}
			}
		}
	}
}

func cleanHeaders(ve *ValidationErrors, p *ProviderSpec) {
	if p.Headers == nil {
		return
	}
	cleaned := make(map[string]string, len(p.Headers))
	for name, value := range p.Headers {
		if strings.ContainsAny(name, "\r\n") || strings.ContainsAny(value, "\r\n") {
			ve.add("provider %q header %q contains a CR or LF character", p.ID, name)
			continue
		}
		if hopByHopHeaders[strings.ToLower(name)] {
			continue
		}
		cleaned[name] = value
	}
	p.Headers = cleaned
}

func assignBucketIDs(ve *ValidationErrors, p *ProviderSpec) {
	used := make(map[string]bool, len(p.RateLimits))
	for i := range p.RateLimits {
		if p.RateLimits[i].ID != "" {
			used[p.RateLimits[i].ID] = true
		}
	}
	for i := range p.RateLimits {
		b := &p.RateLimits[i]
		if b.ID != "" {
			continue
		}
		base := slugify(b.Name)
		if base == "" {
			base = "bucket"
		}
		candidate := base
		n := 2
		for used[candidate] {
			candidate = base + "-" + strconv.Itoa(n)
			n++
		}
		b.ID = candidate
		used[candidate] = true
	}

	seen := make(map[string]bool, len(p.RateLimits))
	for _, b := range p.RateLimits {
		if seen[b.ID] {
			ve.add("provider %q has duplicate rate-limit bucket id %q", p.ID, b.ID)
		}
		seen[b.ID] = true
	}
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugNonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func validateBucketModelLists(ve *ValidationErrors, p *ProviderSpec) {
	modelIDs := make(map[string]bool, len(p.Models))
	for _, m := range p.Models {
		modelIDs[m.ID] = true
	}
	for _, b := range p.RateLimits {
		if len(b.Models) == 0 {
			ve.add("provider %q bucket %q: models list must be non-empty", p.ID, b.ID)
			continue
		}
		hasAll := false
		for _, m := range b.Models {
			if m == "all" {
				hasAll = true
			}
		}
		if hasAll && len(b.Models) > 1 {
			ve.add("provider %q bucket %q: \"all\" cannot be combined with specific model ids", p.ID, b.ID)
			continue
		}
		if !hasAll {
			for _, m := range b.Models {
				if !modelIDs[m] {
					ve.add("provider %q bucket %q: references unknown model id %q", p.ID, b.ID, m)
				}
			}
		}
	}
}

// detectAliasCycles walks the target + fallback-target graph of every
// alias with a DFS and a visiting-set, reporting a back-edge as
// "Alias cycle detected: a -> b -> a".
func detectAliasCycles(ve *ValidationErrors, c *RuntimeConfig) {
	reported := make(map[string]bool)
	var visit func(id string, stack []string)
	visit = func(id string, stack []string) {
		for _, s := range stack {
			if s == id {
				path := append(append([]string{}, stack...), id)
				key := strings.Join(path, "->")
				if !reported[key] {
					reported[key] = true
					ve.add("Alias cycle detected: %s", strings.Join(path, " -> "))
				}
				return
			}
		}
		alias, ok := c.AliasByID(id)
		if !ok {
			return
		}
		nextStack := append(append([]string{}, stack...), id)
		for _, t := range append(append([]AliasTarget{}, alias.Targets...), alias.FallbackTargets...) {
			ref := strings.TrimSpace(t.Ref)
			if strings.Contains(ref, "/") {
				continue
			}
			aliasRef := strings.TrimPrefix(ref, "alias:")
			visit(aliasRef, nextStack)
		}
	}
	for id := range c.ModelAliases {
		visit(id, nil)
	}
}
