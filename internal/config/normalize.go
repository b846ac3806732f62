package config

import (
	"fmt"
	"strings"
)

// Normalize applies defaults and builds the lookup indexes used by
// ProviderByID/ModelByRef. It must run before the config is handed to the
// resolver, balancer, or handler. It does not perform reference-existence
// or cycle validation; call Validate separately once indexes are built. It
// returns errors for alias ids that collide once whitespace-trimmed, since
// that collision is destroyed by the trim itself.
func Normalize(c *RuntimeConfig) []error {
	if c.Version == 0 {
		c.Version = 2
	}
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.MaxRequestBodyBytes <= 0 {
		c.Server.MaxRequestBodyBytes = 1 << 20 // 1 MiB
	}
	if c.Server.OriginRetryAttempts <= 0 {
		c.Server.OriginRetryAttempts = 1
	}
	if c.Server.FailureThreshold <= 0 {
		c.Server.FailureThreshold = 5
	}
	if c.Server.CooldownMs <= 0 {
		c.Server.CooldownMs = 30_000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.State.Backend == "" {
		c.State.Backend = "memory"
	}
	if c.State.Prune.Cron == "" {
		c.State.Prune.Cron = "*/5 * * * *"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "llm_router"
	}

	for i := range c.Providers {
		p := &c.Providers[i]
		p.ID = strings.TrimSpace(p.ID)
		if len(p.Formats) == 0 {
			p.Formats = []WireFormat{FormatOpenAI, FormatClaude}
		}
		if p.Format == "" {
			p.Format = p.Formats[0]
		}
		for j := range p.Models {
			m := &p.Models[j]
			m.ID = strings.TrimSpace(m.ID)
		}
	}

	var errs []error
	normalized := make(map[string]ModelAlias, len(c.ModelAliases))
	for id, alias := range c.ModelAliases {
		trimmed := strings.TrimSpace(id)
		if alias.Strategy == "" {
			alias.Strategy = StrategyOrdered
		}
		if _, dup := normalized[trimmed]; dup {
			errs = append(errs, fmt.Errorf("duplicate alias id %q after trimming whitespace", trimmed))
			continue
		}
		normalized[trimmed] = alias
	}
	c.ModelAliases = normalized

	c.providerByID = make(map[string]*ProviderSpec, len(c.Providers))
	c.modelByRef = make(map[string]*ModelSpec)
	for i := range c.Providers {
		p := &c.Providers[i]
		c.providerByID[p.ID] = p
		for j := range p.Models {
			m := &p.Models[j]
			c.modelByRef[qualifiedRef(p.ID, m.ID)] = m
		}
	}
	return errs
}
