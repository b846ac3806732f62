// Package config holds the router's runtime configuration data model:
// providers, models, rate-limit buckets, aliases, and the Amp routing
// overlay, along with loading, normalization, and validation.
package config

import "time"

// WireFormat names one of the two wire protocols the router understands.
type WireFormat string

const (
	FormatOpenAI WireFormat = "openai"
	FormatClaude WireFormat = "claude"
)

// AliasStrategy selects how an alias's targets are scheduled.
type AliasStrategy string

const (
	StrategyOrdered               AliasStrategy = "ordered"
	StrategyRoundRobin            AliasStrategy = "round-robin"
	StrategyWeightedRR            AliasStrategy = "weighted-rr"
	StrategyQuotaAwareWeightedRR  AliasStrategy = "quota-aware-weighted-rr"
	StrategyAuto                  AliasStrategy = "auto"
)

// AuthSpec describes how the router authenticates to a provider.
type AuthSpec struct {
	Type       string `yaml:"type,omitempty" json:"type,omitempty"`
	HeaderName string `yaml:"headerName,omitempty" json:"headerName,omitempty"`
	Prefix     string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// RateLimitWindow is a unit/size pair, e.g. {unit: "hour", size: 6}.
type RateLimitWindow struct {
	Unit string `yaml:"unit" json:"unit"`
	Size int    `yaml:"size" json:"size"`
}

// RateLimitBucket is one configured rate-limit rule under a provider.
type RateLimitBucket struct {
	ID       string            `yaml:"id,omitempty" json:"id,omitempty"`
	Name     string            `yaml:"name,omitempty" json:"name,omitempty"`
	Models   []string          `yaml:"models" json:"models"`
	Requests int               `yaml:"requests" json:"requests"`
	Window   RateLimitWindow   `yaml:"window" json:"window"`
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ModelSpec is one model offered by a provider.
type ModelSpec struct {
	ID             string       `yaml:"id" json:"id"`
	Aliases        []string     `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Formats        []WireFormat `yaml:"formats,omitempty" json:"formats,omitempty"`
	Enabled        bool         `yaml:"enabled" json:"enabled"`
	ContextWindow  int          `yaml:"contextWindow,omitempty" json:"contextWindow,omitempty"`
	FallbackModels []string     `yaml:"fallbackModels,omitempty" json:"fallbackModels,omitempty"`
}

// ProviderSpec is one configured upstream.
type ProviderSpec struct {
	ID               string                  `yaml:"id" json:"id"`
	Name             string                  `yaml:"name,omitempty" json:"name,omitempty"`
	Enabled          bool                    `yaml:"enabled" json:"enabled"`
	BaseURL          string                  `yaml:"baseUrl,omitempty" json:"baseUrl,omitempty"`
	BaseURLByFormat  map[WireFormat]string   `yaml:"baseUrlByFormat,omitempty" json:"baseUrlByFormat,omitempty"`
	APIKey           string                  `yaml:"apiKey,omitempty" json:"-"`
	APIKeyEnv        string                  `yaml:"apiKeyEnv,omitempty" json:"apiKeyEnv,omitempty"`
	Formats          []WireFormat            `yaml:"formats,omitempty" json:"formats,omitempty"`
	Format           WireFormat              `yaml:"format,omitempty" json:"format,omitempty"`
	Auth             AuthSpec                `yaml:"auth,omitempty" json:"auth,omitempty"`
	AuthByFormat     map[WireFormat]AuthSpec `yaml:"authByFormat,omitempty" json:"authByFormat,omitempty"`
	Headers          map[string]string       `yaml:"headers,omitempty" json:"headers,omitempty"`
	AnthropicVersion string                  `yaml:"anthropicVersion,omitempty" json:"anthropicVersion,omitempty"`
	AnthropicBeta    string                  `yaml:"anthropicBeta,omitempty" json:"anthropicBeta,omitempty"`
	Models           []ModelSpec             `yaml:"models" json:"models"`
	RateLimits       []RateLimitBucket       `yaml:"rateLimits,omitempty" json:"rateLimits,omitempty"`
}

// AliasTarget is one entry in an alias's targets or fallbackTargets list.
type AliasTarget struct {
	Ref      string            `yaml:"ref" json:"ref"`
	Weight   *float64          `yaml:"weight,omitempty" json:"weight,omitempty"`
	Metadata map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// ModelAlias is a named route rule that expands to candidate provider/model pairs.
type ModelAlias struct {
	Strategy        AliasStrategy     `yaml:"strategy" json:"strategy"`
	Targets         []AliasTarget     `yaml:"targets" json:"targets"`
	FallbackTargets []AliasTarget     `yaml:"fallbackTargets,omitempty" json:"fallbackTargets,omitempty"`
	Metadata        map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// AmpRoutingOverlay rewrites a requested route for traffic attributable to
// the Amp client, before the resolver ever runs.
type AmpRoutingOverlay struct {
	Enabled        bool              `yaml:"enabled" json:"enabled"`
	ModeMap        map[string]string `yaml:"modeMap,omitempty" json:"modeMap,omitempty"`
	AgentMap       map[string]string `yaml:"agentMap,omitempty" json:"agentMap,omitempty"`
	AgentModeMap   map[string]string `yaml:"agentModeMap,omitempty" json:"agentModeMap,omitempty"`
	ApplicationMap map[string]string `yaml:"applicationMap,omitempty" json:"applicationMap,omitempty"`
	ModelMap       map[string]string `yaml:"modelMap,omitempty" json:"modelMap,omitempty"`
	FallbackRoute  string            `yaml:"fallbackRoute,omitempty" json:"fallbackRoute,omitempty"`
}

// StatePruneConfig configures the background cron sweep of expired state.
type StatePruneConfig struct {
	Cron string `yaml:"cron,omitempty" json:"cron,omitempty"`
}

// StateConfig selects and configures the state store backend.
type StateConfig struct {
	Backend           string           `yaml:"backend,omitempty" json:"backend,omitempty"` // memory|file
	FilePath          string           `yaml:"filePath,omitempty" json:"filePath,omitempty"`
	CandidateStateTTL time.Duration    `yaml:"candidateStateTTL,omitempty" json:"candidateStateTTL,omitempty"`
	Prune             StatePruneConfig `yaml:"prune,omitempty" json:"prune,omitempty"`
}

// CORSConfig controls the CORS preflight/allow-list behavior.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" json:"allowedOrigins,omitempty"`
	AllowedMethods []string `yaml:"allowedMethods,omitempty" json:"allowedMethods,omitempty"`
	AllowedHeaders []string `yaml:"allowedHeaders,omitempty" json:"allowedHeaders,omitempty"`
}

// ServerConfig controls the HTTP front-end.
type ServerConfig struct {
	Port                 string        `yaml:"port,omitempty" json:"port,omitempty"`
	ReadTimeout          time.Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout         time.Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	MaxHeaderBytes       int           `yaml:"maxHeaderBytes,omitempty" json:"maxHeaderBytes,omitempty"`
	MaxRequestBodyBytes  int64         `yaml:"maxRequestBodyBytes,omitempty" json:"maxRequestBodyBytes,omitempty"`
	RequestTimeout       time.Duration `yaml:"requestTimeout,omitempty" json:"requestTimeout,omitempty"`
	OriginRetryAttempts  int           `yaml:"originRetryAttempts,omitempty" json:"originRetryAttempts,omitempty"`
	DebugRouting         bool          `yaml:"debugRouting,omitempty" json:"debugRouting,omitempty"`
	FailureThreshold     int           `yaml:"failureThreshold,omitempty" json:"failureThreshold,omitempty"`
	CooldownMs           int64         `yaml:"cooldownMs,omitempty" json:"cooldownMs,omitempty"`
	CORS                 CORSConfig    `yaml:"cors,omitempty" json:"cors,omitempty"`
}

// LoggingConfig controls logrus output level and format.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// MetricsConfig controls the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// RuntimeConfig is the full immutable configuration snapshot. It is never
// mutated after Load returns; reload produces a brand new value and the
// holder swaps the pointer atomically.
type RuntimeConfig struct {
	Version      int                   `yaml:"version" json:"version"`
	DefaultModel string                `yaml:"defaultModel,omitempty" json:"defaultModel,omitempty"`
	MasterKey    string                `yaml:"masterKey,omitempty" json:"-"`
	Providers    []ProviderSpec        `yaml:"providers" json:"providers"`
	ModelAliases map[string]ModelAlias `yaml:"modelAliases,omitempty" json:"modelAliases,omitempty"`
	AmpRouting   *AmpRoutingOverlay    `yaml:"ampRouting,omitempty" json:"ampRouting,omitempty"`
	Server       ServerConfig          `yaml:"server,omitempty" json:"server,omitempty"`
	Logging      LoggingConfig         `yaml:"logging,omitempty" json:"logging,omitempty"`
	State        StateConfig           `yaml:"state,omitempty" json:"state,omitempty"`
	Metrics      MetricsConfig         `yaml:"metrics,omitempty" json:"metrics,omitempty"`

	providerByID map[string]*ProviderSpec
	modelByRef   map[string]*ModelSpec // "providerId/modelId"
}

// ProviderByID returns the provider with the given id, or nil.
func (c *RuntimeConfig) ProviderByID(id string) *ProviderSpec {
	if c.providerByID == nil {
		return nil
	}
	return c.providerByID[id]
}

// ModelByRef returns the model at "providerId/modelId", or nil.
func (c *RuntimeConfig) ModelByRef(ref string) *ModelSpec {
	if c.modelByRef == nil {
		return nil
	}
	return c.modelByRef[ref]
}

// AliasByID returns the alias with the given id and whether it exists.
func (c *RuntimeConfig) AliasByID(id string) (ModelAlias, bool) {
	a, ok := c.ModelAliases[id]
	return a, ok
}

func qualifiedRef(providerID, modelID string) string {
	return providerID + "/" + modelID
}
