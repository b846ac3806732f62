package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tributary-ai/llm-router/internal/config"
)

func testConfig() *config.RuntimeConfig {
	c := &config.RuntimeConfig{
		Version:      2,
		DefaultModel: "chat.default",
		Providers: []config.ProviderSpec{
			{
				ID:      "openrouter",
				Enabled: true,
				Formats: []config.WireFormat{config.FormatOpenAI},
				Models: []config.ModelSpec{
					{ID: "gpt-4o-mini", Enabled: true},
					{ID: "gpt-4o", Enabled: true, FallbackModels: []string{"openrouter/gpt-4o-mini"}},
					{ID: "disabled-model", Enabled: false},
				},
			},
			{
				ID:      "anthropic",
				Enabled: true,
				Formats: []config.WireFormat{config.FormatClaude},
				Models: []config.ModelSpec{
					{ID: "claude-3-5-haiku", Enabled: true},
				},
			},
		},
		ModelAliases: map[string]config.ModelAlias{
			"chat.default": {
				Strategy: config.StrategyOrdered,
				Targets: []config.AliasTarget{
					{Ref: "openrouter/gpt-4o-mini"},
					{Ref: "anthropic/claude-3-5-haiku"},
				},
			},
			"chat.nested": {
				Strategy: config.StrategyOrdered,
				Targets: []config.AliasTarget{
					{Ref: "chat.default"},
				},
				FallbackTargets: []config.AliasTarget{
					{Ref: "anthropic/claude-3-5-haiku"},
				},
			},
			"chat.cycle-a": {Strategy: config.StrategyOrdered, Targets: []config.AliasTarget{{Ref: "chat.cycle-b"}}},
			"chat.cycle-b": {Strategy: config.StrategyOrdered, Targets: []config.AliasTarget{{Ref: "chat.cycle-a"}}},
		},
	}
	config.Normalize(c)
	return c
}

func TestResolveDirectWithFallback(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "openrouter/gpt-4o", config.FormatOpenAI)
	require.Empty(t, plan.Error)
	require.NotNil(t, plan.Primary)
	assert.Equal(t, "openrouter/gpt-4o", plan.Primary.RequestModelID)
	require.Len(t, plan.Fallbacks, 1)
	assert.Equal(t, "openrouter/gpt-4o-mini", plan.Fallbacks[0].RequestModelID)
}

func TestResolveSmartUsesDefaultModel(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "smart", config.FormatOpenAI)
	require.Empty(t, plan.Error)
	require.NotNil(t, plan.Primary)
	assert.Equal(t, "openrouter/gpt-4o-mini", plan.Primary.RequestModelID)
	require.Len(t, plan.Fallbacks, 1)
	assert.Equal(t, "anthropic/claude-3-5-haiku", plan.Fallbacks[0].RequestModelID)
}

func TestResolveEmptyModelDefaultsToSmart(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "", config.FormatOpenAI)
	require.Empty(t, plan.Error)
	require.NotNil(t, plan.Primary)
}

func TestResolveNoDefaultModelConfigured(t *testing.T) {
	c := testConfig()
	c.DefaultModel = ""
	plan := Resolve(c, "smart", config.FormatOpenAI)
	assert.Equal(t, "No default model is configured.", plan.Error)
}

func TestResolveAliasPrefix(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "alias:chat.default", config.FormatOpenAI)
	require.Empty(t, plan.Error)
	require.NotNil(t, plan.Primary)
	assert.Equal(t, RouteAlias, plan.RouteType)
}

func TestResolveNestedAliasFlattensTargets(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "chat.nested", config.FormatOpenAI)
	require.Empty(t, plan.Error)
	require.NotNil(t, plan.Primary)
	assert.Equal(t, "openrouter/gpt-4o-mini", plan.Primary.RequestModelID)
	all := plan.AllCandidates()
	ids := make([]string, len(all))
	for i, c := range all {
		ids[i] = c.RequestModelID
	}
	assert.Equal(t, []string{"openrouter/gpt-4o-mini", "anthropic/claude-3-5-haiku", "anthropic/claude-3-5-haiku"}[0:2], ids[0:2])
}

func TestResolveAliasCycleDetected(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "chat.cycle-a", config.FormatOpenAI)
	require.Nil(t, plan.Primary)
	assert.Contains(t, plan.Error, "Alias cycle detected")
	assert.Contains(t, plan.Error, "chat.cycle-a")
}

func TestResolveUnknownAlias(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "alias:does-not-exist", config.FormatOpenAI)
	require.Nil(t, plan.Primary)
	assert.Contains(t, plan.Error, "Unknown alias")
}

func TestResolveDisabledModelFails(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "openrouter/disabled-model", config.FormatOpenAI)
	require.Nil(t, plan.Primary)
	assert.NotEmpty(t, plan.Error)
}

func TestResolveDeterministic(t *testing.T) {
	c := testConfig()
	p1 := Resolve(c, "chat.default", config.FormatOpenAI)
	p2 := Resolve(c, "chat.default", config.FormatOpenAI)
	require.NotNil(t, p1.Primary)
	require.NotNil(t, p2.Primary)
	assert.Equal(t, p1.Primary.RequestModelID, p2.Primary.RequestModelID)
	assert.Equal(t, len(p1.Fallbacks), len(p2.Fallbacks))
	for i := range p1.Fallbacks {
		assert.Equal(t, p1.Fallbacks[i].RequestModelID, p2.Fallbacks[i].RequestModelID)
	}
}

func TestChooseTargetFormatPrefersSourceWhenSupported(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "openrouter/gpt-4o-mini", config.FormatOpenAI)
	require.NotNil(t, plan.Primary)
	assert.Equal(t, config.FormatOpenAI, plan.Primary.TargetFormat)
}

func TestChooseTargetFormatFallsBackWhenSourceUnsupported(t *testing.T) {
	c := testConfig()
	plan := Resolve(c, "anthropic/claude-3-5-haiku", config.FormatOpenAI)
	require.NotNil(t, plan.Primary)
	assert.Equal(t, config.FormatClaude, plan.Primary.TargetFormat)
}
