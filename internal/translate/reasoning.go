package translate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tributary-ai/llm-router/internal/config"
)

// Effort is a normalized reasoning-effort hint, independent of which wire
// format or header carried it in.
type Effort string

const (
	EffortNone    Effort = "none"
	EffortMinimal Effort = "minimal"
	EffortLow     Effort = "low"
	EffortMedium  Effort = "medium"
	EffortHigh    Effort = "high"
	EffortXHigh   Effort = "xhigh"
)

var effortHeaderNames = []string{
	"x-claude-code-thinking-mode",
	"x-reasoning-effort",
}

var knownEfforts = map[string]Effort{
	"none": EffortNone, "off": EffortNone,
	"minimal": EffortMinimal,
	"low":     EffortLow,
	"medium":  EffortMedium, "mid": EffortMedium,
	"high":  EffortHigh,
	"xhigh": EffortXHigh, "max": EffortXHigh, "maximum": EffortXHigh,
}

// ExtractEffort reads a reasoning-effort hint from an OpenAI-shaped body's
// `reasoning_effort`/`reasoning.effort` fields, an Anthropic-shaped body's
// `thinking` block, or the effortHeaderNames request headers, in that precedence
// order, and normalizes it to one of the Effort constants. Returns
// ("", false) when no hint is present anywhere.
func ExtractEffort(body []byte, hdrs http.Header) (Effort, bool) {
	var oa struct {
		ReasoningEffort string `json:"reasoning_effort"`
		Reasoning       *struct {
			Effort string `json:"effort"`
		} `json:"reasoning"`
	}
	if err := json.Unmarshal(body, &oa); err == nil {
		if oa.ReasoningEffort != "" {
			if e, ok := normalizeEffort(oa.ReasoningEffort); ok {
				return e, true
			}
		}
		if oa.Reasoning != nil && oa.Reasoning.Effort != "" {
			if e, ok := normalizeEffort(oa.Reasoning.Effort); ok {
				return e, true
			}
		}
	}

	var cl struct {
		Thinking *struct {
			Type         string `json:"type"`
			BudgetTokens int    `json:"budget_tokens"`
		} `json:"thinking"`
		MaxTokens int `json:"max_tokens"`
	}
	if err := json.Unmarshal(body, &cl); err == nil && cl.Thinking != nil {
		if cl.Thinking.Type == "disabled" {
			return EffortNone, true
		}
		return effortFromBudgetRatio(cl.Thinking.BudgetTokens, cl.MaxTokens), true
	}

	for _, name := range effortHeaderNames {
		if v := hdrs.Get(name); v != "" {
			if e, ok := normalizeEffort(v); ok {
				return e, true
			}
		}
	}

	return "", false
}

func normalizeEffort(raw string) (Effort, bool) {
	e, ok := knownEfforts[strings.ToLower(strings.TrimSpace(raw))]
	return e, ok
}

// effortFromBudgetRatio buckets an explicit thinking-budget fraction of
// max_tokens into the normalized effort scale.
func effortFromBudgetRatio(budget, maxTokens int) Effort {
	if budget <= 0 || maxTokens <= 0 {
		return EffortNone
	}
	ratio := float64(budget) / float64(maxTokens)
	switch {
	case ratio <= 0.1:
		return EffortMinimal
	case ratio <= 0.25:
		return EffortLow
	case ratio <= 0.5:
		return EffortMedium
	case ratio <= 0.8:
		return EffortHigh
	default:
		return EffortXHigh
	}
}

// budgetRatioFromEffort is the inverse of effortFromBudgetRatio, used when
// re-emitting an effort hint into a Claude thinking block.
func budgetRatioFromEffort(e Effort) float64 {
	switch e {
	case EffortMinimal:
		return 0.1
	case EffortLow:
		return 0.25
	case EffortMedium:
		return 0.5
	case EffortHigh:
		return 0.8
	case EffortXHigh:
		return 0.95
	default:
		return 0
	}
}

// applyEffortToOpenAI re-emits a normalized effort hint into an OpenAI
// request body. Reasoning-capable model families (o1/o3/gpt-5 style) take
// the nested `reasoning.effort` field; everything else takes the
// top-level `reasoning_effort` field, matching the split the OpenAI API
// itself draws between reasoning and non-reasoning model families.
func applyEffortToOpenAI(req *openAIRequest, e Effort, nestedFamily bool) {
	if e == "" {
		return
	}
	if nestedFamily {
		req.Reasoning = &openAIReasoning{Effort: string(e)}
		req.ReasoningEffort = ""
		return
	}
	req.ReasoningEffort = string(e)
	req.Reasoning = nil
}

// applyEffortToClaude re-emits a normalized effort hint as a Claude
// thinking block sized as a fraction of max_tokens.
func applyEffortToClaude(req *claudeRequest, e Effort) {
	if e == "" || e == EffortNone {
		return
	}
	ratio := budgetRatioFromEffort(e)
	if ratio <= 0 {
		return
	}
	budget := int(float64(req.MaxTokens) * ratio)
	if budget < 1 {
		budget = 1
	}
	req.Thinking = &claudeThinking{Type: "enabled", BudgetTokens: budget}
}

// ApplyEffort stamps e onto body (already in the target wire format). It is
// a no-op when e is empty.
func (t *translator) ApplyEffort(body []byte, to config.WireFormat, e Effort) ([]byte, error) {
	if e == "" {
		return body, nil
	}
	switch to {
	case config.FormatOpenAI:
		var req openAIRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("translate: apply effort: decode openai request: %w", err)
		}
		applyEffortToOpenAI(&req, e, isReasoningFamily(req.Model))
		return json.Marshal(req)
	case config.FormatClaude:
		var req claudeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("translate: apply effort: decode claude request: %w", err)
		}
		applyEffortToClaude(&req, e)
		return json.Marshal(req)
	default:
		return body, nil
	}
}

func isReasoningFamily(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4") || strings.Contains(m, "gpt-5")
}
