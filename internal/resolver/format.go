package resolver

import "github.com/tributary-ai/llm-router/internal/config"

var knownFormats = []config.WireFormat{config.FormatOpenAI, config.FormatClaude}

func intersectFormats(a, b []config.WireFormat) []config.WireFormat {
	if len(a) == 0 {
		return nil
	}
	set := make(map[config.WireFormat]bool, len(b))
	for _, f := range b {
		set[f] = true
	}
	var out []config.WireFormat
	for _, f := range a {
		if set[f] {
			out = append(out, f)
		}
	}
	return out
}

func restrictToKnown(fs []config.WireFormat) []config.WireFormat {
	if len(fs) == 0 {
		return append([]config.WireFormat(nil), knownFormats...)
	}
	return intersectFormats(fs, knownFormats)
}

// supportedFormats computes the target-format selection set:
// P = provider.formats ∩ {openai, claude}; M = model.formats ∩ {openai, claude};
// supported = M ∩ P if M non-empty, else P.
func supportedFormats(provider *config.ProviderSpec, model *config.ModelSpec) []config.WireFormat {
	p := restrictToKnown(provider.Formats)
	if len(model.Formats) == 0 {
		return p
	}
	m := restrictToKnown(model.Formats)
	return intersectFormats(m, p)
}

// formatCompatible implements the direct-resolution compatibility check: if
// the model declares formats, the pair must support at least one of the
// provider's formats.
func formatCompatible(provider *config.ProviderSpec, model *config.ModelSpec) bool {
	if len(model.Formats) == 0 {
		return true
	}
	return len(intersectFormats(restrictToKnown(model.Formats), restrictToKnown(provider.Formats))) > 0
}

// chooseTargetFormat picks the wire format a candidate will be addressed
// in: prefer sourceFormat if supported, else the first supported format,
// else the provider's preferred format, else openai.
func chooseTargetFormat(provider *config.ProviderSpec, model *config.ModelSpec, sourceFormat config.WireFormat) config.WireFormat {
	supported := supportedFormats(provider, model)
	for _, f := range supported {
		if f == sourceFormat {
			return sourceFormat
		}
	}
	if len(supported) > 0 {
		return supported[0]
	}
	if provider.Format != "" {
		return provider.Format
	}
	return config.FormatOpenAI
}
