package openai

import (
	"strings"

	"github.com/keenturbo/antigravity2api/internal/registry"
	"github.com/tidwall/gjson"
)

// GenerationDefaults are the sampling values applied when the source
// request leaves a knob unset. Overridable from configuration at startup.
type GenerationDefaults struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
	ThinkingBudget  int
}

var generationDefaults = GenerationDefaults{
	Temperature:     0.4,
	TopP:            1.0,
	TopK:            40,
	MaxOutputTokens: 8192,
	ThinkingBudget:  32768,
}

// SetGenerationDefaults replaces the process-wide sampling defaults.
// Call once during startup, before serving requests.
func SetGenerationDefaults(d GenerationDefaults) {
	generationDefaults = d
}

// defaultStopSequences delimits turn boundaries the backend does not
// itself recognize; always attached.
var defaultStopSequences = []string{
	"<|user|>",
	"<|bot|>",
	"<|context_request|>",
	"<|endoftext|>",
	"<|end_of_turn|>",
}

// buildGenerationConfig maps the OpenAI sampling parameters into the
// backend generation config. topP is omitted entirely when thinking is
// enabled on the Claude family: that family rejects top-p alongside
// reasoning mode.
func buildGenerationConfig(raw gjson.Result, policy registry.ModelPolicy) *GenerationConfig {
	temperature := numberOr(raw.Get("temperature"), generationDefaults.Temperature)
	topK := intOr(raw.Get("top_k"), generationDefaults.TopK)
	maxTokens := intOr(raw.Get("max_tokens"), generationDefaults.MaxOutputTokens)

	cfg := &GenerationConfig{
		CandidateCount:  1,
		StopSequences:   append([]string(nil), defaultStopSequences...),
		MaxOutputTokens: maxTokens,
		Temperature:     &temperature,
		TopK:            topK,
		ThinkingConfig: &ThinkingConfig{
			IncludeThoughts: policy.ThinkingEnabled,
		},
	}
	if policy.ThinkingEnabled {
		cfg.ThinkingConfig.ThinkingBudget = generationDefaults.ThinkingBudget
	}

	if !(policy.ThinkingEnabled && strings.Contains(policy.CanonicalName, "claude")) {
		topP := numberOr(raw.Get("top_p"), generationDefaults.TopP)
		cfg.TopP = &topP
	}

	return cfg
}

func numberOr(v gjson.Result, fallback float64) float64 {
	if v.Exists() && v.Type == gjson.Number {
		return v.Num
	}
	return fallback
}

func intOr(v gjson.Result, fallback int) int {
	if v.Exists() && v.Type == gjson.Number {
		return int(v.Int())
	}
	return fallback
}
