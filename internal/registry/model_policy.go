// Package registry tracks the model identifiers served through the
// Antigravity backend and derives the per-request translation policy
// (canonical upstream name, reasoning behavior, thought marking) from a
// closed table of model families.
package registry

import "strings"

// ModelFamily identifies the backend model family a request is routed to.
// The two families disagree on reasoning syntax: the Gemini-native family
// accepts explicit thought markers on parts, the Claude-on-Antigravity
// family rejects them.
type ModelFamily int

const (
	// FamilyGemini is the backend's native Gemini model family.
	FamilyGemini ModelFamily = iota
	// FamilyClaude is the Claude family exposed through Antigravity.
	FamilyClaude
	// FamilyUnknown is any identifier not in the table; treated as a
	// non-reasoning Gemini-style model and passed through unchanged.
	FamilyUnknown
)

// ModelPolicy captures everything the request translator needs to know
// about a model. It is recomputed per request from the raw identifier and
// never stored.
type ModelPolicy struct {
	// CanonicalName is the model string actually sent upstream, after
	// exact-match alias rewriting.
	CanonicalName string
	// Family selects marker syntax and generation-config quirks.
	Family ModelFamily
	// ThinkingEnabled reports whether reasoning mode is on for this model.
	ThinkingEnabled bool
	// MarkThoughts reports whether reasoning parts must carry an explicit
	// thought marker. Only the Gemini-native family accepts the marker.
	MarkThoughts bool
}

// thinkingSuffix marks reasoning variants of otherwise non-reasoning models.
const thinkingSuffix = "-thinking"

// thinkingDefaults lists models that reason by default, without the
// -thinking suffix. Exact identifiers only; prefix families are listed in
// thinkingPrefixes. This is configuration confirmed against the live
// backend, not derived from the model string shape.
var thinkingDefaults = map[string]struct{}{
	"gemini-2.5-pro":  {},
	"gemini-3-flash":  {},
	"gemini-3-pro":    {},
	"claude-opus-4-5": {},
}

// thinkingPrefixes lists model-id prefixes whose whole family reasons by
// default (e.g. gemini-3-pro-high, gemini-3-pro-low).
var thinkingPrefixes = []string{
	"gemini-3-pro-",
}

// canonicalAliases rewrites source model aliases to the upstream model
// string. Exact match only: prefix matching here would rewrite identifiers
// that merely share a family name.
var canonicalAliases = map[string]string{
	"gemini-2.5-flash-thinking":  "gemini-2.5-flash",
	"gemini-3-pro-preview":       "gemini-3-pro-high",
	"gemini-3-flash-preview":     "gemini-3-flash",
	"claude-sonnet-4.5":          "claude-sonnet-4-5",
	"claude-sonnet-4.5-thinking": "claude-sonnet-4-5" + thinkingSuffix,
}

// ResolveModelPolicy maps a raw model identifier to its translation policy.
// It is a total function: unknown identifiers resolve to a passthrough,
// non-reasoning policy rather than an error.
//
// The suffix is detected on the raw identifier before alias rewriting, then
// stripped from the canonical name: upstream wants the base model string
// with reasoning expressed through the generation config, not the name.
func ResolveModelPolicy(modelID string) ModelPolicy {
	thinking := strings.HasSuffix(modelID, thinkingSuffix)
	canonical := modelID
	if mapped, ok := canonicalAliases[modelID]; ok {
		canonical = mapped
	}
	canonical = strings.TrimSuffix(canonical, thinkingSuffix)

	policy := ModelPolicy{
		CanonicalName:   canonical,
		Family:          familyOf(canonical),
		ThinkingEnabled: thinking || thinkingEnabled(canonical),
	}
	// Thought markers are Gemini-family syntax; Claude models served
	// through Antigravity reject the marker even in reasoning mode.
	policy.MarkThoughts = policy.ThinkingEnabled && policy.Family == FamilyGemini
	return policy
}

func familyOf(modelID string) ModelFamily {
	switch {
	case strings.HasPrefix(modelID, "claude-"):
		return FamilyClaude
	case strings.HasPrefix(modelID, "gemini-"):
		return FamilyGemini
	default:
		return FamilyUnknown
	}
}

func thinkingEnabled(modelID string) bool {
	if strings.HasSuffix(modelID, thinkingSuffix) {
		return true
	}
	if _, ok := thinkingDefaults[modelID]; ok {
		return true
	}
	for _, prefix := range thinkingPrefixes {
		if strings.HasPrefix(modelID, prefix) {
			return true
		}
	}
	return false
}
