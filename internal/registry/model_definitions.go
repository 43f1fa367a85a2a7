package registry

// Static definitions of the models reachable through the Antigravity
// backend, used to answer model-list requests.

// ModelInfo describes one served model in OpenAI list-models shape.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`

	DisplayName string `json:"display_name,omitempty"`
}

// GetAntigravityModels returns the model identifiers accepted by this
// proxy. The set mirrors what the Antigravity backend exposes; reasoning
// variants are listed alongside their base models.
func GetAntigravityModels() []*ModelInfo {
	return []*ModelInfo{
		{
			ID:          "gemini-2.5-flash",
			Object:      "model",
			Created:     1750118400, // 2025-06-17
			OwnedBy:     "google",
			DisplayName: "Gemini 2.5 Flash",
		},
		{
			ID:          "gemini-2.5-flash-thinking",
			Object:      "model",
			Created:     1750118400,
			OwnedBy:     "google",
			DisplayName: "Gemini 2.5 Flash Thinking",
		},
		{
			ID:          "gemini-2.5-pro",
			Object:      "model",
			Created:     1750118400,
			OwnedBy:     "google",
			DisplayName: "Gemini 2.5 Pro",
		},
		{
			ID:          "gemini-3-flash",
			Object:      "model",
			Created:     1765929600, // 2025-12-17
			OwnedBy:     "google",
			DisplayName: "Gemini 3 Flash",
		},
		{
			ID:          "gemini-3-pro-high",
			Object:      "model",
			Created:     1763424000, // 2025-11-18
			OwnedBy:     "google",
			DisplayName: "Gemini 3 Pro (High)",
		},
		{
			ID:          "gemini-3-pro-low",
			Object:      "model",
			Created:     1763424000,
			OwnedBy:     "google",
			DisplayName: "Gemini 3 Pro (Low)",
		},
		{
			ID:          "claude-sonnet-4-5",
			Object:      "model",
			Created:     1759104000, // 2025-09-29
			OwnedBy:     "anthropic",
			DisplayName: "Claude 4.5 Sonnet",
		},
		{
			ID:          "claude-sonnet-4-5-thinking",
			Object:      "model",
			Created:     1759104000,
			OwnedBy:     "anthropic",
			DisplayName: "Claude 4.5 Sonnet Thinking",
		},
		{
			ID:          "claude-opus-4-5-thinking",
			Object:      "model",
			Created:     1761955200, // 2025-11-01
			OwnedBy:     "anthropic",
			DisplayName: "Claude 4.5 Opus Thinking",
		},
	}
}
