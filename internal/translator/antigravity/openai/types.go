package openai

// Target-side request envelope accepted by the Antigravity CloudCode
// endpoints. Field names follow the upstream wire format exactly.

// Envelope is the top-level request wrapper sent to the backend.
type Envelope struct {
	Project   string       `json:"project"`
	RequestID string       `json:"requestId"`
	Request   InnerRequest `json:"request"`
	Model     string       `json:"model"`
	UserAgent string       `json:"userAgent"`
}

// InnerRequest carries the generation request proper.
type InnerRequest struct {
	Contents          []Content          `json:"contents"`
	SystemInstruction *SystemInstruction `json:"systemInstruction,omitempty"`
	Tools             []Tool             `json:"tools,omitempty"`
	ToolConfig        *ToolConfig        `json:"toolConfig,omitempty"`
	GenerationConfig  *GenerationConfig  `json:"generationConfig,omitempty"`
	SessionID         string             `json:"sessionId"`
}

// Content is one conversation turn, tagged user or model.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part is the tagged union of turn content. Exactly one payload field is
// set per part; Thought additionally marks text as model-internal
// reasoning for the model families that accept the marker.
type Part struct {
	Text             string            `json:"text,omitempty"`
	Thought          bool              `json:"thought,omitempty"`
	InlineData       *InlineData       `json:"inlineData,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// FunctionCall asks the client to invoke a tool. ID links the later
// functionResponse back to this call.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse returns a tool result for a prior FunctionCall.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// InlineData carries base64 binary content, typically an image.
type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// SystemInstruction is the fixed leading instruction turn.
type SystemInstruction struct {
	Parts []Part `json:"parts"`
}

// Tool wraps function declarations. The backend groups one function per
// declaration object rather than one array of functions.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

// FunctionDeclaration describes one callable function.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolConfig controls backend-side function calling behavior.
type ToolConfig struct {
	FunctionCallingConfig *FunctionCallingConfig `json:"functionCallingConfig,omitempty"`
}

// FunctionCallingConfig selects the function-calling mode.
type FunctionCallingConfig struct {
	Mode string `json:"mode,omitempty"`
}

// GenerationConfig maps the sampling knobs. TopP is a pointer so it can
// be omitted entirely for model families that reject it in reasoning mode.
type GenerationConfig struct {
	CandidateCount  int             `json:"candidateCount,omitempty"`
	StopSequences   []string        `json:"stopSequences,omitempty"`
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	TopP            *float64        `json:"topP,omitempty"`
	TopK            int             `json:"topK,omitempty"`
	ThinkingConfig  *ThinkingConfig `json:"thinkingConfig,omitempty"`
}

// ThinkingConfig controls reasoning-trace emission. ThinkingBudget is
// serialized even when zero: zero explicitly disables the budget upstream.
type ThinkingConfig struct {
	IncludeThoughts bool `json:"includeThoughts"`
	ThinkingBudget  int  `json:"thinkingBudget"`
}

// SessionToken exposes the routing identifiers every envelope must carry.
// The auth package's token type satisfies it.
type SessionToken interface {
	GetProjectID() string
	GetSessionID() string
}
