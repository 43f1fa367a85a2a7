// Package openai provides request translation from OpenAI Chat Completions
// format to the Antigravity backend request envelope. It converts the
// message list into contents turns (handling thinking semantics, tool
// call/result pairing and inline images), maps tool declarations and
// sampling parameters, and assembles the routed envelope.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/keenturbo/antigravity2api/internal/registry"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// envelopeUserAgent is the constant client identifier the backend expects.
	envelopeUserAgent = "antigravity"

	// functionCallingMode enforces backend-side validation of emitted calls.
	functionCallingMode = "VALIDATED"
)

// defaultSystemInstruction seeds the fixed system-instruction turn.
// Overridable from configuration at startup.
var defaultSystemInstruction = "You are a helpful assistant. Answer the user directly and use the provided tools when they help."

// SetSystemInstruction replaces the static system-instruction text.
// Call once during startup, before serving requests.
func SetSystemInstruction(text string) {
	if text != "" {
		defaultSystemInstruction = text
	}
}

// ErrMissingRoutingIdentifiers is returned when the supplied token cannot
// provide the project and session ids the envelope requires. This is the
// single fatal translation error: every other anomaly degrades content.
var ErrMissingRoutingIdentifiers = errors.New("token missing projectId or sessionId")

// BuildRequest converts an OpenAI Chat Completions request into the
// Antigravity request envelope. The transform is pure and single-pass:
// it holds no state across calls and concurrent callers need no
// coordination.
//
// Parameters:
//   - rawJSON: the raw OpenAI request body
//   - modelID: the requested model identifier (pre-alias)
//   - token: routing identifiers for the upstream project and session
//
// Returns the assembled envelope, or ErrMissingRoutingIdentifiers when the
// token lacks the required fields.
func BuildRequest(rawJSON []byte, modelID string, token SessionToken) (*Envelope, error) {
	if token == nil || token.GetProjectID() == "" || token.GetSessionID() == "" {
		return nil, ErrMissingRoutingIdentifiers
	}

	policy := registry.ResolveModelPolicy(modelID)
	log.Debugf("antigravity translate: model=%s canonical=%s thinking=%v markThoughts=%v",
		modelID, policy.CanonicalName, policy.ThinkingEnabled, policy.MarkThoughts)

	messages := gjson.GetBytes(rawJSON, "messages").Array()

	envelope := &Envelope{
		Project:   token.GetProjectID(),
		RequestID: "agent-" + uuid.NewString(),
		Model:     policy.CanonicalName,
		UserAgent: envelopeUserAgent,
		Request: InnerRequest{
			Contents: transcodeMessages(messages, policy),
			SystemInstruction: &SystemInstruction{
				Parts: []Part{{Text: defaultSystemInstruction}},
			},
			Tools: convertTools(gjson.GetBytes(rawJSON, "tools")),
			ToolConfig: &ToolConfig{
				FunctionCallingConfig: &FunctionCallingConfig{Mode: functionCallingMode},
			},
			GenerationConfig: buildGenerationConfig(gjson.ParseBytes(rawJSON), policy),
			SessionID:        token.GetSessionID(),
		},
	}
	return envelope, nil
}

// MarshalRequest builds the envelope and serializes it for transport.
func MarshalRequest(rawJSON []byte, modelID string, token SessionToken) ([]byte, error) {
	envelope, err := BuildRequest(rawJSON, modelID, token)
	if err != nil {
		return nil, err
	}
	payload, errMarshal := json.Marshal(envelope)
	if errMarshal != nil {
		return nil, fmt.Errorf("marshal antigravity envelope: %w", errMarshal)
	}
	return payload, nil
}
