package openai

import (
	"strings"

	"github.com/keenturbo/antigravity2api/internal/registry"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// placeholderThought is synthesized as the sole leading part of a
// tool-call turn that has no text of its own. The backend rejects a
// function-call turn with zero preceding parts while reasoning mode is on.
const placeholderThought = "Using the requested tool to continue."

// transcodeMessages walks the source messages strictly in order and
// produces the minimal correct target turn sequence. Each message yields
// at most one new turn unless a merge rule applies:
//   - pending tool calls with no visible text are appended onto an
//     immediately preceding model turn;
//   - consecutive tool results collapse into the preceding user turn when
//     it already carries a functionResponse part.
func transcodeMessages(messages []gjson.Result, policy registry.ModelPolicy) []Content {
	turns := make([]Content, 0, len(messages))

	for _, msg := range messages {
		role := msg.Get("role").String()
		switch role {
		case "system", "user":
			turns = append(turns, userTurn(msg, policy))
		case "assistant":
			turns = appendAssistantTurn(turns, msg, policy)
		case "tool":
			turns = appendToolResult(turns, msg)
		default:
			log.Warnf("transcode: unknown role %q, treating as user", role)
			turns = append(turns, userTurn(msg, policy))
		}
	}

	finalizeTurns(turns, policy)
	return turns
}

func userTurn(msg gjson.Result, policy registry.ModelPolicy) Content {
	nc := normalizeContent(msg.Get("content"), policy)
	parts := make([]Part, 0, 1+len(nc.Thoughts)+len(nc.Images))
	parts = append(parts, Part{Text: nc.Text})
	parts = append(parts, nc.Thoughts...)
	for i := range nc.Images {
		parts = append(parts, Part{InlineData: &nc.Images[i]})
	}
	return Content{Role: "user", Parts: parts}
}

func appendAssistantTurn(turns []Content, msg gjson.Result, policy registry.ModelPolicy) []Content {
	nc := normalizeContent(msg.Get("content"), policy)
	calls := functionCallParts(msg.Get("tool_calls"), policy)
	hasText := nc.hasVisibleText()

	// Empty assistant turn: the source had neither tool calls nor content.
	// Preserved as a model turn with empty parts rather than dropped.
	if len(calls) == 0 && nc.empty() {
		return append(turns, Content{Role: "model", Parts: []Part{}})
	}

	// Merge rule: tool calls with no user-visible content attach to the
	// reasoning turn that preceded them instead of opening a new turn. A
	// preceding model turn that already spoke to the user keeps its answer
	// separate from the follow-up call.
	if len(calls) > 0 && !hasText && len(nc.Images) == 0 && len(turns) > 0 {
		last := &turns[len(turns)-1]
		if last.Role == "model" && !hasVisibleTextPart(last.Parts) {
			last.Parts = append(last.Parts, nc.Thoughts...)
			last.Parts = append(last.Parts, calls...)
			return turns
		}
	}

	parts := make([]Part, 0, len(nc.Thoughts)+1+len(nc.Images)+len(calls))
	parts = append(parts, nc.Thoughts...)
	if hasText {
		parts = append(parts, Part{Text: strings.TrimRight(nc.Text, " \t\r\n")})
	}
	for i := range nc.Images {
		parts = append(parts, Part{InlineData: &nc.Images[i]})
	}
	if len(calls) > 0 && len(parts) == 0 && policy.ThinkingEnabled {
		parts = append(parts, thoughtPart(placeholderThought, policy))
	}
	parts = append(parts, calls...)

	return append(turns, Content{Role: "model", Parts: parts})
}

// hasVisibleTextPart reports whether any part carries user-visible text,
// i.e. non-blank text that is not marked as a thought.
func hasVisibleTextPart(parts []Part) bool {
	for i := range parts {
		if parts[i].FunctionCall != nil || parts[i].FunctionResponse != nil {
			continue
		}
		if !parts[i].Thought && strings.TrimSpace(parts[i].Text) != "" {
			return true
		}
	}
	return false
}

// functionCallParts builds the functionCall parts for an assistant turn.
// Arguments are parsed from their JSON text and wrapped under a query key;
// unparseable argument text is wrapped as-is rather than dropped.
func functionCallParts(toolCalls gjson.Result, policy registry.ModelPolicy) []Part {
	if !toolCalls.IsArray() {
		return nil
	}
	var parts []Part
	for _, tc := range toolCalls.Array() {
		if t := tc.Get("type").String(); t != "" && t != "function" {
			continue
		}
		argsText := tc.Get("function.arguments").String()
		var query any
		if gjson.Valid(argsText) {
			query = gjson.Parse(argsText).Value()
		} else {
			query = argsText
		}
		parts = append(parts, Part{
			Thought: policy.MarkThoughts,
			FunctionCall: &FunctionCall{
				ID:   tc.Get("id").String(),
				Name: tc.Get("function.name").String(),
				Args: map[string]any{"query": query},
			},
		})
	}
	return parts
}

// appendToolResult converts a tool-role message into a functionResponse
// part, resolving the function name from the matching prior functionCall.
func appendToolResult(turns []Content, msg gjson.Result) []Content {
	callID := msg.Get("tool_call_id").String()
	name := resolveFunctionName(turns, callID)
	if name == "" {
		log.Warnf("transcode: tool_call_id %q does not match any prior function call", callID)
	}

	var output any
	content := msg.Get("content")
	if content.Type == gjson.String {
		output = content.String()
	} else if content.Exists() {
		output = content.Value()
	} else {
		output = ""
	}

	part := Part{FunctionResponse: &FunctionResponse{
		ID:       callID,
		Name:     name,
		Response: map[string]any{"output": output},
	}}

	// Merge rule: consecutive tool results share one user turn.
	if len(turns) > 0 {
		last := &turns[len(turns)-1]
		if last.Role == "user" && holdsFunctionResponse(last.Parts) {
			last.Parts = append(last.Parts, part)
			return turns
		}
	}
	return append(turns, Content{Role: "user", Parts: []Part{part}})
}

// resolveFunctionName scans backward through the emitted model turns for
// the functionCall whose id matches, taking the most recent match.
func resolveFunctionName(turns []Content, callID string) string {
	if callID == "" {
		return ""
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role != "model" {
			continue
		}
		for j := len(turns[i].Parts) - 1; j >= 0; j-- {
			if fc := turns[i].Parts[j].FunctionCall; fc != nil && fc.ID == callID {
				return fc.Name
			}
		}
	}
	return ""
}

func holdsFunctionResponse(parts []Part) bool {
	for i := range parts {
		if parts[i].FunctionResponse != nil {
			return true
		}
	}
	return false
}

// finalizeTurns re-walks every emitted part so no reasoning-shaped object
// survives untranslated. Content reaches a turn from more than one path
// (direct assistant text, carried-over upstream reasoning objects, tool
// outputs embedding prior turns), so the canonical shape is enforced once
// here before transmission.
func finalizeTurns(turns []Content, policy registry.ModelPolicy) {
	for ti := range turns {
		for pi := range turns[ti].Parts {
			part := &turns[ti].Parts[pi]
			if part.Thought && !policy.ThinkingEnabled {
				part.Thought = false
			}
			if part.FunctionCall != nil {
				part.FunctionCall.Args = flattenReasoningValues(part.FunctionCall.Args).(map[string]any)
			}
			if part.FunctionResponse != nil {
				part.FunctionResponse.Response = flattenReasoningValues(part.FunctionResponse.Response).(map[string]any)
			}
		}
	}
}

// flattenReasoningValues rewrites any nested reasoning-shaped object
// ({"thinking": ...} or {"reasoning": ...}) into its extracted text.
func flattenReasoningValues(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if text, ok := reasoningTextFromMap(val); ok {
			return text
		}
		for k, inner := range val {
			val[k] = flattenReasoningValues(inner)
		}
		return val
	case []any:
		for i, inner := range val {
			val[i] = flattenReasoningValues(inner)
		}
		return val
	default:
		return v
	}
}

func reasoningTextFromMap(m map[string]any) (string, bool) {
	// Only a bare {"thinking": ...} / {"reasoning": ...} wrapper counts as
	// reasoning-shaped; maps that merely contain such a key among others
	// are user data and pass through.
	if len(m) != 1 {
		return "", false
	}
	for _, key := range []string{"thinking", "reasoning"} {
		node, ok := m[key]
		if !ok {
			continue
		}
		switch inner := node.(type) {
		case string:
			return inner, true
		case map[string]any:
			if s, ok := inner["content"].(string); ok {
				return s, true
			}
			if s, ok := inner["text"].(string); ok {
				return s, true
			}
			return "", true
		}
	}
	return "", false
}
