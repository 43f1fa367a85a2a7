package openai

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// openaiChunkState carries per-stream aggregation between chunk conversions.
type openaiChunkState struct {
	ResponseID    string
	CreatedAt     int64
	ToolCallCount int
	FinishSent    bool
}

// ConvertAntigravityResponseToOpenAI converts one Antigravity SSE chunk into
// OpenAI chat.completion.chunk payloads. The backend wraps every chunk in a
// response envelope; thought parts map to reasoning_content, text parts to
// content and functionCall parts to tool_calls deltas. The finish chunk
// carries usage when the backend reported it.
func ConvertAntigravityResponseToOpenAI(_ context.Context, modelName string, _ []byte, _ []byte, rawJSON []byte, param *any) []string {
	if *param == nil {
		*param = &openaiChunkState{
			ResponseID: "chatcmpl-" + uuid.NewString(),
			CreatedAt:  time.Now().Unix(),
		}
	}
	st := (*param).(*openaiChunkState)

	if bytes.Equal(bytes.TrimSpace(rawJSON), []byte("[DONE]")) {
		return []string{"[DONE]"}
	}
	if bytes.HasPrefix(rawJSON, []byte("data:")) {
		rawJSON = bytes.TrimSpace(rawJSON[5:])
	}

	root := unwrapResponse(gjson.ParseBytes(rawJSON))
	if !root.Exists() {
		return []string{}
	}
	if id := root.Get("responseId"); id.Exists() && id.String() != "" {
		st.ResponseID = id.String()
	}

	candidate := root.Get("candidates.0")
	var out []string

	for _, part := range candidate.Get("content.parts").Array() {
		if fc := part.Get("functionCall"); fc.Exists() {
			chunk := st.newChunk(modelName)
			tc := `{"index":0,"id":"","type":"function","function":{"name":"","arguments":""}}`
			tc, _ = sjson.Set(tc, "index", st.ToolCallCount)
			tc, _ = sjson.Set(tc, "id", functionCallID(fc))
			tc, _ = sjson.Set(tc, "function.name", fc.Get("name").String())
			tc, _ = sjson.Set(tc, "function.arguments", unwrapQueryArgs(fc.Get("args")))
			chunk, _ = sjson.SetRaw(chunk, "choices.0.delta.tool_calls", "["+tc+"]")
			st.ToolCallCount++
			out = append(out, chunk)
			continue
		}

		text := part.Get("text").String()
		if text == "" {
			continue
		}
		chunk := st.newChunk(modelName)
		if part.Get("thought").Bool() {
			chunk, _ = sjson.Set(chunk, "choices.0.delta.reasoning_content", text)
		} else {
			chunk, _ = sjson.Set(chunk, "choices.0.delta.content", text)
		}
		out = append(out, chunk)
	}

	if finish := candidate.Get("finishReason"); finish.Exists() && finish.String() != "" && !st.FinishSent {
		chunk := st.newChunk(modelName)
		chunk, _ = sjson.Set(chunk, "choices.0.finish_reason",
			mapFinishReason(finish.String(), st.ToolCallCount > 0))
		if usage := root.Get("usageMetadata"); usage.Exists() {
			chunk, _ = sjson.SetRaw(chunk, "usage", buildUsage(usage))
		}
		st.FinishSent = true
		out = append(out, chunk)
	}

	return out
}

// ConvertAntigravityResponseToOpenAINonStream converts a complete Antigravity
// response into one OpenAI chat.completion object.
func ConvertAntigravityResponseToOpenAINonStream(_ context.Context, modelName string, _ []byte, _ []byte, rawJSON []byte, _ *any) string {
	root := unwrapResponse(gjson.ParseBytes(rawJSON))
	if !root.Exists() {
		return ""
	}

	responseID := root.Get("responseId").String()
	if responseID == "" {
		responseID = "chatcmpl-" + uuid.NewString()
	}

	out := `{"id":"","object":"chat.completion","created":0,"model":"","choices":[{"index":0,"message":{"role":"assistant","content":null},"finish_reason":"stop"}]}`
	out, _ = sjson.Set(out, "id", responseID)
	out, _ = sjson.Set(out, "created", time.Now().Unix())
	out, _ = sjson.Set(out, "model", modelName)

	candidate := root.Get("candidates.0")
	var content, reasoning string
	var toolCalls []string
	for _, part := range candidate.Get("content.parts").Array() {
		if fc := part.Get("functionCall"); fc.Exists() {
			tc := `{"index":0,"id":"","type":"function","function":{"name":"","arguments":""}}`
			tc, _ = sjson.Set(tc, "index", len(toolCalls))
			tc, _ = sjson.Set(tc, "id", functionCallID(fc))
			tc, _ = sjson.Set(tc, "function.name", fc.Get("name").String())
			tc, _ = sjson.Set(tc, "function.arguments", unwrapQueryArgs(fc.Get("args")))
			toolCalls = append(toolCalls, tc)
			continue
		}
		if text := part.Get("text").String(); text != "" {
			if part.Get("thought").Bool() {
				reasoning += text
			} else {
				content += text
			}
		}
	}

	if content != "" {
		out, _ = sjson.Set(out, "choices.0.message.content", content)
	}
	if reasoning != "" {
		out, _ = sjson.Set(out, "choices.0.message.reasoning_content", reasoning)
	}
	if len(toolCalls) > 0 {
		joined := "[" + toolCalls[0]
		for _, tc := range toolCalls[1:] {
			joined += "," + tc
		}
		out, _ = sjson.SetRaw(out, "choices.0.message.tool_calls", joined+"]")
	}
	out, _ = sjson.Set(out, "choices.0.finish_reason",
		mapFinishReason(candidate.Get("finishReason").String(), len(toolCalls) > 0))

	if usage := root.Get("usageMetadata"); usage.Exists() {
		out, _ = sjson.SetRaw(out, "usage", buildUsage(usage))
	}
	return out
}

// unwrapResponse strips the CloudCode response wrapper when present.
func unwrapResponse(root gjson.Result) gjson.Result {
	if inner := root.Get("response"); inner.Exists() {
		return inner
	}
	return root
}

func (st *openaiChunkState) newChunk(modelName string) string {
	chunk := `{"id":"","object":"chat.completion.chunk","created":0,"model":"","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}`
	chunk, _ = sjson.Set(chunk, "id", st.ResponseID)
	chunk, _ = sjson.Set(chunk, "created", st.CreatedAt)
	chunk, _ = sjson.Set(chunk, "model", modelName)
	return chunk
}

// functionCallID prefers the backend-assigned call id and synthesizes one
// otherwise, so the client can always pair a later tool result.
func functionCallID(fc gjson.Result) string {
	if id := fc.Get("id").String(); id != "" {
		return id
	}
	return "call_" + uuid.NewString()
}

// unwrapQueryArgs reverses the request-side query wrapping: an args object
// holding only a query key yields that value as the arguments JSON text.
func unwrapQueryArgs(args gjson.Result) string {
	if args.IsObject() {
		m := args.Map()
		if inner, ok := m["query"]; ok && len(m) == 1 {
			if inner.Type == gjson.String {
				return inner.String()
			}
			return inner.Raw
		}
	}
	if !args.Exists() {
		return "{}"
	}
	return args.Raw
}

func mapFinishReason(reason string, hasToolCalls bool) string {
	if hasToolCalls {
		return "tool_calls"
	}
	switch reason {
	case "MAX_TOKENS":
		return "length"
	case "SAFETY", "RECITATION", "PROHIBITED_CONTENT", "BLOCKLIST":
		return "content_filter"
	default:
		return "stop"
	}
}

func buildUsage(usage gjson.Result) string {
	prompt := usage.Get("promptTokenCount").Int()
	completion := usage.Get("candidatesTokenCount").Int()
	total := usage.Get("totalTokenCount").Int()
	if total == 0 {
		total = prompt + completion
	}
	out := fmt.Sprintf(`{"prompt_tokens":%d,"completion_tokens":%d,"total_tokens":%d}`, prompt, completion, total)
	if thoughts := usage.Get("thoughtsTokenCount").Int(); thoughts > 0 {
		out, _ = sjson.Set(out, "completion_tokens_details.reasoning_tokens", thoughts)
	}
	return out
}
