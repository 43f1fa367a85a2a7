package openai

import (
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

type stubToken struct {
	project string
	session string
}

func (s stubToken) GetProjectID() string { return s.project }
func (s stubToken) GetSessionID() string { return s.session }

var testToken = stubToken{project: "projects/test-project", session: "-session-1"}

func mustBuild(t *testing.T, body string, model string) gjson.Result {
	t.Helper()
	payload, err := MarshalRequest([]byte(body), model, testToken)
	if err != nil {
		t.Fatalf("MarshalRequest error: %v", err)
	}
	return gjson.ParseBytes(payload)
}

func TestBuildRequest_EnvelopeShape(t *testing.T) {
	out := mustBuild(t, `{"messages":[{"role":"user","content":"hi"}]}`, "gemini-3-flash")

	if got := out.Get("project").String(); got != "projects/test-project" {
		t.Errorf("project = %q", got)
	}
	if got := out.Get("requestId").String(); !strings.HasPrefix(got, "agent-") || len(got) <= len("agent-") {
		t.Errorf("requestId = %q, want agent-<uuid>", got)
	}
	if got := out.Get("userAgent").String(); got != "antigravity" {
		t.Errorf("userAgent = %q", got)
	}
	if got := out.Get("model").String(); got != "gemini-3-flash" {
		t.Errorf("model = %q", got)
	}
	if got := out.Get("request.sessionId").String(); got != "-session-1" {
		t.Errorf("sessionId = %q", got)
	}
	if mode := out.Get("request.toolConfig.functionCallingConfig.mode").String(); mode != "VALIDATED" {
		t.Errorf("functionCallingConfig.mode = %q", mode)
	}
	if !out.Get("request.systemInstruction.parts.0.text").Exists() {
		t.Error("missing systemInstruction text part")
	}
}

func TestBuildRequest_MissingRoutingIdentifiers(t *testing.T) {
	body := []byte(`{"messages":[{"role":"user","content":"hi"}]}`)
	for _, token := range []stubToken{
		{project: "", session: "s"},
		{project: "p", session: ""},
	} {
		if _, err := BuildRequest(body, "gemini-3-flash", token); err != ErrMissingRoutingIdentifiers {
			t.Errorf("token %+v: err = %v, want ErrMissingRoutingIdentifiers", token, err)
		}
	}
	if _, err := BuildRequest(body, "gemini-3-flash", nil); err != ErrMissingRoutingIdentifiers {
		t.Errorf("nil token: err = %v", err)
	}
}

func TestBuildRequest_ThinkingSuffixAndAliases(t *testing.T) {
	cases := []struct {
		model     string
		canonical string
		thinking  bool
	}{
		{"gemini-2.5-flash", "gemini-2.5-flash", false},
		{"gemini-2.5-flash-thinking", "gemini-2.5-flash", true},
		{"gemini-3-pro-preview", "gemini-3-pro-high", true},
		{"claude-sonnet-4.5", "claude-sonnet-4-5", false},
		{"claude-sonnet-4.5-thinking", "claude-sonnet-4-5", true},
		{"claude-opus-4-5-thinking", "claude-opus-4-5", true},
	}
	for _, tc := range cases {
		out := mustBuild(t, `{"messages":[{"role":"user","content":"hi"}]}`, tc.model)
		if got := out.Get("model").String(); got != tc.canonical {
			t.Errorf("%s: model = %q, want %q", tc.model, got, tc.canonical)
		}
		gotThinking := out.Get("request.generationConfig.thinkingConfig.includeThoughts").Bool()
		if gotThinking != tc.thinking {
			t.Errorf("%s: includeThoughts = %v, want %v", tc.model, gotThinking, tc.thinking)
		}
	}
}

func TestBuildRequest_GenerationDefaults(t *testing.T) {
	out := mustBuild(t, `{"messages":[{"role":"user","content":"hi"}]}`, "gemini-2.5-flash")
	cfg := out.Get("request.generationConfig")

	if got := cfg.Get("temperature").Float(); got != 0.4 {
		t.Errorf("temperature = %v", got)
	}
	if got := cfg.Get("topP").Float(); got != 1.0 {
		t.Errorf("topP = %v", got)
	}
	if got := cfg.Get("topK").Int(); got != 40 {
		t.Errorf("topK = %v", got)
	}
	if got := cfg.Get("candidateCount").Int(); got != 1 {
		t.Errorf("candidateCount = %v", got)
	}

	stops := cfg.Get("stopSequences").Array()
	want := []string{"<|user|>", "<|bot|>", "<|context_request|>", "<|endoftext|>", "<|end_of_turn|>"}
	if len(stops) != len(want) {
		t.Fatalf("stopSequences = %v", stops)
	}
	for i, s := range stops {
		if s.String() != want[i] {
			t.Errorf("stopSequences[%d] = %q, want %q", i, s.String(), want[i])
		}
	}
}

func TestBuildRequest_ExplicitSamplingOverrides(t *testing.T) {
	out := mustBuild(t, `{"messages":[{"role":"user","content":"hi"}],"temperature":0.9,"top_p":0.5,"max_tokens":1234}`, "gemini-2.5-flash")
	cfg := out.Get("request.generationConfig")
	if got := cfg.Get("temperature").Float(); got != 0.9 {
		t.Errorf("temperature = %v", got)
	}
	if got := cfg.Get("topP").Float(); got != 0.5 {
		t.Errorf("topP = %v", got)
	}
	if got := cfg.Get("maxOutputTokens").Int(); got != 1234 {
		t.Errorf("maxOutputTokens = %v", got)
	}
}

func TestBuildRequest_TopPOmittedForClaudeThinking(t *testing.T) {
	out := mustBuild(t, `{"messages":[{"role":"user","content":"hi"}],"top_p":0.5}`, "claude-opus-4-5-thinking")
	cfg := out.Get("request.generationConfig")
	if cfg.Get("topP").Exists() {
		t.Errorf("topP should be omitted for claude thinking, got %v", cfg.Get("topP"))
	}
	if got := cfg.Get("thinkingConfig.thinkingBudget").Int(); got != 32768 {
		t.Errorf("thinkingBudget = %v", got)
	}

	// Same model without thinking keeps topP.
	out = mustBuild(t, `{"messages":[{"role":"user","content":"hi"}],"top_p":0.5}`, "claude-sonnet-4.5")
	if !out.Get("request.generationConfig.topP").Exists() {
		t.Error("topP should be present for claude without thinking")
	}
}

func TestBuildRequest_ToolCallMergesOntoPrecedingThoughtTurn(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"do it"},
		{"role":"assistant","content":[{"type":"reasoning","text":"Checking the index."}]},
		{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"lookup","arguments":"{\"q\":\"x\"}"}}]}
	]}`
	out := mustBuild(t, body, "gemini-3-flash")

	contents := out.Get("request.contents").Array()
	if len(contents) != 2 {
		t.Fatalf("got %d turns, want 2 (tool call merged): %s", len(contents), out.Get("request.contents").Raw)
	}
	model := contents[1]
	if model.Get("role").String() != "model" {
		t.Fatalf("turn 1 role = %q", model.Get("role").String())
	}
	if !model.Get("parts.0.thought").Bool() {
		t.Errorf("first part should stay a thought: %s", model.Raw)
	}
	var foundCall bool
	for _, p := range model.Get("parts").Array() {
		if p.Get("functionCall.name").String() == "lookup" {
			foundCall = true
			if q := p.Get("functionCall.args.query.q").String(); q != "x" {
				t.Errorf("args.query.q = %q", q)
			}
		}
	}
	if !foundCall {
		t.Errorf("functionCall not merged into model turn: %s", model.Raw)
	}
}

func TestBuildRequest_ToolCallDoesNotMergeOntoTextedTurn(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"do it"},
		{"role":"assistant","content":"Let me check."},
		{"role":"assistant","content":"","tool_calls":[{"id":"c1","type":"function","function":{"name":"lookup","arguments":"{\"q\":\"x\"}"}}]}
	]}`
	out := mustBuild(t, body, "gemini-3-flash")

	contents := out.Get("request.contents").Array()
	if len(contents) != 3 {
		t.Fatalf("got %d turns, want 3 (answered turn keeps its text to itself): %s",
			len(contents), out.Get("request.contents").Raw)
	}
	answered := contents[1]
	for _, p := range answered.Get("parts").Array() {
		if p.Get("functionCall").Exists() {
			t.Errorf("functionCall leaked into the texted turn: %s", answered.Raw)
		}
	}
	caller := contents[2]
	if caller.Get("role").String() != "model" {
		t.Fatalf("turn 2 role = %q", caller.Get("role").String())
	}
	if got := caller.Get("parts.#(functionCall.name==\"lookup\").functionCall.name").String(); got != "lookup" {
		t.Errorf("functionCall missing from its own turn: %s", caller.Raw)
	}
}

func TestBuildRequest_AssistantImageOnlyKeepsInlineData(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"draw"},
		{"role":"assistant","content":[{"type":"image_url","image_url":{"url":"data:image/png;base64,AAAA"}}]}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	model := out.Get("request.contents.1")
	if model.Get("role").String() != "model" {
		t.Fatalf("turn 1 role = %q", model.Get("role").String())
	}
	parts := model.Get("parts").Array()
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1: %s", len(parts), model.Raw)
	}
	if got := parts[0].Get("inlineData.mimeType").String(); got != "image/png" {
		t.Errorf("inlineData.mimeType = %q", got)
	}
	if got := parts[0].Get("inlineData.data").String(); got != "AAAA" {
		t.Errorf("inlineData.data = %q", got)
	}
}

func TestBuildRequest_ToolCallWithTextOpensNewTurn(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"do it"},
		{"role":"assistant","content":"prior turn"},
		{"role":"assistant","content":"calling now","tool_calls":[{"id":"c1","type":"function","function":{"name":"lookup","arguments":"{}"}}]}
	]}`
	out := mustBuild(t, body, "gemini-3-flash")
	if got := len(out.Get("request.contents").Array()); got != 3 {
		t.Fatalf("got %d turns, want 3: %s", got, out.Get("request.contents").Raw)
	}
}

func TestBuildRequest_ConsecutiveToolResultsShareOneTurn(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"go"},
		{"role":"assistant","content":null,"tool_calls":[
			{"id":"c1","type":"function","function":{"name":"alpha","arguments":"{}"}},
			{"id":"c2","type":"function","function":{"name":"beta","arguments":"{}"}}
		]},
		{"role":"tool","tool_call_id":"c1","content":"out1"},
		{"role":"tool","tool_call_id":"c2","content":"out2"}
	]}`
	out := mustBuild(t, body, "gemini-3-flash")

	contents := out.Get("request.contents").Array()
	last := contents[len(contents)-1]
	if last.Get("role").String() != "user" {
		t.Fatalf("last turn role = %q", last.Get("role").String())
	}
	parts := last.Get("parts").Array()
	if len(parts) != 2 {
		t.Fatalf("got %d functionResponse parts in last turn, want 2: %s", len(parts), last.Raw)
	}
	if parts[0].Get("functionResponse.name").String() != "alpha" {
		t.Errorf("first response name = %q", parts[0].Get("functionResponse.name").String())
	}
	if parts[1].Get("functionResponse.name").String() != "beta" {
		t.Errorf("second response name = %q", parts[1].Get("functionResponse.name").String())
	}
	if got := parts[0].Get("functionResponse.response.output").String(); got != "out1" {
		t.Errorf("response.output = %q", got)
	}
}

func TestBuildRequest_ToolResultNameResolvedBackward(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"go"},
		{"role":"assistant","content":null,"tool_calls":[{"id":"abc","type":"function","function":{"name":"fetch_page","arguments":"{}"}}]},
		{"role":"tool","tool_call_id":"abc","content":"body"}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	contents := out.Get("request.contents").Array()
	last := contents[len(contents)-1]
	if got := last.Get("parts.0.functionResponse.name").String(); got != "fetch_page" {
		t.Errorf("resolved name = %q, want fetch_page", got)
	}
	if got := last.Get("parts.0.functionResponse.id").String(); got != "abc" {
		t.Errorf("id = %q", got)
	}
}

func TestBuildRequest_UnknownToolCallIDStillEmitted(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"go"},
		{"role":"tool","tool_call_id":"missing","content":"orphan"}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	contents := out.Get("request.contents").Array()
	last := contents[len(contents)-1]
	fr := last.Get("parts.0.functionResponse")
	if !fr.Exists() {
		t.Fatalf("orphan tool result dropped: %s", out.Get("request.contents").Raw)
	}
	if got := fr.Get("name").String(); got != "" {
		t.Errorf("unresolved name = %q, want empty", got)
	}
	if got := fr.Get("response.output").String(); got != "orphan" {
		t.Errorf("output = %q", got)
	}
}

func TestBuildRequest_PlaceholderThoughtForBareToolCall(t *testing.T) {
	// A tool-call-only turn with no preceding model turn and thinking on
	// gets a synthesized leading thought.
	body := `{"messages":[
		{"role":"user","content":"go"},
		{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"run","arguments":"{}"}}]}
	]}`
	out := mustBuild(t, body, "gemini-3-flash")

	model := out.Get("request.contents.1")
	parts := model.Get("parts").Array()
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want placeholder + call: %s", len(parts), model.Raw)
	}
	if got := parts[0].Get("text").String(); got == "" {
		t.Errorf("leading part should carry placeholder text: %s", parts[0].Raw)
	}
	if !parts[0].Get("thought").Bool() {
		t.Errorf("placeholder should be a thought for the gemini family: %s", parts[0].Raw)
	}

	// Thinking off: no placeholder is synthesized.
	out = mustBuild(t, body, "gemini-2.5-flash")
	parts = out.Get("request.contents.1.parts").Array()
	if len(parts) != 1 || !parts[0].Get("functionCall").Exists() {
		t.Errorf("without thinking want bare call, got: %s", out.Get("request.contents.1").Raw)
	}
}

func TestBuildRequest_ThoughtMarkerOnlyForGeminiFamily(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"go"},
		{"role":"assistant","content":[{"type":"text","text":"visible"},{"type":"reasoning","text":"hidden chain"}]}
	]}`

	out := mustBuild(t, body, "gemini-3-flash")
	var marked bool
	for _, p := range out.Get("request.contents.1.parts").Array() {
		if p.Get("text").String() == "hidden chain" && p.Get("thought").Bool() {
			marked = true
		}
	}
	if !marked {
		t.Errorf("gemini thinking should mark thought: %s", out.Get("request.contents.1").Raw)
	}

	out = mustBuild(t, body, "claude-opus-4-5-thinking")
	for _, p := range out.Get("request.contents.1.parts").Array() {
		if p.Get("thought").Bool() {
			t.Errorf("claude family must not carry thought markers: %s", p.Raw)
		}
	}
}

func TestBuildRequest_ReasoningDegradesToTextWithoutThinking(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"go"},
		{"role":"assistant","content":{"reasoning":{"content":"kept reasoning"}}}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	var found bool
	for _, p := range out.Get("request.contents.1.parts").Array() {
		if p.Get("text").String() == "kept reasoning" {
			found = true
			if p.Get("thought").Bool() {
				t.Errorf("thought marker must be cleared with thinking off: %s", p.Raw)
			}
		}
	}
	if !found {
		t.Errorf("reasoning text was dropped: %s", out.Get("request.contents.1").Raw)
	}
}

func TestBuildRequest_SystemAndUnknownRolesBecomeUserTurns(t *testing.T) {
	body := `{"messages":[
		{"role":"system","content":"be terse"},
		{"role":"moderator","content":"odd role"},
		{"role":"user","content":"hello"}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	contents := out.Get("request.contents").Array()
	if len(contents) != 3 {
		t.Fatalf("got %d turns, want 3", len(contents))
	}
	for i, c := range contents {
		if got := c.Get("role").String(); got != "user" {
			t.Errorf("turn %d role = %q, want user", i, got)
		}
	}
	if got := contents[0].Get("parts.0.text").String(); got != "be terse" {
		t.Errorf("system text = %q", got)
	}
}

func TestBuildRequest_EmptyAssistantKeepsPosition(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"a"},
		{"role":"assistant","content":""},
		{"role":"user","content":"b"}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	contents := out.Get("request.contents").Array()
	if len(contents) != 3 {
		t.Fatalf("got %d turns, want 3", len(contents))
	}
	model := contents[1]
	if model.Get("role").String() != "model" {
		t.Errorf("turn 1 role = %q", model.Get("role").String())
	}
	if got := len(model.Get("parts").Array()); got != 0 {
		t.Errorf("empty assistant turn has %d parts, want 0", got)
	}
}

func TestBuildRequest_InlineImageDecoded(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":[
			{"type":"text","text":"what is this"},
			{"type":"image_url","image_url":{"url":"data:image/png;base64,aGVsbG8="}},
			{"type":"image_url","image_url":{"url":"https://example.com/remote.png"}}
		]}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	parts := out.Get("request.contents.0.parts").Array()
	var images int
	for _, p := range parts {
		if inline := p.Get("inlineData"); inline.Exists() {
			images++
			if got := inline.Get("mimeType").String(); got != "image/png" {
				t.Errorf("mimeType = %q", got)
			}
			if got := inline.Get("data").String(); got != "aGVsbG8=" {
				t.Errorf("data = %q", got)
			}
		}
	}
	if images != 1 {
		t.Errorf("got %d inline images, want 1 (remote URL dropped)", images)
	}
	if got := parts[0].Get("text").String(); got != "what is this" {
		t.Errorf("text = %q", got)
	}
}

func TestBuildRequest_ToolDeclarations(t *testing.T) {
	body := `{"messages":[{"role":"user","content":"go"}],"tools":[
		{"type":"function","function":{"name":"search","description":"find things","parameters":{"$schema":"http://json-schema.org/draft-07/schema#","type":"object","properties":{"q":{"type":"string"}}}}},
		{"type":"function","function":{"name":"fetch","parameters":{"type":"object"}}},
		{"type":"retrieval"}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	tools := out.Get("request.tools").Array()
	if len(tools) != 2 {
		t.Fatalf("got %d tools, want 2 (retrieval skipped): %s", len(tools), out.Get("request.tools").Raw)
	}
	first := tools[0]
	decls := first.Get("functionDeclarations").Array()
	if len(decls) != 1 {
		t.Fatalf("want singleton functionDeclarations, got %d", len(decls))
	}
	if got := decls[0].Get("name").String(); got != "search" {
		t.Errorf("name = %q", got)
	}
	if decls[0].Get("parameters.$schema").Exists() {
		t.Error("$schema must be stripped from parameters")
	}
	if !decls[0].Get("parameters.properties.q").Exists() {
		t.Error("remaining schema keys must pass through")
	}
}

func TestBuildRequest_MalformedToolArgumentsWrappedAsString(t *testing.T) {
	body := `{"messages":[
		{"role":"user","content":"go"},
		{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"run","arguments":"{not json"}}]}
	]}`
	out := mustBuild(t, body, "gemini-2.5-flash")

	var q gjson.Result
	for _, c := range out.Get("request.contents").Array() {
		for _, p := range c.Get("parts").Array() {
			if p.Get("functionCall").Exists() {
				q = p.Get("functionCall.args.query")
			}
		}
	}
	if q.Type != gjson.String || q.String() != "{not json" {
		t.Errorf("malformed arguments should pass through as string, got %s", q.Raw)
	}
}

func TestBuildRequest_NoMessages(t *testing.T) {
	out := mustBuild(t, `{}`, "gemini-2.5-flash")
	contents := out.Get("request.contents")
	if !contents.Exists() || !contents.IsArray() {
		t.Fatalf("contents must be an empty array, got %s", out.Raw)
	}
	if got := len(contents.Array()); got != 0 {
		t.Errorf("got %d turns, want 0", got)
	}
}
