package openai

import (
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// convertTools maps OpenAI tool declarations into the backend shape: one
// declaration object per function, each wrapped in its own singleton
// functionDeclarations array. The $schema metadata key is stripped from
// parameter schemas because the backend rejects it; everything else in the
// schema passes through unvalidated.
func convertTools(tools gjson.Result) []Tool {
	if !tools.IsArray() {
		return []Tool{}
	}
	out := make([]Tool, 0, len(tools.Array()))
	for _, tool := range tools.Array() {
		if t := tool.Get("type").String(); t != "" && t != "function" {
			log.Debugf("convertTools: skipping unsupported tool type %q", t)
			continue
		}
		fn := tool.Get("function")
		if !fn.Exists() {
			continue
		}

		var params map[string]any
		if p := fn.Get("parameters"); p.IsObject() {
			params, _ = p.Value().(map[string]any)
			delete(params, "$schema")
		}

		out = append(out, Tool{
			FunctionDeclarations: []FunctionDeclaration{{
				Name:        fn.Get("name").String(),
				Description: fn.Get("description").String(),
				Parameters:  params,
			}},
		})
	}
	return out
}
