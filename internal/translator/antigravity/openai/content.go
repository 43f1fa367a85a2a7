package openai

import (
	"regexp"
	"strings"

	"github.com/keenturbo/antigravity2api/internal/registry"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// dataImageRegex matches inline image payloads of the form
// data:image/<format>;base64,<data>. Anything else is not an image we can
// forward and is dropped best-effort.
var dataImageRegex = regexp.MustCompile(`^data:image/([a-zA-Z0-9.+-]+);base64,(.+)$`)

// normalizedContent is the canonical form of one message's content after
// flattening the heterogeneous OpenAI shapes.
type normalizedContent struct {
	// Text is the in-order concatenation of all plain text.
	Text string
	// Images holds decoded inline images in source order.
	Images []InlineData
	// Thoughts holds reasoning-derived parts, already degraded to plain
	// text when the policy disables thinking.
	Thoughts []Part
}

func (n *normalizedContent) hasVisibleText() bool {
	return strings.TrimSpace(n.Text) != ""
}

func (n *normalizedContent) empty() bool {
	return !n.hasVisibleText() && len(n.Images) == 0 && len(n.Thoughts) == 0
}

// normalizeContent converts message content (plain string, part array, or
// a bare reasoning object) into its canonical form. Reasoning detection
// runs before plain-text detection for each part, and extracted reasoning
// text is never discarded: with thinking disabled it degrades to a visible
// text part instead of a thought.
func normalizeContent(content gjson.Result, policy registry.ModelPolicy) normalizedContent {
	var out normalizedContent

	switch {
	case content.Type == gjson.String:
		out.Text = content.String()
	case content.IsArray():
		var text strings.Builder
		for _, item := range content.Array() {
			if thought, ok := extractReasoningText(item); ok {
				out.Thoughts = append(out.Thoughts, thoughtPart(thought, policy))
				continue
			}
			switch item.Get("type").String() {
			case "image_url":
				if img, ok := decodeImageDataURI(item.Get("image_url.url").String()); ok {
					out.Images = append(out.Images, img)
				}
			default:
				text.WriteString(item.Get("text").String())
			}
		}
		out.Text = text.String()
	case content.IsObject():
		if thought, ok := extractReasoningText(content); ok {
			out.Thoughts = append(out.Thoughts, thoughtPart(thought, policy))
		} else {
			out.Text = content.Get("text").String()
		}
	}

	return out
}

// extractReasoningText pulls embedded reasoning out of a part or content
// object. It prefers an explicit content field, falls back to a text
// field, and defaults to the empty string when the reasoning shape is
// present but hollow.
func extractReasoningText(value gjson.Result) (string, bool) {
	for _, key := range []string{"thinking", "reasoning"} {
		node := value.Get(key)
		if !node.Exists() {
			continue
		}
		if node.Type == gjson.String {
			return node.String(), true
		}
		if c := node.Get("content"); c.Exists() {
			return c.String(), true
		}
		if t := node.Get("text"); t.Exists() {
			return t.String(), true
		}
		return "", true
	}
	if value.Get("type").String() == "reasoning" {
		if c := value.Get("content"); c.Exists() {
			return c.String(), true
		}
		return value.Get("text").String(), true
	}
	return "", false
}

// thoughtPart renders extracted reasoning text per policy: a thought
// representation when thinking is on (marked only for families that accept
// the marker), a plain text part otherwise.
func thoughtPart(text string, policy registry.ModelPolicy) Part {
	if policy.ThinkingEnabled {
		return Part{Text: text, Thought: policy.MarkThoughts}
	}
	return Part{Text: text}
}

func decodeImageDataURI(uri string) (InlineData, bool) {
	m := dataImageRegex.FindStringSubmatch(uri)
	if m == nil {
		log.Debugf("dropping non-inline image payload (%d bytes)", len(uri))
		return InlineData{}, false
	}
	return InlineData{MimeType: "image/" + m[1], Data: m[2]}, true
}
