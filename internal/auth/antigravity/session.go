package antigravity

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Session binds a loaded token to the session identifier of one
// conversation. It carries the two routing identifiers every backend
// envelope requires.
type Session struct {
	token     *AntigravityToken
	sessionID string
}

// NewSession derives the session identifier from the request body and pairs
// it with the token's project.
func NewSession(token *AntigravityToken, rawJSON []byte) *Session {
	return &Session{token: token, sessionID: DeriveSessionID(rawJSON)}
}

// GetProjectID returns the Google Cloud project of the underlying token.
func (s *Session) GetProjectID() string {
	if s.token == nil {
		return ""
	}
	return s.token.GetProjectID()
}

// GetSessionID returns the derived session identifier.
func (s *Session) GetSessionID() string {
	return s.sessionID
}

// DeriveSessionID generates a stable session id from the first user message
// of an OpenAI request body. Upstream prompt caching is scoped to session
// and project, so the same opening message must map to the same id across
// requests. Returns "session-" plus the first 32 hex chars of the SHA256
// digest, or a random UUID-based id when no user text exists.
func DeriveSessionID(rawJSON []byte) string {
	for _, msg := range gjson.GetBytes(rawJSON, "messages").Array() {
		if msg.Get("role").String() != "user" {
			continue
		}

		var text strings.Builder
		content := msg.Get("content")
		if content.Type == gjson.String {
			text.WriteString(content.String())
		} else if content.IsArray() {
			for _, item := range content.Array() {
				text.WriteString(item.Get("text").String())
			}
		}

		if text.Len() > 0 {
			hash := sha256.Sum256([]byte(text.String()))
			return "session-" + hex.EncodeToString(hash[:])[:32]
		}
	}
	return "session-" + uuid.NewString()
}
