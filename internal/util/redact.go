// Package util holds small helpers shared by the logging and handler
// layers, chiefly credential redaction for logged payloads and query
// strings.
package util

import (
	"encoding/json"
	"net/url"
	"strings"
)

const redactedValue = "[REDACTED]"

// sensitiveKeys are the credential-bearing fields this server actually
// sees: the client-key locations the API accepts, plus the token fields
// of the Antigravity credential file in case one ends up in a payload.
var sensitiveKeys = map[string]struct{}{
	"key":           {},
	"api_key":       {},
	"api-key":       {},
	"apikey":        {},
	"authorization": {},
	"x-api-key":     {},
	"access_token":  {},
	"refresh_token": {},
	"client_secret": {},
}

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactSensitiveJSON masks credential-bearing fields in a JSON payload
// before it reaches a debug log line. Payloads that do not parse are
// returned untouched rather than dropped.
func RedactSensitiveJSON(body []byte) []byte {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return body
	}
	redacted, err := json.Marshal(scrub(root))
	if err != nil {
		return body
	}
	return redacted
}

func scrub(node any) any {
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			if isSensitiveKey(key) {
				v[key] = redactedValue
			} else {
				v[key] = scrub(child)
			}
		}
	case []any:
		for i := range v {
			v[i] = scrub(v[i])
		}
	}
	return node
}

// MaskSensitiveQuery masks credential-bearing parameters in a raw query
// string. Queries that do not parse are returned as-is.
func MaskSensitiveQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	masked := false
	for key := range values {
		if isSensitiveKey(key) {
			values.Set(key, redactedValue)
			masked = true
		}
	}
	if !masked {
		return rawQuery
	}
	return values.Encode()
}
