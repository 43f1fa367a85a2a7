// Package handlers implements the OpenAI-compatible request handlers:
// chat completions (streaming and non-streaming) and model listing.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/keenturbo/antigravity2api/internal/auth/antigravity"
	"github.com/keenturbo/antigravity2api/internal/registry"
	"github.com/keenturbo/antigravity2api/internal/runtime/executor"
	"github.com/keenturbo/antigravity2api/internal/translator/antigravity/openai"
	"github.com/keenturbo/antigravity2api/internal/util"
)

// Backend is the upstream surface the handler needs. The Antigravity
// executor satisfies it.
type Backend interface {
	Token() *antigravity.AntigravityToken
	Execute(ctx context.Context, payload []byte) ([]byte, error)
	ExecuteStream(ctx context.Context, payload []byte) (<-chan executor.StreamChunk, error)
}

// OpenAIHandler serves the OpenAI-compatible endpoints backed by the
// Antigravity executor.
type OpenAIHandler struct {
	exec Backend
}

// NewOpenAIHandler creates the handler bound to one backend.
func NewOpenAIHandler(exec Backend) *OpenAIHandler {
	return &OpenAIHandler{exec: exec}
}

// ChatCompletions handles POST /v1/chat/completions. The request is
// translated to the backend envelope, executed with host fallback, and the
// response translated back, streaming when the client asked for it.
func (h *OpenAIHandler) ChatCompletions(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeOpenAIError(c, http.StatusBadRequest, "failed to read request body", "invalid_request_error")
		return
	}
	if !gjson.ValidBytes(body) {
		writeOpenAIError(c, http.StatusBadRequest, "request body is not valid JSON", "invalid_request_error")
		return
	}
	modelID := gjson.GetBytes(body, "model").String()
	if modelID == "" {
		writeOpenAIError(c, http.StatusBadRequest, "you must provide a model parameter", "invalid_request_error")
		return
	}
	if messages := gjson.GetBytes(body, "messages"); !messages.IsArray() {
		writeOpenAIError(c, http.StatusBadRequest, "messages must be an array", "invalid_request_error")
		return
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("chat completions request: %s", util.RedactSensitiveJSON(body))
	}

	session := antigravity.NewSession(h.exec.Token(), body)
	payload, errBuild := openai.MarshalRequest(body, modelID, session)
	if errBuild != nil {
		if errors.Is(errBuild, openai.ErrMissingRoutingIdentifiers) {
			writeOpenAIError(c, http.StatusUnauthorized, "backend credential is missing its project binding; re-login to Antigravity", "authentication_error")
			return
		}
		writeOpenAIError(c, http.StatusInternalServerError, errBuild.Error(), "server_error")
		return
	}

	if gjson.GetBytes(body, "stream").Bool() {
		h.streamCompletion(c, modelID, body, payload)
		return
	}
	h.completion(c, modelID, body, payload)
}

func (h *OpenAIHandler) completion(c *gin.Context, modelID string, body, payload []byte) {
	upstream, err := h.exec.Execute(c.Request.Context(), payload)
	if err != nil {
		writeUpstreamError(c, err)
		return
	}
	var param any
	out := openai.ConvertAntigravityResponseToOpenAINonStream(c.Request.Context(), modelID, body, payload, upstream, &param)
	if out == "" {
		writeOpenAIError(c, http.StatusBadGateway, "upstream returned an unreadable response", "server_error")
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(out))
}

func (h *OpenAIHandler) streamCompletion(c *gin.Context, modelID string, body, payload []byte) {
	stream, err := h.exec.ExecuteStream(c.Request.Context(), payload)
	if err != nil {
		writeUpstreamError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, canFlush := c.Writer.(http.Flusher)
	var param any
	for chunk := range stream {
		if chunk.Err != nil {
			// Bytes are already on the wire; log and end the stream.
			log.Warnf("chat completions: upstream stream error: %v", chunk.Err)
			break
		}
		for _, line := range openai.ConvertAntigravityResponseToOpenAI(c.Request.Context(), modelID, body, payload, chunk.Payload, &param) {
			fmt.Fprintf(c.Writer, "data: %s\n\n", line)
		}
		if canFlush {
			flusher.Flush()
		}
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")
	if canFlush {
		flusher.Flush()
	}
}

// Models handles GET /v1/models with the served model catalog.
func (h *OpenAIHandler) Models(c *gin.Context) {
	models := registry.GetAntigravityModels()
	data := make([]gin.H, 0, len(models))
	for _, m := range models {
		data = append(data, gin.H{
			"id":       m.ID,
			"object":   m.Object,
			"created":  m.Created,
			"owned_by": m.OwnedBy,
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

func writeOpenAIError(c *gin.Context, status int, message, errType string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    errType,
		},
	})
}

// writeUpstreamError mirrors the upstream failure to the client in OpenAI
// error shape, preserving the status code where it is meaningful.
func writeUpstreamError(c *gin.Context, err error) {
	status := executor.StatusCode(err)
	errType := "server_error"
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		errType = "authentication_error"
	} else if status == http.StatusTooManyRequests {
		errType = "rate_limit_error"
	} else if status >= http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	writeOpenAIError(c, status, err.Error(), errType)
}
