// Package executor sends translated requests to the Antigravity upstream
// and exposes the raw response stream to the API layer. It owns credential
// refresh and the base URL fallback chain.
package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/keenturbo/antigravity2api/internal/auth/antigravity"
	"github.com/keenturbo/antigravity2api/internal/config"
)

const (
	antigravityBaseURLDaily        = "https://daily-cloudcode-pa.googleapis.com"
	antigravitySandboxBaseURLDaily = "https://daily-cloudcode-pa.sandbox.googleapis.com"
	antigravityBaseURLProd         = "https://cloudcode-pa.googleapis.com"
	antigravityStreamPath          = "/v1internal:streamGenerateContent"
	antigravityGeneratePath        = "/v1internal:generateContent"
	defaultAntigravityAgent        = "antigravity/1.11.5 windows/amd64"
	antigravityXGoogAPIClient      = "gl-node/22.17.0"
	antigravityClientMetadata      = "ideType=IDE_UNSPECIFIED,platform=PLATFORM_UNSPECIFIED,pluginType=GEMINI"
)

// statusErr carries an upstream HTTP status through the error chain so the
// API layer can mirror it to the client.
type statusErr struct {
	code int
	msg  string
}

func (e statusErr) Error() string { return fmt.Sprintf("status %d: %s", e.code, e.msg) }

// StatusCode extracts the upstream status from an executor error, falling
// back to 500 for plain errors.
func StatusCode(err error) int {
	var se statusErr
	if errors.As(err, &se) {
		return se.code
	}
	return http.StatusInternalServerError
}

// StreamChunk is one SSE data payload or a terminal error from the upstream
// stream.
type StreamChunk struct {
	Payload []byte
	Err     error
}

// AntigravityExecutor proxies requests to the Antigravity upstream.
type AntigravityExecutor struct {
	cfg        *config.Config
	httpClient *http.Client

	mu    sync.Mutex
	token *antigravity.AntigravityToken
}

// NewAntigravityExecutor creates an executor bound to one credential.
func NewAntigravityExecutor(cfg *config.Config, token *antigravity.AntigravityToken) *AntigravityExecutor {
	return &AntigravityExecutor{
		cfg:        cfg,
		token:      token,
		httpClient: newHTTPClient(cfg),
	}
}

// Token returns the managed credential, refreshed as of the last request.
func (e *AntigravityExecutor) Token() *antigravity.AntigravityToken {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.token
}

// ensureAccessToken refreshes the credential when needed and returns a
// bearer token ready for use.
func (e *AntigravityExecutor) ensureAccessToken(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.token == nil {
		return "", statusErr{code: http.StatusUnauthorized, msg: "missing credential"}
	}
	if err := antigravity.RefreshIfNeeded(ctx, e.httpClient, e.token); err != nil {
		return "", statusErr{code: http.StatusUnauthorized, msg: err.Error()}
	}
	if e.cfg != nil && e.cfg.AuthFile != "" {
		if errSave := antigravity.SaveAntigravityTokenToPath(e.token, e.cfg.AuthFile); errSave != nil {
			log.Warnf("antigravity executor: persist refreshed token: %v", errSave)
		}
	}
	accessToken := e.token.GetAccessToken()
	if accessToken == "" {
		return "", statusErr{code: http.StatusUnauthorized, msg: "missing access token"}
	}
	return accessToken, nil
}

// baseURLFallback lists the upstream hosts to try in order. The daily
// sandbox host is preferred; production is the last resort.
var baseURLFallback = []string{
	antigravitySandboxBaseURLDaily,
	antigravityBaseURLDaily,
	antigravityBaseURLProd,
}

func baseURLFallbackOrder() []string {
	return append([]string(nil), baseURLFallback...)
}

// Execute sends a non-streaming generate request and returns the raw
// upstream response body.
func (e *AntigravityExecutor) Execute(ctx context.Context, payload []byte) ([]byte, error) {
	accessToken, err := e.ensureAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var lastStatus int
	var lastBody []byte
	for _, base := range baseURLFallbackOrder() {
		httpReq, errReq := e.buildRequest(ctx, accessToken, base, payload, false)
		if errReq != nil {
			return nil, errReq
		}
		httpResp, errDo := e.httpClient.Do(httpReq)
		if errDo != nil {
			log.Debugf("antigravity executor: %s unreachable: %v", base, errDo)
			continue
		}
		bodyBytes, errRead := io.ReadAll(httpResp.Body)
		closeBody(httpResp)
		if errRead != nil {
			return nil, errRead
		}
		if httpResp.StatusCode == http.StatusOK {
			return bodyBytes, nil
		}
		lastStatus = httpResp.StatusCode
		lastBody = bodyBytes
		log.Debugf("antigravity executor: %s returned %d, trying next host", base, httpResp.StatusCode)
	}

	if lastStatus != 0 {
		return nil, statusErr{code: lastStatus, msg: string(lastBody)}
	}
	return nil, statusErr{code: http.StatusServiceUnavailable, msg: "antigravity executor: no base url available"}
}

// ExecuteStream sends a streaming generate request and forwards each SSE
// data payload on the returned channel. The channel closes when the
// upstream stream ends or ctx is cancelled.
func (e *AntigravityExecutor) ExecuteStream(ctx context.Context, payload []byte) (<-chan StreamChunk, error) {
	accessToken, err := e.ensureAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var httpResp *http.Response
	var lastStatus int
	var lastBody []byte
	for _, base := range baseURLFallbackOrder() {
		httpReq, errReq := e.buildRequest(ctx, accessToken, base, payload, true)
		if errReq != nil {
			return nil, errReq
		}
		resp, errDo := e.httpClient.Do(httpReq)
		if errDo != nil {
			log.Debugf("antigravity executor: %s unreachable: %v", base, errDo)
			continue
		}
		if resp.StatusCode == http.StatusOK {
			httpResp = resp
			break
		}
		lastBody, _ = io.ReadAll(resp.Body)
		lastStatus = resp.StatusCode
		closeBody(resp)
		log.Debugf("antigravity executor: %s returned %d, trying next host", base, resp.StatusCode)
	}
	if httpResp == nil {
		if lastStatus != 0 {
			return nil, statusErr{code: lastStatus, msg: string(lastBody)}
		}
		return nil, statusErr{code: http.StatusServiceUnavailable, msg: "antigravity executor: no base url available"}
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer closeBody(httpResp)

		scanner := bufio.NewScanner(httpResp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if !bytes.HasPrefix(line, []byte("data:")) {
				continue
			}
			data := bytes.TrimSpace(line[5:])
			if len(data) == 0 {
				continue
			}
			chunk := make([]byte, len(data))
			copy(chunk, data)
			select {
			case out <- StreamChunk{Payload: chunk}:
			case <-ctx.Done():
				return
			}
		}
		if errScan := scanner.Err(); errScan != nil && ctx.Err() == nil {
			out <- StreamChunk{Err: errScan}
		}
	}()
	return out, nil
}

func (e *AntigravityExecutor) buildRequest(ctx context.Context, accessToken, baseURL string, payload []byte, stream bool) (*http.Request, error) {
	base := strings.TrimSuffix(baseURL, "/")
	requestURL := base + antigravityGeneratePath
	if stream {
		requestURL = base + antigravityStreamPath + "?alt=sse"
	}

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewReader(payload))
	if errReq != nil {
		return nil, errReq
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	httpReq.Header.Set("User-Agent", defaultAntigravityAgent)
	httpReq.Header.Set("X-Goog-Api-Client", antigravityXGoogAPIClient)
	httpReq.Header.Set("Client-Metadata", antigravityClientMetadata)
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	return httpReq, nil
}

func newHTTPClient(cfg *config.Config) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}
	if cfg != nil && cfg.ProxyURL != "" {
		if proxyURL, err := url.Parse(cfg.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			log.Warnf("antigravity executor: invalid proxy-url %q: %v", cfg.ProxyURL, err)
		}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   0, // streams stay open; per-request deadlines come from ctx
	}
}

func closeBody(resp *http.Response) {
	if errClose := resp.Body.Close(); errClose != nil {
		log.Errorf("antigravity executor: close response body error: %v", errClose)
	}
}
