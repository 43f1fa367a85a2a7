package antigravity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	oauthTokenEndpoint = "https://oauth2.googleapis.com/token"

	antigravityClientID     = "1071006060591-tmhssin2h21lcre235vtolojh4g403ep.apps.googleusercontent.com"
	antigravityClientSecret = "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"
	refreshUserAgent        = "antigravity/1.11.5 windows/amd64"

	// refreshSkew renews tokens this long before their actual expiry so a
	// request never departs with a token about to die in flight.
	refreshSkew = 5 * time.Minute
)

// RefreshIfNeeded renews the access token through the Google OAuth endpoint
// when it is expired or inside the renewal window. The token is updated in
// place; callers persist it with SaveAntigravityTokenToPath if desired.
func RefreshIfNeeded(ctx context.Context, client *http.Client, token *AntigravityToken) error {
	if token == nil {
		return fmt.Errorf("nil token")
	}
	expiry := token.GetExpiry()
	if !expiry.IsZero() && time.Now().Add(refreshSkew).Before(expiry) {
		return nil
	}
	return Refresh(ctx, client, token)
}

// Refresh unconditionally exchanges the refresh token for a new access token.
func Refresh(ctx context.Context, client *http.Client, token *AntigravityToken) error {
	refreshToken := token.GetRefreshToken()
	if refreshToken == "" {
		return fmt.Errorf("missing refresh token")
	}

	clientID, clientSecret := antigravityClientID, antigravityClientSecret
	if token.Token != nil && token.Token.ClientID != "" {
		clientID = token.Token.ClientID
		clientSecret = token.Token.ClientSecret
	}

	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	httpReq, errReq := http.NewRequestWithContext(ctx, http.MethodPost, oauthTokenEndpoint, strings.NewReader(form.Encode()))
	if errReq != nil {
		return errReq
	}
	httpReq.Header.Set("User-Agent", refreshUserAgent)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if client == nil {
		client = http.DefaultClient
	}
	httpResp, errDo := client.Do(httpReq)
	if errDo != nil {
		return errDo
	}
	defer func() {
		if errClose := httpResp.Body.Close(); errClose != nil {
			log.Errorf("antigravity token refresh: close response body error: %v", errClose)
		}
	}()

	bodyBytes, errRead := io.ReadAll(httpResp.Body)
	if errRead != nil {
		return errRead
	}
	if httpResp.StatusCode < http.StatusOK || httpResp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("token refresh failed: status %d: %s", httpResp.StatusCode, string(bodyBytes))
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
	}
	if errUnmarshal := json.Unmarshal(bodyBytes, &tokenResp); errUnmarshal != nil {
		return fmt.Errorf("token refresh: parse response: %w", errUnmarshal)
	}
	if tokenResp.AccessToken == "" {
		return fmt.Errorf("token refresh: response carried no access token")
	}

	applyRefreshedToken(token, tokenResp.AccessToken, tokenResp.RefreshToken, tokenResp.TokenType, tokenResp.ExpiresIn)
	log.Debugf("antigravity token refreshed, expires in %ds", tokenResp.ExpiresIn)
	return nil
}

func applyRefreshedToken(token *AntigravityToken, access, refresh, tokenType string, expiresIn int64) {
	expiry := time.Now().Add(time.Duration(expiresIn) * time.Second).Format(time.RFC3339)

	if token.Token != nil {
		token.Token.AccessToken = access
		if refresh != "" {
			token.Token.RefreshToken = refresh
		}
		token.Token.ExpiresIn = expiresIn
		token.Token.Expiry = expiry
		if tokenType != "" {
			token.Token.TokenType = tokenType
		}
		return
	}

	token.AccessToken = access
	if refresh != "" {
		token.RefreshToken = refresh
	}
	token.ExpiresIn = expiresIn
	token.ExpiresAt = expiry
	if tokenType != "" {
		token.TokenType = tokenType
	}
}
