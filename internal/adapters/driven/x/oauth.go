package x

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/sociallink-core/internal/core/ports/driven"
)

// Ensure Client implements the interface.
var _ driven.ProviderClient = (*Client)(nil)

const (
	authorizeURL = "https://x.com/i/oauth2/authorize"
	tokenURL     = "https://api.x.com/2/oauth2/token"
	apiBaseURL   = "https://api.x.com/2"
)

// DefaultScopes are the permissions the app asks for. offline.access is
// what makes X issue a refresh token at all.
var DefaultScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access"}

// Client talks to the X (Twitter) v2 API as an OAuth2 confidential
// client with PKCE.
type Client struct {
	config     driven.ProviderConfig
	httpClient *http.Client

	// Endpoints are fields so tests can point at a local server.
	authorizeURL string
	tokenURL     string
	apiBaseURL   string
}

// NewClient creates an X API client for the given app credentials.
func NewClient(config driven.ProviderConfig) *Client {
	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		authorizeURL: authorizeURL,
		tokenURL:     tokenURL,
		apiBaseURL:   apiBaseURL,
	}
}

// BuildAuthURL constructs the X OAuth authorization URL.
// The challenge method is always S256; the plain fallback is never used.
func (c *Client) BuildAuthURL(clientID, redirectURI, state, codeChallenge string, scopes []string) string {
	return BuildAuthorizationURL(c.authorizeURL, clientID, redirectURI, state, codeChallenge, scopes)
}

// BuildAuthorizationURL renders an OAuth2 authorize endpoint URL.
// Pure; exported for reuse and direct testing.
func BuildAuthorizationURL(endpoint, clientID, redirectURI, state, codeChallenge string, scopes []string) string {
	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {clientID},
		"redirect_uri":          {redirectURI},
		"scope":                 {strings.Join(scopes, " ")},
		"state":                 {state},
		"code_challenge":        {codeChallenge},
		"code_challenge_method": {"S256"},
	}
	return endpoint + "?" + params.Encode()
}

// ExchangeCode exchanges an authorization code for tokens.
// Codes are single-use: a failure here is never retried.
func (c *Client) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*driven.OAuthToken, error) {
	params := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
		"client_id":     {c.config.ClientID},
	}
	return c.postToken(ctx, params)
}

// RefreshToken obtains a new token set from a refresh token. X may or
// may not rotate the refresh token; the caller handles both.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*driven.OAuthToken, error) {
	params := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.config.ClientID},
	}
	return c.postToken(ctx, params)
}

// postToken posts to the token endpoint and decodes the response.
// Confidential clients authenticate with HTTP Basic per X's docs.
func (c *Client) postToken(ctx context.Context, params url.Values) (*driven.OAuthToken, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+basicAuth(c.config.ClientID, c.config.ClientSecret))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var tokenResp struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		Error        string `json:"error"`
		ErrorDesc    string `json:"error_description"`
	}
	// Decode even on error statuses: X reports the OAuth error code in
	// the body and the caller needs it to classify the failure.
	_ = json.Unmarshal(body, &tokenResp)

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" {
		return nil, &driven.TokenEndpointError{
			StatusCode:  resp.StatusCode,
			Code:        tokenResp.Error,
			Description: tokenResp.ErrorDesc,
			Body:        string(body),
		}
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}

	return &driven.OAuthToken{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		Scope:        tokenResp.Scope,
		ExpiresIn:    tokenResp.ExpiresIn,
	}, nil
}

// GetUserInfo fetches the authenticated user's identity.
func (c *Client) GetUserInfo(ctx context.Context, accessToken string) (*driven.ProviderUser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.apiBaseURL+"/users/me", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get user info failed: %s", string(body))
	}

	var userResp struct {
		Data struct {
			ID       string `json:"id"`
			Username string `json:"username"`
			Name     string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&userResp); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	return &driven.ProviderUser{
		ID:       userResp.Data.ID,
		Username: userResp.Data.Username,
		Name:     userResp.Data.Name,
	}, nil
}

func basicAuth(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
