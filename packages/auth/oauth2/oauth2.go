// Package oauth2 provides an OAuth2 token source usable as an HTTP client
// AuthProvider.
package oauth2

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

	exthttp "github.com/abdul-hamid-achik/extbridge/packages/http"
	"github.com/abdul-hamid-achik/extbridge/packages/queue"
)

// GrantType represents the OAuth2 grant type
type GrantType string

const (
	// ClientCredentials is the client_credentials grant type
	ClientCredentials GrantType = "client_credentials"
	// Password is the password (resource owner) grant type
	Password GrantType = "password"
)

// TokenTimeout bounds a single token request.
const TokenTimeout = 30 * time.Second

// Config holds OAuth2 configuration
type Config struct {
	TokenURL     string    `json:"tokenURL" yaml:"tokenURL"`
	ClientID     string    `json:"clientID" yaml:"clientID"`
	ClientSecret string    `json:"clientSecret" yaml:"clientSecret"`
	Scopes       []string  `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Username     string    `json:"username,omitempty" yaml:"username,omitempty"` // For password grant
	Password     string    `json:"password,omitempty" yaml:"password,omitempty"` // For password grant
	GrantType    GrantType `json:"grantType,omitempty" yaml:"grantType,omitempty"`
}

// Validate checks that the grant type has what it needs.
func (c *Config) Validate() error {
	if c.TokenURL == "" {
		return fmt.Errorf("oauth2: tokenURL is required")
	}
	switch c.GrantType {
	case "", ClientCredentials:
	case Password:
		if c.Username == "" {
			return fmt.Errorf("oauth2: password grant requires a username")
		}
	default:
		return fmt.Errorf("unsupported OAuth2 grant type: %s", c.GrantType)
	}
	return nil
}

// Token represents an OAuth2 access token
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// IsExpired checks if the token is expired
func (t *Token) IsExpired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	// 30 second buffer for clock skew
	return time.Now().Add(30 * time.Second).After(t.ExpiresAt)
}

// Header returns the Authorization header value for the token.
func (t *Token) Header() string {
	tokenType := t.TokenType
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		tokenType = "Bearer"
	}
	return tokenType + " " + t.AccessToken
}

// Provider acquires and caches tokens. Concurrent callers that miss the cache
// share one token request.
type Provider struct {
	config     *Config
	httpClient *http.Client
	cache      *TokenCache
	inflight   *queue.Coordinator[*Token]
}

// NewProvider creates a new OAuth2 provider
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
		httpClient: &http.Client{
			Timeout: TokenTimeout,
		},
		cache:    NewTokenCache(),
		inflight: queue.New[*Token](nil, queue.WithTimeout(TokenTimeout)),
	}
}

// AuthHeaders implements the HTTP client's AuthProvider.
func (p *Provider) AuthHeaders(*exthttp.AuthRequest) (map[string]string, error) {
	token, err := p.GetToken(context.Background())
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": token.Header()}, nil
}

// GetToken retrieves a valid access token, fetching a new one if necessary
func (p *Provider) GetToken(ctx context.Context) (*Token, error) {
	cacheKey := p.getCacheKey()
	if token := p.cache.Get(cacheKey); token != nil {
		return token, nil
	}

	token, owner, err := p.inflight.AcquireOrWait(ctx, cacheKey, 0)
	if !owner {
		return token, err
	}

	if cached := p.cache.Get(cacheKey); cached != nil {
		p.inflight.Release(cacheKey, cached, nil)
		return cached, nil
	}

	token, err = p.fetchToken(ctx)
	if err == nil {
		p.cache.Set(cacheKey, token)
	}
	p.inflight.Release(cacheKey, token, err)
	return token, err
}

// Invalidate drops the cached token so the next call fetches a new one.
func (p *Provider) Invalidate() {
	p.cache.Delete(p.getCacheKey())
}

func (p *Provider) getCacheKey() string {
	return fmt.Sprintf("%s:%s:%s", p.config.TokenURL, p.config.ClientID, strings.Join(p.config.Scopes, ","))
}

func (p *Provider) fetchToken(ctx context.Context) (*Token, error) {
	data := url.Values{}
	switch p.config.GrantType {
	case Password:
		data.Set("grant_type", string(Password))
		data.Set("username", p.config.Username)
		data.Set("password", p.config.Password)
	default:
		data.Set("grant_type", string(ClientCredentials))
	}
	if len(p.config.Scopes) > 0 {
		data.Set("scope", strings.Join(p.config.Scopes, " "))
	}

	return p.doTokenRequest(ctx, data)
}

func (p *Provider) doTokenRequest(ctx context.Context, data url.Values) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if p.config.ClientID != "" && p.config.ClientSecret != "" {
		auth := base64.StdEncoding.EncodeToString([]byte(p.config.ClientID + ":" + p.config.ClientSecret))
		req.Header.Set("Authorization", "Basic "+auth)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error            string `json:"error"`
			ErrorDescription string `json:"error_description"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("token request failed: %s - %s", errResp.Error, errResp.ErrorDescription)
		}
		return nil, fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response has no access_token")
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}
