// Package directoryclient implements meshregistration.AgentRegistry against
// an HTTP mesh directory service, authenticating with an OAuth2
// client-credentials token and signing each request with a short-lived
// agent identity JWT.
package directoryclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/yafatek/mxp-agents-runtime/internal/meshprimitives"
	"github.com/yafatek/mxp-agents-runtime/pkg/meshproto"
)

// Config configures the directory client.
type Config struct {
	// BaseURL is the directory service's base URL, e.g.
	// "https://directory.mesh.internal".
	BaseURL string
	// ClientID/ClientSecret/TokenURL configure the OAuth2 client
	// credentials flow used to authenticate directory requests.
	ClientID     string
	ClientSecret string
	TokenURL     string
	// SigningKey signs the per-request agent identity JWT. A directory
	// deployment that doesn't require request signing may leave this
	// empty, in which case no identity JWT is attached.
	SigningKey []byte
	// IdentityTokenTTL bounds the signed identity JWT's lifetime.
	IdentityTokenTTL time.Duration
	HTTPClient       *http.Client
}

// Client registers, heartbeats, and deregisters agent manifests against an
// HTTP mesh directory.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signingKey []byte
	tokenTTL   time.Duration
}

// New constructs a directory client. If ClientID is empty, requests are
// sent unauthenticated (suitable against a local/dev directory).
func New(config Config) *Client {
	httpClient := config.HTTPClient
	if config.ClientID != "" {
		oauthConfig := clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
		}
		httpClient = oauthConfig.Client(context.Background())
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ttl := config.IdentityTokenTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Client{
		baseURL:    config.BaseURL,
		httpClient: httpClient,
		signingKey: config.SigningKey,
		tokenTTL:   ttl,
	}
}

func toPayload(manifest meshprimitives.AgentManifest) meshproto.AgentManifestWire {
	return meshproto.AgentManifestWire{
		AgentID: manifest.ID().String(),
		Name:    manifest.Name(),
		Version: manifest.Version(),
		Tags:    manifest.Tags(),
	}
}

func (c *Client) identityToken(agentID string) (string, error) {
	if len(c.signingKey) == 0 {
		return "", nil
	}
	claims := jwt.RegisteredClaims{
		Subject:   agentID,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(c.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.signingKey)
}

func (c *Client) do(ctx context.Context, method, path string, manifest meshprimitives.AgentManifest) error {
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(toPayload(manifest)); err != nil {
		return fmt.Errorf("encode manifest payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("build directory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if token, err := c.identityToken(manifest.ID().String()); err != nil {
		return fmt.Errorf("sign identity token: %w", err)
	} else if token != "" {
		req.Header.Set("X-Agent-Identity", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var wireErr meshproto.DirectoryErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&wireErr); decodeErr == nil && wireErr.Error != "" {
			return fmt.Errorf("directory returned status %d: %s (%s)", resp.StatusCode, wireErr.Error, wireErr.Code)
		}
		return fmt.Errorf("directory returned status %d", resp.StatusCode)
	}
	return nil
}

// Register implements meshregistration.AgentRegistry.
func (c *Client) Register(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	return c.do(ctx, http.MethodPost, "/v1/agents", manifest)
}

// Heartbeat implements meshregistration.AgentRegistry.
func (c *Client) Heartbeat(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	return c.do(ctx, http.MethodPost, "/v1/agents/"+manifest.ID().String()+"/heartbeat", manifest)
}

// Deregister implements meshregistration.AgentRegistry.
func (c *Client) Deregister(ctx context.Context, manifest meshprimitives.AgentManifest) error {
	return c.do(ctx, http.MethodDelete, "/v1/agents/"+manifest.ID().String(), manifest)
}
