package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/hirewise/api/internal/config"
	"github.com/hirewise/api/internal/model"
)

const (
	discoveryTimeout = 30 * time.Second
	clockSkew        = 30 * time.Second
)

// TokenVerifier checks identity provider tokens.
type TokenVerifier interface {
	Validate(tokenString string) (*Claims, error)
	Close() error
}

// Claims is what Zitadel puts in an access token for this API. The company
// is the user's organization unless an explicit company_id claim is set.
type Claims struct {
	UserID        string                    `json:"sub"`
	Email         string                    `json:"email,omitempty"`
	Name          string                    `json:"name,omitempty"`
	Roles         []string                  `json:"roles,omitempty"`
	CompanyID     string                    `json:"company_id,omitempty"`
	OrgID         string                    `json:"urn:zitadel:iam:user:resourceowner:id,omitempty"`
	ProjectRoles  map[string]map[string]any `json:"urn:zitadel:iam:org:project:roles,omitempty"`
	jwt.RegisteredClaims
}

// Principal flattens the claims. Project role grants are merged into Roles and
// anything that is not a platform role is dropped.
func (c *Claims) Principal() *Principal {
	seen := make(map[string]bool)
	var roles []string
	add := func(r string) {
		r = strings.ToLower(strings.TrimSpace(r))
		if !model.IsValidRole(r) || seen[r] {
			return
		}
		seen[r] = true
		roles = append(roles, r)
	}
	for _, r := range c.Roles {
		add(r)
	}
	for r := range c.ProjectRoles {
		add(r)
	}

	company := c.CompanyID
	if company == "" {
		company = c.OrgID
	}

	p := &Principal{
		UserID:    c.UserID,
		Email:     c.Email,
		Name:      c.Name,
		CompanyID: company,
		Roles:     roles,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

// JWKSVerifier validates RS256/ES256 tokens against the issuer's published keys.
// Keys are refreshed in the background until Close.
type JWKSVerifier struct {
	keys     keyfunc.Keyfunc
	issuer   string
	audience string
	stop     context.CancelFunc
}

func NewJWKSVerifier(cfg *config.ZitadelConfig) (*JWKSVerifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("zitadel issuer is required")
	}
	issuer := strings.TrimRight(cfg.Issuer, "/")

	ctx, cancel := context.WithTimeout(context.Background(), discoveryTimeout)
	defer cancel()

	jwksURL, err := discoverJWKSURL(ctx, &http.Client{Timeout: discoveryTimeout}, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to discover JWKS URL: %w", err)
	}

	// the refresh goroutine lives as long as refreshCtx
	refreshCtx, stop := context.WithCancel(context.Background())
	keys, err := keyfunc.NewDefaultCtx(refreshCtx, []string{jwksURL})
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to create JWKS keyfunc: %w", err)
	}

	v := newJWKSVerifier(keys, issuer, cfg.ClientID)
	v.stop = stop
	return v, nil
}

func newJWKSVerifier(keys keyfunc.Keyfunc, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{keys: keys, issuer: issuer, audience: audience}
}

// discoverJWKSURL reads jwks_uri from the OIDC discovery document.
func discoverJWKSURL(ctx context.Context, client *http.Client, issuer string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, issuer+"/.well-known/openid-configuration", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create discovery request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch discovery document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("discovery endpoint returned status %d", resp.StatusCode)
	}

	var doc struct {
		Issuer  string `json:"issuer"`
		JWKSURI string `json:"jwks_uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode discovery document: %w", err)
	}
	if doc.Issuer != "" && strings.TrimRight(doc.Issuer, "/") != issuer {
		return "", fmt.Errorf("discovery issuer %q does not match %q", doc.Issuer, issuer)
	}
	if doc.JWKSURI == "" {
		return "", errors.New("jwks_uri not found in discovery document")
	}
	return doc.JWKSURI, nil
}

func (v *JWKSVerifier) Validate(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keys.Keyfunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Close stops the background key refresh.
func (v *JWKSVerifier) Close() error {
	if v.stop != nil {
		v.stop()
	}
	return nil
}
