package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/hirewise/api/internal/cache"
	"github.com/hirewise/api/internal/model"
)

var (
	ErrMissingToken  = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrNotConfigured = errors.New("authentication not configured")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID    string
	Email     string
	Name      string
	CompanyID string
	Roles     []string
	ExpiresAt time.Time
}

// HasAnyRole is the single capability check used by every role-gated route.
func HasAnyRole(p *Principal, roles ...model.Role) bool {
	if p == nil {
		return false
	}
	for _, have := range p.Roles {
		for _, want := range roles {
			if strings.EqualFold(have, string(want)) {
				return true
			}
		}
	}
	return false
}

// CanAccessJob reports whether p may read or cancel job.
// Owners and admins always can; recruiters and company admins can for their company's jobs.
func CanAccessJob(p *Principal, job *model.Job) bool {
	if p == nil || job == nil {
		return false
	}
	if job.OwnerID == p.UserID || HasAnyRole(p, model.RoleAdmin) {
		return true
	}
	return job.CompanyID != "" && job.CompanyID == p.CompanyID &&
		HasAnyRole(p, model.RoleRecruiter, model.RoleCompanyAdmin)
}

// Authenticator resolves bearer tokens to principals. JWKS verification is
// tried first, then the legacy HMAC secret. Verified principals are cached
// by token digest until they expire.
type Authenticator struct {
	verifier TokenVerifier
	secret   string
	tokens   *cache.Store[string, *Principal]
}

func NewAuthenticator(verifier TokenVerifier, secret string, tokens *cache.Store[string, *Principal]) *Authenticator {
	return &Authenticator{verifier: verifier, secret: secret, tokens: tokens}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", ErrInvalidToken
	}
	return parts[1], nil
}

func (a *Authenticator) Authenticate(token string) (*Principal, error) {
	if a.verifier == nil && a.secret == "" {
		return nil, ErrNotConfigured
	}

	key := digest(token)
	if a.tokens != nil {
		if p, ok := a.tokens.Get(key); ok {
			if p.ExpiresAt.IsZero() || time.Now().Before(p.ExpiresAt) {
				return p, nil
			}
			a.tokens.Remove(key)
		}
	}

	p, err := a.verify(token)
	if err != nil {
		return nil, err
	}
	if a.tokens != nil {
		a.tokens.Set(key, p)
	}
	return p, nil
}

func (a *Authenticator) verify(token string) (*Principal, error) {
	if a.verifier != nil {
		claims, err := a.verifier.Validate(token)
		if err == nil {
			return claims.Principal(), nil
		}
		if a.secret == "" {
			return nil, ErrInvalidToken
		}
	}

	claims, err := ValidateLegacyToken(token, a.secret)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return claims.Principal(), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
