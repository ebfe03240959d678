package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://auth.hirewise.test"
	testAudience = "hirewise-api"
)

func testKeys(t *testing.T) (*rsa.PrivateKey, keyfunc.Keyfunc) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	b64 := base64.RawURLEncoding.EncodeToString
	jwks := fmt.Sprintf(`{"keys":[{"kty":"RSA","kid":"k1","alg":"RS256","use":"sig","n":%q,"e":%q}]}`,
		b64(key.PublicKey.N.Bytes()), b64(big.NewInt(int64(key.PublicKey.E)).Bytes()))

	kf, err := keyfunc.NewJWKSetJSON(json.RawMessage(jwks))
	require.NoError(t, err)
	return key, kf
}

func signRS256(t *testing.T, key *rsa.PrivateKey, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func zitadelClaims(issuer, audience string) *Claims {
	return &Claims{
		UserID: "z-42",
		Email:  "rec@acme.test",
		OrgID:  "acme",
		ProjectRoles: map[string]map[string]any{
			"Recruiter": {"acme": "acme.test"},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestJWKSVerifier_Validate(t *testing.T) {
	key, kf := testKeys(t)
	v := newJWKSVerifier(kf, testIssuer, testAudience)

	claims, err := v.Validate(signRS256(t, key, zitadelClaims(testIssuer, testAudience)))
	require.NoError(t, err)

	p := claims.Principal()
	assert.Equal(t, "z-42", p.UserID)
	assert.Equal(t, "acme", p.CompanyID, "organization id stands in for the company")
	assert.Equal(t, []string{"recruiter"}, p.Roles)
	assert.False(t, p.ExpiresAt.IsZero())
}

func TestJWKSVerifier_Rejects(t *testing.T) {
	key, kf := testKeys(t)
	v := newJWKSVerifier(kf, testIssuer, testAudience)

	expired := zitadelClaims(testIssuer, testAudience)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	hmac := jwt.NewWithClaims(jwt.SigningMethodHS256, zitadelClaims(testIssuer, testAudience))
	hmac.Header["kid"] = "k1"
	hmacToken, err := hmac.SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong issuer", signRS256(t, key, zitadelClaims("https://evil.test", testAudience))},
		{"wrong audience", signRS256(t, key, zitadelClaims(testIssuer, "other-app"))},
		{"expired", signRS256(t, key, expired)},
		{"hmac signed", hmacToken},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestDiscoverJWKSURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		self := "http://" + r.Host
		switch r.URL.Path {
		case "/.well-known/openid-configuration":
			fmt.Fprintf(w, `{"issuer":%q,"jwks_uri":%q}`, self, self+"/oauth/v2/keys")
		case "/evil/.well-known/openid-configuration":
			fmt.Fprintf(w, `{"issuer":"https://someone-else.test","jwks_uri":%q}`, self+"/keys")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	url, err := discoverJWKSURL(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/oauth/v2/keys", url)

	_, err = discoverJWKSURL(context.Background(), srv.Client(), srv.URL+"/evil")
	assert.ErrorContains(t, err, "does not match")

	_, err = discoverJWKSURL(context.Background(), srv.Client(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "status 404")
}
