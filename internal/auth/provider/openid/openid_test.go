package openid

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID = "portfolio"
	testKeyID    = "test-key"
)

type fakeIssuer struct {
	srv    *httptest.Server
	key    *rsa.PrivateKey
	claims jwt.MapClaims
	// lastForm is the token request body seen by the issuer.
	lastForm url.Values
}

func newFakeIssuer(t *testing.T) *fakeIssuer {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIssuer{key: key}
	mux := http.NewServeMux()
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"issuer":                                f.srv.URL,
			"authorization_endpoint":                f.srv.URL + "/auth",
			"token_endpoint":                        f.srv.URL + "/token",
			"jwks_uri":                              f.srv.URL + "/keys",
			"id_token_signing_alg_values_supported": []string{"RS256"},
		})
	})

	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": testKeyID,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.lastForm = r.PostForm

		token := jwt.NewWithClaims(jwt.SigningMethodRS256, f.claims)
		token.Header["kid"] = testKeyID
		idToken, err := token.SignedString(key)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	})

	f.claims = jwt.MapClaims{
		"iss":            f.srv.URL,
		"aud":            testClientID,
		"sub":            "subject-1",
		"email":          "ada@example.com",
		"email_verified": true,
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
	return f
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestProvider(t *testing.T, f *fakeIssuer, publicAuthURL string) *Provider {
	t.Helper()
	p, err := New(context.Background(), Config{
		Name:          "keycloak",
		Issuer:        f.srv.URL,
		ClientID:      testClientID,
		RedirectURL:   "http://portfolio.test/oauth/callback/keycloak",
		PublicAuthURL: publicAuthURL,
	})
	require.NoError(t, err)
	return p
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(context.Background(), Config{Name: "google"})
	assert.Error(t, err)
}

func TestAuthCodeURLCarriesPKCE(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f, "")

	u, err := url.Parse(p.AuthCodeURL("state-1", "challenge-1"))
	require.NoError(t, err)

	assert.Equal(t, f.srv.URL+"/auth", u.Scheme+"://"+u.Host+u.Path)
	q := u.Query()
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "challenge-1", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, "keycloak", p.Name())
}

func TestPublicAuthURLOverridesDiscovery(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f, "https://sso.example.com/realms/portfolio/protocol/openid-connect/auth")

	u, err := url.Parse(p.AuthCodeURL("s", "c"))
	require.NoError(t, err)
	assert.Equal(t, "sso.example.com", u.Host)
}

func TestExchangeCodeReturnsIdentity(t *testing.T) {
	f := newFakeIssuer(t)
	p := newTestProvider(t, f, "")

	id, err := p.ExchangeCode(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)

	assert.Equal(t, "keycloak", id.Provider)
	assert.Equal(t, "subject-1", id.ProviderUserID)
	assert.Equal(t, "ada@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "verifier-1", f.lastForm.Get("code_verifier"))
	assert.Equal(t, "code-1", f.lastForm.Get("code"))
}

func TestExchangeCodeRejectsWrongAudience(t *testing.T) {
	f := newFakeIssuer(t)
	f.claims["aud"] = "someone-else"
	p := newTestProvider(t, f, "")

	_, err := p.ExchangeCode(context.Background(), "code-1", "verifier-1")
	assert.Error(t, err)
}

func TestExchangeCodeRequiresEmail(t *testing.T) {
	f := newFakeIssuer(t)
	delete(f.claims, "email")
	p := newTestProvider(t, f, "")

	_, err := p.ExchangeCode(context.Background(), "code-1", "verifier-1")
	assert.ErrorContains(t, err, "missing required claims")
}
