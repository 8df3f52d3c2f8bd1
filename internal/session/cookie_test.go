package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCookieAppliesDefaults(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "sid-1", time.Now().Add(time.Hour), CookieOptions{Secure: true})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "sid-1", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
}

func TestClearCookieExpiresImmediately(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearCookie(rec, CookieOptions{})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Equal(t, "", cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestSessionIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", SessionIDFromRequest(req))

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "sid-9"})
	assert.Equal(t, "sid-9", SessionIDFromRequest(req))
}

func TestEnsureClientIDReusesExistingCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "client-1"})
	rec := httptest.NewRecorder()

	id, err := EnsureClientID(rec, req, CookieOptions{})
	require.NoError(t, err)
	assert.Equal(t, "client-1", id)
	assert.Empty(t, rec.Result().Cookies())
}

func TestEnsureClientIDIssuesCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	id, err := EnsureClientID(rec, req, CookieOptions{})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ClientCookieName, cookies[0].Name)
	assert.Equal(t, id, cookies[0].Value)

	again, err := EnsureClientID(rec, req, CookieOptions{})
	require.NoError(t, err)
	assert.Equal(t, id, again, "the same request keeps its client id")
	assert.Len(t, rec.Result().Cookies(), 1)
}

func TestGenerateIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 64; i++ {
		id, err := GenerateID()
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestAdoptClientIDReplacesOtherClient(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "sid-1"})
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "client-old"})
	rec := httptest.NewRecorder()

	AdoptClientID(rec, req, "client-new", CookieOptions{})

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, ClientCookieName, cookies[0].Name)
	assert.Equal(t, "client-new", cookies[0].Value)

	client, err := req.Cookie(ClientCookieName)
	require.NoError(t, err)
	assert.Equal(t, "client-new", client.Value)
	assert.Equal(t, "sid-1", SessionIDFromRequest(req))
	assert.Len(t, req.Cookies(), 2)
}

func TestAdoptClientIDKeepsMatchingClient(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: "client-1"})
	rec := httptest.NewRecorder()

	AdoptClientID(rec, req, "client-1", CookieOptions{})

	assert.Empty(t, rec.Result().Cookies())
}
