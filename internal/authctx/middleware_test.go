package authctx

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"portfolio-service/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func storeFor(store *fakeStore) StoreFor {
	return func(clientID string) SessionStore { return store }
}

func TestMiddlewareMountsProviderPerRequest(t *testing.T) {
	store := newFakeStore()
	store.setSession(liveSession("a"))

	r := gin.New()
	r.Use(Middleware(storeFor(store), session.CookieOptions{}))
	r.GET("/whoami", func(c *gin.Context) {
		v := Use(c.Request.Context()).Value()
		require.True(t, v.Authenticated())
		_, ok := c.Get(GinKey)
		assert.True(t, ok)
		c.String(http.StatusOK, v.User.ID)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-a", w.Body.String())
	assert.Contains(t, w.Header().Get("Set-Cookie"), session.ClientCookieName+"=")
	assert.Equal(t, 0, store.hub.Subscribers(testClient), "provider must be unmounted after the request")
}

func TestMiddlewareSignOutRedirectsToSignIn(t *testing.T) {
	store := newFakeStore()

	r := gin.New()
	r.Use(Middleware(storeFor(store), session.CookieOptions{}))
	r.POST("/auth/signout", func(c *gin.Context) {
		Use(c.Request.Context()).SignOut(c.Request.Context())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/signout", nil))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/signin", w.Header().Get("Location"))
	assert.Equal(t, 1, store.signOuts)
}

func TestMiddlewareFailsWhenMountFails(t *testing.T) {
	store := newFakeStore()
	store.hub.Close()

	r := gin.New()
	r.Use(Middleware(storeFor(store), session.CookieOptions{}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func readEvent(t *testing.T, lines <-chan string) (string, string) {
	t.Helper()
	var name, data string
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed")
			switch {
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			case line == "" && name != "":
				return name, data
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no server-sent event")
			return "", ""
		}
	}
}

func TestStreamPushesSessionChanges(t *testing.T) {
	store := newFakeStore()

	r := gin.New()
	r.GET("/session/events", Stream(storeFor(store), session.CookieOptions{}))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/session/events", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: session.ClientCookieName, Value: testClient})

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	name, data := readEvent(t, lines)
	assert.Equal(t, "ready", name)
	assert.Contains(t, data, `"state":"anonymous"`)

	store.publish(t, session.EventSignedIn, liveSession("a"))
	name, data = readEvent(t, lines)
	assert.Equal(t, "session", name)
	assert.Contains(t, data, `"state":"authenticated"`)
	assert.Contains(t, data, `"user_id":"user-a"`)

	store.publish(t, session.EventSignedOut, nil)
	name, data = readEvent(t, lines)
	assert.Equal(t, "session", name)
	assert.Contains(t, data, `"state":"anonymous"`)
}
