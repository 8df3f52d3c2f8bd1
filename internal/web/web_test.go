package web

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"portfolio-service/internal/authctx"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTemplatesParse(t *testing.T) {
	tmpl, err := Templates()
	require.NoError(t, err)

	for _, name := range []string{
		"home.html", "signin.html", "signup.html", "forgot_password.html",
		"reset_password.html", "dashboard.html", "profile.html",
		"projects.html", "portfolio.html", "not_found.html", "error.html",
	} {
		assert.NotNil(t, tmpl.Lookup(name), name)
	}
}

func TestPageRendersAnonymousNavigation(t *testing.T) {
	r := gin.New()
	r.SetHTMLTemplate(MustTemplates())
	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "home.html", Page(c, gin.H{"Title": "Home"}))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `data-state="anonymous"`)
	assert.Contains(t, body, `href="/signin"`)
	assert.Contains(t, body, `new EventSource("/session/events")`)
}

func TestPageDefaultsAuthOutsideProvider(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

	data := Page(c, nil)
	assert.Equal(t, authctx.Value{}, data["Auth"])
	assert.Equal(t, "/x", data["Path"])
	assert.NotNil(t, data["Errors"])
}

func TestMarkdownEscapesRawHTML(t *testing.T) {
	out := string(renderMarkdown("**bold** <script>alert(1)</script> [x](javascript:alert(1))"))

	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, `href="javascript:`)
}

func TestFieldErrors(t *testing.T) {
	err := validation.Errors{
		"Name":    errors.New("cannot be blank"),
		"DemoURL": nil,
	}
	assert.Equal(t, map[string]string{"Name": "cannot be blank"}, FieldErrors(err))
	assert.Empty(t, FieldErrors(errors.New("plain")))
}

func TestTitleFunc(t *testing.T) {
	assert.Equal(t, "Keycloak", titleCase("keycloak"))
	assert.True(t, strings.HasPrefix(GenericNotice, "Something went wrong"))
}
