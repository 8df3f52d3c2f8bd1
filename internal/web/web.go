// Package web holds the HTML templates and the helpers handlers use to
// render them.
package web

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"portfolio-service/internal/authctx"
	"portfolio-service/internal/logger"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/yuin/goldmark"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var files embed.FS

// GenericNotice is what users see when a downstream write fails.
const GenericNotice = "Something went wrong. Please try again."

var markdown = goldmark.New()

// Templates parses every page template. Each page is defined under its
// file name, which is what handlers pass to gin's c.HTML.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"markdown": renderMarkdown,
		"title":    titleCase,
	}).ParseFS(files, "templates/*.html")
}

func MustTemplates() *template.Template {
	t, err := Templates()
	if err != nil {
		panic(err)
	}
	return t
}

// Page merges the auth context of the request into data so that every
// page can render its navigation.
func Page(c *gin.Context, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	if p, err := authctx.FromContext(c.Request.Context()); err == nil {
		data["Auth"] = p.Value()
	} else {
		data["Auth"] = authctx.Value{}
	}
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}
	data["Path"] = c.Request.URL.Path
	return data
}

// Fail logs err and renders page with the generic notice.
func Fail(c *gin.Context, status int, page string, data gin.H, err error) {
	logger.Error("request failed", map[string]any{
		"path":  c.Request.URL.Path,
		"page":  page,
		"error": err,
	})
	if data == nil {
		data = gin.H{}
	}
	data["Error"] = GenericNotice
	c.HTML(status, page, Page(c, data))
}

// NotFound renders the shared not-found page.
func NotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found.html", Page(c, gin.H{"Title": "Not found"}))
}

// FieldErrors flattens ozzo validation errors into field -> message.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return out
	}
	for field, ferr := range verrs {
		if ferr != nil {
			out[field] = ferr.Error()
		}
	}
	return out
}

// titleCase builds a Caser per call; Casers are not safe for concurrent use.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	// goldmark drops raw HTML unless configured otherwise.
	return template.HTML(strings.TrimSpace(buf.String()))
}
