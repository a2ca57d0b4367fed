package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"prawnik-web/internal/dto"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// PageData is the binding every page template receives.
type PageData struct {
	Title       string
	User        *dto.UserInfo
	Flash       string
	Error       string
	FieldErrors map[string]interface{}
	Form        map[string]string
	Data        interface{}
}

// Engine implements fiber.Views over the embedded templates. Each page is
// parsed together with layout.html.
type Engine struct {
	pages map[string]*template.Template
}

var _ fiber.Views = (*Engine)(nil)

func New() *Engine {
	return &Engine{}
}

var funcs = template.FuncMap{
	"truncate": Truncate,
	"relativeTime": func(value string) string {
		return RelativeTime(value, time.Now())
	},
	"field": func(m map[string]interface{}, key string) interface{} {
		if m == nil {
			return nil
		}
		return m[key]
	},
	"value": func(m map[string]string, key string) string {
		return m[key]
	},
}

func (e *Engine) Load() error {
	entries, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return err
	}
	pages := make(map[string]*template.Template, len(entries))
	for _, path := range entries {
		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", path)
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	e.pages = pages
	return nil
}

func (e *Engine) Render(w io.Writer, name string, binding interface{}, _ ...string) error {
	t, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("template %s not found", name)
	}
	return t.ExecuteTemplate(w, "layout.html", binding)
}

// Static serves the embedded scripts and styles.
func Static() fiber.Handler {
	sub, _ := fs.Sub(staticFS, "static")
	return filesystem.New(filesystem.Config{
		Root:   http.FS(sub),
		MaxAge: 3600,
	})
}
