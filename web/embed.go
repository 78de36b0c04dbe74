// Package web holds the dashboard's HTML templates and static assets,
// embedded into the binary.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// ParseTemplates parses every page and fragment template. Each template is
// named after its file, e.g. "report.html".
func ParseTemplates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
}

// Static returns the assets rooted so "style.css" resolves to
// static/style.css.
func Static() (fs.FS, error) {
	return fs.Sub(staticFS, "static")
}
