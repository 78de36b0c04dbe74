package web

import (
	"html/template"
	"io/fs"
	"testing"
)

func TestParseTemplates(t *testing.T) {
	tmpl, err := ParseTemplates(template.FuncMap{"headers": func() []string { return nil }})
	if err != nil {
		t.Fatalf("ParseTemplates: %v", err)
	}
	for _, name := range []string{"index.html", "entry_result.html", "report.html", "aggregates.html"} {
		if tmpl.Lookup(name) == nil {
			t.Fatalf("template %s not found", name)
		}
	}
}

func TestStatic(t *testing.T) {
	assets, err := Static()
	if err != nil {
		t.Fatalf("Static: %v", err)
	}
	for _, name := range []string{"style.css", "app.js"} {
		if _, err := fs.Stat(assets, name); err != nil {
			t.Fatalf("asset %s: %v", name, err)
		}
	}
}
