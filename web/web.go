// Package web embeds the HTML templates of the annotation UI.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"percent": func(f float64) int { return int(f*100 + 0.5) },
	"safeHTML": func(s string) template.HTML {
		// Only used for highlighter output, which escapes all note text.
		return template.HTML(s)
	},
}

// Templates parses the embedded page templates
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
}
