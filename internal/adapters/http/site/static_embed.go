package site

import (
	"embed"
	"html/template"
)

//go:embed templates/index.html
var templateFS embed.FS

// pageTemplate is parsed once at startup; a broken template is a build defect.
var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))
