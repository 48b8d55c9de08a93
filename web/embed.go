// Package web holds the registry page templates and static assets.
package web

import "embed"

// TemplatesFS embeds the page template and its partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css/js).
//
//go:embed static/*
var StaticFS embed.FS
