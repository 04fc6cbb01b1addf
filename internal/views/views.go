// Package views holds the embedded templates for the dashboard shell.
package views

import "embed"

//go:embed *.html
var FS embed.FS
