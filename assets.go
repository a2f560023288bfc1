// Package rapo provides the embedded web assets of the control engine.
package rapo

import "embed"

// WebFS holds the static landing page served at the API root.
//
//go:embed web/index.html
var WebFS embed.FS
