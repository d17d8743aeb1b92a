// Package web holds the embedded browser UI.
package web

import _ "embed"

//go:embed index.html
var IndexHTML []byte
