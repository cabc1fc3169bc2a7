package main

import _ "embed"

// indexHTML is the embedded web interface HTML template.
//
//go:embed web/index.html
var indexHTML string
