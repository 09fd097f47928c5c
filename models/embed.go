package models

import "embed"

// FS contains the static geometry the viewer can draw. Embedding it makes the
// binary self-contained.
//
//go:embed triangle.obj quad.obj
var FS embed.FS
