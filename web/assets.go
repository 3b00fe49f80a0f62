package webassets

import "embed"

// Files contains the embedded admin dashboard assets.
//
// Keep this broad enough so page updates are automatically packaged in
// binaries.
//
//go:embed *.html
var Files embed.FS
