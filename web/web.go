// Package web embeds the built dashboard assets.
package web

import "embed"

//go:embed dist
var Assets embed.FS
