// Package migrations embeds the terrain tile schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
