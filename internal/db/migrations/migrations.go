// Package migrations embeds the MongoDB migrations applied by golang-migrate.
package migrations

import "embed"

//go:embed *.json
var FS embed.FS
