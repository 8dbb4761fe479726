// Package migrations embeds the goose migration files so binaries can apply
// them at startup without a separate deploy artifact.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
