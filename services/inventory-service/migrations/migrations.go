// Package migrations embeds the inventory-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
