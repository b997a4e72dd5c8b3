// Package migrations embeds the SQL schema migrations shipped with the bot.
package migrations

import "embed"

// FS holds the NNNNNN_name.{up,down}.sql files.
//
//go:embed *.sql
var FS embed.FS
