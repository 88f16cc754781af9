package migrations

import "embed"

// PostgresFS embeds the wallet, transfer event and tax report schemas.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the quote timeseries schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
