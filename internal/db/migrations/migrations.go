package migrations

import "embed"

// FS contiene los scripts SQL que aplica goose al arrancar.
//
//go:embed *.sql
var FS embed.FS
