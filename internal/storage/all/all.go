// Package all registers every storage backend. Import for side effects
// from binaries that let the operator pick a backend at runtime.
package all

import (
	_ "github.com/eamazon/datawarp-v3.1/internal/storage/mssql"
	_ "github.com/eamazon/datawarp-v3.1/internal/storage/postgres"
	_ "github.com/eamazon/datawarp-v3.1/internal/storage/sqlite"
)
