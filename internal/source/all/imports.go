// Package all wires all built-in source backends into the source factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init functions of each concrete backend, which register
// their factories with the source package. After the import the following
// source kinds are available at runtime:
//
//   - "rest"     (farmdash/internal/source/rest)
//   - "postgres" (farmdash/internal/source/postgres)
//   - "mysql"    (farmdash/internal/source/mysql)
//   - "mssql"    (farmdash/internal/source/mssql)
//
// Typical usage, in cmd/farmdash or a similar wiring layer:
//
//	import _ "farmdash/internal/source/all" // enable all built-in backends
//
//	src, err := source.New(ctx, source.Config{Kind: cfg.SourceKind, ...})
//
// Binaries that only need a subset of backends can import the individual
// backend packages instead of this one.
package all

import (
	_ "farmdash/internal/source/mssql"
	_ "farmdash/internal/source/mysql"
	_ "farmdash/internal/source/postgres"
	_ "farmdash/internal/source/rest"
)
