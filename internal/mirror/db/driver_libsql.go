//go:build cgo

package db

import (
	_ "github.com/tursodatabase/go-libsql"
)

// LibSQLDriver is the embedded libSQL driver. It needs cgo.
const LibSQLDriver = "libsql"

func init() {
	drivers[LibSQLDriver] = func(path string) string { return "file:" + path }
}
