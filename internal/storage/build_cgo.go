//go:build sqlite_vec && !purego

package storage

// Built with CGO and the sqlite_vec tag:
//
//	CGO_ENABLED=1 go build -tags sqlite_vec ./...
//
// Vector search runs inside SQLite through vec_distance_cosine, so only the
// top rows for an owner leave the database. Uses github.com/mattn/go-sqlite3
// with the sqlite-vec extension loaded into the process.

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite3"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
