// Package db provides the embedded schema for the PostgreSQL storage backend.
package db

import _ "embed"

// Schema contains the DDL statements for the snapshot and catalog tables.
//
//go:embed migrations/001_schema.sql
var Schema string
