// Package db holds the embedded SQL schema.
package db

import _ "embed"

// Schema is the idempotent DDL applied on startup.
//
//go:embed schema.sql
var Schema string
