package repository

import _ "embed"

// Schema is the idempotent DDL applied by db.Migrate.
//
//go:embed schema.sql
var Schema string
