package database

// This file documents code generation for the database package.
//
// schema.sql mirrors the migrated schema and is embedded as Schema.
// To regenerate it after adding a migration:
//   go generate ./internal/database

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
