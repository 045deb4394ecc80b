// Package postgres provides PostgreSQL implementations of the store.TaskStore
// and store.UserStore interfaces, along with the embedded goose migrations
// that create their schema.
//
// Tasks are stored as JSONB documents keyed by id. A BIGSERIAL column keeps
// insertion order for snapshots. Mutations run in a transaction that first
// takes a transaction-scoped advisory lock, which serializes writers across
// every process sharing the database.
package postgres
