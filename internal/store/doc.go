// Package store defines the persistence contracts for tasks and users.
// Implementations live under internal/platform; the service layer depends
// only on these interfaces and the sentinel errors declared here.
package store
