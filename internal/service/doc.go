// Package service implements the task and user business operations.
//
// TaskService orchestrates create, update, search and the attachment
// lifecycle on top of a store.TaskStore and a blobstore.Store, consulting
// the access policy before every read or change. Each operation reloads the
// task inside the store's mutation scope; nothing is cached between calls.
//
// UserService registers accounts, verifies credentials and resolves the
// principal for a validated token.
package service
