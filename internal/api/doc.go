// Package api handles incoming HTTP requests, request validation, and
// response formatting for tasks, attachments and accounts. It adapts HTTP
// to the service layer: handlers decode and validate payloads, call the
// TaskService or UserService with the principal placed in the context by
// the auth middleware, and map service errors to status codes.
//
// Batch attachment operations that partly succeed answer 207 Multi-Status
// with the per-item outcome in the body.
package api
