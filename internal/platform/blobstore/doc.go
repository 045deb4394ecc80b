// Package blobstore stores attachment content under a single root
// directory.
//
// Blob names are generated from the owning task id, a random token and a
// sanitized extension. User-supplied display names never become path
// components, and every path is resolved and checked against the root
// before it is opened, written or removed.
package blobstore
