// Package filestore implements the task and user stores on top of JSON
// collection files in a data directory.
//
// Each collection is held in memory as an immutable snapshot behind an
// atomic pointer. Readers load the pointer and never block. Writers hold a
// per-collection mutex, compute the next collection, replace the file on
// disk with a temp-file-and-rename and only then publish the new snapshot,
// so a failed write leaves both the file and the in-memory view untouched.
//
// The data directory is guarded by an exclusive advisory lock for the
// lifetime of the Store, since a second process writing the same files
// would silently lose updates.
package filestore
