// Package domain contains the core business entities, value objects, and
// domain logic of the application: tasks, their audio attachments, and the
// principals that own them. It is independent of any specific storage or
// delivery mechanism.
package domain
