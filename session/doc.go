// Package session scopes conversation memory to explicit session handles.
// A Manager opens a session on first use, optionally loading its recent turns
// from a persister, and tears it down on Close.
package session
