// Package testutil contains fluent builders for transcripts and conversation
// memory used across tests. Not intended for production usage.
package testutil
