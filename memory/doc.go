// Package memory holds the bounded conversation log of a session.
//
// A Store keeps the most recent turns in memory and can write them through
// to a Persister (see SQLitePersister) so conversations survive restarts.
// History renders the log in the timestamped "User:/Assistant:" form shown by
// the CLI.
package memory
