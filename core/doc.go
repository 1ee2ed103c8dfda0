// Package core holds the data model shared by every Smart Info component:
//
//   - Turns and the conversation transcript (Content / Part)
//   - Tool calls and their results
//   - Documents, page records, chunks and index entries
//   - The error taxonomy used across dispatch, parsing and retrieval
//
// It has no dependencies on concrete backends so that the orchestrator, the
// ingestion pipeline and their test doubles can share types freely.
package core
