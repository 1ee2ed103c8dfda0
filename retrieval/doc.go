// Package retrieval indexes document chunks and answers top-k queries.
//
// The Indexer embeds chunks through an embed.Embedder and stores them in a
// vectorstore.Store. The Pipeline drives a file through parse, chunk and
// index.
package retrieval
