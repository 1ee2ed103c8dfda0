// Package vectorstore holds index entries and answers nearest-neighbour
// queries. Three backends are provided: an in-process map, a sqlite file and
// a Qdrant collection.
//
// Every backend replaces a document's entries as one unit and ranks hits by
// cosine similarity, breaking ties by ingestion sequence and then chunk
// index.
package vectorstore
