// Package ingest turns user documents into page-ordered text.
//
// Formats are chosen by file extension before any parsing starts. PDF pages
// are read directly first; pages that yield (almost) no text are rasterised
// and sent to OCR. Images always go through OCR. OCR units run in a bounded
// worker pool with a per-unit timeout and are reassembled in page order, so
// a slow or unreadable page never fails the whole document.
package ingest
