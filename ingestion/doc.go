// Package ingestion turns plain-text documents into searchable chunks.
//
// The Pipeline type manages the ingestion workflow for documents, including:
//   - Normalising whitespace and extracting metadata (authors, year, institutions)
//   - Splitting the text into sentence-aligned chunks
//   - Generating embeddings in concurrent batches on a worker pool
//   - Registering the document in the relationship graph and the hologram
//
// Delete removes a document from every store it was written to. Graph and
// hologram failures are logged and do not fail an ingestion.
package ingestion
