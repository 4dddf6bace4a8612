// Package reembed regenerates every stored embedding after the embedding
// model changes.
//
// Chunks are re-embedded in batches ordered by ID, with retries and
// exponential backoff around each embedding call. After every batch the
// position is checkpointed so an interrupted run resumes where it stopped.
// Document vectors are refreshed once all chunks are done.
package reembed
