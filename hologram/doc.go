// Package hologram superimposes document embeddings in a single complex
// matrix.
//
// Every document gets a pseudo-random unit phase reference derived from its
// id. Encoding adds the outer product of the document vector and the
// conjugated reference to the shared matrix; correlating a query against
// the matrix and each reference ranks documents. The Store is used as a
// corpus diagnostic: its compression ratio feeds confidence fusion.
package hologram
