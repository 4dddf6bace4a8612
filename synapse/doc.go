// Package synapse keeps usage-adaptive weights for chunks.
//
// Every query that surfaces a chunk strengthens its weight; chunks surfaced
// close together in time become associated; weights of chunks that stop
// being used decay exponentially and are eventually forgotten. Memory is a
// process-wide cache that is persisted on a best-effort basis: storage
// failures are logged and never fail a query.
package synapse
