// Package swarm reranks a bounded candidate set by particle swarm consensus.
//
// A population of agents moves through the embedding space under the usual
// inertia, cognitive and social terms. Agents come in three kinds with
// different fitness rules: explorers are rewarded for staying away from the
// candidate cluster, exploiters for sitting on a candidate, scouts for
// positions that separate candidates. After a fixed number of iterations
// the best agents vote on each candidate with their personal best positions.
//
// The swarm is not a nearest neighbour index. It only reorders the
// candidates it is given.
package swarm
