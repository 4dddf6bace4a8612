// Package pipeline answers queries end to end.
//
// A Pipeline runs retrieval, graph expansion, every re-ranking stage, the
// document selection filter, temporal analysis and answer generation in
// sequence, restricted to the caller's document selection. It then fuses
// the diagnostics the stages recorded into a single confidence, and an
// optional Corrector may check the answer on the web. Every
// failure, panics included, becomes an error Response; ProcessQuery never
// returns an error.
package pipeline
