// Package phase reranks candidates by treating similarities as complex
// amplitudes.
//
// Each candidate's similarity s becomes the amplitude √|s|·e^{iπs}; the
// amplitudes are normalised to a unit state and candidates are ranked by
// squared magnitude. Paraphrase embeddings produce further states that are
// folded in with a fixed π/4 interference rule. None of this simulates
// physics; it is a deterministic reweighting that flattens the head of the
// similarity distribution while respecting its order.
package phase
