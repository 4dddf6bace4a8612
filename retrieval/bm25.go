package retrieval

import "math"

// BM25 parameters used when none are configured.
const (
	DefaultK1 = 1.5
	DefaultB  = 0.75
)

// bm25 scores every document of a small in-memory corpus against query.
// Document frequencies are computed over docs only.
func bm25(query []string, docs [][]string, k1, b float64) []float64 {
	scores := make([]float64, len(docs))
	if len(docs) == 0 || len(query) == 0 {
		return scores
	}

	var totalLen int
	df := make(map[string]int)
	tfs := make([]map[string]int, len(docs))
	for i, doc := range docs {
		totalLen += len(doc)
		tf := make(map[string]int, len(doc))
		for _, term := range doc {
			tf[term]++
		}
		for term := range tf {
			df[term]++
		}
		tfs[i] = tf
	}
	avgLen := float64(totalLen) / float64(len(docs))
	if avgLen == 0 {
		return scores
	}

	n := float64(len(docs))
	for i, doc := range docs {
		norm := k1 * (1 - b + b*float64(len(doc))/avgLen)
		for _, term := range query {
			f := float64(tfs[i][term])
			if f == 0 {
				continue
			}
			nq := float64(df[term])
			idf := math.Log(1 + (n-nq+0.5)/(nq+0.5))
			scores[i] += idf * f * (k1 + 1) / (f + norm)
		}
	}
	return scores
}

// minMax rescales values into [0, 1]. A constant input maps to zeros.
func minMax(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo + 1e-10
	for i, v := range values {
		out[i] = (v - lo) / span
	}
	return out
}
