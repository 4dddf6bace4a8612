package generation

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/poiesic/veritas/core"
)

// Phrases with which a backend declines to answer. An answer containing
// one is an honest refusal, never a hallucination.
var refusalPhrases = []string{
	"don't have enough information",
	"do not contain enough information",
	"cannot answer",
	"not found in",
	"sources do not contain",
	"insufficient information",
}

// words splits text on whitespace into a lowercase set. Punctuation is
// kept so overlap stays a conservative measure.
func words(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

func coverage(query map[string]struct{}, content map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	return float64(overlap(query, content)) / float64(len(query))
}

// bestChunks keeps at most limit chunks, ranked by word coverage of every
// query phrasing plus twice the vector similarity. Small inputs are
// returned as they are.
func bestChunks(queries []string, chunks []*core.Chunk, limit int) []*core.Chunk {
	if len(chunks) <= limit {
		return chunks
	}
	phrasings := make([]map[string]struct{}, 0, len(queries))
	for _, q := range queries {
		phrasings = append(phrasings, words(q))
	}

	type ranked struct {
		chunk *core.Chunk
		score float64
	}
	ranking := make([]ranked, len(chunks))
	for i, chunk := range chunks {
		content := words(chunk.Content)
		score := 2 * chunk.Similarity
		for _, q := range phrasings {
			score += coverage(q, content)
		}
		ranking[i] = ranked{chunk: chunk, score: score}
	}
	slices.SortStableFunc(ranking, func(a, b ranked) int {
		return cmp.Compare(b.score, a.score)
	})

	out := make([]*core.Chunk, limit)
	for i := range out {
		out[i] = ranking[i].chunk
	}
	return out
}

// relevance is the mean per-chunk coverage of the query words, averaged
// with the chunk's similarity when one was measured.
func relevance(query string, chunks []*core.Chunk) float64 {
	if len(chunks) == 0 {
		return 0
	}
	q := words(query)
	var total float64
	for _, chunk := range chunks {
		r := coverage(q, words(chunk.Content))
		if chunk.Similarity != 0 {
			r = (r + chunk.Similarity) / 2
		}
		total += r
	}
	return total / float64(len(chunks))
}

// groundedness is the share of answer words that also occur in the sources.
func groundedness(answer string, chunks []*core.Chunk) float64 {
	a := words(answer)
	if len(a) == 0 {
		return 0
	}
	var sb strings.Builder
	for _, chunk := range chunks {
		sb.WriteString(chunk.Content)
		sb.WriteByte(' ')
	}
	return float64(overlap(a, words(sb.String()))) / float64(len(a))
}

func isRefusal(answer string) bool {
	lower := strings.ToLower(answer)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// hallucinated reports whether answer is too short or too loosely tied to
// the sources to be trusted.
func (c Config) hallucinated(answer string, chunks []*core.Chunk) bool {
	if isRefusal(answer) {
		return false
	}
	if len(strings.TrimSpace(answer)) < c.MinAnswerLength {
		return true
	}
	return groundedness(answer, chunks) < c.MinGroundedness
}

// confidence scores a model answer from its groundedness, its length and
// whether it cites sources.
func (c Config) confidence(answer string, chunks []*core.Chunk) float64 {
	if len(answer) < 20 {
		return 0.3
	}
	lengthScore := 0.9
	if len(answer) < 1000 {
		lengthScore = math.Min(float64(len(answer))/200, 1)
	}
	score := 0.5*groundedness(answer, chunks) + 0.3*lengthScore
	if strings.Contains(answer, "[Source") {
		score += 0.2
	}
	return math.Min(math.Round(score*100)/100, c.MaxConfidence)
}

// preview returns at most n runes of s.
func preview(s string, n int) string {
	if n <= 0 {
		return ""
	}
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}
