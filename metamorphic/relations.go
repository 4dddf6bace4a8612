package metamorphic

import (
	"regexp"
	"strings"

	"github.com/poiesic/veritas/core"
)

// Relation is a question rewrite together with the property the two
// answers must share.
type Relation struct {
	Name        string
	Description string
	Transform   func(query string) string
	Validate    func(original, transformed string) bool
	// Threshold is the pass rate below which the relation is reported as
	// unreliable.
	Threshold float64
}

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

var (
	paraphrases = []rewrite{
		{regexp.MustCompile(`(?i)\bwhat is\b`), "what does"},
		{regexp.MustCompile(`(?i)\bhow does\b`), "in what way does"},
		{regexp.MustCompile(`(?i)\bwhy\b`), "what is the reason"},
		{regexp.MustCompile(`(?i)\bwhen\b`), "at what time"},
		{regexp.MustCompile(`(?i)\bwhere\b`), "in which location"},
	}
	synonyms = map[string]string{
		"method":    "approach",
		"technique": "method",
		"result":    "outcome",
		"study":     "research",
		"analysis":  "examination",
	}
	expansions = []string{
		" in recent research",
		" according to scientific literature",
		" based on current studies",
		" in academic papers",
	}
	temporalShifts = []rewrite{
		{regexp.MustCompile(`(?i)\b(current|recent|modern)\b`), "historical"},
		{regexp.MustCompile(`(?i)\b(today|now)\b`), "in the past"},
		{regexp.MustCompile(`(?i)\b(future|upcoming)\b`), "past"},
		{regexp.MustCompile(`(?i)\b(latest|newest)\b`), "earliest"},
	}
	specificTerms = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{4}\b`),
		regexp.MustCompile(`(?i)\bspecific\b`),
		regexp.MustCompile(`(?i)\bparticular\b`),
		regexp.MustCompile(`(?i)\bexact\b`),
	}
	generalWords = []string{"general", "overall", "broad"}
)

// Relations returns the standard relations in the order they run.
func Relations() []Relation {
	return []Relation{
		{
			Name:        "query_paraphrasing",
			Description: "Paraphrased queries should yield similar results",
			Transform:   Paraphrase,
			Validate:    func(a, b string) bool { return jaccard(a, b) > 0.3 },
			Threshold:   0.8,
		},
		{
			Name:        "query_expansion",
			Description: "Expanded queries should contain original results",
			Transform:   Expand,
			Validate:    func(a, b string) bool { return containment(a, b) > 0.5 },
			Threshold:   0.7,
		},
		{
			Name:        "negation_consistency",
			Description: "Negated queries should yield opposite sentiment",
			Transform:   Negate,
			Validate: func(a, b string) bool {
				overlap := jaccard(a, b)
				return overlap > 0.2 && overlap < 0.8
			},
			Threshold: 0.6,
		},
		{
			Name:        "temporal_consistency",
			Description: "Time-shifted queries should maintain logical consistency",
			Transform:   ShiftTime,
			Validate:    func(_, b string) bool { return len(b) > 10 },
			Threshold:   0.75,
		},
		{
			Name:        "specificity_hierarchy",
			Description: "Specific queries should be subsets of general queries",
			Transform:   Generalize,
			Validate: func(a, b string) bool {
				return containment(a, b) > 0.4 && len(b) >= len(a)
			},
			Threshold: 0.8,
		},
	}
}

// Paraphrase rewrites question words and swaps a few research synonyms.
func Paraphrase(query string) string {
	for _, r := range paraphrases {
		query = r.pattern.ReplaceAllString(query, r.replacement)
	}
	words := strings.Fields(query)
	for i, w := range words {
		if s, ok := synonyms[strings.ToLower(w)]; ok {
			words[i] = s
		}
	}
	return strings.Join(words, " ")
}

// Expand appends a research context. The suffix depends only on the query.
func Expand(query string) string {
	return query + expansions[uint64(core.IDFromContent(query))%uint64(len(expansions))]
}

// Negate turns a what or how question into its negative, and anything else
// into a request for contradicting evidence.
func Negate(query string) string {
	lower := strings.ToLower(query)
	switch {
	case strings.HasPrefix(lower, "what"):
		return query[:4] + " is not" + query[4:]
	case strings.HasPrefix(lower, "how"):
		return query[:3] + " not" + query[3:]
	}
	return "What contradicts the idea that " + lower
}

// ShiftTime moves present and future references into the past.
func ShiftTime(query string) string {
	for _, r := range temporalShifts {
		query = r.pattern.ReplaceAllString(query, r.replacement)
	}
	return query
}

// Generalize drops years and narrowing words and, unless the question is
// already broad, prefixes it with "In general,".
func Generalize(query string) string {
	for _, p := range specificTerms {
		query = p.ReplaceAllString(query, "")
	}
	query = strings.Join(strings.Fields(query), " ")
	lower := strings.ToLower(query)
	for _, w := range generalWords {
		if strings.Contains(lower, w) {
			return query
		}
	}
	return "In general, " + lower
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = struct{}{}
	}
	return set
}

func common(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

// jaccard is the word-set Jaccard similarity of a and b.
func jaccard(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	shared := common(wa, wb)
	union := len(wa) + len(wb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// containment is the share of a's words that also appear in b.
func containment(a, b string) float64 {
	wa := wordSet(a)
	if len(wa) == 0 {
		return 0
	}
	return float64(common(wa, wordSet(b))) / float64(len(wa))
}
