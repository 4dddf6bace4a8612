package pipeline

import (
	"strings"

	"github.com/poiesic/veritas/core"
)

// complexityIndicators mark queries that ask for synthesis across sources.
var complexityIndicators = []string{
	"how has",
	"evolution",
	"compare",
	"relationship between",
	"caused by",
	"leads to",
	"over time",
	"timeline",
	"methodology",
	"approach",
	"framework",
	"system",
}

const (
	maxSimpleIndicators = 2
	maxSimpleWords      = 15
)

// Classify labels a query complex when it carries more than two
// complexity indicators or more than fifteen words, simple otherwise.
func Classify(query string) core.QueryType {
	lower := strings.ToLower(query)
	indicators := 0
	for _, ind := range complexityIndicators {
		if strings.Contains(lower, ind) {
			indicators++
		}
	}
	if indicators > maxSimpleIndicators || len(strings.Fields(query)) > maxSimpleWords {
		return core.QueryTypeComplex
	}
	return core.QueryTypeSimple
}
