package ingestion

import (
	"regexp"
	"strings"
)

// Default chunk bounds in bytes.
const (
	DefaultMinChunk = 150
	DefaultMaxChunk = 800
)

var (
	whitespace       = regexp.MustCompile(`\s+`)
	sentenceBoundary = regexp.MustCompile(`[.!?]\s+`)
)

// Normalize collapses every whitespace run to a single space and trims
// the result.
func Normalize(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

// splitSentences splits normalised text after terminal punctuation.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		// keep the punctuation, drop the whitespace
		out = append(out, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}

// Chunker splits text into sentence-aligned passages between Min and Max
// bytes long.
type Chunker struct {
	Min int
	Max int
}

// Split chunks normalised text. Text shorter than Min is a single chunk.
// Sentences are packed greedily; a sentence longer than Max is split on
// word boundaries. A trailing fragment shorter than Min joins the last
// chunk when it fits within Max and stands alone otherwise, so joining the
// chunks with spaces yields the normalised text.
func (c Chunker) Split(text string) []string {
	text = Normalize(text)
	if text == "" {
		return nil
	}
	if len(text) < c.Min {
		return []string{text}
	}

	var chunks []string
	current := ""
	for _, sentence := range splitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		candidate := join(current, sentence)
		switch {
		case len(candidate) <= c.Max:
			current = candidate
		case len(current) >= c.Min:
			chunks = append(chunks, current)
			current = sentence
		case len(sentence) > c.Max:
			var words []string
			words, current = c.splitWords(candidate)
			chunks = append(chunks, words...)
		default:
			current = candidate
		}
	}
	return appendTail(chunks, current, c.Max)
}

// appendTail adds the unfinished fragment, merging it into the previous
// chunk when the result stays within limit.
func appendTail(chunks []string, tail string, limit int) []string {
	if tail == "" {
		return chunks
	}
	if n := len(chunks); n > 0 && len(chunks[n-1])+1+len(tail) <= limit {
		chunks[n-1] = join(chunks[n-1], tail)
		return chunks
	}
	return append(chunks, tail)
}

// splitWords packs the words of an over-long sentence into chunks and
// returns them along with the unfinished remainder.
func (c Chunker) splitWords(sentence string) ([]string, string) {
	var chunks []string
	current := ""
	for _, word := range strings.Fields(sentence) {
		candidate := join(current, word)
		if len(candidate) > c.Max {
			chunks = appendTail(chunks, current, c.Max)
			current = word
			continue
		}
		current = candidate
	}
	return chunks, current
}

func join(current, next string) string {
	if current == "" {
		return next
	}
	return current + " " + next
}
