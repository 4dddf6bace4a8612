// Package generation turns retrieved chunks into a grounded answer.
//
// A Generator runs a three tier chain. The primary backend drafts several
// speculative answers concurrently over interleaved chunk subsets and a
// verification pass refines the longest one. Answers that fail the
// groundedness check fall through to the secondary backend, and when both
// backends fail the Generator extracts the most relevant passages
// verbatim. Refusals carry confidence 0 so callers can pass them through
// unchanged.
package generation
