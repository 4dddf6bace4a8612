// Package temporal finds dated cause and effect statements in passages.
//
// A causal event is a sentence that mentions a four digit year together
// with a causal marker such as "led to" or "because of". Events close in
// time whose descriptions share enough vocabulary are linked into chains.
// The Engine reports what it found and, for queries that ask about time or
// causes, promotes the passages that carry events.
package temporal
