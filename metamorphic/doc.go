// Package metamorphic checks that answers stay consistent when a question
// is rewritten.
//
// Each Relation rewrites the original question (paraphrase, expansion,
// negation, temporal shift or generalisation) and compares the two answers
// by word overlap. An Engine runs every relation against a query function
// and keeps a history for aggregate reports.
package metamorphic
