// Package corrective checks low-confidence answers against a SearXNG
// metasearch instance.
//
// A Corrector leaves answers at or above its threshold alone. Below it,
// the answer is extended with the leading web snippets when the search
// returns anything, and flagged as low confidence when it does not.
package corrective
