// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package openai

import "strings"

// repairJSON fixes the mistakes models make when asked for a single JSON
// object such as the verifier's {refined_answer, confidence, reasoning}
// payload: prose around the object, keys missing one or both quotes, and
// trailing commas. Text inside string values is copied untouched.
func repairJSON(s string) string {
	s = outermostObject(s)

	var b strings.Builder
	b.Grow(len(s) + 16)

	inString, escaped := false, false
	for i := 0; i < len(s); {
		ch := s[i]
		if inString {
			b.WriteByte(ch)
			i++
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			b.WriteByte(ch)
			i++
		case ',':
			if closesNext(s, i+1) {
				i++
				continue
			}
			b.WriteByte(ch)
			i = quoteKey(&b, s, i+1)
		case '{':
			b.WriteByte(ch)
			i = quoteKey(&b, s, i+1)
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String()
}

// outermostObject drops anything before the first '{' and after the
// last '}'.
func outermostObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

// closesNext reports whether only whitespace separates i from a closing
// brace or bracket.
func closesNext(s string, i int) bool {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i < len(s) && (s[i] == '}' || s[i] == ']')
}

// quoteKey copies the whitespace at s[i:] and, when a bare identifier
// (optionally followed by a stray closing quote) precedes a colon, writes
// it as a quoted key. It returns the index to resume scanning from.
func quoteKey(b *strings.Builder, s string, i int) int {
	j := i
	for j < len(s) && isSpace(s[j]) {
		j++
	}
	b.WriteString(s[i:j])

	if j >= len(s) || !(isLetter(rune(s[j])) || s[j] == '_') {
		return j
	}
	k := j
	for k < len(s) && (isLetter(rune(s[k])) || isDigit(s[k]) || s[k] == '_') {
		k++
	}
	next := k
	if next < len(s) && s[next] == '"' {
		next++
	}
	colon := next
	for colon < len(s) && isSpace(s[colon]) {
		colon++
	}
	if colon >= len(s) || s[colon] != ':' {
		return j
	}

	b.WriteByte('"')
	b.WriteString(s[j:k])
	b.WriteByte('"')
	return next
}
