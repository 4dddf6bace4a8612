package ingestion

import (
	"regexp"
	"slices"
	"strings"
)

// Metadata keys set on ingested documents.
const (
	MetaFilename     = "filename"
	MetaAuthors      = "authors"
	MetaYear         = "year"
	MetaInstitutions = "institutions"
)

// listSeparator joins multi-valued metadata.
const listSeparator = "; "

var (
	authorPattern      = regexp.MustCompile(`(?i:authors?|by):\s*([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)*)`)
	yearPattern        = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	institutionPattern = regexp.MustCompile(`(?i)\b(university|institute|laboratory|college|school)\b`)
)

// ExtractMetadata derives document metadata from its text: author names
// following an "Author:" or "By:" label, the most recent year mentioned
// and the kinds of institution named.
func ExtractMetadata(text, filename string) map[string]string {
	meta := map[string]string{MetaFilename: filename}

	var authors []string
	for _, m := range authorPattern.FindAllStringSubmatch(text, -1) {
		if !slices.Contains(authors, m[1]) {
			authors = append(authors, m[1])
		}
	}
	if len(authors) > 0 {
		meta[MetaAuthors] = strings.Join(authors, listSeparator)
	}

	// Four digit years compare correctly as strings.
	var latest string
	for _, y := range yearPattern.FindAllString(text, -1) {
		latest = max(latest, y)
	}
	if latest != "" {
		meta[MetaYear] = latest
	}

	var institutions []string
	for _, m := range institutionPattern.FindAllString(text, -1) {
		kind := strings.ToUpper(m[:1]) + strings.ToLower(m[1:])
		if !slices.Contains(institutions, kind) {
			institutions = append(institutions, kind)
		}
	}
	if len(institutions) > 0 {
		slices.Sort(institutions)
		meta[MetaInstitutions] = strings.Join(institutions, listSeparator)
	}
	return meta
}

// Authors splits the authors metadata of a document.
func Authors(meta map[string]string) []string {
	v := meta[MetaAuthors]
	if v == "" {
		return nil
	}
	return strings.Split(v, listSeparator)
}
