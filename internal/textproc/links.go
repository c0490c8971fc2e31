package textproc

import (
	"regexp"
	"sort"
	"strings"
)

var (
	linkRe          = regexp.MustCompile(`(?i)(https?://[^\s]+|www\.[^\s]+|[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
	trailingPunctRe = regexp.MustCompile(`[.,;:)\]}>]+$`)
)

// ExtractLinks finds URLs and email addresses in text. Trailing punctuation
// that is not part of the link is stripped, very short or truncated matches
// are discarded, and duplicates are removed.
func ExtractLinks(text string) []string {
	matches := linkRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var links []string
	for _, m := range matches {
		link := trailingPunctRe.ReplaceAllString(m, "")
		if len(link) <= 5 || strings.HasSuffix(link, "...") {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	sort.Strings(links)
	return links
}

// EnrichWithLinks appends a "[Related Links]" section listing each link found
// in the text. Text with no detectable links is returned unchanged. Applied
// per chunk so each chunk's links stay locally contextualized.
func EnrichWithLinks(text string) string {
	links := ExtractLinks(text)
	if len(links) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\n[Related Links]")
	for _, link := range links {
		b.WriteString("\n- ")
		b.WriteString(link)
	}
	return b.String()
}
