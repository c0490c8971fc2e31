// Package textproc prepares raw handbook text for embedding: sanitization,
// link enrichment, and token-based chunking.
package textproc

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MaxChunkChars caps the length of a single sanitized chunk.
const MaxChunkChars = 6000

var (
	// A run of 30+ comma-separated small integers is almost certainly a PDF
	// extractor leaking raw character codes instead of text.
	csvCodesRe = regexp.MustCompile(`^(?:\s*\d{1,6}\s*,){30,}\s*\d{1,6}\s*$`)

	trailingWSRe = regexp.MustCompile(`[ \t]+\n`)
	multiSpaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// maxCSVCodeParts bounds how many code points we decode from a leaked
// character-code array.
const maxCSVCodeParts = 20000

// maybeFromCSVCodes decodes text like "32,119,104,..." into the characters it
// encodes. Anything that does not look like a code-point list passes through
// unchanged.
func maybeFromCSVCodes(s string) string {
	if !csvCodesRe.MatchString(s) {
		return s
	}
	parts := strings.Split(s, ",")
	if len(parts) > maxCSVCodeParts {
		parts = parts[:maxCSVCodeParts]
	}
	var b strings.Builder
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 9 || n > utf8.MaxRune {
			continue
		}
		r := rune(n)
		if !utf8.ValidRune(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripInvisible replaces control characters (except newline and tab), stray
// surrogates, BOMs, non-breaking spaces, and bidirectional or invisible
// formatting characters with a single space.
func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7F:
			return ' '
		case utf16.IsSurrogate(r) || r == utf8.RuneError:
			return ' '
		case r == '\uFEFF' || r == '\u00A0':
			return ' '
		case r >= 0x2000 && r <= 0x200F:
			return ' '
		case r == '\u2028' || r == '\u2029':
			return ' '
		case r >= 0x202A && r <= 0x202E:
			return ' '
		case r >= 0x2060 && r <= 0x206F:
			return ' '
		}
		return r
	}, s)
}

// Sanitize normalizes raw extracted document text into clean, model-safe text.
// The order matters: code-point decoding first, then invisible-character
// stripping, NFKC normalization, and whitespace collapsing.
func Sanitize(raw string) string {
	s := maybeFromCSVCodes(raw)
	s = stripInvisible(s)
	s = norm.NFKC.String(s)
	s = trailingWSRe.ReplaceAllString(s, "\n")
	s = multiSpaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeChunk sanitizes a single chunk and caps it at MaxChunkChars. The cap
// applies to chunks only, never the full document, so the chunker always sees
// uncapped text.
func SanitizeChunk(raw string) string {
	s := Sanitize(raw)
	if len(s) > MaxChunkChars {
		cut := MaxChunkChars
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
