package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLinks_URLs(t *testing.T) {
	text := "Apply at https://www.sfu.ca/students/residences/apply. Questions? See www.sfu.ca/housing for details."
	links := ExtractLinks(text)
	assert.ElementsMatch(t, []string{
		"https://www.sfu.ca/students/residences/apply",
		"www.sfu.ca/housing",
	}, links)
}

func TestExtractLinks_Emails(t *testing.T) {
	links := ExtractLinks("Contact housing@sfu.ca or resdesk@sfu.ca.")
	assert.ElementsMatch(t, []string{"housing@sfu.ca", "resdesk@sfu.ca"}, links)
}

func TestExtractLinks_StripsTrailingPunctuation(t *testing.T) {
	links := ExtractLinks("(see https://example.com/page);")
	assert.Equal(t, []string{"https://example.com/page"}, links)
}

func TestExtractLinks_DiscardsShortMatches(t *testing.T) {
	assert.Empty(t, ExtractLinks("www.a is too short to be a real link"))
}

func TestExtractLinks_Deduplicates(t *testing.T) {
	links := ExtractLinks("https://example.com twice: https://example.com")
	assert.Equal(t, []string{"https://example.com"}, links)
}

func TestExtractLinks_NoneFound(t *testing.T) {
	assert.Empty(t, ExtractLinks("no links in this paragraph"))
}

func TestEnrichWithLinks_AppendsSection(t *testing.T) {
	got := EnrichWithLinks("Submit requests at https://example.com/maintenance today.")
	assert.Contains(t, got, "[Related Links]")
	assert.Contains(t, got, "- https://example.com/maintenance")
}

func TestEnrichWithLinks_IdentityWithoutLinks(t *testing.T) {
	in := "Quiet hours are 11pm to 8am on weekdays."
	assert.Equal(t, in, EnrichWithLinks(in))
}
