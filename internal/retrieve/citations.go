package retrieve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/housing-tools/handbook-qa/internal/model"
)

// DedupCitations collapses raw per-chunk citations into one citation per
// source document. The lowest page becomes the representative Page and the
// full page list becomes a human-readable section label ("Page 4",
// "Pages 4, 7"); a section already present on the input wins over the
// computed label. Source order follows first appearance. Running it over
// already-deduplicated citations is a no-op.
func DedupCitations(citations []model.Citation) []model.Citation {
	if len(citations) == 0 {
		return nil
	}

	type group struct {
		pages   map[int]struct{}
		section *string
	}
	groups := make(map[string]*group)
	var order []string

	for _, c := range citations {
		g, ok := groups[c.Source]
		if !ok {
			g = &group{pages: make(map[int]struct{})}
			groups[c.Source] = g
			order = append(order, c.Source)
		}
		if c.Page != nil {
			g.pages[*c.Page] = struct{}{}
		}
		if g.section == nil && c.Section != nil {
			g.section = c.Section
		}
	}

	out := make([]model.Citation, 0, len(order))
	for _, source := range order {
		g := groups[source]
		c := model.Citation{Source: source, Section: g.section}
		if len(g.pages) > 0 {
			sorted := make([]int, 0, len(g.pages))
			for p := range g.pages {
				sorted = append(sorted, p)
			}
			sort.Ints(sorted)

			first := sorted[0]
			c.Page = &first
			if c.Section == nil {
				label := pageLabel(sorted)
				c.Section = &label
			}
		}
		out = append(out, c)
	}
	return out
}

func pageLabel(sorted []int) string {
	if len(sorted) == 1 {
		return fmt.Sprintf("Page %d", sorted[0])
	}
	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = strconv.Itoa(p)
	}
	return "Pages " + strings.Join(parts, ", ")
}
