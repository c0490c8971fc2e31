package answer

import (
	"fmt"
	"strings"
)

// systemRules pins the model to the handbook corpus. Citations are attached
// by the service, so the model is told to leave them out of the answer text.
const systemRules = `You are the Residence & Housing handbook assistant.
Answer ONLY using the provided handbook excerpts. If the answer is not present, say you cannot find it in the materials provided.
Be concise and precise. Use bullet points when listing items.
DO NOT include source references or page numbers in your answer - they will be added automatically as citations.

IMPORTANT: If the provided context includes any URLs or links (often in a [Related Links] section), and those links are relevant to answering the question, you MUST include them at the end of your answer.
Format links in Markdown style for clickability: [Descriptive Text](URL)
Example: [Submit Maintenance Request](https://example.com/maintenance)`

// BuildPrompt assembles the single-shot prompt from the question and the
// retrieved excerpts.
func BuildPrompt(question string, excerpts []string) string {
	var ctx string
	if len(excerpts) == 0 {
		ctx = "(no excerpts found)"
	} else {
		blocks := make([]string, len(excerpts))
		for i, e := range excerpts {
			blocks[i] = fmt.Sprintf("Excerpt %d:\n%s", i+1, e)
		}
		ctx = strings.Join(blocks, "\n\n")
	}

	return fmt.Sprintf(`%s

### Task
Answer the user question strictly from the provided handbook context. If missing, state that you cannot find it in the provided materials.

### Question
%s

### Context (excerpts)
%s

### Output format
- Direct answer (3-8 bullet points if appropriate).
- Do NOT add any source notes or citations in your answer text.
- If the excerpts contain relevant URLs/links (especially in [Related Links] sections), include them AFTER your bullet points.
- Format links in Markdown: **Helpful Link:** [Descriptive Title](URL)
- Use descriptive, user-friendly link text like "Submit Request Online" or "Contact Housing Services" - NOT the raw URL.
`, systemRules, strings.TrimSpace(question), ctx)
}
