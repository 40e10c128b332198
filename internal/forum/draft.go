package forum

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSubject is used when a draft carries no usable title.
const DefaultSubject = "Forum Post"

const attributionFooter = "---\n*This post was generated with assistance from the AI Course Assistant*"

// Draft is the structured form of a reflection post generated by the
// downstream composer.
type Draft struct {
	Title      string `json:"title"`
	Understood string `json:"understood"`
	Confused   string `json:"confused"`
	AISummary  string `json:"ai_summary"`
}

// FormatPost renders a structured draft as the canonical Markdown post.
// Every section heading is emitted even when its content is empty, so
// the post shape stays recognizable, and the attribution footer is
// always appended.
func FormatPost(d Draft) string {
	title := d.Title
	if title == "" {
		title = "Untitled Question"
	}

	return fmt.Sprintf(
		"# %s\n\n## What I Understand\n%s\n\n## My Confusion Points\n%s\n\n## AI Assistant Summary\n%s\n\n%s",
		title, d.Understood, d.Confused, d.AISummary, attributionFooter,
	)
}

// ExtractPost splits draft content into a subject and Markdown body.
// JSON drafts become a subject (title, or DefaultSubject) plus the
// non-empty sections; Markdown drafts yield the first top-level heading
// as the subject. Content with no heading keeps the full draft as the
// body under DefaultSubject.
func ExtractPost(content string) (subject, body string) {
	trimmed := strings.TrimSpace(content)

	var d Draft
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal([]byte(trimmed), &d) == nil {
		subject = d.Title
		if subject == "" {
			subject = DefaultSubject
		}

		var sections []string
		if d.Understood != "" {
			sections = append(sections, "## What I Understand\n"+d.Understood)
		}
		if d.Confused != "" {
			sections = append(sections, "## My Confusion Points\n"+d.Confused)
		}
		if d.AISummary != "" {
			sections = append(sections, "## AI Assistant Summary\n"+d.AISummary)
		}
		return subject, strings.Join(sections, "\n\n")
	}

	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		l := strings.TrimSpace(line)
		if l == "" {
			continue
		}
		if strings.HasPrefix(l, "# ") {
			subject = strings.TrimSpace(strings.TrimPrefix(l, "# "))
			return subject, strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
		break
	}

	return DefaultSubject, trimmed
}
