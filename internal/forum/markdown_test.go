package forum

import (
	"strings"
	"testing"
)

func TestToHTML(t *testing.T) {
	t.Parallel()

	md := "## Understanding RAG\n\nRetrieval **augments** generation.\n\n- chunking\n- embedding\n"
	html := ToHTML(md)

	for _, want := range []string{"<h2", "Understanding RAG", "<strong>augments</strong>", "<li>chunking</li>"} {
		if !strings.Contains(html, want) {
			t.Errorf("ToHTML() missing %q in:\n%s", want, html)
		}
	}
}

func TestToHTMLTable(t *testing.T) {
	t.Parallel()

	md := "| term | meaning |\n|------|--------|\n| RAG | retrieval augmented generation |\n"
	html := ToHTML(md)

	if !strings.Contains(html, "<table>") {
		t.Errorf("ToHTML() did not render table:\n%s", html)
	}
}

func TestToHTMLNeverEmptyOnPlainText(t *testing.T) {
	t.Parallel()

	html := ToHTML("just a sentence")
	if !strings.Contains(html, "just a sentence") {
		t.Errorf("ToHTML() lost content: %q", html)
	}
}

func TestFallbackHTML(t *testing.T) {
	t.Parallel()

	md := "# Title\nA **bold** point.\n- one\n- two\nclosing line"
	html := fallbackHTML(md)

	for _, want := range []string{
		"<h1>Title</h1>",
		"<strong>bold</strong>",
		"<ul>",
		"<li>one</li>",
		"<li>two</li>",
		"</ul>",
		"<p>closing line</p>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("fallbackHTML() missing %q in:\n%s", want, html)
		}
	}
}

func TestRenderCitationList(t *testing.T) {
	t.Parallel()

	if got := renderCitationList(nil); got != "" {
		t.Errorf("renderCitationList(nil) = %q, want empty", got)
	}

	got := renderCitationList([]string{"Lecture 8, Slides 26-27", "2023 Exam, Question 5"})
	if !strings.Contains(got, "**Sources:**") || !strings.Contains(got, "- Lecture 8, Slides 26-27") {
		t.Errorf("renderCitationList() = %q", got)
	}
}
