// Package forum prepares and publishes course forum posts. Drafts are
// written in Markdown; publishing fills the Moodle discussion form
// through the browser bridge and always leaves submission to the user.
package forum

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"coursenerd/internal/logging"
)

var mdConverter = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
		html.WithUnsafe(),
	),
)

// ToHTML converts Markdown to HTML for the rich-text editor. It never
// fails: if the converter errors, a minimal built-in conversion takes
// over so a draft is always publishable.
func ToHTML(markdown string) string {
	var buf bytes.Buffer
	if err := mdConverter.Convert([]byte(markdown), &buf); err != nil {
		logging.ForumWarn("markdown conversion failed, using fallback: %v", err)
		return fallbackHTML(markdown)
	}
	return buf.String()
}

// fallbackHTML handles headings, emphasis, and lists. Enough to keep a
// post readable when the real converter is unavailable.
func fallbackHTML(markdown string) string {
	var sb strings.Builder
	inList := false

	flushList := func() {
		if inList {
			sb.WriteString("</ul>\n")
			inList = false
		}
	}

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flushList()
		case strings.HasPrefix(trimmed, "### "):
			flushList()
			sb.WriteString("<h3>" + inlineHTML(strings.TrimPrefix(trimmed, "### ")) + "</h3>\n")
		case strings.HasPrefix(trimmed, "## "):
			flushList()
			sb.WriteString("<h2>" + inlineHTML(strings.TrimPrefix(trimmed, "## ")) + "</h2>\n")
		case strings.HasPrefix(trimmed, "# "):
			flushList()
			sb.WriteString("<h1>" + inlineHTML(strings.TrimPrefix(trimmed, "# ")) + "</h1>\n")
		case strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* "):
			if !inList {
				sb.WriteString("<ul>\n")
				inList = true
			}
			sb.WriteString("<li>" + inlineHTML(trimmed[2:]) + "</li>\n")
		default:
			flushList()
			sb.WriteString("<p>" + inlineHTML(trimmed) + "</p>\n")
		}
	}
	flushList()

	return sb.String()
}

// inlineHTML converts bold and italic emphasis within a line.
func inlineHTML(s string) string {
	for strings.Count(s, "**") >= 2 {
		s = strings.Replace(s, "**", "<strong>", 1)
		s = strings.Replace(s, "**", "</strong>", 1)
	}
	for strings.Count(s, "*") >= 2 {
		s = strings.Replace(s, "*", "<em>", 1)
		s = strings.Replace(s, "*", "</em>", 1)
	}
	return s
}

// AppendCitations appends a Sources section to a post body. The body is
// returned unchanged when there are no citations.
func AppendCitations(body string, texts []string) string {
	return body + renderCitationList(texts)
}

// renderCitationList appends a Sources section to a post body.
func renderCitationList(texts []string) string {
	if len(texts) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n\n**Sources:**\n")
	for _, t := range texts {
		sb.WriteString(fmt.Sprintf("- %s\n", t))
	}
	return sb.String()
}
