// Package citation turns raw knowledge-base references into typed,
// human-readable citations. Course material arrives with wildly
// inconsistent file naming (English, Chinese, dated exports), so parsing
// is ordered pattern matching over the bare file name.
package citation

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"
)

// RawReference is a single reference entry as returned by the knowledge base.
type RawReference struct {
	ID       string `json:"reference_id"`
	FilePath string `json:"file_path"`
}

// Citation is a typed, renderable source attribution.
type Citation interface {
	// Text returns the human-readable citation string.
	Text() string
}

// LectureCitation points at a lecture deck, optionally at a slide range.
type LectureCitation struct {
	Lecture      int
	SlideRange   string // "26-27", "12", or empty when only the lecture is known
	CitationText string
}

func (c LectureCitation) Text() string { return c.CitationText }

// DatedSlideCitation points at a slide deck identified only by export date.
type DatedSlideCitation struct {
	Date         string // YYYYMMDD as found in the file name
	CitationText string
}

func (c DatedSlideCitation) Text() string { return c.CitationText }

// ExamCitation points at a question in a past exam paper.
type ExamCitation struct {
	Year         string // kept as written in the file name
	Question     int
	CitationText string
}

func (c ExamCitation) Text() string { return c.CitationText }

// GenericDocumentCitation is the fallback for anything unrecognized.
type GenericDocumentCitation struct {
	DocID        string
	FileName     string
	CitationText string
}

func (c GenericDocumentCitation) Text() string { return c.CitationText }

// Lecture patterns are tried in order. Two-capture patterns yield
// lecture+slides; a single 8-digit capture is an export date; any other
// single capture is a bare lecture number.
var lecturePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)lecture[_\s-]*(\d+)[_\s-]*slides?[_\s-]*([\d\-]+)`),
	regexp.MustCompile(`第(\d+)讲[_\s-]*幻灯片([\d\-]+)`),
	regexp.MustCompile(`(?i)slides?[_\s-]*(\d{8})`),
	regexp.MustCompile(`(?i)lecture(\d+)[_\s-]*slide[_\s-]*([\d\-]+)`),
	regexp.MustCompile(`(?i)lecture[_\s-]*(\d+)`),
}

var examPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)exam[_\s-]*(\d{4})[_\s-]*q(\d+)`),
	regexp.MustCompile(`(\d{4})[年_\s-]*考试[_\s-]*第?(\d+)题?`),
	regexp.MustCompile(`(?i)exam[_\s-]*(\d{4})[_\s-]*question[_\s-]*(\d+)`),
	regexp.MustCompile(`(?i)test[_\s-]*(\d{4})[_\s-]*(\d+)`),
}

// Parse classifies a raw reference. Returns nil when the reference has no
// file path to work from.
func Parse(ref RawReference) Citation {
	if ref.FilePath == "" {
		return nil
	}

	// Windows exports show up with backslash paths.
	name := path.Base(strings.ReplaceAll(ref.FilePath, `\`, "/"))

	for _, re := range lecturePatterns {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		switch len(m) {
		case 3:
			lecture, _ := strconv.Atoi(m[1])
			slides := strings.Trim(m[2], "-")
			return LectureCitation{
				Lecture:      lecture,
				SlideRange:   slides,
				CitationText: fmt.Sprintf("Lecture %d, Slides %s", lecture, slides),
			}
		case 2:
			if len(m[1]) == 8 {
				return DatedSlideCitation{
					Date:         m[1],
					CitationText: fmt.Sprintf("Course Slides (%s)", formatDate(m[1])),
				}
			}
			lecture, _ := strconv.Atoi(m[1])
			return LectureCitation{
				Lecture:      lecture,
				CitationText: fmt.Sprintf("Lecture %d", lecture),
			}
		}
	}

	for _, re := range examPatterns {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		question, _ := strconv.Atoi(m[2])
		return ExamCitation{
			Year:         m[1],
			Question:     question,
			CitationText: fmt.Sprintf("%s Exam, Question %d", m[1], question),
		}
	}

	return GenericDocumentCitation{
		DocID:        ref.ID,
		FileName:     name,
		CitationText: fmt.Sprintf("Reference Document [%s]: %s", ref.ID, name),
	}
}

// ParseAll parses every reference, skipping those without a file path.
func ParseAll(refs []RawReference) []Citation {
	var out []Citation
	for _, ref := range refs {
		if c := Parse(ref); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// formatDate renders YYYYMMDD as YYYY-MM-DD.
func formatDate(d string) string {
	if len(d) != 8 {
		return d
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:]
}
