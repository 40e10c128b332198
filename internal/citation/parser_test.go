package citation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseLectureSlides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  RawReference
		want Citation
	}{
		{
			name: "underscore separated",
			ref:  RawReference{ID: "doc-1", FilePath: "lecture_8_slides_26-27.pdf"},
			want: LectureCitation{Lecture: 8, SlideRange: "26-27", CitationText: "Lecture 8, Slides 26-27"},
		},
		{
			name: "single slide number",
			ref:  RawReference{ID: "doc-2", FilePath: "Lecture 12 Slide 5.pdf"},
			want: LectureCitation{Lecture: 12, SlideRange: "5", CitationText: "Lecture 12, Slides 5"},
		},
		{
			name: "compact form",
			ref:  RawReference{ID: "doc-3", FilePath: "Lecture3_slide_14-16.pptx"},
			want: LectureCitation{Lecture: 3, SlideRange: "14-16", CitationText: "Lecture 3, Slides 14-16"},
		},
		{
			name: "mixed case",
			ref:  RawReference{ID: "doc-4", FilePath: "LECTURE_2_SLIDES_9.pdf"},
			want: LectureCitation{Lecture: 2, SlideRange: "9", CitationText: "Lecture 2, Slides 9"},
		},
		{
			name: "lecture only",
			ref:  RawReference{ID: "doc-5", FilePath: "lecture_8.pdf"},
			want: LectureCitation{Lecture: 8, CitationText: "Lecture 8"},
		},
		{
			name: "nested path is stripped",
			ref:  RawReference{ID: "doc-6", FilePath: "/data/course/week3/lecture_4_slides_1-10.pdf"},
			want: LectureCitation{Lecture: 4, SlideRange: "1-10", CitationText: "Lecture 4, Slides 1-10"},
		},
		{
			name: "windows path is stripped",
			ref:  RawReference{ID: "doc-7", FilePath: `C:\course\lecture_5_slides_3.pdf`},
			want: LectureCitation{Lecture: 5, SlideRange: "3", CitationText: "Lecture 5, Slides 3"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Parse(tt.ref)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseChineseLectureNaming(t *testing.T) {
	t.Parallel()

	got := Parse(RawReference{ID: "doc-cn", FilePath: "第8讲_幻灯片26-27.pdf"})
	want := LectureCitation{Lecture: 8, SlideRange: "26-27", CitationText: "Lecture 8, Slides 26-27"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseDatedSlides(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want DatedSlideCitation
	}{
		{
			name: "hyphenated export",
			path: "Slides-20251022.pdf",
			want: DatedSlideCitation{Date: "20251022", CitationText: "Course Slides (2025-10-22)"},
		},
		{
			name: "underscore export",
			path: "slide_20240115.pdf",
			want: DatedSlideCitation{Date: "20240115", CitationText: "Course Slides (2024-01-15)"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Parse(RawReference{ID: "doc-d", FilePath: tt.path})
			if diff := cmp.Diff(Citation(tt.want), got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseExam(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		want ExamCitation
	}{
		{
			name: "exam q form",
			path: "exam_2023_q5.pdf",
			want: ExamCitation{Year: "2023", Question: 5, CitationText: "2023 Exam, Question 5"},
		},
		{
			name: "chinese exam form",
			path: "2022年考试第3题.pdf",
			want: ExamCitation{Year: "2022", Question: 3, CitationText: "2022 Exam, Question 3"},
		},
		{
			name: "question spelled out",
			path: "Exam 2021 Question 12.pdf",
			want: ExamCitation{Year: "2021", Question: 12, CitationText: "2021 Exam, Question 12"},
		},
		{
			name: "test prefix",
			path: "test_2020_7.pdf",
			want: ExamCitation{Year: "2020", Question: 7, CitationText: "2020 Exam, Question 7"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Parse(RawReference{ID: "doc-e", FilePath: tt.path})
			if diff := cmp.Diff(Citation(tt.want), got); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseGenericFallback(t *testing.T) {
	t.Parallel()

	got := Parse(RawReference{ID: "abc123", FilePath: "syllabus_final.pdf"})
	want := GenericDocumentCitation{
		DocID:        "abc123",
		FileName:     "syllabus_final.pdf",
		CitationText: "Reference Document [abc123]: syllabus_final.pdf",
	}
	if diff := cmp.Diff(Citation(want), got); diff != "" {
		t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEmptyPath(t *testing.T) {
	t.Parallel()

	if got := Parse(RawReference{ID: "no-path"}); got != nil {
		t.Errorf("Parse() with empty file path = %v, want nil", got)
	}
}

func TestParseAll(t *testing.T) {
	t.Parallel()

	refs := []RawReference{
		{ID: "a", FilePath: "lecture_1_slides_2.pdf"},
		{ID: "b", FilePath: ""}, // skipped
		{ID: "c", FilePath: "exam_2023_q1.pdf"},
	}

	got := ParseAll(refs)
	if len(got) != 2 {
		t.Fatalf("ParseAll() returned %d citations, want 2", len(got))
	}
	if _, ok := got[0].(LectureCitation); !ok {
		t.Errorf("first citation = %T, want LectureCitation", got[0])
	}
	if _, ok := got[1].(ExamCitation); !ok {
		t.Errorf("second citation = %T, want ExamCitation", got[1])
	}
}
