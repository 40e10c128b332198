package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"coursenerd/internal/citation"
	"coursenerd/internal/kb"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState()

	assert.True(t, s.KBEnabled())
	assert.Equal(t, ModeQA, s.Mode())
	assert.Empty(t, s.Retrieved())
	assert.Empty(t, s.Citations())
}

func TestModeAndKBToggle(t *testing.T) {
	s := NewState()

	s.SetMode(ModeForum)
	assert.Equal(t, ModeForum, s.Mode())

	s.SetKBEnabled(false)
	assert.False(t, s.KBEnabled())
}

func TestRecordRetrievalAccumulatesCitations(t *testing.T) {
	s := NewState()

	first := citation.ParseAll([]citation.RawReference{
		{ID: "doc-1", FilePath: "lecture_3_slides_10-12.pdf"},
	})
	second := citation.ParseAll([]citation.RawReference{
		{ID: "doc-1", FilePath: "lecture_3_slides_10-12.pdf"},
		{ID: "doc-2", FilePath: "exam_2023_q5.pdf"},
	})

	s.RecordRetrieval(kb.QueryResult{Status: kb.StatusSuccess, Answer: "a", Citations: first})
	s.RecordRetrieval(kb.QueryResult{Status: kb.StatusSuccess, Answer: "b", Citations: second})

	assert.Len(t, s.Retrieved(), 2)

	// Duplicate citation text is collapsed, first-seen order preserved.
	cites := s.Citations()
	assert.Len(t, cites, 2)
	assert.Equal(t, "Lecture 3, Slides 10-12", cites[0].Text())
	assert.Equal(t, "2023 Exam, Question 5", cites[1].Text())
}

func TestPreferences(t *testing.T) {
	s := NewState()

	_, ok := s.Preference("language")
	assert.False(t, ok)

	s.SetPreference("language", "en")
	v, ok := s.Preference("language")
	assert.True(t, ok)
	assert.Equal(t, "en", v)
}

func TestReset(t *testing.T) {
	s := NewState()
	s.SetMode(ModeForum)
	s.SetPreference("language", "en")
	s.RecordRetrieval(kb.QueryResult{Status: kb.StatusSuccess, Answer: "a"})
	s.SetConversationSummary("talked about eigenvalues")

	s.Reset()

	assert.Empty(t, s.Retrieved())
	assert.Empty(t, s.Citations())
	assert.Empty(t, s.ConversationSummary())
	// Mode and preferences survive a reset.
	assert.Equal(t, ModeForum, s.Mode())
	_, ok := s.Preference("language")
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewState()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordRetrieval(kb.QueryResult{Status: kb.StatusSuccess})
			s.Citations()
			s.SetPreference("k", "v")
		}()
	}
	wg.Wait()

	assert.Len(t, s.Retrieved(), 8)
}
