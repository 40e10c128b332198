// Package session tracks per-conversation state: the active mode, the
// documents retrieved so far, and the citations owed to the user.
package session

import (
	"sync"

	"coursenerd/internal/citation"
	"coursenerd/internal/kb"
)

// Mode selects which tool surface the assistant offers.
type Mode string

const (
	ModeQA     Mode = "qa"
	ModeForum  Mode = "forum"
	ModeReport Mode = "report"
)

// State holds conversation-scoped state. Safe for concurrent use.
type State struct {
	mu sync.RWMutex

	kbEnabled bool
	mode      Mode

	retrieved []kb.QueryResult
	citations []citation.Citation

	conversationSummary string
	userPreferences     map[string]string
}

// NewState returns a fresh state in QA mode with the knowledge base enabled.
func NewState() *State {
	return &State{
		kbEnabled:       true,
		mode:            ModeQA,
		userPreferences: make(map[string]string),
	}
}

// KBEnabled reports whether knowledge-base retrieval is active.
func (s *State) KBEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.kbEnabled
}

// SetKBEnabled toggles knowledge-base retrieval.
func (s *State) SetKBEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kbEnabled = enabled
}

// Mode returns the active session mode.
func (s *State) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches the session mode.
func (s *State) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// RecordRetrieval appends a query result and its citations to the session.
func (s *State) RecordRetrieval(result kb.QueryResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieved = append(s.retrieved, result)
	s.citations = append(s.citations, result.Citations...)
}

// Retrieved returns a copy of all recorded query results.
func (s *State) Retrieved() []kb.QueryResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]kb.QueryResult, len(s.retrieved))
	copy(out, s.retrieved)
	return out
}

// Citations returns the accumulated citations, deduplicated by display text
// in first-seen order.
func (s *State) Citations() []citation.Citation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool, len(s.citations))
	var out []citation.Citation
	for _, c := range s.citations {
		text := c.Text()
		if !seen[text] {
			seen[text] = true
			out = append(out, c)
		}
	}
	return out
}

// SetConversationSummary replaces the rolling conversation summary.
func (s *State) SetConversationSummary(summary string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationSummary = summary
}

// ConversationSummary returns the rolling conversation summary.
func (s *State) ConversationSummary() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversationSummary
}

// SetPreference stores a user preference.
func (s *State) SetPreference(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userPreferences[key] = value
}

// Preference looks up a user preference.
func (s *State) Preference(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.userPreferences[key]
	return v, ok
}

// Reset clears retrieved documents and citations, keeping mode and
// preferences.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieved = nil
	s.citations = nil
	s.conversationSummary = ""
}
