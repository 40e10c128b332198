package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DiagnosticsStore {
	t.Helper()
	s, err := NewDiagnosticsStore(filepath.Join(t.TempDir(), "diag.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRetrieveSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.SaveSnapshot(ctx, "missing-button", "uid=e1 button \"Reply\"")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := s.Snapshot(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, "missing-button", snap.Label)
	assert.Equal(t, "uid=e1 button \"Reply\"", snap.Content)
	assert.False(t, snap.CreatedAt.IsZero())
}

func TestSnapshotNotFound(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.Snapshot(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestRecordAndListPublishAttempts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordPublishAttempt(ctx, PublishAttempt{
		Subject:  "Question about eigenvalues",
		ForumURL: "https://moodle.example.edu/mod/forum/view.php?id=42",
		Success:  true,
	}))
	require.NoError(t, s.RecordPublishAttempt(ctx, PublishAttempt{
		Subject:    "Second attempt",
		ForumURL:   "https://moodle.example.edu/mod/forum/view.php?id=42",
		Success:    false,
		ErrorKind:  "element_not_found",
		Detail:     "add topic button not found",
		SnapshotID: "abc-123",
	}))

	attempts, err := s.RecentAttempts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	// Newest first.
	assert.Equal(t, "Second attempt", attempts[0].Subject)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, "element_not_found", attempts[0].ErrorKind)
	assert.Equal(t, "abc-123", attempts[0].SnapshotID)

	assert.Equal(t, "Question about eigenvalues", attempts[1].Subject)
	assert.True(t, attempts[1].Success)
	assert.Empty(t, attempts[1].ErrorKind)
}

func TestRecentAttemptsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordPublishAttempt(ctx, PublishAttempt{
			Subject: "post",
			Success: true,
		}))
	}

	attempts, err := s.RecentAttempts(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, attempts, 3)
}
