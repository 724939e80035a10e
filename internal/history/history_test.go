package history

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendDedupsConsecutive(t *testing.T) {
	s := NewStore("test", 20, nil)

	assert.True(t, s.Append(RoleUser, "hello"))
	assert.False(t, s.Append(RoleUser, "hello"), "identical consecutive append should be suppressed")
	assert.Equal(t, 1, s.Len())

	// Same content from a different role is a new message.
	assert.True(t, s.Append(RoleAssistant, "hello"))

	// The earlier duplicate is allowed again once it is no longer last.
	assert.True(t, s.Append(RoleUser, "hello"))
	assert.Equal(t, 3, s.Len())
}

func TestAppendCapsLength(t *testing.T) {
	s := NewStore("test", 5, nil)

	for i := 0; i < 12; i++ {
		s.Append(RoleUser, fmt.Sprintf("message %d", i))
	}

	msgs := s.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "message 7", msgs[0].Content, "oldest entries drop from the front")
	assert.Equal(t, "message 11", msgs[4].Content)
}

func TestMessagesReturnsCopy(t *testing.T) {
	s := NewStore("test", 20, nil)
	s.Append(RoleUser, "one")

	view := s.Messages()
	view[0].Content = "mutated"

	fresh := s.Messages()
	assert.Equal(t, "one", fresh[0].Content)
}

func TestRestoreAppliesCap(t *testing.T) {
	s := NewStore("test", 3, nil)

	var msgs []Message
	for i := 0; i < 6; i++ {
		msgs = append(msgs, Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}
	s.Restore(msgs)

	got := s.Messages()
	require.Len(t, got, 3)
	assert.Equal(t, "m3", got[0].Content)
}

func TestClear(t *testing.T) {
	s := NewStore("test", 20, nil)
	s.Append(RoleUser, "one")
	s.Clear()
	assert.Equal(t, 0, s.Len())

	_, ok := s.Last()
	assert.False(t, ok)
}

func TestArchiveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	a, err := OpenArchive(path)
	require.NoError(t, err)
	defer a.Close()

	s := NewStore("discord:42", 20, a)
	s.Append(RoleUser, "first")
	s.Append(RoleAssistant, "second")
	s.Append(RoleAssistant, "second") // deduped, must not be archived
	s.Append(RoleUser, "third")

	msgs, err := a.Tail("discord:42", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "third", msgs[2].Content)

	sessions, err := a.Sessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"discord:42"}, sessions)
}

func TestArchiveTailLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	a, err := OpenArchive(path)
	require.NoError(t, err)
	defer a.Close()

	s := NewStore("cli", 20, a)
	for i := 0; i < 8; i++ {
		s.Append(RoleUser, fmt.Sprintf("m%d", i))
	}

	msgs, err := a.Tail("cli", 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m5", msgs[0].Content)
	assert.Equal(t, "m7", msgs[2].Content)
}
