package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	opts := badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return NewLog(db)
}

func TestAppendAssignsID(t *testing.T) {
	log := newTestLog(t)

	err := log.Append(Entry{
		Channel:  "general",
		Username: "User1234",
		Tag:      "AB12CD34",
		Body:     "hello",
		At:       time.Now(),
	})
	require.NoError(t, err)

	entries, err := log.List("general")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotEqual(t, uuid.Nil, entries[0].ID)
	require.Equal(t, "hello", entries[0].Body)
}

func TestListReturnsAppendOrder(t *testing.T) {
	log := newTestLog(t)

	base := time.Now()
	for i := 0; i < 10; i++ {
		err := log.Append(Entry{
			Channel:  "general",
			Username: "User1234",
			Body:     fmt.Sprintf("message %d", i),
			At:       base.Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
	}

	entries, err := log.List("general")
	require.NoError(t, err)
	require.Len(t, entries, 10)
	for i, entry := range entries {
		require.Equal(t, fmt.Sprintf("message %d", i), entry.Body)
	}
}

func TestListIsolatesChannels(t *testing.T) {
	log := newTestLog(t)
	now := time.Now()

	require.NoError(t, log.Append(Entry{Channel: "general", Body: "in general", At: now}))
	require.NoError(t, log.Append(Entry{Channel: "random", Body: "in random", At: now}))
	// A channel name that is a prefix of another must not leak entries.
	require.NoError(t, log.Append(Entry{Channel: "gen", Body: "in gen", At: now}))

	general, err := log.List("general")
	require.NoError(t, err)
	require.Len(t, general, 1)
	require.Equal(t, "in general", general[0].Body)

	gen, err := log.List("gen")
	require.NoError(t, err)
	require.Len(t, gen, 1)
	require.Equal(t, "in gen", gen[0].Body)
}

func TestListEmptyChannel(t *testing.T) {
	log := newTestLog(t)

	entries, err := log.List("ghost-town")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStoredSnapshotIsImmutable(t *testing.T) {
	log := newTestLog(t)

	entry := Entry{
		Channel:  "general",
		Username: "OldName",
		Tag:      "AB12CD34",
		Avatar:   "teal",
		Body:     "before rename",
		At:       time.Now(),
	}
	require.NoError(t, log.Append(entry))

	// Mutating the caller's copy after the append must not rewrite history.
	entry.Username = "NewName"
	entry.Avatar = "crimson"

	entries, err := log.List("general")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "OldName", entries[0].Username)
	require.Equal(t, "teal", entries[0].Avatar)
}

func TestSameInstantEntriesAllKept(t *testing.T) {
	log := newTestLog(t)

	at := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(Entry{Channel: "general", Body: "burst", At: at}))
	}

	entries, err := log.List("general")
	require.NoError(t, err)
	require.Len(t, entries, 3)
}
