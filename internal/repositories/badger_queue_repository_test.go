package repositories

import (
	"context"
	"log/slog"
	"testing"

	"courier/internal/models"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func Test_Badger_Queue_Append_And_Drain(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewBadgerQueueRepository(openTestDB(t), slog.Default())

	key := models.QueueKey{Owner: "alice"}
	messages := []models.Message{
		{Sender: "dev", Content: "hello", Timestamp: 1},
		{Sender: "dev", Content: "still there?", Timestamp: 2},
		{Sender: "carol", Content: "ping", Timestamp: 3},
	}
	for _, m := range messages {
		req.NoError(repository.Append(ctx, key, m))
	}

	drained, err := repository.Drain(ctx, key)
	req.NoError(err)
	req.Equal(messages, drained)

	drained, err = repository.Drain(ctx, key)
	req.NoError(err)
	req.Empty(drained)
}

func Test_Badger_Queue_Key_Isolation(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewBadgerQueueRepository(openTestDB(t), slog.Default())

	req.NoError(repository.Append(ctx, models.QueueKey{Owner: "alice"}, models.Message{Sender: "dev", Content: "private"}))
	req.NoError(repository.Append(ctx, models.QueueKey{Owner: "alice", Group: "team1"}, models.Message{Sender: "dev", Content: "grouped"}))
	req.NoError(repository.Append(ctx, models.QueueKey{Owner: "alice:team1"}, models.Message{Sender: "dev", Content: "tricky owner"}))

	drained, err := repository.Drain(ctx, models.QueueKey{Owner: "alice"})
	req.NoError(err)
	req.Len(drained, 1)
	req.Equal("private", drained[0].Content)

	drained, err = repository.Drain(ctx, models.QueueKey{Owner: "alice", Group: "team1"})
	req.NoError(err)
	req.Len(drained, 1)
	req.Equal("grouped", drained[0].Content)

	drained, err = repository.Drain(ctx, models.QueueKey{Owner: "alice:team1"})
	req.NoError(err)
	req.Len(drained, 1)
	req.Equal("tricky owner", drained[0].Content)
}

func Test_Badger_Group_Registry(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	registry := NewBadgerGroupRegistry(openTestDB(t))

	known, err := registry.IsGroup(ctx, "team1")
	req.NoError(err)
	req.False(known)

	req.NoError(registry.Join(ctx, "team1", "alice"))
	req.NoError(registry.Join(ctx, "team1", "bob"))
	req.NoError(registry.Join(ctx, "team1", "bob"))

	known, err = registry.IsGroup(ctx, "team1")
	req.NoError(err)
	req.True(known)

	members, err := registry.Members(ctx, "team1")
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "bob"}, members)
}
