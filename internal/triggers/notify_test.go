package triggers

import (
	"context"
	"testing"
	"time"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
	"github.com/stretchr/testify/require"
)

func TestReplyNotifierAggregatesIntoOneRecord(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000000)
	s := store.New(store.WithClock(func() time.Time { return now }))
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "alice"}))

	notifier := NewReplyNotifier(s)

	first := map[string]any{"authorId": "bob", "content": "one", "parentId": "p1"}
	require.NoError(t, notifier(context.Background(), replyEvent("p1", "r1", nil, first)))

	now = now.Add(time.Minute)
	second := map[string]any{"authorId": "carol", "content": "two", "parentId": "p1"}
	require.NoError(t, notifier(context.Background(), replyEvent("p1", "r2", nil, second)))

	var note models.Notification
	require.NoError(t, store.Decode(s.Get("notifications/alice/reply-p1"), &note))
	require.Equal(t, models.NotificationTypeReply, note.Type)
	require.Equal(t, 2, note.Count)
	require.False(t, note.IsRead)
	require.Equal(t, int64(1700000000000), note.CreatedAt)
	require.Equal(t, now.UnixMilli(), note.UpdatedAt)
}

func TestReplyNotifierSkipsSelfReply(t *testing.T) {
	t.Parallel()

	s := store.New()
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "alice"}))

	notifier := NewReplyNotifier(s)
	reply := map[string]any{"authorId": "alice", "content": "note to self", "parentId": "p1"}
	require.NoError(t, notifier(context.Background(), replyEvent("p1", "r1", nil, reply)))

	require.Nil(t, s.Get("notifications/alice"))
}

func TestReplyNotifierSkipsMissingParent(t *testing.T) {
	t.Parallel()

	s := store.New()
	notifier := NewReplyNotifier(s)

	reply := map[string]any{"authorId": "bob", "content": "orphan"}
	require.NoError(t, notifier(context.Background(), replyEvent("gone", "r1", nil, reply)))
	require.Nil(t, s.Get("notifications"))
}

func TestReplyNotifierIgnoresRemovalsAndEdits(t *testing.T) {
	t.Parallel()

	s := store.New()
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "alice"}))
	notifier := NewReplyNotifier(s)

	reply := map[string]any{"authorId": "bob", "content": "x", "parentId": "p1"}
	require.NoError(t, notifier(context.Background(), replyEvent("p1", "r1", reply, nil)))
	require.NoError(t, notifier(context.Background(), replyEvent("p1", "r1", reply, map[string]any{
		"authorId": "bob", "content": "y", "parentId": "p1",
	})))

	require.Nil(t, s.Get("notifications/alice"))
}
