package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAndGet(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("posts/p1", map[string]any{"content": "hello", "replyCount": 0}))

	got := s.Get("posts/p1/content")
	require.Equal(t, "hello", got)

	require.Nil(t, s.Get("posts/p2"))
}

func TestDeletePrunesEmptyBranches(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("users/u1/postInteractions/p1", map[string]any{"score": 3}))
	require.NoError(t, s.Delete("users/u1/postInteractions/p1"))

	require.Nil(t, s.Get("users/u1/postInteractions"))
	require.Nil(t, s.Get("users/u1"))
	require.False(t, Exists(s.Get("users/u1")))
}

func TestSubscribeDeliversInitialSnapshotAndPushes(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("posts/p1/content", "first"))

	var snapshots []any
	unsubscribe := s.Subscribe("posts/p1", func(snapshot any) {
		snapshots = append(snapshots, snapshot)
	})

	require.Len(t, snapshots, 1, "initial snapshot must be delivered immediately")

	require.NoError(t, s.Set("posts/p1/content", "second"))
	require.Len(t, snapshots, 2)
	require.Equal(t, "second", snapshots[1].(map[string]any)["content"])

	unsubscribe()
	require.NoError(t, s.Set("posts/p1/content", "third"))
	require.Len(t, snapshots, 2, "no pushes after unsubscribe")
}

func TestUnchangedWriteEmitsNothing(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("posts/p1/content", "same"))

	var events []Event
	s.OnWrite(func(ev Event) { events = append(events, ev) })

	calls := 0
	s.Subscribe("posts/p1", func(any) { calls++ })
	require.Equal(t, 1, calls)

	require.NoError(t, s.Set("posts/p1/content", "same"))
	require.Empty(t, events)
	require.Equal(t, 1, calls, "duplicate write must not notify subscribers")

	// Deleting an already-absent node is a no-op too.
	require.NoError(t, s.Delete("posts/nope"))
	require.Empty(t, events)
}

func TestUpdateIsAtomicForSubscribers(t *testing.T) {
	t.Parallel()

	s := New()

	var snapshots []any
	s.Subscribe("", func(snapshot any) { snapshots = append(snapshots, snapshot) })

	require.NoError(t, s.Update(map[string]any{
		"posts/p1/interactions/u1":     4,
		"users/u1/postInteractions/p1": map[string]any{"score": 4},
	}))

	// One notification covering both writes, not one per path.
	require.Len(t, snapshots, 2)
	root := snapshots[1].(map[string]any)
	require.Contains(t, root, "posts")
	require.Contains(t, root, "users")
}

func TestTransaction(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("posts/p1/replyCount", 1))

	err := s.Transaction("posts/p1/replyCount", func(current any) (any, error) {
		count, _ := current.(float64)
		return count + 1, nil
	})
	require.NoError(t, err)
	require.Equal(t, float64(2), s.Get("posts/p1/replyCount"))

	sentinel := errors.New("abort")
	err = s.Transaction("posts/p1/replyCount", func(any) (any, error) {
		return nil, sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, float64(2), s.Get("posts/p1/replyCount"), "aborted transaction must not write")
}

func TestTransactUpdate(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("replies/p1/r1", map[string]any{"content": "a"}))
	require.NoError(t, s.Set("replies/p1/r2", map[string]any{"content": "b"}))
	require.NoError(t, s.Set("posts/p1", map[string]any{"replyCount": 0}))

	err := s.TransactUpdate(func(get func(string) any) (map[string]any, error) {
		children, _ := get("replies/p1").(map[string]any)
		return map[string]any{"posts/p1/replyCount": len(children)}, nil
	})
	require.NoError(t, err)
	require.Equal(t, float64(2), s.Get("posts/p1/replyCount"))

	sentinel := errors.New("abort")
	err = s.TransactUpdate(func(func(string) any) (map[string]any, error) {
		return map[string]any{"posts/p1/replyCount": 99}, sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, float64(2), s.Get("posts/p1/replyCount"), "aborted transaction must not write")

	// A nil write-set commits nothing and emits no events.
	events := 0
	s.OnWrite(func(Event) { events++ })
	require.NoError(t, s.TransactUpdate(func(func(string) any) (map[string]any, error) {
		return nil, nil
	}))
	require.Zero(t, events)
}

func TestGetReturnsSnapshotNotLiveReference(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("posts/p1", map[string]any{"content": "original"}))

	snapshot := s.Get("posts/p1").(map[string]any)
	snapshot["content"] = "mutated"

	require.Equal(t, "original", s.Get("posts/p1/content"))
}

func TestOnWriteReceivesBeforeAndAfter(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("posts/p1/content", "old"))

	var events []Event
	s.OnWrite(func(ev Event) { events = append(events, ev) })

	require.NoError(t, s.Set("posts/p1/content", "new"))
	require.Len(t, events, 1)
	require.Equal(t, "posts/p1/content", events[0].Path)
	require.Equal(t, "old", events[0].Before)
	require.Equal(t, "new", events[0].After)

	require.NoError(t, s.Delete("posts/p1"))
	require.Len(t, events, 2)
	require.Nil(t, events[1].After)
	require.Equal(t, map[string]any{"content": "new"}, events[1].Before)
}

func TestDecode(t *testing.T) {
	t.Parallel()

	s := New()
	require.NoError(t, s.Set("posts/p1", map[string]any{
		"authorId":   "u1",
		"content":    "hello",
		"replyCount": 2,
	}))

	var out struct {
		AuthorID   string `json:"authorId"`
		Content    string `json:"content"`
		ReplyCount int    `json:"replyCount"`
	}
	require.NoError(t, Decode(s.Get("posts/p1"), &out))
	require.Equal(t, "u1", out.AuthorID)
	require.Equal(t, 2, out.ReplyCount)
}
