package triggers

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/n-crespo/theopendissent/backend/internal/store"
	"github.com/stretchr/testify/require"
)

func TestReplyDelta(t *testing.T) {
	t.Parallel()

	node := map[string]any{"authorId": "u1", "content": "hi"}

	tests := []struct {
		name          string
		before, after any
		want          int
	}{
		{"created", nil, node, 1},
		{"removed", node, nil, -1},
		{"edited", node, map[string]any{"authorId": "u1", "content": "edited"}, 0},
		{"spurious", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, replyDelta(tt.before, tt.after))
		})
	}
}

func replyEvent(parentID, replyID string, before, after any) Invocation {
	return Invocation{
		Event:  store.Event{Path: store.Join("replies", parentID, replyID), Before: before, After: after},
		Params: map[string]string{"parentID": parentID, "replyID": replyID},
	}
}

func TestReplyCounterIncrementsOnCreate(t *testing.T) {
	t.Parallel()

	s := store.New()
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "a", "replyCount": 0}))
	reply := map[string]any{"authorId": "b", "content": "reply"}
	require.NoError(t, s.Set("replies/p1/r1", reply))

	counter := NewReplyCounter(s)
	inv := replyEvent("p1", "r1", nil, reply)
	require.NoError(t, counter(context.Background(), inv))
	require.Equal(t, float64(1), s.Get("posts/p1/replyCount"))

	// Redelivery with the identical before/after pair must not double-count.
	require.NoError(t, counter(context.Background(), inv))
	require.Equal(t, float64(1), s.Get("posts/p1/replyCount"))
}

func TestReplyCounterFloorsAtZero(t *testing.T) {
	t.Parallel()

	s := store.New()
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "a", "replyCount": 0}))
	reply := map[string]any{"authorId": "b", "content": "reply"}

	counter := NewReplyCounter(s)

	// A removal delivered before (or without) its matching creation.
	inv := replyEvent("p1", "r1", reply, nil)
	require.NoError(t, counter(context.Background(), inv))
	require.Equal(t, float64(0), s.Get("posts/p1/replyCount"))

	require.NoError(t, counter(context.Background(), inv))
	require.Equal(t, float64(0), s.Get("posts/p1/replyCount"))
}

func TestReplyCounterIgnoresEditsAndSubWrites(t *testing.T) {
	t.Parallel()

	s := store.New()
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "a", "replyCount": 3}))

	counter := NewReplyCounter(s)

	edit := replyEvent("p1", "r1",
		map[string]any{"content": "old"}, map[string]any{"content": "new"})
	require.NoError(t, counter(context.Background(), edit))

	sub := replyEvent("p1", "r1", "old", "new")
	sub.SubPath = "content"
	require.NoError(t, counter(context.Background(), sub))

	require.Equal(t, float64(3), s.Get("posts/p1/replyCount"))
}

func TestReplyCounterConcurrentCreations(t *testing.T) {
	t.Parallel()

	s := store.New()
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "a", "replyCount": 0}))

	p := NewPipeline(s)
	p.Handle("reply-counter", "replies/{parentID}/{replyID}", NewReplyCounter(s))
	p.Start(8)
	defer p.Stop()

	// Replies land on distinct paths, so their counter handlers run on
	// different workers concurrently. The final count must still match the
	// child set exactly.
	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			path := store.Join("replies", "p1", fmt.Sprintf("r%d", i))
			_ = s.Set(path, map[string]any{"authorId": "b", "content": "reply"})
		}(i)
	}
	wg.Wait()
	p.Drain()

	require.Equal(t, float64(n), s.Get("posts/p1/replyCount"))
}

func TestReplyCounterSkipsMissingParent(t *testing.T) {
	t.Parallel()

	s := store.New()
	counter := NewReplyCounter(s)

	inv := replyEvent("gone", "r1", nil, map[string]any{"authorId": "b"})
	require.NoError(t, counter(context.Background(), inv), "missing parent is a benign skip, not an error")
	require.Nil(t, s.Get("posts/gone"))
}
