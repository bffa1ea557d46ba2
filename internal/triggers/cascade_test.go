package triggers

import (
	"testing"

	"github.com/n-crespo/theopendissent/backend/internal/store"
	"github.com/stretchr/testify/require"
)

func TestMirrorCleanup(t *testing.T) {
	t.Parallel()

	before := map[string]any{
		"authorId":     "a",
		"interactions": map[string]any{"u1": float64(3), "u2": float64(-1)},
	}

	writes := mirrorCleanup(before, "p1")
	require.Equal(t, map[string]any{
		"users/u1/postInteractions/p1": nil,
		"users/u2/postInteractions/p1": nil,
	}, writes)

	require.Empty(t, mirrorCleanup(map[string]any{"authorId": "a"}, "p1"))
	require.Empty(t, mirrorCleanup(nil, "p1"))
}

// Cascade completeness: deleting a top-level post clears every reply, every
// interacting user's pointers to the post and its replies, and the reply
// authors' own reply pointers.
func TestPostDeletionCascade(t *testing.T) {
	s := store.New()
	p := NewPipeline(s)
	RegisterAll(p, s, nil)
	p.Start(4)
	defer p.Stop()

	require.NoError(t, s.Set("posts/p1", map[string]any{
		"authorId":     "alice",
		"content":      "topic",
		"replyCount":   2,
		"interactions": map[string]any{"bob": 4, "carol": -3},
	}))
	require.NoError(t, s.Update(map[string]any{
		"replies/p1/r1": map[string]any{
			"authorId":     "bob",
			"content":      "first reply",
			"parentId":     "p1",
			"interactions": map[string]any{"carol": 2},
		},
		"users/bob/replies/r1": "p1",
	}))
	require.NoError(t, s.Update(map[string]any{
		"replies/p1/r2": map[string]any{
			"authorId": "carol",
			"content":  "second reply",
			"parentId": "p1",
		},
		"users/carol/replies/r2": "p1",
	}))
	require.NoError(t, s.Update(map[string]any{
		"users/bob/postInteractions/p1":   map[string]any{"score": 4},
		"users/carol/postInteractions/p1": map[string]any{"score": -3},
		"users/carol/postInteractions/r1": map[string]any{"score": 2, "parentId": "p1"},
	}))
	p.Drain()

	require.NoError(t, s.Delete("posts/p1"))
	p.Drain()

	require.Nil(t, s.Get("replies/p1"), "no residual reply nodes")
	require.Nil(t, s.Get("users/bob/postInteractions"), "bob's mirrors cleared")
	require.Nil(t, s.Get("users/carol/postInteractions"), "carol's mirrors cleared")
	require.Nil(t, s.Get("users/bob/replies"), "bob's reply pointer cleared")
	require.Nil(t, s.Get("users/carol/replies"), "carol's reply pointer cleared")
}

func TestReplyDeletionClearsMirrorsAndAuthorPointer(t *testing.T) {
	s := store.New()
	p := NewPipeline(s)
	RegisterAll(p, s, nil)
	p.Start(2)
	defer p.Stop()

	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "alice", "replyCount": 0}))
	require.NoError(t, s.Update(map[string]any{
		"replies/p1/r1": map[string]any{
			"authorId":     "bob",
			"content":      "reply",
			"parentId":     "p1",
			"interactions": map[string]any{"alice": 1},
		},
		"users/bob/replies/r1": "p1",
	}))
	require.NoError(t, s.Update(map[string]any{
		"users/alice/postInteractions/r1": map[string]any{"score": 1, "parentId": "p1"},
	}))
	p.Drain()
	require.Equal(t, float64(1), s.Get("posts/p1/replyCount"))

	require.NoError(t, s.Delete("replies/p1/r1"))
	p.Drain()

	require.Equal(t, float64(0), s.Get("posts/p1/replyCount"))
	require.Nil(t, s.Get("users/alice/postInteractions"))
	require.Nil(t, s.Get("users/bob/replies"))
}
