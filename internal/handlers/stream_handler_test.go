package handlers

import (
	"sync"
	"testing"
	"time"

	"github.com/n-crespo/theopendissent/backend/internal/interactions"
	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/notifications"
	"github.com/n-crespo/theopendissent/backend/internal/repositories"
	"github.com/n-crespo/theopendissent/backend/internal/store"
	"github.com/stretchr/testify/require"
)

func scorePtr(v int) *int { return &v }

func TestInteractionStreamServesMergedView(t *testing.T) {
	t.Parallel()

	s := store.New()
	interactionRepo := repositories.NewTreeInteractionRepository(s)
	// Debounce held open so the optimistic write stays unpersisted.
	interactionStore := interactions.NewStore(interactionRepo, interactions.WithDebounce(time.Hour))
	h := NewStreamHandler(
		repositories.NewTreePostRepository(s),
		interactionRepo,
		repositories.NewTreeUserRepository(s),
		repositories.NewTreeNotificationRepository(s),
		interactionStore,
	)

	require.NoError(t, s.Set("posts/p1/interactions/other", 2))

	var mu sync.Mutex
	var last map[string]int
	unsubscribe := h.subscribeInteractions("p1", "", func(v any) {
		mu.Lock()
		defer mu.Unlock()
		last, _ = v.(map[string]int)
	})
	defer unsubscribe()

	snapshot := func() map[string]int {
		mu.Lock()
		defer mu.Unlock()
		return last
	}

	// Initial snapshot comes from the tree, through the store.
	require.Equal(t, map[string]int{"other": 2}, snapshot())

	// An optimistic write is pushed without touching the tree.
	interactionStore.SetScore("p1", "me", scorePtr(5), "")
	require.Equal(t, map[string]int{"other": 2, "me": 5}, snapshot())
	require.Nil(t, s.Get("posts/p1/interactions/me"))

	// A tree write for another user merges in; the locked local entry stays.
	require.NoError(t, s.Set("posts/p1/interactions/third", 1))
	require.Equal(t, map[string]int{"other": 2, "me": 5, "third": 1}, snapshot())
}

func TestNotificationAggregatorServesTreePushes(t *testing.T) {
	t.Parallel()

	s := store.New()
	aggregator := notifications.NewAggregator(repositories.NewTreeNotificationRepository(s))
	aggregator.Init("u1")
	defer aggregator.Dispose()

	var mu sync.Mutex
	var last []models.Notification
	unsubscribe := aggregator.Subscribe(func(notes []models.Notification) {
		mu.Lock()
		defer mu.Unlock()
		last = notes
	})
	defer unsubscribe()

	require.NoError(t, s.Set("notifications/u1/reply-p1", models.Notification{
		Type:      models.NotificationTypeReply,
		Count:     1,
		UpdatedAt: 100,
	}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, last, 1)
	require.Equal(t, "reply-p1", last[0].ID)
	require.Equal(t, 1, last[0].Count)
}
