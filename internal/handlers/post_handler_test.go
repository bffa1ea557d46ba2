package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/n-crespo/theopendissent/backend/internal/interactions"
	"github.com/n-crespo/theopendissent/backend/internal/repositories"
	"github.com/n-crespo/theopendissent/backend/internal/store"
	"github.com/stretchr/testify/require"
)

func newInteractionFixture() (*PostHandler, *store.Store, *interactions.Store) {
	s := store.New()
	postRepo := repositories.NewTreePostRepository(s)
	interactionRepo := repositories.NewTreeInteractionRepository(s)
	interactionStore := interactions.NewStore(interactionRepo, interactions.WithDebounce(10*time.Millisecond))
	return NewPostHandler(postRepo, interactionRepo, interactionStore), s, interactionStore
}

func jsonContext(e *echo.Echo, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSetInteractionIsOptimisticAndPersists(t *testing.T) {
	t.Parallel()

	h, s, interactionStore := newInteractionFixture()
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "a", "content": "x"}))

	c, rec := jsonContext(echo.New(), http.MethodPut, `{"score":4}`)
	c.SetParamNames("id")
	c.SetParamValues("p1")
	c.Set("uid", "u1")

	require.NoError(t, h.SetInteraction(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	// Visible in the reconciliation store before anything has persisted.
	require.Equal(t, map[string]int{"u1": 4}, interactionStore.Get("p1"))

	// After the debounce window both sides of the relationship are in the
	// tree, written by one atomic update.
	require.Eventually(t, func() bool {
		return s.Get("posts/p1/interactions/u1") == float64(4)
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, float64(4), s.Get("users/u1/postInteractions/p1/score"))
}

func TestSetInteractionNullScoreClears(t *testing.T) {
	t.Parallel()

	h, s, interactionStore := newInteractionFixture()
	require.NoError(t, s.Set("posts/p1", map[string]any{"authorId": "a", "content": "x"}))
	require.NoError(t, s.Set("posts/p1/interactions/u1", 3))
	require.NoError(t, s.Set("users/u1/postInteractions/p1", map[string]any{"score": 3}))
	interactionStore.SyncFromServer("p1", map[string]int{"u1": 3})

	c, rec := jsonContext(echo.New(), http.MethodPut, `{"score":null}`)
	c.SetParamNames("id")
	c.SetParamValues("p1")
	c.Set("uid", "u1")

	require.NoError(t, h.SetInteraction(c))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, interactionStore.Get("p1"))

	require.Eventually(t, func() bool {
		return s.Get("posts/p1/interactions/u1") == nil
	}, time.Second, 5*time.Millisecond)
	require.Nil(t, s.Get("users/u1/postInteractions/p1"))
}
