package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/n-crespo/theopendissent/backend/internal/interactions"
	"github.com/n-crespo/theopendissent/backend/internal/middleware"
	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/notifications"
	"github.com/n-crespo/theopendissent/backend/internal/repositories"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler serves live subscriptions over WebSocket. Every stream sends
// one full snapshot on connect and again on every change, so a client is
// never behind after subscribing.
type StreamHandler struct {
	postRepository         repositories.PostRepository
	interactionRepository  repositories.InteractionRepository
	userRepository         repositories.UserRepository
	notificationRepository repositories.NotificationRepository
	interactionStore       *interactions.Store
}

// NewStreamHandler creates a new StreamHandler
func NewStreamHandler(
	postRepo repositories.PostRepository,
	interactionRepo repositories.InteractionRepository,
	userRepo repositories.UserRepository,
	notifRepo repositories.NotificationRepository,
	interactionStore *interactions.Store,
) *StreamHandler {
	return &StreamHandler{
		postRepository:         postRepo,
		interactionRepository:  interactionRepo,
		userRepository:         userRepo,
		notificationRepository: notifRepo,
		interactionStore:       interactionStore,
	}
}

// RegisterStreamRoutes registers WebSocket routes
func (h *StreamHandler) RegisterStreamRoutes(g *echo.Group) {
	g.GET("/ws/feed", h.StreamFeed)
	g.GET("/ws/posts/:id", h.StreamPost)
	g.GET("/ws/posts/:id/replies", h.StreamReplies)
	g.GET("/ws/posts/:id/interactions", h.StreamInteractions)
	g.GET("/ws/users/:uid/counts", h.StreamUserCounts)
	g.GET("/ws/notifications", h.StreamNotifications)
}

// StreamFeed pushes the newest top-level posts, newest first
func (h *StreamHandler) StreamFeed(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return h.stream(c, func(send func(any)) func() {
		return h.postRepository.SubscribeToFeed(limit, func(posts []models.Post) { send(posts) })
	})
}

// StreamPost pushes a single post's node, null after deletion
func (h *StreamHandler) StreamPost(c echo.Context) error {
	id := c.Param("id")
	return h.stream(c, func(send func(any)) func() {
		return h.postRepository.SubscribeToPost(id, func(post *models.Post) { send(post) })
	})
}

// StreamReplies pushes a post's replies, oldest first
func (h *StreamHandler) StreamReplies(c echo.Context) error {
	id := c.Param("id")
	return h.stream(c, func(send func(any)) func() {
		return h.postRepository.SubscribeToReplies(id, func(replies []models.Post) { send(replies) })
	})
}

// StreamInteractions pushes a post's uid-to-score map. Use ?parentId= when
// the target is a reply. The stream goes through the reconciliation store,
// so optimistic writes are visible before they persist and tree echoes are
// merged against active locks.
func (h *StreamHandler) StreamInteractions(c echo.Context) error {
	id := c.Param("id")
	parentID := c.QueryParam("parentId")
	return h.stream(c, func(send func(any)) func() {
		return h.subscribeInteractions(id, parentID, send)
	})
}

// subscribeInteractions bridges the tree's interaction map into the
// reconciliation store and subscribes the client to the store's merged view.
// Tree pushes feed SyncFromServer; the store decides what subscribers see.
func (h *StreamHandler) subscribeInteractions(postID, parentID string, send func(any)) func() {
	serverSub := h.interactionRepository.SubscribeToInteractions(postID, parentID, func(scores map[string]int) {
		h.interactionStore.SyncFromServer(postID, scores)
	})
	clientSub := h.interactionStore.Subscribe(postID, func(scores map[string]int) { send(scores) })
	return func() {
		clientSub()
		serverSub()
	}
}

// StreamUserCounts pushes a user's reply and interaction counts
func (h *StreamHandler) StreamUserCounts(c echo.Context) error {
	uid := c.Param("uid")
	return h.stream(c, func(send func(any)) func() {
		return h.userRepository.SubscribeToUserCounts(uid, func(counts models.UserCounts) { send(counts) })
	})
}

// StreamNotifications pushes the caller's notifications, most recently
// updated first. Each connection gets its own aggregator, bracketed by
// Init/Dispose for the life of the stream.
func (h *StreamHandler) StreamNotifications(c echo.Context) error {
	uid := middleware.UIDFromContext(c)
	aggregator := notifications.NewAggregator(h.notificationRepository)
	aggregator.Init(uid)
	defer aggregator.Dispose()
	return h.stream(c, func(send func(any)) func() {
		return aggregator.Subscribe(func(notes []models.Notification) { send(notes) })
	})
}

// stream upgrades the connection and bridges a store subscription onto it.
// Pushes are funneled through a channel so only one goroutine ever writes
// to the socket; the read loop exists to notice the client going away.
func (h *StreamHandler) stream(c echo.Context, subscribe func(send func(any)) func()) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	updates := make(chan any, 16)
	done := make(chan struct{})

	unsubscribe := subscribe(func(v any) {
		select {
		case updates <- v:
		case <-done:
		}
	})
	defer unsubscribe()

	go func() {
		// Discard inbound frames; a read error means the peer is gone.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				close(done)
				return
			}
		}
	}()

	for {
		select {
		case v := <-updates:
			if err := ws.WriteJSON(v); err != nil {
				log.Printf("stream: write failed, dropping client: %v", err)
				return nil
			}
		case <-done:
			return nil
		}
	}
}
