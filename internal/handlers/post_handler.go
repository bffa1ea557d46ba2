package handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/n-crespo/theopendissent/backend/internal/interactions"
	"github.com/n-crespo/theopendissent/backend/internal/middleware"
	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/repositories"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// PostHandler handles HTTP requests for posts, replies and stance scores.
// It only writes author-owned fields; replyCount and the interaction mirrors
// are maintained by the trigger pipeline. Stance writes go through the
// reconciliation store, which applies them optimistically and debounces the
// persistence write.
type PostHandler struct {
	postRepository        repositories.PostRepository
	interactionRepository repositories.InteractionRepository
	interactionStore      *interactions.Store
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(postRepo repositories.PostRepository, interactionRepo repositories.InteractionRepository, interactionStore *interactions.Store) *PostHandler {
	return &PostHandler{
		postRepository:        postRepo,
		interactionRepository: interactionRepo,
		interactionStore:      interactionStore,
	}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.PUT("/posts/:id", h.UpdatePost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.POST("/posts/:id/replies", h.CreateReply)
	g.GET("/posts/:parentId/replies/:id", h.GetReply)
	g.PUT("/posts/:parentId/replies/:id", h.UpdateReply)
	g.DELETE("/posts/:parentId/replies/:id", h.DeleteReply)
	g.PUT("/posts/:id/interactions", h.SetInteraction)
	g.GET("/posts/:id/interactions", h.GetInteractions)
}

// CreatePost creates a new top-level post
func (h *PostHandler) CreatePost(c echo.Context) error {
	uid := middleware.UIDFromContext(c)

	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	post, err := h.postRepository.CreatePost(uid, req.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusCreated, post)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	post, err := h.postRepository.GetPost(c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, post)
}

// UpdatePost edits a post's content. Only the author may edit.
func (h *PostHandler) UpdatePost(c echo.Context) error {
	return h.updateContent(c, "", c.Param("id"))
}

// DeletePost removes a post. Only the author may delete; the trigger
// pipeline cascades the removal to replies and interaction mirrors.
func (h *PostHandler) DeletePost(c echo.Context) error {
	return h.delete(c, "", c.Param("id"))
}

// CreateReply creates a reply under a post. An optional stance score is
// applied in the same request.
func (h *PostHandler) CreateReply(c echo.Context) error {
	uid := middleware.UIDFromContext(c)
	parentID := c.Param("id")

	var req models.CreateReplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	reply, err := h.postRepository.CreateReply(parentID, uid, req.Content)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Parent post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if req.Score != nil {
		h.interactionStore.SetScore(parentID, uid, req.Score, "")
	}

	return c.JSON(http.StatusCreated, reply)
}

// GetReply retrieves a reply by parent and ID
func (h *PostHandler) GetReply(c echo.Context) error {
	reply, err := h.postRepository.GetReply(c.Param("parentId"), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Reply not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, reply)
}

// UpdateReply edits a reply's content. Only the author may edit.
func (h *PostHandler) UpdateReply(c echo.Context) error {
	return h.updateContent(c, c.Param("parentId"), c.Param("id"))
}

// DeleteReply removes a reply. Only the author may delete.
func (h *PostHandler) DeleteReply(c echo.Context) error {
	return h.delete(c, c.Param("parentId"), c.Param("id"))
}

// SetInteraction writes (or, with a null score, clears) the caller's stance
// on a post. Use the parentId field when the target is a reply. The write is
// optimistic: it lands in the reconciliation store immediately and reaches
// the tree after the debounce window, so rapid re-taps collapse into one
// persistence write.
func (h *PostHandler) SetInteraction(c echo.Context) error {
	uid := middleware.UIDFromContext(c)
	postID := c.Param("id")

	var req models.InteractionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.interactionStore.SetScore(postID, uid, req.Score, req.ParentID)

	return c.NoContent(http.StatusNoContent)
}

// GetInteractions returns the post's uid-to-score map
func (h *PostHandler) GetInteractions(c echo.Context) error {
	scores, err := h.interactionRepository.GetInteractions(c.Param("id"), c.QueryParam("parentId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, scores)
}

func (h *PostHandler) updateContent(c echo.Context, parentID, id string) error {
	uid := middleware.UIDFromContext(c)

	var req models.UpdatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.requireAuthor(parentID, id, uid); err != nil {
		return err
	}

	if err := h.postRepository.UpdateContent(parentID, id, req.Content); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PostHandler) delete(c echo.Context, parentID, id string) error {
	uid := middleware.UIDFromContext(c)

	if err := h.requireAuthor(parentID, id, uid); err != nil {
		return err
	}

	if err := h.postRepository.Delete(parentID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *PostHandler) requireAuthor(parentID, id, uid string) error {
	var post *models.Post
	var err error
	if parentID != "" {
		post, err = h.postRepository.GetReply(parentID, id)
	} else {
		post, err = h.postRepository.GetPost(id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Post not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if post.AuthorID != uid {
		return echo.NewHTTPError(http.StatusForbidden, "Only the author may modify this post")
	}
	return nil
}
