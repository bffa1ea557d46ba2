package repositories

import (
	"fmt"
	"sort"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// PostRepository defines the interface for post and reply operations on the
// realtime tree. Denormalized fields (replyCount, interaction mirrors) are
// owned by the trigger pipeline and never written here.
type PostRepository interface {
	CreatePost(authorID, content string) (*models.Post, error)
	CreateReply(parentID, authorID, content string) (*models.Post, error)
	GetPost(id string) (*models.Post, error)
	GetReply(parentID, id string) (*models.Post, error)
	UpdateContent(parentID, id, content string) error
	Delete(parentID, id string) error
	SubscribeToPost(id string, cb func(*models.Post)) func()
	SubscribeToReplies(parentID string, cb func([]models.Post)) func()
	SubscribeToFeed(limit int, cb func([]models.Post)) func()
}

// TreePostRepository implements PostRepository on the realtime tree store.
type TreePostRepository struct {
	store *store.Store
}

// NewTreePostRepository creates a new TreePostRepository.
func NewTreePostRepository(s *store.Store) *TreePostRepository {
	return &TreePostRepository{store: s}
}

func postPath(parentID, id string) string {
	if parentID != "" {
		return store.Join("replies", parentID, id)
	}
	return store.Join("posts", id)
}

// CreatePost creates a new top-level post with a server-assigned id and
// timestamp.
func (r *TreePostRepository) CreatePost(authorID, content string) (*models.Post, error) {
	post := &models.Post{
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: r.store.Now(),
	}
	id := r.store.NewID()
	if err := r.store.Set(store.Join("posts", id), post); err != nil {
		return nil, err
	}
	post.ID = id
	return post, nil
}

// CreateReply creates a reply under parentID. The reply node and the
// author's reply pointer are written in one atomic update.
func (r *TreePostRepository) CreateReply(parentID, authorID, content string) (*models.Post, error) {
	if _, err := r.GetPost(parentID); err != nil {
		return nil, fmt.Errorf("parent post: %w", err)
	}
	reply := &models.Post{
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: r.store.Now(),
		ParentID:  parentID,
	}
	id := r.store.NewID()
	err := r.store.Update(map[string]any{
		store.Join("replies", parentID, id):          reply,
		store.Join("users", authorID, "replies", id): parentID,
	})
	if err != nil {
		return nil, err
	}
	reply.ID = id
	return reply, nil
}

// GetPost retrieves a top-level post by id.
func (r *TreePostRepository) GetPost(id string) (*models.Post, error) {
	return r.decode(store.Join("posts", id), id)
}

// GetReply retrieves a reply by parent and id.
func (r *TreePostRepository) GetReply(parentID, id string) (*models.Post, error) {
	return r.decode(store.Join("replies", parentID, id), id)
}

func (r *TreePostRepository) decode(path, id string) (*models.Post, error) {
	node := r.store.Get(path)
	if !store.Exists(node) {
		return nil, store.ErrNotFound
	}
	var post models.Post
	if err := store.Decode(node, &post); err != nil {
		return nil, err
	}
	post.ID = id
	return &post, nil
}

// UpdateContent edits a post's (or reply's, when parentID is set) content
// and stamps editedAt.
func (r *TreePostRepository) UpdateContent(parentID, id, content string) error {
	path := postPath(parentID, id)
	if !store.Exists(r.store.Get(path)) {
		return store.ErrNotFound
	}
	return r.store.Update(map[string]any{
		store.Join(path, "content"):  content,
		store.Join(path, "editedAt"): r.store.Now(),
	})
}

// Delete removes a post or reply. Cascading cleanup of replies and
// interaction mirrors is the trigger pipeline's job.
func (r *TreePostRepository) Delete(parentID, id string) error {
	path := postPath(parentID, id)
	if !store.Exists(r.store.Get(path)) {
		return store.ErrNotFound
	}
	return r.store.Delete(path)
}

// SubscribeToPost delivers the post (nil when absent) on subscribe and on
// every change.
func (r *TreePostRepository) SubscribeToPost(id string, cb func(*models.Post)) func() {
	return r.store.Subscribe(store.Join("posts", id), func(snapshot any) {
		if !store.Exists(snapshot) {
			cb(nil)
			return
		}
		var post models.Post
		if err := store.Decode(snapshot, &post); err != nil {
			return
		}
		post.ID = id
		cb(&post)
	})
}

// SubscribeToReplies delivers the replies under parentID, oldest first.
func (r *TreePostRepository) SubscribeToReplies(parentID string, cb func([]models.Post)) func() {
	return r.store.Subscribe(store.Join("replies", parentID), func(snapshot any) {
		replies := decodePosts(snapshot)
		sort.Slice(replies, func(i, j int) bool { return replies[i].CreatedAt < replies[j].CreatedAt })
		cb(replies)
	})
}

// SubscribeToFeed delivers the newest limit top-level posts, newest first.
func (r *TreePostRepository) SubscribeToFeed(limit int, cb func([]models.Post)) func() {
	return r.store.Subscribe("posts", func(snapshot any) {
		posts := decodePosts(snapshot)
		sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt > posts[j].CreatedAt })
		if limit > 0 && len(posts) > limit {
			posts = posts[:limit]
		}
		cb(posts)
	})
}

func decodePosts(snapshot any) []models.Post {
	nodes, _ := snapshot.(map[string]any)
	posts := make([]models.Post, 0, len(nodes))
	for id, node := range nodes {
		var post models.Post
		if err := store.Decode(node, &post); err != nil {
			continue
		}
		post.ID = id
		posts = append(posts, post)
	}
	return posts
}
