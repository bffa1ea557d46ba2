package repositories

import (
	"context"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// InteractionRepository defines the interface for stance-score writes. Both
// sides of the relationship (the user's pointer and the post's interactions
// map) are written in one atomic multi-path update, never as two separate
// writes.
type InteractionRepository interface {
	SetScore(ctx context.Context, postID, userID string, score *int, parentID string) error
	GetInteractions(postID, parentID string) (map[string]int, error)
	SubscribeToInteractions(postID, parentID string, cb func(map[string]int)) func()
}

// TreeInteractionRepository implements InteractionRepository on the realtime
// tree store.
type TreeInteractionRepository struct {
	store *store.Store
}

// NewTreeInteractionRepository creates a new TreeInteractionRepository.
func NewTreeInteractionRepository(s *store.Store) *TreeInteractionRepository {
	return &TreeInteractionRepository{store: s}
}

// SetScore writes (or, with a nil score, clears) userID's stance on a post.
// parentID names the parent when the target is a reply.
func (r *TreeInteractionRepository) SetScore(_ context.Context, postID, userID string, score *int, parentID string) error {
	pointerPath := store.Join("users", userID, "postInteractions", postID)
	targetPath := store.Join(postPath(parentID, postID), "interactions", userID)

	if score == nil {
		return r.store.Update(map[string]any{
			pointerPath: nil,
			targetPath:  nil,
		})
	}
	return r.store.Update(map[string]any{
		pointerPath: models.InteractionRef{Score: *score, ParentID: parentID},
		targetPath:  *score,
	})
}

// GetInteractions returns the current uid→score map for a post.
func (r *TreeInteractionRepository) GetInteractions(postID, parentID string) (map[string]int, error) {
	node := r.store.Get(store.Join(postPath(parentID, postID), "interactions"))
	return decodeScores(node), nil
}

// SubscribeToInteractions delivers the post's uid→score map on subscribe and
// on every change.
func (r *TreeInteractionRepository) SubscribeToInteractions(postID, parentID string, cb func(map[string]int)) func() {
	return r.store.Subscribe(store.Join(postPath(parentID, postID), "interactions"), func(snapshot any) {
		cb(decodeScores(snapshot))
	})
}

func decodeScores(node any) map[string]int {
	raw, _ := node.(map[string]any)
	scores := make(map[string]int, len(raw))
	for uid, v := range raw {
		if f, ok := v.(float64); ok {
			scores[uid] = int(f)
		}
	}
	return scores
}
