package repositories

import (
	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// UserRepository defines the interface for user profile operations.
type UserRepository interface {
	CreateProfile(uid string, profile models.Profile) error
	GetProfile(uid string) (*models.Profile, error)
	SubscribeToUserCounts(uid string, cb func(models.UserCounts)) func()
}

// TreeUserRepository implements UserRepository on the realtime tree store.
type TreeUserRepository struct {
	store *store.Store
}

// NewTreeUserRepository creates a new TreeUserRepository.
func NewTreeUserRepository(s *store.Store) *TreeUserRepository {
	return &TreeUserRepository{store: s}
}

// CreateProfile writes the initial profile record for a new account.
func (r *TreeUserRepository) CreateProfile(uid string, profile models.Profile) error {
	return r.store.Set(store.Join("users", uid, "profile"), profile)
}

// GetProfile retrieves a user's profile.
func (r *TreeUserRepository) GetProfile(uid string) (*models.Profile, error) {
	node := r.store.Get(store.Join("users", uid, "profile"))
	if !store.Exists(node) {
		return nil, store.ErrNotFound
	}
	var profile models.Profile
	if err := store.Decode(node, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// SubscribeToUserCounts delivers the user's reply and interaction counts on
// subscribe and whenever their mirrors change.
func (r *TreeUserRepository) SubscribeToUserCounts(uid string, cb func(models.UserCounts)) func() {
	return r.store.Subscribe(store.Join("users", uid), func(snapshot any) {
		var node models.UserNode
		if store.Exists(snapshot) {
			if err := store.Decode(snapshot, &node); err != nil {
				return
			}
		}
		cb(models.UserCounts{
			Replies:      len(node.Replies),
			Interactions: len(node.PostInteractions),
		})
	})
}
