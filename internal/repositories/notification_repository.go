package repositories

import (
	"context"
	"sort"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/n-crespo/theopendissent/backend/internal/store"
)

// NotificationRepository defines the interface for notification operations.
// Records are created by the trigger pipeline; clients only read, mark read
// and delete.
type NotificationRepository interface {
	Subscribe(uid string, cb func([]models.Notification)) func()
	MarkAsRead(ctx context.Context, uid, id string) error
	Delete(ctx context.Context, uid string, ids []string) error
}

// TreeNotificationRepository implements NotificationRepository on the
// realtime tree store.
type TreeNotificationRepository struct {
	store *store.Store
}

// NewTreeNotificationRepository creates a new TreeNotificationRepository.
func NewTreeNotificationRepository(s *store.Store) *TreeNotificationRepository {
	return &TreeNotificationRepository{store: s}
}

// Subscribe delivers the user's notifications, most recently updated first.
func (r *TreeNotificationRepository) Subscribe(uid string, cb func([]models.Notification)) func() {
	return r.store.Subscribe(store.Join("notifications", uid), func(snapshot any) {
		nodes, _ := snapshot.(map[string]any)
		notes := make([]models.Notification, 0, len(nodes))
		for id, node := range nodes {
			var note models.Notification
			if err := store.Decode(node, &note); err != nil {
				continue
			}
			note.ID = id
			notes = append(notes, note)
		}
		sort.Slice(notes, func(i, j int) bool { return notes[i].UpdatedAt > notes[j].UpdatedAt })
		cb(notes)
	})
}

// MarkAsRead flips a notification's read flag.
func (r *TreeNotificationRepository) MarkAsRead(_ context.Context, uid, id string) error {
	path := store.Join("notifications", uid, id)
	if !store.Exists(r.store.Get(path)) {
		return store.ErrNotFound
	}
	return r.store.Set(store.Join(path, "isRead"), true)
}

// Delete removes the given notification records in one batch.
func (r *TreeNotificationRepository) Delete(_ context.Context, uid string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	writes := make(map[string]any, len(ids))
	for _, id := range ids {
		writes[store.Join("notifications", uid, id)] = nil
	}
	return r.store.Update(writes)
}
