package notifications

import (
	"context"
	"log"
	"sync"

	"github.com/n-crespo/theopendissent/backend/internal/models"
	"github.com/samber/lo"
)

// Repository is the notification surface of the backing store.
type Repository interface {
	Subscribe(uid string, cb func([]models.Notification)) func()
	MarkAsRead(ctx context.Context, uid, id string) error
	Delete(ctx context.Context, uid string, ids []string) error
}

// Aggregator mirrors a user's notification list into an observable cache
// with optimistic mark-read and delete. Like the interaction store, a
// failed persistence call is logged and the optimistic state stands; the
// next live push reconciles. One shared instance serves the process;
// Init/Dispose bracket a signed-in session.
type Aggregator struct {
	mu          sync.Mutex
	repo        Repository
	userID      string
	list        []models.Notification
	unsubscribe func()
	subs        map[int]func([]models.Notification)
	nextSub     int
}

// NewAggregator creates an Aggregator over repo.
func NewAggregator(repo Repository) *Aggregator {
	return &Aggregator{repo: repo, subs: map[int]func([]models.Notification){}}
}

// Init opens the live subscription for userID, tearing down any previous
// session's subscription first (user switch).
func (a *Aggregator) Init(userID string) {
	a.Dispose()

	a.mu.Lock()
	a.userID = userID
	a.mu.Unlock()

	// Every push fully replaces the cached list.
	unsubscribe := a.repo.Subscribe(userID, func(list []models.Notification) {
		a.mu.Lock()
		a.list = list
		notify := a.collect()
		a.mu.Unlock()
		notify()
	})

	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()
}

// Get returns a snapshot of the cached notification list.
func (a *Aggregator) Get() []models.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Notification, len(a.list))
	copy(out, a.list)
	return out
}

// Subscribe registers cb, invoking it once immediately with the current
// snapshot. The returned function unsubscribes.
func (a *Aggregator) Subscribe(cb func([]models.Notification)) func() {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = cb
	snapshot := make([]models.Notification, len(a.list))
	copy(snapshot, a.list)
	a.mu.Unlock()

	cb(snapshot)

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}

// MarkAsRead optimistically flips the record's read flag, notifies
// subscribers, then issues the persistence call.
func (a *Aggregator) MarkAsRead(ctx context.Context, userID, id string) {
	a.mu.Lock()
	for i := range a.list {
		if a.list[i].ID == id {
			a.list[i].IsRead = true
		}
	}
	notify := a.collect()
	a.mu.Unlock()
	notify()

	if err := a.repo.MarkAsRead(ctx, userID, id); err != nil {
		log.Printf("notifications: mark-as-read for %s failed (keeping optimistic state): %v", id, err)
	}
}

// Remove optimistically filters the given ids out of the local list,
// notifies subscribers, then issues a batch delete.
func (a *Aggregator) Remove(ctx context.Context, userID string, ids []string) {
	a.mu.Lock()
	a.list = lo.Filter(a.list, func(note models.Notification, _ int) bool {
		return !lo.Contains(ids, note.ID)
	})
	notify := a.collect()
	a.mu.Unlock()
	notify()

	if err := a.repo.Delete(ctx, userID, ids); err != nil {
		log.Printf("notifications: deleting %d records failed (keeping optimistic state): %v", len(ids), err)
	}
}

// Dispose cancels the subscription and clears local state (sign-out). The
// aggregator is ready for a fresh Init afterwards.
func (a *Aggregator) Dispose() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.userID = ""
	a.list = nil
	notify := a.collect()
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	notify()
}

// collect snapshots subscribers and state under the lock; the returned
// closure notifies after the lock is released.
func (a *Aggregator) collect() func() {
	callbacks := make([]func([]models.Notification), 0, len(a.subs))
	for _, cb := range a.subs {
		callbacks = append(callbacks, cb)
	}
	snapshot := make([]models.Notification, len(a.list))
	copy(snapshot, a.list)
	return func() {
		for _, cb := range callbacks {
			cb(snapshot)
		}
	}
}
