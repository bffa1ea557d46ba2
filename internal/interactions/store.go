package interactions

import (
	"context"
	"log"
	"maps"
	"sync"
	"time"
)

const (
	// DefaultLockWindow is how long a local optimistic write outranks
	// server echoes for the same (post, user).
	DefaultLockWindow = 2 * time.Second
	// DefaultDebounce is how long rapid SetScore calls for a post are
	// coalesced before one persistence write is issued.
	DefaultDebounce = 500 * time.Millisecond
)

// Persister issues the debounced persistence write to the backing store.
type Persister interface {
	SetScore(ctx context.Context, postID, userID string, score *int, parentID string) error
}

type lockKey struct {
	postID string
	userID string
}

type pendingWrite struct {
	userID   string
	score    *int
	parentID string
}

type subscriber struct {
	postID   string
	callback func(map[string]int)
}

// Store reconciles optimistic local interaction writes against
// authoritative server pushes. The caller's own change applies immediately
// and outranks server echoes until its lock deadline passes; other users'
// entries are always taken from the server. One shared instance serves the
// whole process; construct it at session start and inject it into consumers.
//
// The "lock" is deadline-based precedence, not mutual exclusion: it only
// decides whose value wins a merge.
type Store struct {
	mu      sync.Mutex
	posts   map[string]map[string]int
	locks   map[lockKey]time.Time
	timers  map[string]*time.Timer
	pending map[string]pendingWrite
	subs    map[int]*subscriber
	nextSub int

	persist    Persister
	lockWindow time.Duration
	debounce   time.Duration
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLockWindow overrides the optimistic lock window.
func WithLockWindow(d time.Duration) Option {
	return func(s *Store) { s.lockWindow = d }
}

// WithDebounce overrides the persistence debounce window.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithClock overrides the lock clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store persisting through p.
func NewStore(p Persister, opts ...Option) *Store {
	s := &Store{
		posts:      map[string]map[string]int{},
		locks:      map[lockKey]time.Time{},
		timers:     map[string]*time.Timer{},
		pending:    map[string]pendingWrite{},
		subs:       map[int]*subscriber{},
		persist:    p,
		lockWindow: DefaultLockWindow,
		debounce:   DefaultDebounce,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a snapshot of the best-known uid→score map for a post.
// Mutating the returned map does not affect the store.
func (s *Store) Get(postID string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.postMap(postID))
}

// Subscribe registers cb for a post's interaction map. The callback is
// invoked once immediately with the current snapshot, so new subscribers
// are never behind. The returned function unsubscribes; when a post's last
// subscriber leaves, its in-memory entry is discarded.
func (s *Store) Subscribe(postID string, cb func(map[string]int)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &subscriber{postID: postID, callback: cb}
	snapshot := maps.Clone(s.postMap(postID))
	s.mu.Unlock()

	cb(snapshot)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		for _, sub := range s.subs {
			if sub.postID == postID {
				return
			}
		}
		delete(s.posts, postID)
	}
}

// SetScore applies a local optimistic mutation: the entry is set (or, with
// a nil score, removed) immediately, subscribers are notified synchronously,
// the (post, user) lock is armed, and the debounce timer is (re)started so
// rapid repeated calls collapse into a single persistence write carrying
// the final value.
func (s *Store) SetScore(postID, userID string, score *int, parentID string) {
	s.mu.Lock()
	entries := s.postMap(postID)
	if score == nil {
		delete(entries, userID)
	} else {
		entries[userID] = *score
	}
	s.posts[postID] = entries

	s.locks[lockKey{postID, userID}] = s.now().Add(s.lockWindow)

	s.pending[postID] = pendingWrite{userID: userID, score: score, parentID: parentID}
	if timer, ok := s.timers[postID]; ok {
		timer.Stop()
	}
	s.timers[postID] = time.AfterFunc(s.debounce, func() { s.flush(postID) })

	notify := s.collect(postID)
	s.mu.Unlock()

	notify()
}

// SyncFromServer reconciles an authoritative push for a post. A writer whose
// lock is still active keeps their own local entry (or its absence); every
// other entry is taken from the server. Once a lock expires the server value
// wins. Duplicate echoes that change nothing are dropped without notifying
// subscribers.
func (s *Store) SyncFromServer(postID string, serverMap map[string]int) {
	s.mu.Lock()
	merged := maps.Clone(serverMap)
	if merged == nil {
		merged = map[string]int{}
	}

	for key, deadline := range s.locks {
		if key.postID != postID {
			continue
		}
		if s.now().Before(deadline) {
			if local, ok := s.postMap(postID)[key.userID]; ok {
				merged[key.userID] = local
			} else {
				delete(merged, key.userID)
			}
		} else {
			delete(s.locks, key)
		}
	}

	if maps.Equal(s.postMap(postID), merged) {
		s.mu.Unlock()
		return
	}
	s.posts[postID] = merged

	notify := s.collect(postID)
	s.mu.Unlock()

	notify()
}

// Close cancels all debounce timers and drops local state. In-flight
// persistence writes are not awaited.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for postID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, postID)
	}
	s.posts = map[string]map[string]int{}
	s.locks = map[lockKey]time.Time{}
	s.pending = map[string]pendingWrite{}
}

// flush issues the single persistence write for whatever value is pending
// when the debounce fires. A failure is logged and the optimistic state is
// left standing; the next server sync reconciles it.
func (s *Store) flush(postID string) {
	s.mu.Lock()
	write, ok := s.pending[postID]
	delete(s.pending, postID)
	delete(s.timers, postID)
	s.mu.Unlock()

	if !ok {
		return
	}
	if err := s.persist.SetScore(context.Background(), postID, write.userID, write.score, write.parentID); err != nil {
		log.Printf("interactions: persisting score for post %s failed (keeping optimistic state): %v", postID, err)
	}
}

// postMap returns the live entries map for a post, creating nothing.
func (s *Store) postMap(postID string) map[string]int {
	if entries, ok := s.posts[postID]; ok {
		return entries
	}
	return map[string]int{}
}

// collect snapshots the post's state and its subscribers under the lock and
// returns a closure that notifies them after the lock is released.
func (s *Store) collect(postID string) func() {
	var callbacks []func(map[string]int)
	for _, sub := range s.subs {
		if sub.postID == postID {
			callbacks = append(callbacks, sub.callback)
		}
	}
	snapshot := maps.Clone(s.postMap(postID))
	return func() {
		for _, cb := range callbacks {
			cb(maps.Clone(snapshot))
		}
	}
}
