package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a read targets an absent node.
var ErrNotFound = errors.New("node not found")

// Event describes a single committed write: the path it targeted and the
// node value before and after. A nil Before means the node did not exist,
// a nil After means it was removed.
type Event struct {
	Path   string
	Before any
	After  any
}

// Exists reports whether v holds a present node value. Empty maps count as
// absent, matching the tree's pruning of empty branches.
func Exists(v any) bool {
	if v == nil {
		return false
	}
	if m, ok := v.(map[string]any); ok {
		return len(m) > 0
	}
	return true
}

// Journal persists committed writes and replays them at boot.
type Journal interface {
	Append(path string, value any) error
	Replay(apply func(path string, value any) error) error
}

// Store is an in-process realtime document tree. Values are JSON-shaped
// (maps, strings, float64 numbers, bools). All writes to the tree are
// serialized under one lock, which gives the per-path write ordering the
// trigger pipeline relies on. Writes that leave the stored value unchanged
// commit nothing: no event, no journal record, no subscriber notification.
type Store struct {
	mu      sync.Mutex
	root    map[string]any
	subs    map[int]*subscription
	nextSub int
	hooks   []func(Event)
	journal Journal
	clock   func() time.Time
}

type subscription struct {
	segments []string
	callback func(any)
}

// Option configures a Store.
type Option func(*Store)

// WithJournal attaches a durable write journal.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithClock overrides the server clock, for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) { s.clock = clock }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		root:  map[string]any{},
		subs:  map[int]*subscription{},
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replays the journal into the tree. It must be called before any
// triggers or subscribers are attached; replayed writes emit no events.
func (s *Store) Load() error {
	if s.journal == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	err := s.journal.Replay(func(path string, value any) error {
		s.setNode(Split(path), value)
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("replaying journal: %w", err)
	}
	log.Printf("store: replayed %d journal records", count)
	return nil
}

// OnWrite registers a hook invoked once per committed write, after the
// store lock is released. The trigger pipeline attaches here.
func (s *Store) OnWrite(hook func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Now returns the server timestamp in unix milliseconds.
func (s *Store) Now() int64 {
	return s.clock().UnixMilli()
}

// NewID returns a fresh opaque node key.
func (s *Store) NewID() string {
	return uuid.NewString()
}

// Get returns a deep copy of the node at path, or nil if absent.
func (s *Store) Get(path string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopy(s.getNode(Split(path)))
}

// Set replaces the node at path with value. A nil value removes the node
// and its entire subtree.
func (s *Store) Set(path string, value any) error {
	return s.Update(map[string]any{path: value})
}

// Delete removes the node at path.
func (s *Store) Delete(path string) error {
	return s.Set(path, nil)
}

// Update applies all given path→value writes as one atomic operation:
// subscribers and triggers observe either none or all of them.
func (s *Store) Update(writes map[string]any) error {
	s.mu.Lock()
	events, notify := s.commit(writes)
	s.mu.Unlock()

	s.dispatch(events, notify)
	return nil
}

// Transaction atomically rewrites the node at path through fn. fn receives
// a deep copy of the current value (nil if absent) and returns the new
// value; returning an error aborts without writing.
func (s *Store) Transaction(path string, fn func(current any) (any, error)) error {
	s.mu.Lock()
	current := deepCopy(s.getNode(Split(path)))
	next, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	events, notify := s.commit(map[string]any{path: next})
	s.mu.Unlock()

	s.dispatch(events, notify)
	return nil
}

// TransactUpdate runs fn under the write lock: reads through get and the
// returned write-set commit as one atomic operation, so no other writer can
// interleave between them. fn must not call back into the store; returning
// an error aborts without writing.
func (s *Store) TransactUpdate(fn func(get func(path string) any) (map[string]any, error)) error {
	s.mu.Lock()
	get := func(path string) any {
		return deepCopy(s.getNode(Split(path)))
	}
	writes, err := fn(get)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	events, notify := s.commit(writes)
	s.mu.Unlock()

	s.dispatch(events, notify)
	return nil
}

// Subscribe registers cb for the node at path. The callback is invoked once
// immediately with the current snapshot, then again after every committed
// write that touches the node or its subtree. The returned function removes
// the subscription.
func (s *Store) Subscribe(path string, cb func(snapshot any)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &subscription{segments: Split(path), callback: cb}
	snapshot := deepCopy(s.getNode(Split(path)))
	s.mu.Unlock()

	cb(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// commit applies writes under the store lock and returns the resulting
// events plus the subscriber notifications to deliver. Unchanged values
// are skipped entirely.
func (s *Store) commit(writes map[string]any) ([]Event, []pendingNotify) {
	var events []Event
	for path, value := range writes {
		segments := Split(path)
		normalized, err := normalize(value)
		if err != nil {
			log.Printf("store: dropping unencodable write at %s: %v", path, err)
			continue
		}
		before := deepCopy(s.getNode(segments))
		if reflect.DeepEqual(before, normalized) {
			continue
		}
		s.setNode(segments, normalized)
		if s.journal != nil {
			if err := s.journal.Append(path, normalized); err != nil {
				log.Printf("store: journal append failed at %s: %v", path, err)
			}
		}
		events = append(events, Event{Path: path, Before: before, After: deepCopy(normalized)})
	}
	if len(events) == 0 {
		return nil, nil
	}

	var notify []pendingNotify
	for _, sub := range s.subs {
		if s.touches(sub.segments, events) {
			notify = append(notify, pendingNotify{
				callback: sub.callback,
				snapshot: deepCopy(s.getNode(sub.segments)),
			})
		}
	}
	return events, notify
}

type pendingNotify struct {
	callback func(any)
	snapshot any
}

// dispatch runs outside the store lock so callbacks may re-enter the store.
func (s *Store) dispatch(events []Event, notify []pendingNotify) {
	for _, n := range notify {
		n.callback(n.snapshot)
	}
	for _, ev := range events {
		for _, hook := range s.hooks {
			hook(ev)
		}
	}
}

func (s *Store) touches(subSegments []string, events []Event) bool {
	for _, ev := range events {
		evSegments := Split(ev.Path)
		if isPrefix(subSegments, evSegments) || isPrefix(evSegments, subSegments) {
			return true
		}
	}
	return false
}

func (s *Store) getNode(segments []string) any {
	var node any = s.root
	for _, seg := range segments {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		node = m[seg]
	}
	if m, ok := node.(map[string]any); ok && len(m) == 0 {
		return nil
	}
	return node
}

// setNode writes value at segments, creating intermediate maps as needed.
// A nil value deletes the node and prunes any branches left empty, so an
// "empty" node is indistinguishable from an absent one.
func (s *Store) setNode(segments []string, value any) {
	if len(segments) == 0 {
		if m, ok := value.(map[string]any); ok {
			s.root = m
		} else {
			s.root = map[string]any{}
		}
		return
	}

	parents := make([]map[string]any, 0, len(segments))
	node := s.root
	for _, seg := range segments[:len(segments)-1] {
		parents = append(parents, node)
		child, ok := node[seg].(map[string]any)
		if !ok {
			if value == nil {
				return // nothing to delete
			}
			child = map[string]any{}
			node[seg] = child
		}
		node = child
	}
	parents = append(parents, node)

	last := segments[len(segments)-1]
	if value == nil {
		delete(node, last)
	} else {
		node[last] = value
	}

	// Prune branches emptied by the delete.
	for i := len(parents) - 1; i > 0; i-- {
		if len(parents[i]) == 0 {
			delete(parents[i-1], segments[i-1])
		}
	}
}

// normalize converts an arbitrary Go value into the store's JSON-shaped
// representation (map[string]any, []any, string, float64, bool, nil).
func normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, child := range v {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return value
	}
}

// Decode unmarshals a tree value into a typed struct.
func Decode(value any, out any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
