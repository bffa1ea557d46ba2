package triggers

import (
	"context"
	"hash/fnv"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/n-crespo/theopendissent/backend/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opendissent_trigger_events_total",
		Help: "Trigger invocations completed successfully.",
	}, []string{"trigger"})
	eventRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opendissent_trigger_retries_total",
		Help: "Trigger invocations that failed and were redelivered.",
	}, []string{"trigger"})
	eventFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "opendissent_trigger_failures_total",
		Help: "Trigger invocations dropped after exhausting redelivery.",
	}, []string{"trigger"})
)

// Invocation is one delivery of a write event to a trigger. The event is
// normalized to the trigger's route depth; SubPath carries the remainder
// when the original write targeted a node below the route.
type Invocation struct {
	Event   store.Event
	Params  map[string]string
	SubPath string
}

// HandlerFunc reacts to a single write event. Handlers are retried on error
// with identical before/after values, so they must be idempotent.
type HandlerFunc func(ctx context.Context, inv Invocation) error

type route struct {
	name     string
	segments []string
	handler  HandlerFunc
}

// Pipeline fans tree-store write events out to registered triggers through a
// worker pool with bounded at-least-once redelivery. It stands in for the
// hosting platform's reactive function delivery.
type Pipeline struct {
	store       *store.Store
	routes      []route
	queues      []chan task
	done        chan struct{}
	pending     sync.WaitGroup
	workers     sync.WaitGroup
	maxAttempts int
	retryDelay  time.Duration
	startOnce   sync.Once
	stopOnce    sync.Once
}

type task struct {
	route *route
	inv   Invocation
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRetry overrides redelivery behavior.
func WithRetry(maxAttempts int, delay time.Duration) PipelineOption {
	return func(p *Pipeline) {
		p.maxAttempts = maxAttempts
		p.retryDelay = delay
	}
}

// NewPipeline creates a Pipeline over s. Call Handle to register triggers,
// then Start.
func NewPipeline(s *store.Store, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:       s,
		done:        make(chan struct{}),
		maxAttempts: 5,
		retryDelay:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Handle registers a trigger for writes matching pattern, e.g.
// "replies/{parentID}/{replyID}". Segment names in braces bind params.
func (p *Pipeline) Handle(name, pattern string, handler HandlerFunc) {
	p.routes = append(p.routes, route{name: name, segments: store.Split(pattern), handler: handler})
}

// Start attaches the pipeline to the store and spawns the worker pool.
// Tasks are sharded across workers by event path, so writes to the same
// path are always handled in order while different paths run concurrently.
func (p *Pipeline) Start(workers int) {
	p.startOnce.Do(func() {
		for i := 0; i < workers; i++ {
			queue := make(chan task, 1024)
			p.queues = append(p.queues, queue)
			p.workers.Add(1)
			go p.worker(queue)
		}
		p.store.OnWrite(p.handleEvent)
		log.Printf("trigger pipeline started with %d workers, %d routes", workers, len(p.routes))
	})
}

// Drain blocks until every queued invocation (including ones enqueued by
// running handlers) has been processed.
func (p *Pipeline) Drain() {
	p.pending.Wait()
}

// Stop drains outstanding work and shuts the workers down.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.pending.Wait()
		close(p.done)
		p.workers.Wait()
	})
}

func (p *Pipeline) handleEvent(ev store.Event) {
	for i := range p.routes {
		r := &p.routes[i]
		for _, inv := range r.invocations(ev) {
			queue := p.queues[shard(inv.Event.Path, len(p.queues))]
			p.pending.Add(1)
			select {
			case queue <- task{route: r, inv: inv}:
			case <-p.done:
				p.pending.Done()
				return
			}
		}
	}
}

func shard(path string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(path))
	return int(h.Sum32()) % n
}

func (p *Pipeline) worker(queue chan task) {
	defer p.workers.Done()
	for {
		select {
		case <-p.done:
			return
		case t := <-queue:
			p.process(t)
			p.pending.Done()
		}
	}
}

func (p *Pipeline) process(t task) {
	ctx := context.Background()
	for attempt := 1; ; attempt++ {
		err := t.route.handler(ctx, t.inv)
		if err == nil {
			eventsProcessed.WithLabelValues(t.route.name).Inc()
			return
		}
		if attempt >= p.maxAttempts {
			eventFailures.WithLabelValues(t.route.name).Inc()
			log.Printf("trigger %s: giving up on %s after %d attempts: %v", t.route.name, t.inv.Event.Path, attempt, err)
			return
		}
		eventRetries.WithLabelValues(t.route.name).Inc()
		log.Printf("trigger %s: attempt %d on %s failed, redelivering: %v", t.route.name, attempt, t.inv.Event.Path, err)
		time.Sleep(p.retryDelay)
	}
}

// invocations matches an event against the route. An event at the route's
// depth is delivered as-is; a deeper event is delivered with SubPath set; a
// shallower event (a subtree replace or removal) is expanded into one
// synthetic event per affected child at the route's depth.
func (r *route) invocations(ev store.Event) []Invocation {
	evSegments := store.Split(ev.Path)

	if len(evSegments) >= len(r.segments) {
		params, ok := bind(r.segments, evSegments[:len(r.segments)])
		if !ok {
			return nil
		}
		return []Invocation{{
			Event:   ev,
			Params:  params,
			SubPath: store.Join(evSegments[len(r.segments):]...),
		}}
	}

	params, ok := bind(r.segments[:len(evSegments)], evSegments)
	if !ok {
		return nil
	}
	return expand(evSegments, ev.Before, ev.After, r.segments, params)
}

func bind(patternSegments, pathSegments []string) (map[string]string, bool) {
	params := map[string]string{}
	for i, seg := range patternSegments {
		if name, ok := wildcard(seg); ok {
			params[name] = pathSegments[i]
		} else if seg != pathSegments[i] {
			return nil, false
		}
	}
	return params, true
}

func wildcard(segment string) (string, bool) {
	if strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}") {
		return segment[1 : len(segment)-1], true
	}
	return "", false
}

func expand(path []string, before, after any, pattern []string, params map[string]string) []Invocation {
	if len(path) == len(pattern) {
		return []Invocation{{
			Event:  store.Event{Path: store.Join(path...), Before: before, After: after},
			Params: params,
		}}
	}

	beforeMap, _ := before.(map[string]any)
	afterMap, _ := after.(map[string]any)
	keys := map[string]struct{}{}
	for k := range beforeMap {
		keys[k] = struct{}{}
	}
	for k := range afterMap {
		keys[k] = struct{}{}
	}

	segment := pattern[len(path)]
	name, isWild := wildcard(segment)

	var out []Invocation
	for key := range keys {
		if !isWild && key != segment {
			continue
		}
		childParams := make(map[string]string, len(params)+1)
		for k, v := range params {
			childParams[k] = v
		}
		if isWild {
			childParams[name] = key
		}
		childPath := append(append([]string{}, path...), key)
		out = append(out, expand(childPath, beforeMap[key], afterMap[key], pattern, childParams)...)
	}
	return out
}
