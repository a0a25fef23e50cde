package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/solecare/solecare-api/metrics"
	"github.com/solecare/solecare-api/models"
)

// State of a single watch target.
type State string

const (
	StateStarting   State = "STARTING"
	StateStreaming  State = "STREAMING"
	StateRestarting State = "RESTARTING"
	StateSuspended  State = "SUSPENDED"
	StateStopped    State = "STOPPED"
)

// WatchTarget maps a collection to the event name clients listen for.
type WatchTarget struct {
	Collection string
	Event      string
}

// DefaultTargets are the collections relayed to terminals.
var DefaultTargets = []WatchTarget{
	{Collection: models.CollectionLineItems, Event: "lineItemUpdated"},
	{Collection: models.CollectionAppointments, Event: "appointmentUpdated"},
	{Collection: models.CollectionUnavailabilities, Event: "unavailabilityUpdated"},
}

// Broadcaster receives every relayed event.
type Broadcaster interface {
	Broadcast(event string, change ChangeEvent)
}

type Options struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
	Targets    []WatchTarget
}

// Relay keeps one change subscription open per watch target and forwards
// every change to the broadcaster. Targets fail and restart independently.
// Delivery is at-least-once across restarts and best-effort across store
// outages: Resume starts from the feed head.
type Relay struct {
	feed Feed
	out  Broadcaster
	opts Options

	mu        sync.Mutex
	base      context.Context
	watchers  map[string]*watcher
	suspended bool
	wg        sync.WaitGroup
}

func NewRelay(feed Feed, out Broadcaster, opts Options) *Relay {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}
	if len(opts.Targets) == 0 {
		opts.Targets = DefaultTargets
	}
	return &Relay{
		feed:     feed,
		out:      out,
		opts:     opts,
		watchers: make(map[string]*watcher),
	}
}

// Start opens every target and returns. Cancelling ctx or calling Stop ends
// the watchers.
func (r *Relay) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.base = ctx
	r.openAllLocked()
}

// Run starts the relay and follows store connectivity until ctx is done.
func (r *Relay) Run(ctx context.Context, store <-chan StoreEvent) {
	r.Start(ctx)
	defer r.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-store:
			if !ok {
				store = nil
				continue
			}
			switch ev {
			case StoreDisconnected:
				r.Suspend()
			case StoreReconnected:
				r.Resume()
			}
		}
	}
}

// Suspend closes every active subscription immediately, regardless of any
// pending restart.
func (r *Relay) Suspend() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.suspended {
		return
	}
	r.suspended = true
	log.Println("[relay] WARN store disconnected, closing change streams")
	for _, w := range r.watchers {
		w.halt(StateSuspended)
	}
}

// Resume reopens every target without a resume token.
func (r *Relay) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.suspended || r.base == nil {
		return
	}
	log.Println("[relay] store reconnected, reopening change streams")
	r.openAllLocked()
}

// Stop closes every subscription and waits for the watchers to exit.
func (r *Relay) Stop() {
	r.mu.Lock()
	for _, w := range r.watchers {
		w.halt(StateStopped)
	}
	r.mu.Unlock()

	r.wg.Wait()
}

// State reports the current state of the target watching collection.
func (r *Relay) State(collection string) State {
	r.mu.Lock()
	w, ok := r.watchers[collection]
	r.mu.Unlock()
	if !ok {
		return StateStopped
	}
	return w.currentState()
}

// ResumeToken reports the last token seen for collection.
func (r *Relay) ResumeToken(collection string) (uint64, bool) {
	r.mu.Lock()
	w, ok := r.watchers[collection]
	r.mu.Unlock()
	if !ok {
		return 0, false
	}
	token := w.resumeToken()
	if token == nil {
		return 0, false
	}
	return *token, true
}

func (r *Relay) openAllLocked() {
	r.suspended = false
	log.Println("[relay] opening all change streams")

	for _, target := range r.opts.Targets {
		if old, ok := r.watchers[target.Collection]; ok {
			old.halt(StateStopped)
		}

		ctx, cancel := context.WithCancel(r.base)
		w := &watcher{target: target, cancel: cancel, state: StateStarting}
		r.watchers[target.Collection] = w

		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.watch(ctx, w)
		}()
	}
}

func (r *Relay) watch(ctx context.Context, w *watcher) {
	collection := w.target.Collection
	backoff := r.opts.MinBackoff

	for ctx.Err() == nil {
		w.setState(StateStarting)
		log.Printf("[relay] starting watch for %s", collection)

		stream, err := r.feed.Open(ctx, collection, w.resumeToken())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[relay] WARN failed to start change stream for %s, retrying in %s: %v", collection, backoff, err)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, r.opts.MaxBackoff)
			continue
		}

		if !w.attach(stream) {
			_ = stream.Close()
			return
		}
		w.setState(StateStreaming)

		for {
			change, err := stream.Next(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Printf("[relay] WARN change stream for %s ended, restarting in %s: %v", collection, backoff, err)
				}
				break
			}
			w.setResumeToken(change.ResumeToken)
			backoff = r.opts.MinBackoff
			r.out.Broadcast(w.target.Event, change)
			metrics.IncRelayEvent(w.target.Event)
		}

		w.detach()
		_ = stream.Close()
		if ctx.Err() != nil {
			return
		}

		w.setState(StateRestarting)
		metrics.IncRelayRestart(collection)
		if !sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, r.opts.MaxBackoff)
	}
}

// nextBackoff doubles d up to max.
func nextBackoff(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

type watcher struct {
	target WatchTarget
	cancel context.CancelFunc

	mu      sync.Mutex
	state   State
	token   *uint64
	stream  Stream
	stopped bool
}

// halt cancels the watcher and closes its stream; later state changes from
// the goroutine are ignored.
func (w *watcher) halt(final State) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	w.state = final
	w.cancel()
	if w.stream != nil {
		_ = w.stream.Close()
		w.stream = nil
	}
}

func (w *watcher) attach(s Stream) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return false
	}
	w.stream = s
	return true
}

func (w *watcher) detach() {
	w.mu.Lock()
	w.stream = nil
	w.mu.Unlock()
}

func (w *watcher) setState(s State) {
	w.mu.Lock()
	if !w.stopped {
		w.state = s
	}
	w.mu.Unlock()
}

func (w *watcher) currentState() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *watcher) setResumeToken(token uint64) {
	w.mu.Lock()
	w.token = &token
	w.mu.Unlock()
}

func (w *watcher) resumeToken() *uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.token == nil {
		return nil
	}
	token := *w.token
	return &token
}
