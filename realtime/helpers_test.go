package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

type openCall struct {
	collection  string
	resumeAfter *uint64
}

// fakeFeed hands out controllable streams and records every Open.
type fakeFeed struct {
	mu       sync.Mutex
	opens    []openCall
	failures int
	streams  chan *fakeStream
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{streams: make(chan *fakeStream, 16)}
}

func (f *fakeFeed) Open(_ context.Context, collection string, resumeAfter *uint64) (Stream, error) {
	f.mu.Lock()
	f.opens = append(f.opens, openCall{collection: collection, resumeAfter: resumeAfter})
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return nil, errors.New("store unavailable")
	}
	f.mu.Unlock()

	s := &fakeStream{
		collection: collection,
		events:     make(chan ChangeEvent, 8),
		errs:       make(chan error, 1),
		done:       make(chan struct{}),
	}
	f.streams <- s
	return s, nil
}

func (f *fakeFeed) openCalls() []openCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]openCall, len(f.opens))
	copy(out, f.opens)
	return out
}

func (f *fakeFeed) nextStream(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-f.streams:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a stream to open")
		return nil
	}
}

type fakeStream struct {
	collection string
	events     chan ChangeEvent
	errs       chan error
	closeOnce  sync.Once
	done       chan struct{}
}

func (s *fakeStream) Next(ctx context.Context) (ChangeEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return ChangeEvent{}, err
	case <-s.done:
		return ChangeEvent{}, ErrStreamClosed
	case <-ctx.Done():
		return ChangeEvent{}, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *fakeStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type broadcast struct {
	event  string
	change ChangeEvent
}

type recorder struct {
	ch chan broadcast
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan broadcast, 64)}
}

func (r *recorder) Broadcast(event string, change ChangeEvent) {
	r.ch <- broadcast{event: event, change: change}
}

func (r *recorder) next(t *testing.T) broadcast {
	t.Helper()
	select {
	case b := <-r.ch:
		return b
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a broadcast")
		return broadcast{}
	}
}

func fastOptions(targets ...WatchTarget) Options {
	return Options{MinBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, Targets: targets}
}

var lineItemsTarget = WatchTarget{Collection: "line_items", Event: "lineItemUpdated"}
