package realtime

import (
	"context"
	"log"
	"time"
)

// StoreEvent is a connectivity transition of the backing store.
type StoreEvent int

const (
	StoreDisconnected StoreEvent = iota + 1
	StoreReconnected
)

func (e StoreEvent) String() string {
	switch e {
	case StoreDisconnected:
		return "disconnected"
	case StoreReconnected:
		return "reconnected"
	default:
		return "unknown"
	}
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// StoreMonitor pings the store on an interval and reports transitions only.
type StoreMonitor struct {
	db       Pinger
	interval time.Duration
	timeout  time.Duration
	events   chan StoreEvent
}

func NewStoreMonitor(db Pinger, interval time.Duration) *StoreMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &StoreMonitor{
		db:       db,
		interval: interval,
		timeout:  interval,
		events:   make(chan StoreEvent, 1),
	}
}

// Events is closed when Run returns.
func (m *StoreMonitor) Events() <-chan StoreEvent {
	return m.events
}

// Run blocks until ctx is cancelled. The store is assumed up when Run starts.
func (m *StoreMonitor) Run(ctx context.Context) {
	defer close(m.events)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	up := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
		err := m.db.PingContext(pingCtx)
		cancel()
		if ctx.Err() != nil {
			return
		}

		var transition StoreEvent
		switch {
		case err != nil && up:
			log.Printf("[realtime] WARN store disconnected: %v", err)
			transition = StoreDisconnected
		case err == nil && !up:
			log.Println("[realtime] store reconnected")
			transition = StoreReconnected
		default:
			continue
		}
		up = transition == StoreReconnected

		select {
		case m.events <- transition:
		case <-ctx.Done():
			return
		}
	}
}
