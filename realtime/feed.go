package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/solecare/solecare-api/models"
	"gorm.io/gorm"
)

// ErrStreamClosed is returned by Stream.Next once the stream has been closed.
var ErrStreamClosed = errors.New("change stream closed")

// ChangeEvent is a single committed change as delivered to real-time clients.
// ResumeToken is opaque to clients; passing it back to Feed.Open resumes
// after this event. Events that committed late may be delivered again.
type ChangeEvent struct {
	ResumeToken   uint64          `json:"_id"`
	OperationType string          `json:"operationType"`
	Collection    string          `json:"collection"`
	DocumentKey   string          `json:"documentKey"`
	BranchID      string          `json:"branchId,omitempty"`
	FullDocument  json.RawMessage `json:"fullDocument,omitempty"`
	ClusterTime   time.Time       `json:"clusterTime"`
}

// Feed opens change subscriptions on a collection.
type Feed interface {
	// Open starts a subscription. A nil resumeAfter starts at the current head,
	// so only changes committed after Open are delivered.
	Open(ctx context.Context, collection string, resumeAfter *uint64) (Stream, error)
}

// Stream yields change events in the order they become visible.
type Stream interface {
	Next(ctx context.Context) (ChangeEvent, error)
	Close() error
}

// GormFeed reads the change_events table written by the model hooks.
//
// Record ids come from a sequence and are handed out before commit, so a
// lower id can become visible after a higher one. Streams therefore re-scan
// every record younger than the commit grace window and drop the ones they
// already delivered.
type GormFeed struct {
	db          *gorm.DB
	interval    time.Duration
	commitGrace time.Duration
	batchSize   int
	now         func() time.Time
}

func NewGormFeed(db *gorm.DB, interval time.Duration) *GormFeed {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &GormFeed{db: db, interval: interval, commitGrace: 10 * time.Second, batchSize: 100, now: time.Now}
}

// WithCommitGrace sets how long a change record may stay uncommitted.
func (f *GormFeed) WithCommitGrace(d time.Duration) *GormFeed {
	if d > 0 {
		f.commitGrace = d
	}
	return f
}

func (f *GormFeed) Open(ctx context.Context, collection string, resumeAfter *uint64) (Stream, error) {
	stream := &gormStream{
		feed:       f,
		collection: collection,
		seen:       make(map[uint64]time.Time),
		done:       make(chan struct{}),
	}
	if resumeAfter != nil {
		stream.floor = *resumeAfter
		return stream, nil
	}

	// Start at the settled head and treat everything committed above it as
	// already seen, so writes still in flight at Open are not lost.
	var head sql.NullInt64
	err := f.db.WithContext(ctx).Model(&models.ChangeRecord{}).
		Where("collection = ? AND cluster_time < ?", collection, f.now().Add(-f.commitGrace)).
		Select("MAX(id)").
		Scan(&head).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read change feed head for %s: %w", collection, err)
	}
	if head.Valid {
		stream.floor = uint64(head.Int64)
	}

	var recent []models.ChangeRecord
	err = f.db.WithContext(ctx).
		Select("id", "cluster_time").
		Where("collection = ? AND id > ?", collection, stream.floor).
		Find(&recent).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read change feed head for %s: %w", collection, err)
	}
	for _, r := range recent {
		stream.seen[r.ID] = r.ClusterTime
	}
	return stream, nil
}

type gormStream struct {
	feed       *GormFeed
	collection string
	// floor is the highest id below which every record is settled.
	floor uint64
	// seen holds delivered ids above floor with their cluster time.
	seen    map[uint64]time.Time
	pending []models.ChangeRecord

	closeOnce sync.Once
	done      chan struct{}
}

func (s *gormStream) Next(ctx context.Context) (ChangeEvent, error) {
	for {
		select {
		case <-s.done:
			return ChangeEvent{}, ErrStreamClosed
		default:
		}

		if len(s.pending) > 0 {
			record := s.pending[0]
			s.pending = s.pending[1:]
			s.seen[record.ID] = record.ClusterTime
			return eventFromRecord(record), nil
		}

		if err := s.poll(ctx); err != nil {
			return ChangeEvent{}, err
		}
		if len(s.pending) > 0 {
			continue
		}

		timer := time.NewTimer(s.feed.interval)
		select {
		case <-timer.C:
		case <-s.done:
			timer.Stop()
			return ChangeEvent{}, ErrStreamClosed
		case <-ctx.Done():
			timer.Stop()
			return ChangeEvent{}, ctx.Err()
		}
	}
}

// poll queues every visible record above floor that has not been delivered
// yet, then settles old deliveries.
func (s *gormStream) poll(ctx context.Context) error {
	after := s.floor
	for {
		var batch []models.ChangeRecord
		err := s.feed.db.WithContext(ctx).
			Where("collection = ? AND id > ?", s.collection, after).
			Order("id ASC").
			Limit(s.feed.batchSize).
			Find(&batch).Error
		if err != nil {
			return fmt.Errorf("failed to poll %s changes: %w", s.collection, err)
		}
		for _, record := range batch {
			after = record.ID
			if _, ok := s.seen[record.ID]; !ok {
				s.pending = append(s.pending, record)
			}
		}
		if len(batch) < s.feed.batchSize || len(s.pending) >= s.feed.batchSize {
			break
		}
	}
	s.settle()
	return nil
}

// settle raises floor past every delivered record older than the commit
// grace window; nothing below it can still appear.
func (s *gormStream) settle() {
	cutoff := s.feed.now().Add(-s.feed.commitGrace)
	for id, at := range s.seen {
		if at.Before(cutoff) && id > s.floor {
			s.floor = id
		}
	}
	for id := range s.seen {
		if id <= s.floor {
			delete(s.seen, id)
		}
	}
}

func (s *gormStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func eventFromRecord(record models.ChangeRecord) ChangeEvent {
	event := ChangeEvent{
		ResumeToken:   record.ID,
		OperationType: record.OperationType,
		Collection:    record.Collection,
		DocumentKey:   record.DocumentKey,
		BranchID:      record.BranchID,
		ClusterTime:   record.ClusterTime,
	}
	if len(record.FullDocument) > 0 {
		event.FullDocument = json.RawMessage(record.FullDocument)
	}
	return event
}
