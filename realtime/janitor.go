package realtime

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/solecare/solecare-api/models"
	"gorm.io/gorm"
)

// Janitor prunes change records older than the retention window.
type Janitor struct {
	db        *gorm.DB
	retention time.Duration
	cron      *cron.Cron
	now       func() time.Time
}

func NewJanitor(db *gorm.DB, retention time.Duration) *Janitor {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Janitor{
		db:        db,
		retention: retention,
		cron:      cron.New(),
		now:       time.Now,
	}
}

// Prune deletes expired records and returns how many were removed.
func (j *Janitor) Prune(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	result := j.db.WithContext(ctx).Where("cluster_time < ?", cutoff).Delete(&models.ChangeRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune change records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Start runs Prune on a cron schedule such as "@hourly".
func (j *Janitor) Start(schedule string) error {
	_, err := j.cron.AddFunc(schedule, func() {
		n, err := j.Prune(context.Background())
		if err != nil {
			log.Printf("[realtime] WARN %v", err)
			return
		}
		if n > 0 {
			log.Printf("[realtime] pruned %d change record(s)", n)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}

	j.cron.Start()
	log.Printf("[realtime] change log janitor started (%s, retention %s)", schedule, j.retention)
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
