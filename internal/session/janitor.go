package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically evicts idle sessions from a Store.
type Janitor struct {
	store   Store
	cron    *cron.Cron
	idleTTL time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

// NewJanitor validates the schedule and registers the sweep. Call Start to run it.
func NewJanitor(log *slog.Logger, store Store, schedule string, idleTTL time.Duration) (*Janitor, error) {
	if idleTTL <= 0 {
		return nil, fmt.Errorf("session janitor: idle ttl must be positive")
	}
	if log == nil {
		log = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	j := &Janitor{
		store:   store,
		cron:    cron.New(cron.WithParser(parser)),
		idleTTL: idleTTL,
		timeout: time.Minute,
		now:     time.Now,
		logger:  log.With(slog.String("service", "session_janitor")),
	}
	if _, err := j.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		defer cancel()
		_, _ = j.Sweep(ctx)
	}); err != nil {
		return nil, fmt.Errorf("session janitor: invalid schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}

// Sweep evicts everything idle for longer than the configured ttl.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	before := j.now().Add(-j.idleTTL)
	n, err := j.store.EvictIdle(ctx, before)
	if err != nil {
		j.logger.Warn("evict idle sessions failed", slog.Any("error", err))
		return 0, err
	}
	if n > 0 {
		j.logger.Info("evicted idle sessions", slog.Int("count", n), slog.Time("before", before))
	}
	return n, nil
}
