package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const refreshTimeout = 5 * time.Second

// Refresher reads the active oracle on a cron schedule so the rate cache is
// warm before a swap needs it.
type Refresher struct {
	cron     *cron.Cron
	resolver *Resolver
	current  func(ctx context.Context) (string, error)
	logger   *slog.Logger
}

// NewRefresher schedules refreshes; current returns the active reference.
func NewRefresher(resolver *Resolver, current func(ctx context.Context) (string, error), schedule string, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Refresher{
		cron:     cron.New(),
		resolver: resolver,
		current:  current,
		logger:   logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.Refresh); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop halts the schedule and waits for a running refresh.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

// Refresh reads the active rate once.
func (r *Refresher) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	ref, err := r.current(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "rate refresh skipped", "error", err)
		return
	}
	rate, err := r.resolver.Rate(ctx, ref)
	if err != nil {
		r.logger.WarnContext(ctx, "rate refresh failed", "oracle_ref", ref, "error", err)
		return
	}
	r.logger.DebugContext(ctx, "rate refreshed", "oracle_ref", ref, "rate", rate.Dec())
}
