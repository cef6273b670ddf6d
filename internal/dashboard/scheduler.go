package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lox/housetemps/internal/analysis"
	"github.com/lox/housetemps/internal/metrics"
	"github.com/lox/housetemps/internal/store"
)

const (
	DefaultInterval = 5 * time.Minute
	MinInterval     = 5 * time.Minute
	MaxInterval     = 30 * time.Minute
)

// Executor runs one catalog query. *store.Store satisfies it.
type Executor interface {
	Execute(ctx context.Context, q store.Query) (*store.Table, error)
}

type Scheduler struct {
	exec        Executor
	board       *Board
	panels      []Panel
	interval    time.Duration
	concurrency int
	now         func() time.Time
	logger      *slog.Logger
	onTick      func(Snapshot)

	ticks  atomic.Uint64
	tickMu sync.Mutex
}

func NewScheduler(exec Executor, board *Board, panels []Panel, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		exec:        exec,
		board:       board,
		panels:      panels,
		interval:    DefaultInterval,
		concurrency: 4,
		now:         time.Now,
		logger:      logger.With("component", "scheduler"),
	}
}

// SetInterval sets the refresh period, clamped to [MinInterval, MaxInterval].
func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval = ClampInterval(d)
}

func ClampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	}
	return d
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// SetClock replaces the wall clock used for date-relative queries.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// SetOnTick registers a hook called with the board snapshot after every tick.
func (s *Scheduler) SetOnTick(fn func(Snapshot)) {
	s.onTick = fn
}

func (s *Scheduler) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("starting", "interval", s.interval, "panels", len(s.panels))
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick refreshes every panel once, concurrently. A failing panel never stops the
// others: each goroutine records its own outcome and reports no error to the group.
func (s *Scheduler) Tick(ctx context.Context) Snapshot {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	tick := s.ticks.Add(1)
	now := s.now()
	start := time.Now()
	metrics.RefreshTicksTotal.Inc()

	var (
		g      errgroup.Group
		mu     sync.Mutex
		counts = map[Status]int{}
	)
	g.SetLimit(s.concurrency)
	for _, p := range s.panels {
		g.Go(func() error {
			status := s.refresh(ctx, tick, now, p)
			mu.Lock()
			counts[status]++
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	s.board.finishTick(tick, now)

	s.logger.Info("tick complete",
		"tick", tick,
		"duration", time.Since(start).Round(time.Millisecond),
		"ok", counts[StatusOK],
		"empty", counts[StatusEmpty],
		"skipped", counts[StatusSkipped],
		"stale", counts[StatusStale],
		"unavailable", counts[StatusUnavailable],
	)

	snap := s.board.Snapshot()
	if s.onTick != nil {
		s.onTick(snap)
	}
	return snap
}

func (s *Scheduler) refresh(ctx context.Context, tick uint64, now time.Time, p Panel) Status {
	start := time.Now()
	out, err := s.runPanel(ctx, now, p)
	status := s.board.Record(p.ID, tick, now, out, err)

	metrics.PanelRefreshesTotal.WithLabelValues(p.ID, string(status)).Inc()
	metrics.PanelRefreshLatency.WithLabelValues(p.ID).Observe(time.Since(start).Seconds())

	log := s.logger.With("panel", p.ID, "tick", tick, "status", status)
	switch {
	case err == nil:
		log.Debug("panel refreshed")
	case errors.Is(err, store.ErrQuery):
		log.Error("panel query failed", "err", err)
	case errors.Is(err, store.ErrNoData), errors.Is(err, analysis.ErrInsufficientData):
		log.Info("panel has nothing to show", "err", err)
	default:
		log.Warn("panel refresh failed", "err", err)
	}
	return status
}

func (s *Scheduler) runPanel(ctx context.Context, now time.Time, p Panel) (out Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panel %s: panic: %v: %w", p.ID, r, store.ErrQuery)
		}
	}()

	q, err := p.Query(now)
	if err != nil {
		return Output{}, fmt.Errorf("panel %s: %w", p.ID, err)
	}
	table, err := s.exec.Execute(ctx, q)
	if err != nil {
		return Output{}, fmt.Errorf("panel %s: %w", p.ID, err)
	}
	out, err = p.Build(now, table)
	if err != nil {
		return Output{}, fmt.Errorf("panel %s: %w", p.ID, err)
	}
	return out, nil
}
