package jobs

import (
	"context"
	"errors"
	"fmt"
	rollupservice "hsmeta/aggregator/services/rollup"
	"hsmeta/pkg/models/meta"
	"io"
	"log/slog"
	"time"
)

type RollupRunner interface {
	Run(ctx context.Context, sel meta.Selector, keys []string) (*rollupservice.Snapshot, error)
}

type SnapshotSaver interface {
	SaveWindow(ctx context.Context, snapshot *rollupservice.Snapshot) error
	SaveDay(ctx context.Context, snapshot *rollupservice.Snapshot, day time.Time) error
}

// Plans, runs and saves the rollups of the selectors, one at a time.
type RollupJobs struct {
	rollup  RollupRunner
	persist SnapshotSaver
	keys    rollupservice.KeyPlanner
	logger  *slog.Logger
}

type RollupJobsDeps struct {
	Rollup  RollupRunner
	Persist SnapshotSaver
	Keys    rollupservice.KeyPlanner
	Logger  *slog.Logger
}

func NewRollupJobs(deps *RollupJobsDeps) *RollupJobs {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RollupJobs{
		rollup:  deps.Rollup,
		persist: deps.Persist,
		keys:    deps.Keys,
		logger:  logger,
	}
}

// RunWindow rolls up and saves one rolling window.
// An empty window or an unknown patch date is not an error.
func (j *RollupJobs) RunWindow(ctx context.Context, sel meta.Selector, now time.Time) error {
	keys, err := j.keys.WindowKeys(sel, now)
	if errors.Is(err, rollupservice.ErrNoPatchDate) {
		j.logger.Warn("Skipping window, the patch date is unknown", "selector", sel.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to plan %s: %w", sel, err)
	}

	snapshot, err := j.rollup.Run(ctx, sel, keys)
	if errors.Is(err, rollupservice.ErrNoData) {
		return nil
	}
	if err != nil {
		return err
	}

	return j.persist.SaveWindow(ctx, snapshot)
}

// RunDay rolls up the hourly shards of one day into its daily documents.
func (j *RollupJobs) RunDay(ctx context.Context, sel meta.Selector, day time.Time) error {
	snapshot, err := j.rollup.Run(ctx, sel, j.keys.DayKeys(sel, day))
	if errors.Is(err, rollupservice.ErrNoData) {
		return nil
	}
	if err != nil {
		return err
	}

	return j.persist.SaveDay(ctx, snapshot, day)
}

// RunWindowRollups runs every window matching the selector.
// A failing window doesn't stop the others, every failure is returned joined.
func (j *RollupJobs) RunWindowRollups(ctx context.Context, sel meta.Selector, now time.Time) error {
	return j.fanOut(ctx, "window", Expand(sel), func(s meta.Selector) error {
		return j.RunWindow(ctx, s, now)
	})
}

// RunDayRollups runs the day rollup of every selector matching the given one.
func (j *RollupJobs) RunDayRollups(ctx context.Context, sel meta.Selector, day time.Time) error {
	return j.fanOut(ctx, "day", ExpandDay(sel), func(s meta.Selector) error {
		return j.RunDay(ctx, s, day)
	})
}

func (j *RollupJobs) fanOut(ctx context.Context, kind string, selectors []meta.Selector, run func(meta.Selector) error) error {
	start := time.Now()
	j.logger.Info("Starting rollups", "kind", kind, "selectors", len(selectors))

	var errs []error
	for _, sel := range selectors {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := run(sel); err != nil {
			j.logger.Error("Rollup failed", "kind", kind, "selector", sel.String(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sel, err))
		}
	}

	j.logger.Info("Finished rollups", "kind", kind, "failed", len(errs), "elapsed", time.Since(start).String())
	return errors.Join(errs...)
}
