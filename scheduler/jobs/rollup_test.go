package jobs

import (
	"context"
	"errors"
	rollupservice "hsmeta/aggregator/services/rollup"
	"hsmeta/pkg/gamevalues"
	"hsmeta/pkg/logger"
	"hsmeta/pkg/models/meta"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRollupRunner struct {
	mock.Mock
}

func (m *MockRollupRunner) Run(ctx context.Context, sel meta.Selector, keys []string) (*rollupservice.Snapshot, error) {
	args := m.Called(ctx, sel, keys)
	snapshot, _ := args.Get(0).(*rollupservice.Snapshot)
	return snapshot, args.Error(1)
}

type MockSnapshotSaver struct {
	mock.Mock
}

func (m *MockSnapshotSaver) SaveWindow(ctx context.Context, snapshot *rollupservice.Snapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockSnapshotSaver) SaveDay(ctx context.Context, snapshot *rollupservice.Snapshot, day time.Time) error {
	args := m.Called(ctx, snapshot, day)
	return args.Error(0)
}

type MockRevalidator struct {
	mock.Mock
}

func (m *MockRevalidator) RevalidateCache(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var now = time.Date(2024, 5, 10, 13, 20, 0, 0, time.UTC)

func setupRollupJobs(lastPatch time.Time) (*RollupJobs, *MockRollupRunner, *MockSnapshotSaver) {
	runner := new(MockRollupRunner)
	saver := new(MockSnapshotSaver)
	jobs := NewRollupJobs(&RollupJobsDeps{
		Rollup:  runner,
		Persist: saver,
		Keys:    rollupservice.KeyPlanner{Prefix: "test", LastPatch: lastPatch},
	})
	return jobs, runner, saver
}

func windowSelector(class string) meta.Selector {
	return meta.Selector{
		Format:      gamevalues.FormatStandard,
		RankBracket: gamevalues.RankLegend,
		TimePeriod:  gamevalues.PeriodPast3,
		PlayerClass: class,
	}
}

func TestRunWindow(t *testing.T) {
	sel := windowSelector("mage")
	snapshot := &rollupservice.Snapshot{Selector: sel}
	keys, err := rollupservice.KeyPlanner{Prefix: "test"}.WindowKeys(sel, now)
	require.NoError(t, err)

	tests := []struct {
		name        string
		runErr      error
		saveErr     error
		expectSave  bool
		expectedErr error
	}{
		{name: "saved", expectSave: true},
		{name: "empty window", runErr: rollupservice.ErrNoData},
		{name: "rollup failure", runErr: errors.New("invariant"), expectedErr: errors.New("invariant")},
		{name: "save failure", expectSave: true, saveErr: errors.New("bucket"), expectedErr: errors.New("bucket")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, runner, saver := setupRollupJobs(time.Time{})
			if tt.runErr != nil {
				runner.On("Run", mock.Anything, sel, keys).Return(nil, tt.runErr)
			} else {
				runner.On("Run", mock.Anything, sel, keys).Return(snapshot, nil)
			}
			if tt.expectSave {
				saver.On("SaveWindow", mock.Anything, snapshot).Return(tt.saveErr)
			}

			err := jobs.RunWindow(context.Background(), sel, now)

			if tt.expectedErr != nil {
				assert.ErrorContains(t, err, tt.expectedErr.Error())
			} else {
				assert.NoError(t, err)
			}
			runner.AssertExpectations(t)
			saver.AssertExpectations(t)
		})
	}
}

func TestRunWindowWithoutPatchDate(t *testing.T) {
	jobs, runner, saver := setupRollupJobs(time.Time{})
	sel := windowSelector("mage")
	sel.TimePeriod = gamevalues.PeriodLastPatch

	assert.NoError(t, jobs.RunWindow(context.Background(), sel, now))
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
	saver.AssertNotCalled(t, "SaveWindow", mock.Anything, mock.Anything)
}

func TestRunDay(t *testing.T) {
	jobs, runner, saver := setupRollupJobs(time.Time{})
	sel := windowSelector("mage")
	sel.TimePeriod = ""
	day := time.Date(2024, 5, 9, 0, 0, 0, 0, time.UTC)
	snapshot := &rollupservice.Snapshot{Selector: sel}

	runner.On("Run", mock.Anything, sel, mock.MatchedBy(func(keys []string) bool {
		return len(keys) == 24
	})).Return(snapshot, nil)
	saver.On("SaveDay", mock.Anything, snapshot, day).Return(nil)

	require.NoError(t, jobs.RunDay(context.Background(), sel, day))
	runner.AssertExpectations(t)
	saver.AssertExpectations(t)
}

func TestRunWindowRollupsKeepsGoingAfterFailures(t *testing.T) {
	jobs, runner, saver := setupRollupJobs(time.Time{})
	sel := windowSelector("")

	runner.On("Run", mock.Anything, windowSelector("mage"), mock.Anything).Return(nil, errors.New("mage broke"))
	runner.On("Run", mock.Anything, windowSelector("rogue"), mock.Anything).Return(nil, errors.New("rogue broke"))
	runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, rollupservice.ErrNoData)

	err := jobs.RunWindowRollups(context.Background(), sel, now)

	require.Error(t, err)
	assert.ErrorContains(t, err, "mage broke")
	assert.ErrorContains(t, err, "rogue broke")
	runner.AssertNumberOfCalls(t, "Run", len(gamevalues.Classes))
	saver.AssertNotCalled(t, "SaveWindow", mock.Anything, mock.Anything)
}

func TestRunDayRollupsStopsOnCancel(t *testing.T) {
	jobs, runner, _ := setupRollupJobs(time.Time{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := jobs.RunDayRollups(ctx, meta.Selector{}, now)

	assert.ErrorIs(t, err, context.Canceled)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestRevalidateCards(t *testing.T) {
	discard := logger.Discard()

	revalidator := new(MockRevalidator)
	revalidator.On("RevalidateCache", mock.Anything).Return(nil).Once()
	assert.NoError(t, RevalidateCards(context.Background(), revalidator, discard))

	revalidator.On("RevalidateCache", mock.Anything).Return(errors.New("cdn down")).Once()
	assert.ErrorContains(t, RevalidateCards(context.Background(), revalidator, discard), "cdn down")
	revalidator.AssertExpectations(t)
}
