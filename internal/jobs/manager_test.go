package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rsavell/place_scout/internal/model"
)

// stubRunner returns a fixed table and records what it was asked to do.
type stubRunner struct {
	table   *model.Table
	err     error
	queries []string
	params  model.JobParams
}

func (s *stubRunner) Aggregate(_ context.Context, mode model.Mode, queries []string, code, category string, deep bool) (*model.Table, error) {
	s.queries = queries
	s.params = model.JobParams{Mode: mode, LocationCode: code, Category: category, Deep: deep}
	return s.table, s.err
}

func newTestManager(t *testing.T, runner Runner) (*Manager, *Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := newTestStore(t)
	mgr := NewManager(context.Background(), store, runner, dir, time.Hour, zap.NewNop())
	return mgr, store, dir
}

func writeQueries(t *testing.T, dir string, lines string) string {
	t.Helper()
	path := filepath.Join(dir, "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestManagerRunsJobToCompletion(t *testing.T) {
	runner := &stubRunner{table: &model.Table{
		Mode:   model.ModeSpecificCount,
		Counts: []model.CountRow{{Query: "cafe", Location: "US-CA", Count: 3}},
	}}
	mgr, store, dir := newTestManager(t, runner)

	queriesPath := writeQueries(t, dir, "cafe\nbar\n")
	params := model.JobParams{Mode: model.ModeSpecificCount, LocationCode: "US-CA"}

	id, err := mgr.Submit(params, queriesPath)
	require.NoError(t, err)
	mgr.Wait()

	state, err := mgr.Status(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobComplete, state)

	assert.Equal(t, []string{"cafe", "bar"}, runner.queries)
	assert.Equal(t, params, runner.params)

	resultPath, err := mgr.Result(id)
	require.NoError(t, err)
	data, err := os.ReadFile(resultPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Place Name,Location,Count")
	assert.Contains(t, string(data), "cafe,US-CA,3")

	// The staged query file is consumed by the worker.
	_, err = os.Stat(queriesPath)
	assert.True(t, os.IsNotExist(err))

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.False(t, job.ExpiresAt.IsZero())
}

func TestManagerFailsOnUnreadableQueryFile(t *testing.T) {
	runner := &stubRunner{table: &model.Table{Mode: model.ModeSpecificCount}}
	mgr, store, dir := newTestManager(t, runner)

	id, err := mgr.Submit(model.JobParams{Mode: model.ModeSpecificCount},
		filepath.Join(dir, "does-not-exist.txt"))
	require.NoError(t, err, "submission succeeds; the worker discovers the bad input")
	mgr.Wait()

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.State)
	assert.Contains(t, job.Error, "reading query file")
	assert.Nil(t, runner.queries, "aggregation never starts without input")

	_, err = mgr.Result(id)
	assert.Error(t, err, "no result table for a failed job")
}

func TestManagerFailsWhenAggregationErrors(t *testing.T) {
	runner := &stubRunner{err: errors.New("unknown aggregation mode")}
	mgr, store, dir := newTestManager(t, runner)

	id, err := mgr.Submit(model.JobParams{Mode: model.Mode("bogus")},
		writeQueries(t, dir, "cafe\n"))
	require.NoError(t, err)
	mgr.Wait()

	job, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.State)
}

func TestManagerResultNotReady(t *testing.T) {
	store := newTestStore(t)
	mgr := NewManager(context.Background(), store, &stubRunner{}, t.TempDir(), time.Hour, zap.NewNop())

	require.NoError(t, store.Create(Job{ID: "j1", Params: model.JobParams{Mode: model.ModeSpecificCount}, State: model.JobRunning}))
	_, err := mgr.Result("j1")
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSweepRemovesExpiredResults(t *testing.T) {
	mgr, store, dir := newTestManager(t, &stubRunner{})

	resultPath := filepath.Join(dir, "expired.csv")
	require.NoError(t, os.WriteFile(resultPath, []byte("Place Name,Location,Count\n"), 0644))

	require.NoError(t, store.Create(Job{
		ID:         "expired",
		Params:     model.JobParams{Mode: model.ModeSpecificCount},
		State:      model.JobRunning,
		ResultPath: resultPath,
	}))
	require.NoError(t, store.Complete("expired", time.Now().Add(-time.Minute)))

	mgr.sweep()

	_, err := os.Stat(resultPath)
	assert.True(t, os.IsNotExist(err), "expired result file is deleted")
	_, err = store.Get("expired")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadQueriesKeepsRawLines(t *testing.T) {
	dir := t.TempDir()
	path := writeQueries(t, dir, "cafe\n\n  bar \n")

	queries, err := readQueries(path)
	require.NoError(t, err)
	// Trimming and blank-line skipping happen in the aggregator.
	assert.Equal(t, []string{"cafe", "", "  bar "}, queries)
}
