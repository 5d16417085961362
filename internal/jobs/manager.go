package jobs

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rsavell/place_scout/internal/engine/export"
	"github.com/rsavell/place_scout/internal/metrics"
	"github.com/rsavell/place_scout/internal/model"
)

// Runner produces a result table for one job's queries.
type Runner interface {
	Aggregate(ctx context.Context, mode model.Mode, queries []string, code, category string, deep bool) (*model.Table, error)
}

// Manager owns the job lifecycle: session id allocation, one worker
// goroutine per job, result staging, and expiry of old result files. Jobs
// run to completion once started; there is no user-facing cancellation.
type Manager struct {
	store     *Store
	runner    Runner
	logger    *zap.Logger
	resultDir string
	resultTTL time.Duration

	// baseCtx bounds every worker's upstream calls; shutdown interrupts
	// in-flight jobs without repairing their persisted state.
	baseCtx context.Context
	wg      sync.WaitGroup
}

func NewManager(ctx context.Context, store *Store, runner Runner, resultDir string, resultTTL time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		runner:    runner,
		logger:    logger,
		resultDir: resultDir,
		resultTTL: resultTTL,
		baseCtx:   ctx,
	}
}

// Submit registers a job and starts its worker. The uploaded query file at
// queriesPath is owned by the job from this point and removed when the
// worker finishes with it.
func (m *Manager) Submit(params model.JobParams, queriesPath string) (string, error) {
	id := uuid.NewString()
	job := Job{
		ID:          id,
		Params:      params,
		State:       model.JobPending,
		QueriesPath: queriesPath,
		ResultPath:  filepath.Join(m.resultDir, id+".csv"),
	}
	if err := m.store.Create(job); err != nil {
		return "", fmt.Errorf("registering job: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(m.baseCtx, job)
	}()

	return id, nil
}

// Status returns the lifecycle state for a session id.
func (m *Manager) Status(id string) (model.JobState, error) {
	job, err := m.store.Get(id)
	if err != nil {
		return "", err
	}
	return job.State, nil
}

// Result returns the result file path for a completed job. Incomplete jobs
// report ErrNotReady.
func (m *Manager) Result(id string) (string, error) {
	job, err := m.store.Get(id)
	if err != nil {
		return "", err
	}
	if job.State != model.JobComplete {
		return "", ErrNotReady
	}
	return job.ResultPath, nil
}

// ErrNotReady is returned when a result is requested before the job completes.
var ErrNotReady = fmt.Errorf("job not complete")

func (m *Manager) run(ctx context.Context, job Job) {
	log := m.logger.With(
		zap.String("session_id", job.ID),
		zap.String("mode", string(job.Params.Mode)),
		zap.Bool("deep", job.Params.Deep),
	)

	defer func() {
		// The uploaded query file is staging data either way.
		if err := os.Remove(job.QueriesPath); err != nil && !os.IsNotExist(err) {
			log.Warn("removing query file", zap.Error(err))
		}
	}()

	if err := m.store.SetState(job.ID, model.JobRunning); err != nil {
		log.Error("marking job running", zap.Error(err))
	}
	log.Info("job started")

	queries, err := readQueries(job.QueriesPath)
	if err != nil {
		m.fail(job.ID, log, fmt.Errorf("reading query file: %w", err))
		return
	}

	table, err := m.runner.Aggregate(ctx, job.Params.Mode, queries,
		job.Params.LocationCode, job.Params.Category, job.Params.Deep)
	if err != nil {
		m.fail(job.ID, log, err)
		return
	}

	if err := export.WriteFile(job.ResultPath, table); err != nil {
		m.fail(job.ID, log, err)
		return
	}

	expires := time.Now().Add(m.resultTTL)
	if err := m.store.Complete(job.ID, expires); err != nil {
		log.Error("marking job complete", zap.Error(err))
		return
	}
	metrics.RecordJob("complete")
	log.Info("job complete",
		zap.Int("queries", len(queries)),
		zap.Time("expires_at", expires),
	)
}

func (m *Manager) fail(id string, log *zap.Logger, cause error) {
	log.Error("job failed", zap.Error(cause))
	if err := m.store.Fail(id, cause.Error()); err != nil {
		log.Error("marking job failed", zap.Error(err))
	}
	metrics.RecordJob("failed")
}

// Wait blocks until in-flight job workers finish. Used at shutdown and by
// tests.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// RunSweeper periodically deletes expired result files and their registry
// rows until ctx ends.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Manager) sweep() {
	expired, err := m.store.Expired(time.Now())
	if err != nil {
		m.logger.Error("listing expired jobs", zap.Error(err))
		return
	}

	removed := 0
	for _, job := range expired {
		if job.ResultPath != "" {
			if err := os.Remove(job.ResultPath); err != nil && !os.IsNotExist(err) {
				m.logger.Warn("removing expired result",
					zap.String("session_id", job.ID), zap.Error(err))
				continue
			}
		}
		if err := m.store.Delete(job.ID); err != nil {
			m.logger.Warn("deleting expired job row",
				zap.String("session_id", job.ID), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("expired results removed", zap.Int("jobs", removed))
	}
}

// readQueries loads the raw query lines; trimming and blank-line skipping
// are the aggregator's job. Inability to read the file is the one fatal job
// error.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		queries = append(queries, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return queries, nil
}
