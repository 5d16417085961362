package jobs

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rsavell/place_scout/internal/model"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("job not found")

// Job is one submitted batch, as persisted in the registry.
type Job struct {
	ID          string
	Params      model.JobParams
	State       model.JobState
	QueriesPath string
	ResultPath  string
	Error       string
	ExpiresAt   time.Time // zero until the job completes
}

// Store persists the job registry in sqlite. It survives restarts, which the
// in-memory registry of earlier revisions did not.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		location_code TEXT,
		category TEXT,
		deep INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		queries_path TEXT,
		result_path TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		expires_at DATETIME
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
	CREATE INDEX IF NOT EXISTS idx_jobs_expires ON jobs(expires_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

func (s *Store) Create(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deep := 0
	if job.Params.Deep {
		deep = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, mode, location_code, category, deep, state, queries_path, result_path, error)
		VALUES (?,?,?,?,?,?,?,?,'')`,
		job.ID, string(job.Params.Mode), job.Params.LocationCode, job.Params.Category,
		deep, string(job.State), job.QueriesPath, job.ResultPath,
	)
	if err != nil {
		return fmt.Errorf("inserting job: %w", err)
	}
	return nil
}

func (s *Store) SetState(id string, state model.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE jobs SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return fmt.Errorf("updating job state: %w", err)
	}
	return nil
}

// Complete marks a job finished and stamps when its result file expires.
func (s *Store) Complete(id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE jobs SET state = ?, expires_at = ? WHERE id = ?`,
		string(model.JobComplete), expiresAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("completing job: %w", err)
	}
	return nil
}

func (s *Store) Fail(id, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE jobs SET state = ?, error = ? WHERE id = ?`,
		string(model.JobFailed), msg, id)
	if err != nil {
		return fmt.Errorf("failing job: %w", err)
	}
	return nil
}

func (s *Store) Get(id string) (Job, error) {
	row := s.db.QueryRow(`
		SELECT id, mode, location_code, category, deep, state, queries_path, result_path, error, expires_at
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// Expired returns jobs whose result files are past their expiry stamp.
func (s *Store) Expired(now time.Time) ([]Job, error) {
	rows, err := s.db.Query(`
		SELECT id, mode, location_code, category, deep, state, queries_path, result_path, error, expires_at
		FROM jobs WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying expired jobs: %w", err)
	}
	defer rows.Close()

	var expired []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, job)
	}
	return expired, rows.Err()
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting job: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		job       Job
		mode      string
		state     string
		deep      int
		expiresAt sql.NullTime
	)
	err := row.Scan(&job.ID, &mode, &job.Params.LocationCode, &job.Params.Category,
		&deep, &state, &job.QueriesPath, &job.ResultPath, &job.Error, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("scanning job: %w", err)
	}
	job.Params.Mode = model.Mode(mode)
	job.Params.Deep = deep != 0
	job.State = model.JobState(state)
	if expiresAt.Valid {
		job.ExpiresAt = expiresAt.Time
	}
	return job, nil
}
