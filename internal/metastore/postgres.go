// Package metastore implements the document-store contract on Postgres:
// profile documents and upload-job documents stored as jsonb, with the status
// column lifted out for queue queries.
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/mediaforge/internal/jobs"
	"github.com/your-org/mediaforge/internal/profile"
)

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	name       text PRIMARY KEY,
	doc        jsonb NOT NULL,
	updated_at timestamptz NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS upload_jobs (
	id         uuid PRIMARY KEY,
	status     text NOT NULL,
	doc        jsonb NOT NULL,
	created_at timestamptz NOT NULL
);
CREATE INDEX IF NOT EXISTS upload_jobs_status_idx ON upload_jobs (status, created_at);
`

// Store is the Postgres-backed metadata store. It satisfies profile.Source
// and jobs.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects and verifies the database is reachable; an unreachable store
// is fatal at startup by contract.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect metastore: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping metastore: %w", err)
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the backing tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure metastore schema: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// GetProfile loads a profile document by name.
func (s *Store) GetProfile(ctx context.Context, name string) (*profile.Profile, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM profiles WHERE name = $1`, name).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, profile.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query profile %q: %w", name, err)
	}

	var p profile.Profile
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("decode profile %q: %w", name, err)
	}
	if p.Name == "" {
		p.Name = name
	}
	return &p, nil
}

// PutProfile upserts a profile document; used by seeding tools and tests.
func (s *Store) PutProfile(ctx context.Context, p *profile.Profile) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", p.Name, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO profiles (name, doc, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		p.Name, doc)
	if err != nil {
		return fmt.Errorf("store profile %q: %w", p.Name, err)
	}
	return nil
}

// Enqueue persists a new job document and returns its ID.
func (s *Store) Enqueue(ctx context.Context, job *jobs.Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = jobs.StatusPending
	}

	doc, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("encode job: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO upload_jobs (id, status, doc, created_at) VALUES ($1, $2, $3, $4)`,
		job.ID, string(job.Status), doc, job.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("enqueue job: %w", err)
	}
	return job.ID, nil
}

// Get loads one job by ID.
func (s *Store) Get(ctx context.Context, id string) (*jobs.Job, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT doc FROM upload_jobs WHERE id = $1`, id).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jobs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query job %s: %w", id, err)
	}
	return decodeJob(doc)
}

// ListByStatus returns jobs in creation order.
func (s *Store) ListByStatus(ctx context.Context, status jobs.Status) ([]jobs.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT doc FROM upload_jobs WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list %s jobs: %w", status, err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job, err := decodeJob(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// Update applies a partial patch to the job document and its status column.
// Plain read-then-write; the single-worker contract makes this safe.
func (s *Store) Update(ctx context.Context, id string, patch jobs.Patch) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if patch.Status != nil {
		job.Status = *patch.Status
	}
	if patch.URLs != nil {
		job.URLs = patch.URLs
	}
	if patch.Error != nil {
		job.Error = *patch.Error
	}

	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", id, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE upload_jobs SET status = $2, doc = $3 WHERE id = $1`,
		id, string(job.Status), doc)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrNotFound
	}
	return nil
}

// CountByStatus reports how many jobs sit in the given state.
func (s *Store) CountByStatus(ctx context.Context, status jobs.Status) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM upload_jobs WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s jobs: %w", status, err)
	}
	return n, nil
}

func decodeJob(doc []byte) (*jobs.Job, error) {
	var job jobs.Job
	if err := json.Unmarshal(doc, &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}
