package jobs

import (
	"context"
	"crypto/md5"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fogcast/cron-runner/pkg/logger"
)

// JobLocker keeps two processes from running the same job at the same time.
type JobLocker interface {
	// TryLock returns immediately. When acquired is true, unlock must be called once the job is done.
	TryLock(ctx context.Context, jobName string) (unlock func(), acquired bool, err error)
}

// LockConn is a single database session. Advisory locks belong to the session that took them.
type LockConn interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Release()
}

// PostgreSQLLockManager implements JobLocker with PostgreSQL advisory locks
type PostgreSQLLockManager struct {
	acquire func(ctx context.Context) (LockConn, error)
	logger  *logger.Logger
}

// NewPostgreSQLLockManager creates a lock manager holding one pooled connection per held lock
func NewPostgreSQLLockManager(pool *pgxpool.Pool) *PostgreSQLLockManager {
	return newLockManager(func(ctx context.Context) (LockConn, error) {
		return pool.Acquire(ctx)
	})
}

func newLockManager(acquire func(ctx context.Context) (LockConn, error)) *PostgreSQLLockManager {
	return &PostgreSQLLockManager{
		acquire: acquire,
		logger:  logger.New("job-lock-manager"),
	}
}

// generateLockID derives a stable advisory lock key from the job name
func generateLockID(jobName string) int64 {
	hash := md5.Sum([]byte("fogcast:" + jobName))

	lockID := int64(0)
	for i := 0; i < 8; i++ {
		lockID = lockID<<8 + int64(hash[i])
	}
	if lockID < 0 {
		lockID = -lockID
	}
	return lockID
}

func (p *PostgreSQLLockManager) TryLock(ctx context.Context, jobName string) (func(), bool, error) {
	lockID := generateLockID(jobName)

	conn, err := p.acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get connection for lock %s: %w", jobName, err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		conn.Release()
		p.logger.Error().
			Err(err).
			Str("job_name", jobName).
			Int64("lock_id", lockID).
			Str("action", "acquire_lock_failed").
			Msg("Failed to acquire distributed lock")
		return nil, false, fmt.Errorf("failed to acquire lock for job %s: %w", jobName, err)
	}

	if !acquired {
		conn.Release()
		p.logger.Debug().
			Str("job_name", jobName).
			Int64("lock_id", lockID).
			Str("action", "lock_already_held").
			Msg("Lock already held by another instance")
		return nil, false, nil
	}

	p.logger.Debug().
		Str("job_name", jobName).
		Int64("lock_id", lockID).
		Str("action", "lock_acquired").
		Msg("Acquired distributed lock")

	unlock := func() {
		defer conn.Release()

		// the tick context may already be cancelled, the lock must still go
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var released bool
		if err := conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", lockID).Scan(&released); err != nil || !released {
			p.logger.Warn().
				Err(err).
				Str("job_name", jobName).
				Int64("lock_id", lockID).
				Str("action", "release_lock_failed").
				Msg("Failed to release distributed lock")
		}
	}
	return unlock, true, nil
}
