package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionPurgeJob deletes login session records whose expiry has passed.
// The Redis copy of a session expires on its own; the Postgres audit row
// does not, so the worker sweeps it.
type SessionPurgeJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSessionPurgeJob constructs the purge job.
func NewSessionPurgeJob(pool *pgxpool.Pool, logger *slog.Logger) *SessionPurgeJob {
	return &SessionPurgeJob{pool: pool, logger: logger}
}

// Handle processes TaskSessionPurge tasks.
func (j *SessionPurgeJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SessionPurgePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.BatchSize <= 0 {
		payload.BatchSize = 1000
	}
	if j.pool == nil {
		return nil
	}
	tag, err := j.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE id IN (
			SELECT id FROM sessions WHERE expires_at < now() LIMIT $1
		)`, payload.BatchSize)
	if err != nil {
		if j.logger != nil {
			j.logger.Error("purge sessions", slog.Any("error", err))
		}
		return err
	}
	if j.logger != nil {
		j.logger.Info("purged expired sessions",
			slog.Int64("deleted", tag.RowsAffected()),
			slog.String("job", "session_purge"))
	}
	return nil
}
