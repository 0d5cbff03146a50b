package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/mercura/model"
)

// SQL statements for the wizard_sessions table. The step values column is
// named step_values because "values" is a reserved word in PostgreSQL.
const (
	sqlInsertSession = `
		INSERT INTO wizard_sessions (
			id, form_id, resource, status, current_step, step_index,
			step_values, version, started_at, updated_at, expires_at,
			completed_at, result
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13
		)`

	sqlSelectSession = `
		SELECT id, form_id, resource, status, current_step, step_index,
		       step_values, version, started_at, updated_at, expires_at,
		       completed_at, result
		FROM wizard_sessions
		WHERE id = $1`

	sqlUpdateSession = `
		UPDATE wizard_sessions SET
			status = $1,
			current_step = $2,
			step_index = $3,
			step_values = $4,
			version = $5,
			updated_at = $6,
			completed_at = $7,
			result = $8
		WHERE id = $9 AND version = $10`

	sqlSelectExpiredSessions = `
		SELECT id, form_id, resource, status, current_step, step_index,
		       step_values, version, started_at, updated_at, expires_at,
		       completed_at, result
		FROM wizard_sessions
		WHERE status = 'active' AND expires_at < $1
		ORDER BY expires_at ASC`

	sqlDeleteSession = `DELETE FROM wizard_sessions WHERE id = $1`
)

// PgSessionStore is a PostgreSQL-backed SessionStore using pgx/v5. Used
// when wizard sessions must survive restarts or be shared across replicas.
type PgSessionStore struct {
	pool *pgxpool.Pool
}

// NewPgSessionStore creates a new PostgreSQL session store.
func NewPgSessionStore(pool *pgxpool.Pool) *PgSessionStore {
	return &PgSessionStore{pool: pool}
}

// HealthCheck verifies database connectivity.
func (s *PgSessionStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Create inserts a new session.
func (s *PgSessionStore) Create(ctx context.Context, session model.WizardSession) error {
	valuesJSON, err := json.Marshal(session.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	resultJSON, err := marshalResult(session.Result)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, sqlInsertSession,
		session.ID, session.FormID, session.Resource, session.Status,
		session.CurrentStep, session.StepIndex,
		valuesJSON, session.Version, session.StartedAt, session.UpdatedAt,
		session.ExpiresAt, session.CompletedAt, resultJSON,
	)
	if err != nil {
		return fmt.Errorf("insert wizard session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *PgSessionStore) Get(ctx context.Context, sessionID string) (model.WizardSession, error) {
	row := s.pool.QueryRow(ctx, sqlSelectSession, sessionID)

	session, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WizardSession{}, model.NewSessionNotFoundError(
			fmt.Sprintf("wizard session %q not found", sessionID),
		)
	}
	if err != nil {
		return model.WizardSession{}, fmt.Errorf("query wizard session: %w", err)
	}
	return session, nil
}

// Update persists session changes with optimistic locking.
func (s *PgSessionStore) Update(ctx context.Context, session model.WizardSession) error {
	valuesJSON, err := json.Marshal(session.Values)
	if err != nil {
		return fmt.Errorf("marshal values: %w", err)
	}
	resultJSON, err := marshalResult(session.Result)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, sqlUpdateSession,
		session.Status, session.CurrentStep, session.StepIndex,
		valuesJSON, session.Version+1, time.Now().UTC(),
		session.CompletedAt, resultJSON,
		session.ID, session.Version,
	)
	if err != nil {
		return fmt.Errorf("update wizard session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("wizard session %q version conflict (expected %d)", session.ID, session.Version),
		)
	}
	return nil
}

// FindExpired returns active sessions past their deadline.
func (s *PgSessionStore) FindExpired(ctx context.Context, cutoff time.Time) ([]model.WizardSession, error) {
	rows, err := s.pool.Query(ctx, sqlSelectExpiredSessions, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var sessions []model.WizardSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wizard session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// Delete removes a session.
func (s *PgSessionStore) Delete(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, sqlDeleteSession, sessionID)
	if err != nil {
		return fmt.Errorf("delete wizard session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewSessionNotFoundError(
			fmt.Sprintf("wizard session %q not found", sessionID),
		)
	}
	return nil
}

func marshalResult(result model.Record) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return b, nil
}

func scanSession(row pgx.Row) (model.WizardSession, error) {
	var session model.WizardSession
	var valuesJSON, resultJSON []byte

	err := row.Scan(
		&session.ID, &session.FormID, &session.Resource, &session.Status,
		&session.CurrentStep, &session.StepIndex,
		&valuesJSON, &session.Version, &session.StartedAt, &session.UpdatedAt,
		&session.ExpiresAt, &session.CompletedAt, &resultJSON,
	)
	if err != nil {
		return model.WizardSession{}, err
	}

	if valuesJSON != nil {
		if err := json.Unmarshal(valuesJSON, &session.Values); err != nil {
			return model.WizardSession{}, fmt.Errorf("unmarshal values: %w", err)
		}
	}
	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &session.Result); err != nil {
			return model.WizardSession{}, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return session, nil
}
