package telemetry

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// maxSessions bounds how many sessions the store retains, pruning the
// oldest on insert (spec.md §6: the telemetry store is a diagnostic aid,
// not a permanent audit log).
const maxSessions = 500

// Store persists telemetry data to PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to a PostgreSQL telemetry database at connStr and applies
// any pending migrations.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: ping: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`).Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, err := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if err != nil {
			return fmt.Errorf("read migration %d: %w", i, err)
		}
		if _, err := db.Exec(string(data)); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); err != nil {
			return fmt.Errorf("migration %d record: %w", i, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session and prunes the oldest beyond
// maxSessions.
func (s *Store) CreateSession(id string) error {
	if _, err := s.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES ($1, $2)`,
		id, time.Now().UTC(),
	); err != nil {
		return err
	}
	_, err := s.db.Exec(
		`DELETE FROM sessions WHERE id NOT IN (SELECT id FROM sessions ORDER BY started_at DESC LIMIT $1)`,
		maxSessions,
	)
	return err
}

// EndSession sets the ended_at timestamp.
func (s *Store) EndSession(id string) error {
	_, err := s.db.Exec(`UPDATE sessions SET ended_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	return err
}

// CreateTurn inserts a new in-progress turn.
func (s *Store) CreateTurn(id, sessionID string) error {
	_, err := s.db.Exec(
		`INSERT INTO turns (id, session_id, started_at, status) VALUES ($1, $2, $3, 'running')`,
		id, sessionID, time.Now().UTC(),
	)
	return err
}

// UpdateTurn sets a turn's final fields.
func (s *Store) UpdateTurn(id string, durationMs, confidence float64, transcript, intent, status string) error {
	_, err := s.db.Exec(
		`UPDATE turns SET duration_ms = $1, transcript = $2, intent = $3, confidence = $4, status = $5 WHERE id = $6`,
		durationMs, transcript, intent, confidence, status, id,
	)
	return err
}

// CreateSpan inserts a completed span.
func (s *Store) CreateSpan(sp Span) error {
	_, err := s.db.Exec(
		`INSERT INTO spans (id, turn_id, name, started_at, duration_ms, input, output, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sp.ID, sp.TurnID, sp.Name, sp.StartedAt.UTC(),
		sp.DurationMs, sp.Input, sp.Output, sp.Status, sp.Error,
	)
	return err
}

// CreateTrainingRun inserts a new in-progress training run.
func (s *Store) CreateTrainingRun(id, stage string) error {
	_, err := s.db.Exec(
		`INSERT INTO training_runs (id, stage, started_at, status) VALUES ($1, $2, $3, 'running')`,
		id, stage, time.Now().UTC(),
	)
	return err
}

// UpdateTrainingRun sets a training run's final fields.
func (s *Store) UpdateTrainingRun(id string, durationMs float64, status, errMsg string) error {
	_, err := s.db.Exec(
		`UPDATE training_runs SET duration_ms = $1, status = $2, error_msg = $3 WHERE id = $4`,
		durationMs, status, errMsg, id,
	)
	return err
}

// ListSessions returns sessions ordered newest first, with turn counts.
func (s *Store) ListSessions(limit, offset int) ([]Session, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT s.id, s.started_at, s.ended_at, COUNT(t.id) AS turn_count
		FROM sessions s
		LEFT JOIN turns t ON t.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var endedAt sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.StartedAt, &endedAt, &sess.TurnCount); err != nil {
			return nil, 0, err
		}
		if endedAt.Valid {
			sess.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, sess)
	}
	return sessions, total, rows.Err()
}

// GetSession returns a single session with its turns.
func (s *Store) GetSession(id string) (*Session, []Turn, error) {
	var sess Session
	var endedAt sql.NullTime
	if err := s.db.QueryRow(
		`SELECT id, started_at, ended_at FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.StartedAt, &endedAt); err != nil {
		return nil, nil, err
	}
	if endedAt.Valid {
		sess.EndedAt = &endedAt.Time
	}

	rows, err := s.db.Query(`
		SELECT t.id, t.session_id, t.started_at, t.duration_ms, t.transcript, t.intent, t.confidence, t.status,
		       COUNT(sp.id) AS span_count
		FROM turns t
		LEFT JOIN spans sp ON sp.turn_id = t.id
		WHERE t.session_id = $1
		GROUP BY t.id
		ORDER BY t.started_at ASC
	`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.StartedAt, &t.DurationMs, &t.Transcript, &t.Intent, &t.Confidence, &t.Status, &t.SpanCount); err != nil {
			return nil, nil, err
		}
		turns = append(turns, t)
	}
	return &sess, turns, rows.Err()
}

// GetTurn returns a single turn with its spans.
func (s *Store) GetTurn(sessionID, turnID string) (*Turn, []Span, error) {
	var t Turn
	if err := s.db.QueryRow(
		`SELECT id, session_id, started_at, duration_ms, transcript, intent, confidence, status
		 FROM turns WHERE id = $1 AND session_id = $2`,
		turnID, sessionID,
	).Scan(&t.ID, &t.SessionID, &t.StartedAt, &t.DurationMs, &t.Transcript, &t.Intent, &t.Confidence, &t.Status); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(
		`SELECT id, turn_id, name, started_at, duration_ms, input, output, status, error_msg
		 FROM spans WHERE turn_id = $1 ORDER BY started_at ASC`,
		turnID,
	)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var spans []Span
	for rows.Next() {
		var sp Span
		if err := rows.Scan(&sp.ID, &sp.TurnID, &sp.Name, &sp.StartedAt, &sp.DurationMs, &sp.Input, &sp.Output, &sp.Status, &sp.Error); err != nil {
			return nil, nil, err
		}
		spans = append(spans, sp)
	}
	return &t, spans, rows.Err()
}

// ListTrainingRuns returns training runs ordered newest first.
func (s *Store) ListTrainingRuns(limit, offset int) ([]TrainingRun, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM training_runs`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(
		`SELECT id, stage, started_at, duration_ms, status, error_msg
		 FROM training_runs ORDER BY started_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []TrainingRun
	for rows.Next() {
		var r TrainingRun
		if err := rows.Scan(&r.ID, &r.Stage, &r.StartedAt, &r.DurationMs, &r.Status, &r.Error); err != nil {
			return nil, 0, err
		}
		runs = append(runs, r)
	}
	return runs, total, rows.Err()
}
