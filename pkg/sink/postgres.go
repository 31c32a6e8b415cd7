package sink

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the "pgx5" scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/codeready-toolchain/agentsim/pkg/record"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresSink is the durable Sink backed directly by pgx.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and applies migrations embedded in this
// package.
func NewPostgres(ctx context.Context, dsn string) (*PostgresSink, error) {
	if err := runMigrations(dsn); err != nil {
		return nil, fmt.Errorf("sink: migration failed: %w", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("sink: connect: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// migrationSchemePrefix rewrites a plain postgres DSN to the "pgx5://"
// scheme the golang-migrate pgx/v5 driver registers under.
func migrationSchemePrefix(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func runMigrations(dsn string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrationSchemePrefix(dsn))
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close releases the pool.
func (s *PostgresSink) Close() { s.pool.Close() }

func (s *PostgresSink) RecordDecisions(ctx context.Context, recs []record.DecisionRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range recs {
		queueInsertDecision(batch, rec)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("sink: insert decision: %w", err)
		}
	}
	return nil
}

func (s *PostgresSink) RecordEvents(ctx context.Context, recs []record.EventRecord) error {
	batch := &pgx.Batch{}
	for _, rec := range recs {
		payload, _ := json.Marshal(rec.Payload)
		batch.Queue(`
			INSERT INTO storage_events (event_id, trail_id, universe_id, parent_event_id, from_agent_id, to_agent_id, event_kind, timestamp, payload)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (event_id) DO NOTHING`,
			rec.EventID, rec.TrailID, rec.UniverseID, rec.ParentEventID, rec.FromAgentID, rec.ToAgentID, rec.EventKind, rec.Timestamp, payload)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("sink: insert event: %w", err)
		}
	}
	return nil
}

func queueInsertDecision(batch *pgx.Batch, rec record.DecisionRecord) {
	contextJSON, _ := json.Marshal(rec.Context)
	if rec.DecisionID == "" {
		rec.DecisionID = uuid.NewString()
	}
	batch.Queue(`
		INSERT INTO decisions (decision_id, trail_id, universe_id, agent_id, agent_type, step, event_id, timestamp, context, prompt, output, processing_ms, input_tokens, output_tokens, thinking_tokens, rating, feedback, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		ON CONFLICT (decision_id) DO NOTHING`,
		rec.DecisionID, rec.TrailID, rec.UniverseID, rec.AgentID, rec.AgentType, rec.Step, rec.EventID,
		rec.Timestamp, contextJSON, rec.Prompt, rec.Output, rec.ProcessingTime.Milliseconds(),
		rec.TokenUsage.InputTokens, rec.TokenUsage.OutputTokens, rec.TokenUsage.ThinkingTokens,
		rec.Rating, rec.Feedback, rec.Reason)
}

func (s *PostgresSink) RecordDecision(ctx context.Context, rec record.DecisionRecord) (string, error) {
	if err := s.RecordDecisions(ctx, []record.DecisionRecord{rec}); err != nil {
		return "", err
	}
	return rec.DecisionID, nil
}

func (s *PostgresSink) AddFeedback(ctx context.Context, decisionID, text string) error {
	_, err := s.pool.Exec(ctx, `UPDATE decisions SET feedback = $2 WHERE decision_id = $1`, decisionID, text)
	return err
}

func (s *PostgresSink) AddRating(ctx context.Context, decisionID string, rating float64) error {
	_, err := s.pool.Exec(ctx, `UPDATE decisions SET rating = $2 WHERE decision_id = $1`, decisionID, rating)
	return err
}

func (s *PostgresSink) AddReason(ctx context.Context, decisionID, text string) error {
	_, err := s.pool.Exec(ctx, `UPDATE decisions SET reason = $2 WHERE decision_id = $1`, decisionID, text)
	return err
}

func (s *PostgresSink) GetAgentDecisions(ctx context.Context, f Filters) ([]record.DecisionRecord, error) {
	query := `SELECT decision_id, trail_id, universe_id, agent_id, agent_type, step, event_id, timestamp, context, prompt, output, processing_ms, input_tokens, output_tokens, thinking_tokens, rating, feedback, reason
		FROM decisions WHERE trail_id = $1 AND agent_id = $2 AND universe_id = $3`
	args := []any{f.TrailID, f.AgentID, f.UniverseID}
	if f.StartStep != nil {
		args = append(args, *f.StartStep)
		query += fmt.Sprintf(" AND step >= $%d", len(args))
	}
	if f.EndStep != nil {
		args = append(args, *f.EndStep)
		query += fmt.Sprintf(" AND step <= $%d", len(args))
	}
	query += " ORDER BY step ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sink: query decisions: %w", err)
	}
	defer rows.Close()

	var out []record.DecisionRecord
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDecision(rows rowScanner) (record.DecisionRecord, error) {
	var rec record.DecisionRecord
	var contextJSON []byte
	var processingMS int64

	err := rows.Scan(
		&rec.DecisionID, &rec.TrailID, &rec.UniverseID, &rec.AgentID, &rec.AgentType, &rec.Step,
		&rec.EventID, &rec.Timestamp, &contextJSON, &rec.Prompt, &rec.Output, &processingMS,
		&rec.TokenUsage.InputTokens, &rec.TokenUsage.OutputTokens, &rec.TokenUsage.ThinkingTokens,
		&rec.Rating, &rec.Feedback, &rec.Reason,
	)
	if err != nil {
		return record.DecisionRecord{}, fmt.Errorf("sink: scan decision: %w", err)
	}
	rec.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	if len(contextJSON) > 0 {
		_ = json.Unmarshal(contextJSON, &rec.Context)
	}
	return rec, nil
}

func (s *PostgresSink) ExportTrainingData(ctx context.Context, f Filters, format ExportFormat, includeContext bool) ([]byte, error) {
	recs, err := s.GetAgentDecisions(ctx, f)
	if err != nil {
		return nil, err
	}
	return encodeExport(recs, format, includeContext)
}
