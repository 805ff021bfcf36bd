package outbox

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/md-rashed-zaman/ordersaga/libs/apperr"
	"github.com/md-rashed-zaman/ordersaga/libs/db"
)

type PostgresRepository struct {
	pool *db.Pool
}

func NewPostgresRepository(pool *db.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Insert(ctx context.Context, e Event) error {
	tx, err := db.RequireTx(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, topic, payload, schema_ref, traceparent, tracestate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
	`, e.ID, e.AggregateType, e.AggregateID, e.EventType, e.Topic, e.Payload, e.SchemaRef, e.Traceparent, e.Tracestate, e.CreatedAt)
	return err
}

// FetchPending locks rows with SKIP LOCKED so concurrent relays split the backlog.
func (r *PostgresRepository) FetchPending(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT id::text, aggregate_type, aggregate_id, event_type, topic, payload, schema_ref,
		       COALESCE(traceparent, ''), COALESCE(tracestate, ''), attempts, COALESCE(last_error, ''), created_at
		FROM outbox_events
		ORDER BY seq
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Topic, &e.Payload, &e.SchemaRef,
			&e.Traceparent, &e.Tracestate, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Querier(ctx).Exec(ctx, `DELETE FROM outbox_events WHERE id = $1`, id)
	return err
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, reason string) (int, error) {
	var attempts int
	err := r.pool.Querier(ctx).QueryRow(ctx, `
		UPDATE outbox_events
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1
		RETURNING attempts
	`, id, reason).Scan(&attempts)
	if db.IsNoRows(err) {
		return 0, apperr.NotFound("outbox event %s", id)
	}
	return attempts, err
}

func (r *PostgresRepository) DeadLetter(ctx context.Context, e Event, reason string) error {
	return r.pool.WithinTx(ctx, func(ctx context.Context) error {
		q := r.pool.Querier(ctx)
		if _, err := q.Exec(ctx, `
			INSERT INTO outbox_dead_letters (id, aggregate_type, aggregate_id, event_type, topic, payload, schema_ref, attempts, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, e.AggregateType, e.AggregateID, e.EventType, e.Topic, e.Payload, e.SchemaRef, e.Attempts, reason, e.CreatedAt); err != nil {
			return fmt.Errorf("insert dead letter: %w", err)
		}
		_, err := q.Exec(ctx, `DELETE FROM outbox_events WHERE id = $1`, e.ID)
		return err
	})
}

func (r *PostgresRepository) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	rows, err := r.pool.Querier(ctx).Query(ctx, `
		SELECT id::text, aggregate_type, aggregate_id, event_type, topic, payload, schema_ref, attempts, reason, created_at, failed_at
		FROM outbox_dead_letters
		ORDER BY failed_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (DeadLetter, error) {
		var d DeadLetter
		err := row.Scan(&d.ID, &d.AggregateType, &d.AggregateID, &d.EventType, &d.Topic, &d.Payload, &d.SchemaRef,
			&d.Attempts, &d.Reason, &d.CreatedAt, &d.FailedAt)
		return d, err
	})
}

var _ Repository = (*PostgresRepository)(nil)
