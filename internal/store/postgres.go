package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/brahimbus/FcmControll/internal/model"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scheduled_messages (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			send_time TEXT NOT NULL DEFAULT '',
			start_date TEXT NOT NULL,
			end_date TEXT,
			loop_daily BOOLEAN NOT NULL DEFAULT FALSE,
			status TEXT NOT NULL DEFAULT 'active'
		)
	`); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS message_history (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			sent_time TIMESTAMPTZ NOT NULL,
			status TEXT NOT NULL,
			detail TEXT
		)
	`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, msg model.ScheduledMessage) (int64, error) {
	var endDate sql.NullString
	if msg.EndDate != "" {
		endDate = sql.NullString{String: msg.EndDate, Valid: true}
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO scheduled_messages (content, send_time, start_date, end_date, loop_daily, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		RETURNING id
	`, msg.Content, msg.SendTime, msg.StartDate, endDate, msg.LoopDaily).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (model.ScheduledMessage, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, send_time, start_date, end_date, loop_daily, status
		FROM scheduled_messages
		WHERE id = $1
	`, id)

	msg, err := scanMessage(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduledMessage{}, ErrNotFound
	}
	return msg, err
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]model.ScheduledMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, send_time, start_date, end_date, loop_daily, status
		FROM scheduled_messages
		WHERE status != 'cancelled'
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ScheduledMessage
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetStatus(ctx context.Context, id int64, status model.Status) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_messages
		SET status = $2
		WHERE id = $1
	`, id, string(status))
	return err
}

func (s *PostgresStore) AppendHistory(ctx context.Context, entry model.HistoryEntry) (int64, error) {
	var detail sql.NullString
	if entry.Detail != "" {
		detail = sql.NullString{String: entry.Detail, Valid: true}
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO message_history (content, sent_time, status, detail)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, entry.Content, entry.SentTime, string(entry.Status), detail).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, sent_time, status, detail
		FROM message_history
		ORDER BY sent_time DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var status string
		var detail sql.NullString

		if err := rows.Scan(&e.ID, &e.Content, &e.SentTime, &status, &detail); err != nil {
			return nil, err
		}

		e.Status = model.HistoryStatus(status)
		if detail.Valid {
			e.Detail = detail.String
		}

		out = append(out, e)
	}
	return out, rows.Err()
}

func scanMessage(scan func(dest ...any) error) (model.ScheduledMessage, error) {
	var m model.ScheduledMessage
	var status string
	var endDate sql.NullString

	if err := scan(
		&m.ID,
		&m.Content,
		&m.SendTime,
		&m.StartDate,
		&endDate,
		&m.LoopDaily,
		&status,
	); err != nil {
		return model.ScheduledMessage{}, err
	}

	m.Status = model.Status(status)
	if endDate.Valid {
		m.EndDate = endDate.String
	}
	return m, nil
}
