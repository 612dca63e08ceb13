package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lta97/junkpool/internal/core/domain"
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) AppendEvent(ctx context.Context, event domain.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO events (id, type, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		event.ID, string(event.Type), payload, event.At,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) RecentEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, type, payload, created_at
		FROM events ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Type, &payload, &e.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
