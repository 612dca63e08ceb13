package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"math/big"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/lta97/junkpool/internal/core/domain"
)

func getMySQL(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/junkpool?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id         VARCHAR(36) PRIMARY KEY,
			type       VARCHAR(64) NOT NULL,
			payload    JSON NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`)
	if err != nil {
		t.Fatalf("create events table: %v", err)
	}
	return db
}

func TestAppendAndRecentEvents(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	// Setup
	db.ExecContext(ctx, `DELETE FROM events`)

	first := domain.Event{
		ID:   uuid.NewString(),
		Type: domain.EventFunded,
		At:   time.Now().Add(-time.Minute).UTC().Truncate(time.Microsecond),
		Payload: domain.FundedPayload{
			From:   "funder",
			Amount: big.NewInt(42),
		},
	}
	second := domain.Event{
		ID:      uuid.NewString(),
		Type:    domain.EventRefreshed,
		At:      time.Now().UTC().Truncate(time.Microsecond),
		Payload: domain.RefreshedPayload{OldAvailable: 0, NewAvailable: 3},
	}

	if err := adapter.AppendEvent(ctx, first); err != nil {
		t.Fatalf("append first: %v", err)
	}
	if err := adapter.AppendEvent(ctx, second); err != nil {
		t.Fatalf("append second: %v", err)
	}

	events, err := adapter.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != domain.EventRefreshed {
		t.Errorf("expected newest first, got %s", events[0].Type)
	}

	var payload domain.RefreshedPayload
	raw, ok := events[0].Payload.(json.RawMessage)
	if !ok {
		t.Fatalf("expected raw payload, got %T", events[0].Payload)
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.NewAvailable != 3 {
		t.Errorf("expected new available 3, got %d", payload.NewAvailable)
	}
}

func TestRecentEvents_RespectsLimit(t *testing.T) {
	db := getMySQL(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	db.ExecContext(ctx, `DELETE FROM events`)
	for i := 0; i < 5; i++ {
		e := domain.Event{
			ID:      uuid.NewString(),
			Type:    domain.EventFunded,
			At:      time.Now().UTC(),
			Payload: domain.FundedPayload{From: "funder", Amount: big.NewInt(int64(i))},
		}
		if err := adapter.AppendEvent(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	events, err := adapter.RecentEvents(ctx, 3)
	if err != nil {
		t.Fatalf("recent events: %v", err)
	}
	if len(events) != 3 {
		t.Errorf("expected 3 events, got %d", len(events))
	}
}
