package db

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Record is one persisted event.
type Record struct {
	ID        int64           `json:"id"`
	ProjectID string          `json:"project_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaveEvents writes a batch of records in a single transaction.
func (d *DB) SaveEvents(records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("begin event batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(
		"INSERT INTO event_log (project_id, event_type, data, source, created_at) VALUES (%s, %s, %s, %s, %s)",
		d.placeholder(1), d.placeholder(2), d.placeholder(3), d.placeholder(4), d.placeholder(5),
	)
	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		data := rec.Data
		if data == nil {
			data = json.RawMessage("null")
		}
		if _, err := stmt.Exec(rec.ProjectID, rec.EventType, string(data), rec.Source, rec.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("insert event %s: %w", rec.EventType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event batch: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first. projectID
// filters to one project when non-empty; typePrefix filters event
// types by prefix (e.g. "notify:") when non-empty.
func (d *DB) ListEvents(projectID, typePrefix string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	var (
		conds []string
		args  []any
	)
	if projectID != "" {
		conds = append(conds, fmt.Sprintf("project_id = %s", d.placeholder(len(args)+1)))
		args = append(args, projectID)
	}
	if typePrefix != "" {
		conds = append(conds, fmt.Sprintf("event_type LIKE %s", d.placeholder(len(args)+1)))
		args = append(args, typePrefix+"%")
	}

	query := "SELECT id, project_id, event_type, data, source, created_at FROM event_log"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT %s", d.placeholder(len(args)+1))
	args = append(args, limit)

	rows, err := d.sql.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var (
			rec  Record
			data string
		)
		if err := rows.Scan(&rec.ID, &rec.ProjectID, &rec.EventType, &data, &rec.Source, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Data = json.RawMessage(data)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountEvents returns the total number of persisted events.
func (d *DB) CountEvents() (int64, error) {
	var n int64
	if err := d.sql.QueryRow("SELECT COUNT(*) FROM event_log").Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}
