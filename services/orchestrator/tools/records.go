// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AleutianAI/AleutianSupport/services/orchestrator/datatypes"
	"github.com/AleutianAI/AleutianSupport/services/orchestrator/flow"
)

// Records is the SQLite-backed flow.RecordStore: the error-code table
// and the peripheral-compatibility table.
type Records struct {
	db *sql.DB
}

var _ flow.RecordStore = (*Records)(nil)

// OpenRecords opens (and if needed creates) the structured-data
// database at dbPath. An empty path opens an in-memory database for
// tests. Caller must Close.
func OpenRecords(dbPath string) (*Records, error) {
	dsn := ":memory:"
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
			return nil, fmt.Errorf("create records directory: %w", err)
		}
		dsn = dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open records database: %w", err)
	}
	if dbPath == "" {
		// An in-memory database lives per connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping records database: %w", err)
	}

	r := &Records{db: db}
	if err := r.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close releases the database handle.
func (r *Records) Close() error {
	return r.db.Close()
}

func (r *Records) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS error_codes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		model_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		cause TEXT NOT NULL,
		support_level TEXT NOT NULL,
		resolution_steps TEXT NOT NULL,
		escalation_note TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_error_codes_model_code ON error_codes(model_id, code);

	CREATE TABLE IF NOT EXISTS peripheral_compatibility (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id TEXT NOT NULL,
		peripheral_type TEXT NOT NULL,
		peripheral_name TEXT NOT NULL,
		is_compatible INTEGER NOT NULL DEFAULT 1,
		connection_method TEXT,
		setup_steps TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_peripheral_model_type ON peripheral_compatibility(model_id, peripheral_type);
	`
	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("create records schema: %w", err)
	}
	return nil
}

// LookupErrorCode returns the record for (model, code), or (nil, nil)
// when the code is not registered for the model.
func (r *Records) LookupErrorCode(ctx context.Context, model, code string) (*datatypes.ErrorCode, error) {
	query := `
		SELECT code, model_id, title, description, cause, support_level,
		       resolution_steps, escalation_note
		FROM error_codes WHERE model_id = ? AND code = ?`

	row := r.db.QueryRowContext(ctx, query, model, code)

	var rec datatypes.ErrorCode
	var stepsJSON string
	var note sql.NullString
	err := row.Scan(&rec.Code, &rec.ModelId, &rec.Title, &rec.Description,
		&rec.Cause, &rec.SupportLevel, &stepsJSON, &note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup error code %s/%s: %w", model, code, err)
	}
	if err := json.Unmarshal([]byte(stepsJSON), &rec.ResolutionSteps); err != nil {
		return nil, fmt.Errorf("decoding resolution steps for %s/%s: %w", model, code, err)
	}
	rec.EscalationNote = note.String
	return &rec, nil
}

// SearchErrorsBySymptom returns the model's error codes whose title,
// cause, or description mentions the symptom text. The second return
// reports whether anything matched; on no match the model's full code
// list is returned so the caller still has grounding data.
func (r *Records) SearchErrorsBySymptom(ctx context.Context, model, symptom string) ([]datatypes.ErrorCode, bool, error) {
	all, err := r.errorCodesForModel(ctx, model)
	if err != nil {
		return nil, false, err
	}

	needle := strings.ToLower(symptom)
	var matched []datatypes.ErrorCode
	for _, rec := range all {
		if strings.Contains(strings.ToLower(rec.Description), needle) ||
			strings.Contains(strings.ToLower(rec.Cause), needle) ||
			strings.Contains(strings.ToLower(rec.Title), needle) {
			matched = append(matched, rec)
		}
	}
	if len(matched) > 0 {
		return matched, true, nil
	}
	return all, false, nil
}

func (r *Records) errorCodesForModel(ctx context.Context, model string) ([]datatypes.ErrorCode, error) {
	query := `
		SELECT code, model_id, title, description, cause, support_level,
		       resolution_steps, escalation_note
		FROM error_codes WHERE model_id = ? ORDER BY code`

	rows, err := r.db.QueryContext(ctx, query, model)
	if err != nil {
		return nil, fmt.Errorf("listing error codes for %s: %w", model, err)
	}
	defer rows.Close()

	var out []datatypes.ErrorCode
	for rows.Next() {
		var rec datatypes.ErrorCode
		var stepsJSON string
		var note sql.NullString
		if err := rows.Scan(&rec.Code, &rec.ModelId, &rec.Title, &rec.Description,
			&rec.Cause, &rec.SupportLevel, &stepsJSON, &note); err != nil {
			return nil, fmt.Errorf("scanning error code row: %w", err)
		}
		if err := json.Unmarshal([]byte(stepsJSON), &rec.ResolutionSteps); err != nil {
			return nil, fmt.Errorf("decoding resolution steps for %s: %w", rec.Code, err)
		}
		rec.EscalationNote = note.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CheckPeripheral returns compatibility rows for the model, optionally
// narrowed by peripheral type and a substring of the peripheral name.
func (r *Records) CheckPeripheral(ctx context.Context, model, peripheralType, peripheralName string) ([]datatypes.PeripheralCompat, error) {
	query := `
		SELECT model_id, peripheral_type, peripheral_name, is_compatible,
		       connection_method, setup_steps
		FROM peripheral_compatibility WHERE model_id = ?`
	args := []interface{}{model}

	if peripheralType != "" {
		query += " AND peripheral_type = ?"
		args = append(args, peripheralType)
	}
	if peripheralName != "" {
		query += " AND LOWER(peripheral_name) LIKE ?"
		args = append(args, "%"+strings.ToLower(peripheralName)+"%")
	}
	query += " ORDER BY peripheral_type, peripheral_name"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("checking peripherals for %s: %w", model, err)
	}
	defer rows.Close()

	var out []datatypes.PeripheralCompat
	for rows.Next() {
		var rec datatypes.PeripheralCompat
		var stepsJSON string
		var method sql.NullString
		if err := rows.Scan(&rec.ModelId, &rec.PeripheralType, &rec.PeripheralName,
			&rec.IsCompatible, &method, &stepsJSON); err != nil {
			return nil, fmt.Errorf("scanning peripheral row: %w", err)
		}
		if err := json.Unmarshal([]byte(stepsJSON), &rec.SetupSteps); err != nil {
			return nil, fmt.Errorf("decoding setup steps for %s: %w", rec.PeripheralName, err)
		}
		rec.ConnectionMethod = method.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
