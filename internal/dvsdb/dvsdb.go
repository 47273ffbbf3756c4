// Package dvsdb persists normal-flow extraction results to SQLite.
package dvsdb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eventvision/normflow/internal/dvs"
)

type DB struct {
	*sql.DB
}

// schema.sql creates the run/cycle/flow tables. A run is one capture or
// replay session; each extraction cycle stores its summary plus every
// accepted flow vector.
//
//go:embed schema.sql
var schemaSQL string

func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, err
	}

	log.Println("initialized flow database schema")

	return &DB{db}, nil
}

// StartRun creates a new run record and returns its generated ID.
func (db *DB) StartRun(width, height int, notes string) (string, error) {
	runID := uuid.New().String()
	_, err := db.Exec(
		`INSERT INTO runs (run_id, sensor_width, sensor_height, notes) VALUES (?, ?, ?, ?)`,
		runID, width, height, notes,
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return runID, nil
}

// EndRun stamps the run's end time.
func (db *DB) EndRun(runID string) error {
	_, err := db.Exec(
		`UPDATE runs SET end_timestamp = CURRENT_TIMESTAMP WHERE run_id = ?`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to end run: %w", err)
	}
	return nil
}

// RecordPack stores one extraction cycle and all of its flow vectors in a
// single transaction.
func (db *DB) RecordPack(runID string, pack *dvs.NormFlowPack) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`INSERT INTO cycles (run_id, surface_time, flow_count, inlier_count) VALUES (?, ?, ?, ?)`,
		runID, pack.TimestampSec, len(pack.Flows), pack.InlierOccupancy.Count(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}
	cycleID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get cycle ID: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO flows (cycle_id, x, y, event_time, vx, vy) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare flow insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range pack.Flows {
		if _, err := stmt.Exec(cycleID, f.X, f.Y, f.TimestampSec, f.VX, f.VY); err != nil {
			return fmt.Errorf("failed to insert flow at (%d,%d): %w", f.X, f.Y, err)
		}
	}

	return tx.Commit()
}

// CycleSummary is one extraction cycle's stored summary row.
type CycleSummary struct {
	CycleID     int64   `json:"cycle_id"`
	RunID       string  `json:"run_id"`
	SurfaceTime float64 `json:"surface_time"`
	FlowCount   int     `json:"flow_count"`
	InlierCount int     `json:"inlier_count"`
}

// RecentCycles returns the most recent cycle summaries, newest first.
func (db *DB) RecentCycles(limit int) ([]CycleSummary, error) {
	rows, err := db.Query(
		`SELECT cycle_id, run_id, surface_time, flow_count, inlier_count
		 FROM cycles ORDER BY cycle_id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent cycles: %w", err)
	}
	defer rows.Close()

	cycles := []CycleSummary{}
	for rows.Next() {
		var c CycleSummary
		if err := rows.Scan(&c.CycleID, &c.RunID, &c.SurfaceTime, &c.FlowCount, &c.InlierCount); err != nil {
			return nil, fmt.Errorf("failed to scan cycle row: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// FlowRow is one stored flow vector.
type FlowRow struct {
	X         int     `json:"x"`
	Y         int     `json:"y"`
	EventTime float64 `json:"event_time"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
}

// CycleFlows returns all flow vectors stored for one cycle.
func (db *DB) CycleFlows(cycleID int64) ([]FlowRow, error) {
	rows, err := db.Query(
		`SELECT x, y, event_time, vx, vy FROM flows WHERE cycle_id = ? ORDER BY flow_id`,
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query flows: %w", err)
	}
	defer rows.Close()

	flows := []FlowRow{}
	for rows.Next() {
		var f FlowRow
		if err := rows.Scan(&f.X, &f.Y, &f.EventTime, &f.VX, &f.VY); err != nil {
			return nil, fmt.Errorf("failed to scan flow row: %w", err)
		}
		flows = append(flows, f)
	}
	return flows, rows.Err()
}
