package dvsdb

import (
	"path/filepath"
	"testing"

	"github.com/eventvision/normflow/internal/dvs"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "flows.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testPack(ts float64, flows []dvs.NormFlow) *dvs.NormFlowPack {
	occ := dvs.NewPixelMask(16, 16)
	for _, f := range flows {
		occ.Set(f.X, f.Y, true)
	}
	return &dvs.NormFlowPack{
		TimestampSec:    ts,
		Flows:           flows,
		InlierOccupancy: occ,
	}
}

func TestStartAndEndRun(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.StartRun(346, 260, "bench capture")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if runID == "" {
		t.Fatal("empty run ID")
	}

	var width int
	var notes string
	err = db.QueryRow(`SELECT sensor_width, notes FROM runs WHERE run_id = ?`, runID).Scan(&width, &notes)
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if width != 346 || notes != "bench capture" {
		t.Errorf("run row = (%d, %q), want (346, bench capture)", width, notes)
	}

	if err := db.EndRun(runID); err != nil {
		t.Fatalf("end run: %v", err)
	}
	var ended bool
	err = db.QueryRow(`SELECT end_timestamp IS NOT NULL FROM runs WHERE run_id = ?`, runID).Scan(&ended)
	if err != nil {
		t.Fatalf("query end: %v", err)
	}
	if !ended {
		t.Error("end timestamp not set")
	}
}

func TestRecordPackAndReadBack(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.StartRun(16, 16, "")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	flows := []dvs.NormFlow{
		{X: 3, Y: 4, TimestampSec: 1.001, VX: 12.5, VY: -3.25},
		{X: 8, Y: 9, TimestampSec: 1.002, VX: -40.0, VY: 7.0},
	}
	if err := db.RecordPack(runID, testPack(1.002, flows)); err != nil {
		t.Fatalf("record pack: %v", err)
	}

	cycles, err := db.RecentCycles(10)
	if err != nil {
		t.Fatalf("recent cycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("cycle count = %d, want 1", len(cycles))
	}
	c := cycles[0]
	if c.RunID != runID || c.SurfaceTime != 1.002 || c.FlowCount != 2 || c.InlierCount != 2 {
		t.Errorf("cycle = %+v, want run %s time 1.002 flows 2 inliers 2", c, runID)
	}

	stored, err := db.CycleFlows(c.CycleID)
	if err != nil {
		t.Fatalf("cycle flows: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("flow count = %d, want 2", len(stored))
	}
	if stored[0].X != 3 || stored[0].VX != 12.5 || stored[1].VY != 7.0 {
		t.Errorf("stored flows = %+v", stored)
	}
}

func TestRecentCyclesOrderAndLimit(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.StartRun(16, 16, "")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := db.RecordPack(runID, testPack(float64(i), nil)); err != nil {
			t.Fatalf("record pack %d: %v", i, err)
		}
	}

	cycles, err := db.RecentCycles(3)
	if err != nil {
		t.Fatalf("recent cycles: %v", err)
	}
	if len(cycles) != 3 {
		t.Fatalf("cycle count = %d, want 3", len(cycles))
	}
	// Newest first.
	if cycles[0].SurfaceTime != 4.0 || cycles[2].SurfaceTime != 2.0 {
		t.Errorf("order = [%f %f %f], want [4 3 2]",
			cycles[0].SurfaceTime, cycles[1].SurfaceTime, cycles[2].SurfaceTime)
	}
}

func TestRecordPackEmptyFlows(t *testing.T) {
	db := openTestDB(t)

	runID, err := db.StartRun(16, 16, "")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := db.RecordPack(runID, testPack(0.5, nil)); err != nil {
		t.Fatalf("record empty pack: %v", err)
	}

	cycles, err := db.RecentCycles(1)
	if err != nil {
		t.Fatalf("recent cycles: %v", err)
	}
	if len(cycles) != 1 || cycles[0].FlowCount != 0 {
		t.Errorf("cycles = %+v, want one row with zero flows", cycles)
	}
}
