package dvs

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestPlaneFitCollectorDisabledWithoutDir(t *testing.T) {
	if NewPlaneFitCollector("").Enabled() {
		t.Error("collector enabled with empty dir")
	}
	if NewPlaneFitCollector(filepath.Join(t.TempDir(), "missing")).Enabled() {
		t.Error("collector enabled for a nonexistent dir")
	}
	var nilCollector *PlaneFitCollector
	if nilCollector.Enabled() {
		t.Error("nil collector reports enabled")
	}
}

func TestPlaneFitCollectorEmit(t *testing.T) {
	dir := t.TempDir()
	c := NewPlaneFitCollector(dir)
	if !c.Enabled() {
		t.Fatal("collector disabled for an existing dir")
	}

	c.Record([]float64{-2, -3, -5}, []PlanePoint{{X: 0, Y: 0, T: 5}})
	c.Emit()
	c.Record([]float64{-1, 0, 0}, []PlanePoint{{X: 1, Y: 1, T: 1}})
	c.Emit()

	for i := 0; i < 2; i++ {
		path := filepath.Join(dir, "event_local_planes"+string(rune('0'+i))+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("dump %d missing: %v", i, err)
		}
		var doc map[string][]PlaneFitRecord
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("dump %d not valid JSON: %v", i, err)
		}
		if len(doc["event_local_planes"]) != 1 {
			t.Errorf("dump %d holds %d records, want 1", i, len(doc["event_local_planes"]))
		}
	}

	// An empty cycle writes nothing and does not advance the sequence.
	c.Emit()
	if _, err := os.Stat(filepath.Join(dir, "event_local_planes2.json")); err == nil {
		t.Error("empty cycle produced a dump file")
	}
}
