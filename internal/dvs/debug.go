package dvs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eventvision/normflow/internal/monitoring"
)

// PlaneFitRecord captures one verified anchor's refined plane coefficients
// and its centred inlier point set.
type PlaneFitRecord struct {
	Coefficients []float64    `json:"coefficients"`
	Inliers      []PlanePoint `json:"inliers"`
}

// PlaneFitCollector accumulates plane-fit records during one extraction
// cycle and dumps them as numbered JSON files into a debug directory. The
// collector is active only when the directory exists; it is a diagnostic
// aid, not part of the extraction contract.
//
// Call Record during extraction, Emit at cycle completion. Emit resets the
// collector for the next cycle.
type PlaneFitCollector struct {
	dir     string
	enabled bool
	seq     int
	records []PlaneFitRecord
}

// NewPlaneFitCollector returns a collector writing into dir. The collector
// is disabled when dir is empty or does not exist.
func NewPlaneFitCollector(dir string) *PlaneFitCollector {
	c := &PlaneFitCollector{dir: dir}
	if dir == "" {
		return c
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		c.enabled = true
	}
	return c
}

// Enabled reports whether the collector records anything. Safe on nil.
func (c *PlaneFitCollector) Enabled() bool { return c != nil && c.enabled }

// Record stores one plane fit. No-op when disabled.
func (c *PlaneFitCollector) Record(coefficients []float64, inliers []PlanePoint) {
	if !c.Enabled() {
		return
	}
	c.records = append(c.records, PlaneFitRecord{
		Coefficients: coefficients,
		Inliers:      inliers,
	})
}

// Emit writes the accumulated records of the finished cycle to
// event_local_planes<N>.json and resets the collector. Write failures are
// logged, not propagated: debug output must never fail an extraction.
func (c *PlaneFitCollector) Emit() {
	if !c.Enabled() || len(c.records) == 0 {
		c.Reset()
		return
	}
	path := filepath.Join(c.dir, fmt.Sprintf("event_local_planes%d.json", c.seq))
	data, err := json.MarshalIndent(map[string][]PlaneFitRecord{"event_local_planes": c.records}, "", "  ")
	if err != nil {
		monitoring.Logf("plane-fit collector: marshal failed: %v", err)
		c.Reset()
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		monitoring.Logf("plane-fit collector: write %s failed: %v", path, err)
	}
	c.seq++
	c.Reset()
}

// Reset discards accumulated records without writing.
func (c *PlaneFitCollector) Reset() {
	if c == nil {
		return
	}
	c.records = c.records[:0]
}
