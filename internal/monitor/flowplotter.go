package monitor

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/eventvision/normflow/internal/dvs"
)

// FlowPlotter records per-cycle extraction summaries for visualization.
// It samples each pack via ObservePack, accumulating time series data that
// can be plotted after a run.
type FlowPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	samples []FlowSample
}

// FlowSample represents one extraction cycle's summary
type FlowSample struct {
	CycleIdx    int
	SurfaceTime float64
	FlowCount   int
	InlierCount int
	MeanSpeed   float64
	MaxSpeed    float64
}

// NewFlowPlotter creates a plotter. Call Start before sampling.
func NewFlowPlotter() *FlowPlotter {
	return &FlowPlotter{}
}

// Start initializes the plotter for a new run.
// outputDir should be a timestamped directory (e.g., "plots/capture-001/20260823_101500")
func (fp *FlowPlotter) Start(outputDir string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	fp.outputDir = outputDir
	fp.enabled = true
	fp.samples = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (fp *FlowPlotter) Stop() {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (fp *FlowPlotter) IsEnabled() bool {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.enabled
}

// ObservePack captures one cycle's summary. Implements dvs.PackObserver.
func (fp *FlowPlotter) ObservePack(pack *dvs.NormFlowPack) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if !fp.enabled {
		return
	}

	meanSpeed := 0.0
	maxSpeed := 0.0
	for _, f := range pack.Flows {
		speed := math.Hypot(f.VX, f.VY)
		meanSpeed += speed
		if speed > maxSpeed {
			maxSpeed = speed
		}
	}
	if len(pack.Flows) > 0 {
		meanSpeed /= float64(len(pack.Flows))
	}

	fp.samples = append(fp.samples, FlowSample{
		CycleIdx:    len(fp.samples) + 1,
		SurfaceTime: pack.TimestampSec,
		FlowCount:   len(pack.Flows),
		InlierCount: pack.InlierOccupancy.Count(),
		MeanSpeed:   meanSpeed,
		MaxSpeed:    maxSpeed,
	})
}

// GetSampleCount returns the number of cycles sampled.
func (fp *FlowPlotter) GetSampleCount() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return len(fp.samples)
}

// GetOutputDir returns the current output directory for plots.
func (fp *FlowPlotter) GetOutputDir() string {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return fp.outputDir
}

// GeneratePlots creates PNG files summarising the run: flow/inlier counts
// per cycle and flow speeds per cycle. Returns the number of plots written.
func (fp *FlowPlotter) GeneratePlots() (int, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if fp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(fp.samples) == 0 {
		return 0, nil
	}

	countPts := make(plotter.XYs, 0, len(fp.samples))
	inlierPts := make(plotter.XYs, 0, len(fp.samples))
	meanPts := make(plotter.XYs, 0, len(fp.samples))
	maxPts := make(plotter.XYs, 0, len(fp.samples))
	for _, s := range fp.samples {
		x := float64(s.CycleIdx)
		countPts = append(countPts, plotter.XY{X: x, Y: float64(s.FlowCount)})
		inlierPts = append(inlierPts, plotter.XY{X: x, Y: float64(s.InlierCount)})
		if s.FlowCount > 0 {
			meanPts = append(meanPts, plotter.XY{X: x, Y: s.MeanSpeed})
			maxPts = append(maxPts, plotter.XY{X: x, Y: s.MaxSpeed})
		}
	}

	pCounts := plot.New()
	pCounts.Title.Text = "Flows and Inlier Pixels per Cycle"
	pCounts.X.Label.Text = "Cycle"
	pCounts.Y.Label.Text = "Count"

	countLine, err := plotter.NewLine(countPts)
	if err != nil {
		return 0, err
	}
	countLine.Width = vg.Points(1)
	pCounts.Add(countLine)
	pCounts.Legend.Add("flows", countLine)

	inlierLine, err := plotter.NewLine(inlierPts)
	if err != nil {
		return 0, err
	}
	inlierLine.Width = vg.Points(1)
	inlierLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	pCounts.Add(inlierLine)
	pCounts.Legend.Add("inlier pixels", inlierLine)
	pCounts.Legend.Top = true

	countsFile := filepath.Join(fp.outputDir, "cycle_counts.png")
	if err := pCounts.Save(14*vg.Inch, 6*vg.Inch, countsFile); err != nil {
		return 0, fmt.Errorf("save counts plot: %w", err)
	}

	pSpeed := plot.New()
	pSpeed.Title.Text = "Flow Speed per Cycle"
	pSpeed.X.Label.Text = "Cycle"
	pSpeed.Y.Label.Text = "Speed (px/s)"

	plots := 1
	if len(meanPts) > 0 {
		meanLine, err := plotter.NewLine(meanPts)
		if err != nil {
			return plots, err
		}
		meanLine.Width = vg.Points(1)
		pSpeed.Add(meanLine)
		pSpeed.Legend.Add("mean", meanLine)

		maxLine, err := plotter.NewLine(maxPts)
		if err != nil {
			return plots, err
		}
		maxLine.Width = vg.Points(1)
		maxLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		pSpeed.Add(maxLine)
		pSpeed.Legend.Add("max", maxLine)
		pSpeed.Legend.Top = true

		speedFile := filepath.Join(fp.outputDir, "cycle_speeds.png")
		if err := pSpeed.Save(14*vg.Inch, 6*vg.Inch, speedFile); err != nil {
			return plots, fmt.Errorf("save speed plot: %w", err)
		}
		plots++
	}

	return plots, nil
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory for plots.
// For capture files: plots/<capture_basename>/<timestamp>
// For live data: plots/live_<timestamp>
func MakePlotOutputDir(baseDir, captureFile string) string {
	ts := FormatTimestamp(time.Now())
	if captureFile != "" {
		base := filepath.Base(captureFile)
		ext := filepath.Ext(base)
		name := base[:len(base)-len(ext)]
		return filepath.Join(baseDir, name, ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
