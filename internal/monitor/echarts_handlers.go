package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// handleFlowRateChart renders line charts of flow and inlier counts over the
// most recent stored cycles. Debugging-only endpoint (no auth).
// Query params: limit (optional, default 200, max 1000)
func (ws *WebServer) handleFlowRateChart(w http.ResponseWriter, r *http.Request) {
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	cycles, err := ws.db.RecentCycles(limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("query cycles: %v", err))
		return
	}
	if len(cycles) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no cycles stored yet")
		return
	}

	// RecentCycles returns newest first; plot oldest to newest.
	x := make([]string, 0, len(cycles))
	flowSeries := make([]opts.LineData, 0, len(cycles))
	inlierSeries := make([]opts.LineData, 0, len(cycles))
	for i := len(cycles) - 1; i >= 0; i-- {
		c := cycles[i]
		x = append(x, fmt.Sprintf("%.3f", c.SurfaceTime))
		flowSeries = append(flowSeries, opts.LineData{Value: c.FlowCount})
		inlierSeries = append(inlierSeries, opts.LineData{Value: c.InlierCount})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Flow Extraction Rates", Theme: "dark", Width: "1200px", Height: "600px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Flow Extraction Rates", Subtitle: fmt.Sprintf("cycles=%d", len(cycles))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "surface time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)
	line.SetXAxis(x).
		AddSeries("flows", flowSeries).
		AddSeries("inlier pixels", inlierSeries)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTrafficChart renders a simple bar chart of packet/event throughput.
func (ws *WebServer) handleTrafficChart(w http.ResponseWriter, r *http.Request) {
	if ws.stats == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no packet stats available")
		return
	}

	snap := ws.stats.GetLatestSnapshot()
	if snap == nil {
		snap = &StatsSnapshot{Timestamp: time.Now()}
	}

	x := []string{"Packets/s", "MB/s", "Events/s", "Dropped (recent)"}
	y := []opts.BarData{
		{Value: snap.PacketsPerSec},
		{Value: snap.MBPerSec},
		{Value: snap.EventsPerSec},
		{Value: snap.DroppedCount},
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "DVS Traffic", Subtitle: snap.Timestamp.Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("traffic", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
