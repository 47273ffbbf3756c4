// Package monitor serves the HTTP interface for watching a live extraction
// pipeline: health, throughput stats, latest flows, and debug imagery.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/eventvision/normflow/internal/config"
	"github.com/eventvision/normflow/internal/dvs"
	"github.com/eventvision/normflow/internal/dvsdb"
)

// WebServer handles the HTTP interface for monitoring the event pipeline.
type WebServer struct {
	address    string
	stats      *PacketStats
	cycleStats *CycleStats
	runner     *dvs.AnalysisRunner
	tuning     *config.TuningConfig
	db         *dvsdb.DB
	udpPort    int
	server     *http.Server
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address    string
	Stats      *PacketStats
	CycleStats *CycleStats
	Runner     *dvs.AnalysisRunner
	Tuning     *config.TuningConfig
	DB         *dvsdb.DB
	UDPPort    int
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(cfg WebServerConfig) *WebServer {
	ws := &WebServer{
		address:    cfg.Address,
		stats:      cfg.Stats,
		cycleStats: cfg.CycleStats,
		runner:     cfg.Runner,
		tuning:     cfg.Tuning,
		db:         cfg.DB,
		udpPort:    cfg.UDPPort,
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/flow/stats", ws.handleStats)
	mux.HandleFunc("/api/flow/latest", ws.handleLatestFlows)
	mux.HandleFunc("/api/flow/params", ws.handleParams)
	mux.HandleFunc("/api/flow/cycles", ws.handleCycles)
	mux.HandleFunc("/debug/timesurface.png", ws.handleTimeSurfacePNG)
	mux.HandleFunc("/debug/panel.png", ws.handlePanelPNG)
	mux.HandleFunc("/debug/charts/rates", ws.handleFlowRateChart)
	mux.HandleFunc("/debug/charts/traffic", ws.handleTrafficChart)

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":   "ok",
		"udp_port": ws.udpPort,
	}
	if ws.stats != nil {
		resp["uptime_sec"] = ws.stats.GetUptime().Seconds()
	}
	if ws.runner != nil {
		resp["cycles"] = ws.runner.Cycles()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	resp := map[string]interface{}{}
	if ws.stats != nil {
		if snap := ws.stats.GetLatestSnapshot(); snap != nil {
			resp["packets_per_sec"] = snap.PacketsPerSec
			resp["mb_per_sec"] = snap.MBPerSec
			resp["events_per_sec"] = snap.EventsPerSec
			resp["dropped_recent"] = snap.DroppedCount
		}
	}
	if ws.cycleStats != nil {
		if snap := ws.cycleStats.Latest(); snap != nil {
			resp["cycle"] = snap
		}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleLatestFlows returns the flow vectors from the most recent extraction
// cycle as JSON.
func (ws *WebServer) handleLatestFlows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.runner == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no analysis runner configured")
		return
	}
	pack := ws.runner.LatestPack()
	if pack == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no extraction cycle completed yet")
		return
	}
	resp := map[string]interface{}{
		"surface_time": pack.TimestampSec,
		"flows":        pack.Flows,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleParams returns the active tuning configuration.
func (ws *WebServer) handleParams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.tuning == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no tuning config loaded")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ws.tuning)
}

// handleCycles returns recent stored cycle summaries.
// Query params: limit (optional, default 50, max 1000)
func (ws *WebServer) handleCycles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.db == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return
	}
	limit := 50
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
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cycles)
}

// handleTimeSurfacePNG renders the current decayed time surface.
// Query params: decay_sec (optional)
func (ws *WebServer) handleTimeSurfacePNG(w http.ResponseWriter, r *http.Request) {
	if ws.runner == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no analysis runner configured")
		return
	}
	decay := 0.01
	if d := r.URL.Query().Get("decay_sec"); d != "" {
		if parsed, err := strconv.ParseFloat(d, 64); err == nil && parsed > 0 {
			decay = parsed
		}
	}
	snap := ws.runner.SnapshotDecayed(decay)

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, snap.Decayed); err != nil {
		log.Printf("time surface encode failed: %v", err)
	}
}

// handlePanelPNG renders the four-panel composite for the latest pack.
// Query params: window_sec (optional, default 0.01)
func (ws *WebServer) handlePanelPNG(w http.ResponseWriter, r *http.Request) {
	if ws.runner == nil {
		ws.writeJSONError(w, http.StatusServiceUnavailable, "no analysis runner configured")
		return
	}
	pack := ws.runner.LatestPack()
	if pack == nil {
		ws.writeJSONError(w, http.StatusNotFound, "no extraction cycle completed yet")
		return
	}
	window := 0.01
	if v := r.URL.Query().Get("window_sec"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 {
			window = parsed
		}
	}

	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, pack.Render(window)); err != nil {
		log.Printf("panel encode failed: %v", err)
	}
}
