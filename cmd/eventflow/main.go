package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eventvision/normflow/internal/config"
	"github.com/eventvision/normflow/internal/dvs"
	"github.com/eventvision/normflow/internal/dvs/network"
	"github.com/eventvision/normflow/internal/dvs/parse"
	"github.com/eventvision/normflow/internal/dvsdb"
	"github.com/eventvision/normflow/internal/monitor"
)

var (
	listen        = flag.String("listen", ":8082", "HTTP listen address")
	udpPort       = flag.Int("udp-port", 3333, "UDP port to listen for event packets")
	udpAddress    = flag.String("udp-addr", "", "UDP bind address (default: listen on all interfaces)")
	sensorWidth   = flag.Int("width", 346, "Sensor width in pixels")
	sensorHeight  = flag.Int("height", 260, "Sensor height in pixels")
	configPath    = flag.String("config", "", "Path to tuning config JSON (optional)")
	dbFile        = flag.String("db", "event_flows.db", "Path to the SQLite database file")
	runNotes      = flag.String("notes", "", "Notes recorded on the run row")
	debugDir      = flag.String("debug-dir", "", "Directory for plane-fit debug dumps (must exist to enable)")
	plotsDir      = flag.String("plots-dir", "", "Directory for end-of-run plots (empty disables plotting)")
	rcvBuf        = flag.Int("rcvbuf", 4<<20, "UDP receive buffer size in bytes (default 4MB)")
	logInterval   = flag.Int("log-interval", 2, "Statistics logging interval in seconds")
	disablePersist = flag.Bool("no-db", false, "Disable flow persistence")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("HTTP listen address is required")
	}

	var udpListenAddr string
	if *udpAddress == "" {
		udpListenAddr = fmt.Sprintf(":%d", *udpPort)
	} else {
		udpListenAddr = fmt.Sprintf("%s:%d", *udpAddress, *udpPort)
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		tuning = loaded
		log.Printf("Loaded tuning config from %s", *configPath)
	}

	var db *dvsdb.DB
	var runID string
	if !*disablePersist {
		var err error
		db, err = dvsdb.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open flow database: %v", err)
		}
		defer db.Close()

		runID, err = db.StartRun(*sensorWidth, *sensorHeight, *runNotes)
		if err != nil {
			log.Fatalf("Failed to start run: %v", err)
		}
		log.Printf("Started run %s", runID)
		defer func() {
			if err := db.EndRun(runID); err != nil {
				log.Printf("Failed to end run: %v", err)
			}
		}()
	}

	params := tuning.ExtractorParams()
	surface := dvs.NewEventSurface(*sensorWidth, *sensorHeight, tuning.GetRefractorySec(), nil, true)
	extractor := dvs.NewNormFlowExtractor(params)
	if *debugDir != "" {
		extractor.Debug = dvs.NewPlaneFitCollector(*debugDir)
		if extractor.Debug.Enabled() {
			log.Printf("Plane-fit debug dumps enabled in %s", *debugDir)
		} else {
			log.Printf("Debug dir %s does not exist; dumps disabled", *debugDir)
		}
	}

	cycleStats := monitor.NewCycleStats()
	observers := []dvs.PackObserver{cycleStats}

	var plotter *monitor.FlowPlotter
	if *plotsDir != "" {
		plotter = monitor.NewFlowPlotter()
		outDir := monitor.MakePlotOutputDir(*plotsDir, "")
		if err := plotter.Start(outDir); err != nil {
			log.Fatalf("Failed to start plotter: %v", err)
		}
		observers = append(observers, plotter)
		log.Printf("Plotting enabled, output in %s", outDir)
	}

	var recorder dvs.PackRecorder
	if db != nil {
		recorder = db
	}
	runner := dvs.NewAnalysisRunner(dvs.AnalysisRunnerConfig{
		Surface:   surface,
		Extractor: extractor,
		Interval:  tuning.GetExtractInterval(),
		RunID:     runID,
		Recorder:  recorder,
		Observers: observers,
	})

	stats := monitor.NewPacketStats()
	listener := network.NewUDPListener(network.UDPListenerConfig{
		Address:  udpListenAddr,
		RcvBuf:   *rcvBuf,
		Stats:    stats,
		Parser:   parse.NewEVT1Parser(*sensorWidth, *sensorHeight),
		Ingestor: runner,
	})

	webServer := monitor.NewWebServer(monitor.WebServerConfig{
		Address:    *listen,
		Stats:      stats,
		CycleStats: cycleStats,
		Runner:     runner,
		Tuning:     tuning,
		DB:         db,
		UDPPort:    *udpPort,
	})

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("UDP listener error: %v", err)
		}
		log.Print("UDP listener routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runner.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Analysis runner error: %v", err)
		}
		log.Print("Analysis runner routine terminated")
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(*logInterval) * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats.LogStats()
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := webServer.Start(ctx); err != nil {
			log.Printf("Web server error: %v", err)
		}
	}()

	wg.Wait()

	if plotter != nil {
		plotter.Stop()
		n, err := plotter.GeneratePlots()
		if err != nil {
			log.Printf("Plot generation failed: %v", err)
		} else if n > 0 {
			log.Printf("Wrote %d plots to %s", n, plotter.GetOutputDir())
		}
	}

	log.Println("eventflow shut down")
}
