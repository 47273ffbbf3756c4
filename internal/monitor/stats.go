package monitor

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/eventvision/normflow/internal/dvs"
)

// StatsSnapshot represents a snapshot of current statistics
type StatsSnapshot struct {
	PacketsPerSec float64
	MBPerSec      float64
	EventsPerSec  float64
	DroppedCount  int64
	Timestamp     time.Time
}

// PacketStats tracks packet statistics with thread-safe operations
type PacketStats struct {
	mu             sync.Mutex
	packetCount    int64
	byteCount      int64
	droppedCount   int64
	eventCount     int64
	lastReset      time.Time
	startTime      time.Time
	latestSnapshot *StatsSnapshot
}

// NewPacketStats creates a new PacketStats instance
func NewPacketStats() *PacketStats {
	now := time.Now()
	return &PacketStats{
		lastReset: now,
		startTime: now,
	}
}

// AddPacket increments packet count and byte count
func (ps *PacketStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddDropped increments dropped packet count
func (ps *PacketStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
}

// AddEvents increments decoded event count
func (ps *PacketStats) AddEvents(count int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.eventCount += int64(count)
}

// GetAndReset returns current stats and resets counters
func (ps *PacketStats) GetAndReset() (packets int64, bytes int64, dropped int64, events int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets = ps.packetCount
	bytes = ps.byteCount
	dropped = ps.droppedCount
	events = ps.eventCount

	ps.packetCount = 0
	ps.byteCount = 0
	ps.droppedCount = 0
	ps.eventCount = 0
	ps.lastReset = now

	return
}

// LogStats logs formatted statistics and stores snapshot for web interface
func (ps *PacketStats) LogStats() {
	packets, bytes, dropped, events, duration := ps.GetAndReset()
	if packets > 0 || dropped > 0 {
		packetsPerSec := float64(packets) / duration.Seconds()
		mbPerSec := float64(bytes) / duration.Seconds() / (1024 * 1024)
		eventsPerSec := float64(events) / duration.Seconds()

		ps.mu.Lock()
		ps.latestSnapshot = &StatsSnapshot{
			PacketsPerSec: packetsPerSec,
			MBPerSec:      mbPerSec,
			EventsPerSec:  eventsPerSec,
			DroppedCount:  dropped,
			Timestamp:     time.Now(),
		}
		ps.mu.Unlock()

		logMsg := fmt.Sprintf("DVS stats (/sec): %.2f MB, %.1f packets, %s events",
			mbPerSec, packetsPerSec, FormatWithCommas(int64(eventsPerSec)))
		if dropped > 0 {
			logMsg += fmt.Sprintf(", %d dropped", dropped)
		}
		log.Print(logMsg)
	}
}

// GetUptime returns the time since the stats were created
func (ps *PacketStats) GetUptime() time.Duration {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return time.Since(ps.startTime)
}

// GetLatestSnapshot returns the most recent stats snapshot for web interface
func (ps *PacketStats) GetLatestSnapshot() *StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.latestSnapshot == nil {
		return nil
	}
	// Return a copy to avoid race conditions
	snapshot := *ps.latestSnapshot
	return &snapshot
}

// FormatWithCommas formats a number with thousands separators
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}

// CycleSnapshot summarises the most recent extraction cycle.
type CycleSnapshot struct {
	Cycles       int64   `json:"cycles"`
	SurfaceTime  float64 `json:"surface_time"`
	FlowCount    int     `json:"flow_count"`
	InlierCount  int     `json:"inlier_count"`
	MeanSpeedPx  float64 `json:"mean_speed_px_per_sec"`
	ObservedUnix int64   `json:"observed_unix"`
}

// CycleStats observes extraction packs and keeps a summary of the latest
// cycle for the web interface.
type CycleStats struct {
	mu     sync.Mutex
	latest *CycleSnapshot
}

// NewCycleStats creates an empty cycle stats observer.
func NewCycleStats() *CycleStats {
	return &CycleStats{}
}

// ObservePack records a summary of the pack. Implements dvs.PackObserver.
func (cs *CycleStats) ObservePack(pack *dvs.NormFlowPack) {
	meanSpeed := 0.0
	for _, f := range pack.Flows {
		meanSpeed += math.Hypot(f.VX, f.VY)
	}
	if len(pack.Flows) > 0 {
		meanSpeed /= float64(len(pack.Flows))
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	cycles := int64(1)
	if cs.latest != nil {
		cycles = cs.latest.Cycles + 1
	}
	cs.latest = &CycleSnapshot{
		Cycles:       cycles,
		SurfaceTime:  pack.TimestampSec,
		FlowCount:    len(pack.Flows),
		InlierCount:  pack.InlierOccupancy.Count(),
		MeanSpeedPx:  meanSpeed,
		ObservedUnix: time.Now().Unix(),
	}
}

// Latest returns a copy of the most recent cycle summary, or nil before the
// first cycle.
func (cs *CycleStats) Latest() *CycleSnapshot {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.latest == nil {
		return nil
	}
	snap := *cs.latest
	return &snap
}
