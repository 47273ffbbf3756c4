// Package network receives event-camera packet streams over UDP and replays
// recorded streams from PCAP captures.
package network

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/eventvision/normflow/internal/dvs"
)

// PacketStatsInterface tracks packet-level throughput statistics.
type PacketStatsInterface interface {
	AddPacket(bytes int)
	AddDropped()
	AddEvents(count int)
}

// Parser decodes one packet payload into events.
type Parser interface {
	ParsePacket(payload []byte) ([]dvs.Event, error)
}

// Ingestor consumes decoded event batches. Implemented by
// dvs.AnalysisRunner.
type Ingestor interface {
	IngestBatch(batch dvs.EventBatch)
}

// UDPListenerConfig configures a UDPListener.
type UDPListenerConfig struct {
	// Address is the UDP bind address, e.g. ":3333".
	Address string
	// RcvBuf is the socket receive buffer size in bytes; zero keeps the OS
	// default.
	RcvBuf int
	// Stats is optional; nil disables statistics.
	Stats PacketStatsInterface
	// Parser decodes payloads. Required.
	Parser Parser
	// Ingestor receives decoded batches. Required.
	Ingestor Ingestor
}

// UDPListener receives event packets over UDP, decodes them, and feeds the
// resulting batches to the ingestor.
type UDPListener struct {
	address  string
	rcvBuf   int
	stats    PacketStatsInterface
	parser   Parser
	ingestor Ingestor
}

// NewUDPListener creates a listener. A nil stats collector is replaced by a
// no-op implementation so the receive path never nil-checks.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	stats := config.Stats
	if stats == nil {
		stats = &noopStats{}
	}
	return &UDPListener{
		address:  config.Address,
		rcvBuf:   config.RcvBuf,
		stats:    stats,
		parser:   config.Parser,
		ingestor: config.Ingestor,
	}
}

type noopStats struct{}

func (*noopStats) AddPacket(int) {}
func (*noopStats) AddDropped()   {}
func (*noopStats) AddEvents(int) {}

// Start blocks receiving packets until the context is cancelled. Malformed
// packets are counted as dropped and logged, never fatal.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.address, err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			log.Printf("warning: could not set receive buffer to %d bytes: %v", l.rcvBuf, err)
		}
	}
	log.Printf("listening for event packets on %s", conn.LocalAddr())

	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return fmt.Errorf("UDP read failed: %w", err)
		}

		l.stats.AddPacket(n)
		l.HandlePayload(buf[:n])
	}
}

// HandlePayload decodes one packet payload and forwards the batch. Exposed
// for the PCAP replay path, which shares the decode/ingest tail.
func (l *UDPListener) HandlePayload(payload []byte) {
	events, err := l.parser.ParsePacket(payload)
	if err != nil {
		l.stats.AddDropped()
		log.Printf("dropping malformed packet: %v", err)
		return
	}
	if len(events) == 0 {
		return
	}
	l.stats.AddEvents(len(events))
	l.ingestor.IngestBatch(dvs.NewEventBatch(events))
}
