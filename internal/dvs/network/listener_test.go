package network

import (
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/eventvision/normflow/internal/dvs"
	"github.com/eventvision/normflow/internal/dvs/parse"
)

type recordingIngestor struct {
	mu      sync.Mutex
	batches []dvs.EventBatch
}

func (r *recordingIngestor) IngestBatch(batch dvs.EventBatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

type countingStats struct {
	packets int
	bytes   int
	dropped int
	events  int
}

func (s *countingStats) AddPacket(n int) { s.packets++; s.bytes += n }
func (s *countingStats) AddDropped()     { s.dropped++ }
func (s *countingStats) AddEvents(n int) { s.events += n }

func mustMarshal(t *testing.T, baseNanos int64, events []dvs.Event) []byte {
	t.Helper()
	payload, err := parse.MarshalPacket(baseNanos, events)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func TestHandlePayloadFeedsIngestor(t *testing.T) {
	ingestor := &recordingIngestor{}
	stats := &countingStats{}
	l := NewUDPListener(UDPListenerConfig{
		Parser:   parse.NewEVT1Parser(346, 260),
		Ingestor: ingestor,
		Stats:    stats,
	})

	payload := mustMarshal(t, 0, []dvs.Event{
		{TimestampSec: 0.001, X: 10, Y: 20, Polarity: true},
		{TimestampSec: 0.002, X: 11, Y: 20, Polarity: false},
	})
	l.HandlePayload(payload)

	if len(ingestor.batches) != 1 {
		t.Fatalf("batches = %d, want 1", len(ingestor.batches))
	}
	batch := ingestor.batches[0]
	if len(batch.Events) != 2 {
		t.Fatalf("events in batch = %d, want 2", len(batch.Events))
	}
	if batch.TimestampSec != batch.Events[1].TimestampSec {
		t.Errorf("batch timestamp = %f, want last event time %f", batch.TimestampSec, batch.Events[1].TimestampSec)
	}
	if stats.events != 2 {
		t.Errorf("stats events = %d, want 2", stats.events)
	}
	if stats.dropped != 0 {
		t.Errorf("stats dropped = %d, want 0", stats.dropped)
	}
}

func TestHandlePayloadDropsMalformed(t *testing.T) {
	ingestor := &recordingIngestor{}
	stats := &countingStats{}
	l := NewUDPListener(UDPListenerConfig{
		Parser:   parse.NewEVT1Parser(346, 260),
		Ingestor: ingestor,
		Stats:    stats,
	})

	l.HandlePayload([]byte{1, 2, 3})

	if len(ingestor.batches) != 0 {
		t.Errorf("malformed packet reached the ingestor")
	}
	if stats.dropped != 1 {
		t.Errorf("stats dropped = %d, want 1", stats.dropped)
	}
}

func TestHandlePayloadSkipsEmptyBatches(t *testing.T) {
	ingestor := &recordingIngestor{}
	l := NewUDPListener(UDPListenerConfig{
		Parser:   parse.NewEVT1Parser(346, 260),
		Ingestor: ingestor,
	})

	l.HandlePayload(mustMarshal(t, 0, nil))

	if len(ingestor.batches) != 0 {
		t.Errorf("empty packet produced a batch")
	}
}

func TestReplayReaderFeedsAllPackets(t *testing.T) {
	ingestor := &recordingIngestor{}
	stats := &countingStats{}
	l := NewUDPListener(UDPListenerConfig{
		Parser:   parse.NewEVT1Parser(346, 260),
		Ingestor: ingestor,
		Stats:    stats,
	})

	reader := &MockPCAPReader{
		Packets: []PCAPPacket{
			{Data: mustMarshal(t, 0, []dvs.Event{{TimestampSec: 0.001, X: 1, Y: 1, Polarity: true}})},
			{Data: []byte("garbage")},
			{Data: mustMarshal(t, 0, []dvs.Event{
				{TimestampSec: 0.002, X: 2, Y: 2, Polarity: false},
				{TimestampSec: 0.003, X: 3, Y: 3, Polarity: true},
			})},
		},
	}

	packets, err := ReplayReader(reader, "capture.pcap", l, stats)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if packets != 3 {
		t.Errorf("packets replayed = %d, want 3", packets)
	}
	if reader.OpenedFile != "capture.pcap" {
		t.Errorf("opened file = %q, want capture.pcap", reader.OpenedFile)
	}
	if len(ingestor.batches) != 2 {
		t.Errorf("batches = %d, want 2", len(ingestor.batches))
	}
	if stats.dropped != 1 {
		t.Errorf("stats dropped = %d, want 1", stats.dropped)
	}
	if stats.events != 3 {
		t.Errorf("stats events = %d, want 3", stats.events)
	}
}

func TestReplayReaderPropagatesOpenError(t *testing.T) {
	reader := &MockPCAPReader{OpenError: errors.New("no such file")}
	l := NewUDPListener(UDPListenerConfig{
		Parser:   parse.NewEVT1Parser(346, 260),
		Ingestor: &recordingIngestor{},
	})

	if _, err := ReplayReader(reader, "missing.pcap", l, nil); err == nil {
		t.Error("open failure not propagated")
	}
}

func TestMockPCAPReaderEOFAndClose(t *testing.T) {
	reader := &MockPCAPReader{Packets: []PCAPPacket{{Data: []byte{1}}}}
	if err := reader.Open("x.pcap"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := reader.NextPacket(); err != nil {
		t.Fatalf("first packet: %v", err)
	}
	if _, err := reader.NextPacket(); !errors.Is(err, io.EOF) {
		t.Errorf("after exhaustion err = %v, want io.EOF", err)
	}
	reader.Close()
	if _, err := reader.NextPacket(); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("closed reader err = %v, want non-EOF error", err)
	}
}
