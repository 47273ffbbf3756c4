package network

import (
	"errors"
	"io"
	"sync"
	"time"
)

// PCAPPacket is a single packet read from a capture file.
type PCAPPacket struct {
	Data      []byte
	Timestamp time.Time
}

// PCAPReader provides sequential access to packets in a capture file. The
// abstraction keeps replay logic testable without real capture files or the
// pcap build tag.
type PCAPReader interface {
	// Open opens a capture file for reading.
	Open(filename string) error

	// NextPacket returns the next packet, or io.EOF when exhausted.
	NextPacket() (*PCAPPacket, error)

	// Close releases resources.
	Close()
}

// MockPCAPReader implements PCAPReader over an in-memory packet list.
type MockPCAPReader struct {
	mu sync.Mutex

	// Packets are returned from NextPacket in order.
	Packets []PCAPPacket

	// ReadIndex tracks the position in Packets.
	ReadIndex int

	// OpenError is returned by Open when set.
	OpenError error

	// OpenedFile records the filename passed to Open.
	OpenedFile string

	closed bool
}

// Open records the filename and returns OpenError if configured.
func (m *MockPCAPReader) Open(filename string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenError != nil {
		return m.OpenError
	}
	m.OpenedFile = filename
	m.ReadIndex = 0
	m.closed = false
	return nil
}

// NextPacket returns the next queued packet or io.EOF.
func (m *MockPCAPReader) NextPacket() (*PCAPPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("reader closed")
	}
	if m.ReadIndex >= len(m.Packets) {
		return nil, io.EOF
	}
	p := m.Packets[m.ReadIndex]
	m.ReadIndex++
	return &p, nil
}

// Close marks the reader closed.
func (m *MockPCAPReader) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// ReplayReader feeds every packet of a PCAPReader through the listener's
// decode/ingest path. Replay runs as fast as the pipeline accepts packets;
// capture timestamps ride along in the payloads themselves.
func ReplayReader(reader PCAPReader, filename string, listener *UDPListener, stats PacketStatsInterface) (packets int, err error) {
	if stats == nil {
		stats = &noopStats{}
	}
	if err := reader.Open(filename); err != nil {
		return 0, err
	}
	defer reader.Close()

	for {
		pkt, err := reader.NextPacket()
		if errors.Is(err, io.EOF) {
			return packets, nil
		}
		if err != nil {
			return packets, err
		}
		packets++
		stats.AddPacket(len(pkt.Data))
		listener.HandlePayload(pkt.Data)
	}
}
