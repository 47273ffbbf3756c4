// Package parse decodes the EVT1 UDP packet format used by DVS event
// streamers.
//
// EVT1 packet layout (little-endian):
//
//	offset 0:  4-byte magic "EVT1"
//	offset 4:  uint8 version (currently 1)
//	offset 5:  uint8 reserved
//	offset 6:  uint16 event count
//	offset 8:  int64 base timestamp, nanoseconds
//	offset 16: count records of 8 bytes each:
//	           uint16 x, uint16 y, uint32 dt+polarity
//
// The record's high bit carries the polarity (1 = brightness increase); the
// low 31 bits are the event time offset from the base timestamp in
// microseconds. A 31-bit microsecond offset spans ~35 minutes, far beyond
// any single packet's extent.
package parse

import (
	"encoding/binary"
	"fmt"

	"github.com/eventvision/normflow/internal/dvs"
)

const (
	// HeaderSize is the fixed EVT1 header length in bytes.
	HeaderSize = 16
	// RecordSize is the per-event record length in bytes.
	RecordSize = 8
	// MaxEventsPerPacket keeps packets under a standard 1500-byte MTU.
	MaxEventsPerPacket = (1500 - HeaderSize) / RecordSize

	version      = 1
	polarityBit  = 1 << 31
	dtMicrosMask = polarityBit - 1
)

// Magic identifies an EVT1 packet.
var Magic = [4]byte{'E', 'V', 'T', '1'}

// EVT1Parser decodes EVT1 packets into event batches, validating pixel
// coordinates against the sensor resolution.
type EVT1Parser struct {
	width  int
	height int

	packetsParsed int64
	eventsParsed  int64
}

// NewEVT1Parser creates a parser for a width x height sensor.
func NewEVT1Parser(width, height int) *EVT1Parser {
	return &EVT1Parser{width: width, height: height}
}

// ParsePacket decodes one EVT1 packet payload. Malformed packets and
// out-of-bounds coordinates are errors; the caller decides whether to drop
// or abort.
func (p *EVT1Parser) ParsePacket(payload []byte) ([]dvs.Event, error) {
	if len(payload) < HeaderSize {
		return nil, fmt.Errorf("evt1: packet too short: %d bytes", len(payload))
	}
	if payload[0] != Magic[0] || payload[1] != Magic[1] || payload[2] != Magic[2] || payload[3] != Magic[3] {
		return nil, fmt.Errorf("evt1: bad magic %q", payload[:4])
	}
	if payload[4] != version {
		return nil, fmt.Errorf("evt1: unsupported version %d", payload[4])
	}
	count := int(binary.LittleEndian.Uint16(payload[6:8]))
	want := HeaderSize + count*RecordSize
	if len(payload) != want {
		return nil, fmt.Errorf("evt1: length %d does not match %d events (want %d)", len(payload), count, want)
	}
	baseNanos := int64(binary.LittleEndian.Uint64(payload[8:16]))

	events := make([]dvs.Event, 0, count)
	for i := 0; i < count; i++ {
		off := HeaderSize + i*RecordSize
		x := int(binary.LittleEndian.Uint16(payload[off : off+2]))
		y := int(binary.LittleEndian.Uint16(payload[off+2 : off+4]))
		dtPol := binary.LittleEndian.Uint32(payload[off+4 : off+8])

		if x >= p.width || y >= p.height {
			return nil, fmt.Errorf("evt1: event %d pixel (%d,%d) outside %dx%d sensor", i, x, y, p.width, p.height)
		}

		tNanos := baseNanos + int64(dtPol&dtMicrosMask)*1000
		events = append(events, dvs.Event{
			TimestampSec: float64(tNanos) / 1e9,
			X:            x,
			Y:            y,
			Polarity:     dtPol&polarityBit != 0,
		})
	}

	p.packetsParsed++
	p.eventsParsed += int64(count)
	return events, nil
}

// Counters returns the number of packets and events parsed so far.
func (p *EVT1Parser) Counters() (packets, events int64) {
	return p.packetsParsed, p.eventsParsed
}

// MarshalPacket encodes events into an EVT1 packet with the given base
// timestamp. All event times must be >= the base timestamp; events beyond
// MaxEventsPerPacket or with offsets exceeding 31 bits of microseconds are
// rejected. Used by the replay tooling and tests.
func MarshalPacket(baseNanos int64, events []dvs.Event) ([]byte, error) {
	if len(events) > MaxEventsPerPacket {
		return nil, fmt.Errorf("evt1: %d events exceed packet capacity %d", len(events), MaxEventsPerPacket)
	}
	buf := make([]byte, HeaderSize+len(events)*RecordSize)
	copy(buf[0:4], Magic[:])
	buf[4] = version
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(events)))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(baseNanos))

	for i, e := range events {
		tNanos := int64(e.TimestampSec * 1e9)
		dtMicros := (tNanos - baseNanos) / 1000
		if dtMicros < 0 || dtMicros > dtMicrosMask {
			return nil, fmt.Errorf("evt1: event %d offset %dus out of range", i, dtMicros)
		}
		dtPol := uint32(dtMicros)
		if e.Polarity {
			dtPol |= polarityBit
		}
		off := HeaderSize + i*RecordSize
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(e.X))
		binary.LittleEndian.PutUint16(buf[off+2:off+4], uint16(e.Y))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], dtPol)
	}
	return buf, nil
}
