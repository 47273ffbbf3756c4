//go:build pcap
// +build pcap

package network

import (
	"fmt"
	"io"
	"log"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
)

// GopacketPCAPReader reads UDP payloads from a capture file using gopacket.
// Only available when building with the 'pcap' tag (requires libpcap).
type GopacketPCAPReader struct {
	// UDPPort filters to packets addressed to this port; zero accepts any.
	UDPPort int

	handle *pcap.Handle
	source *gopacket.PacketSource
}

// Open opens the capture file and applies the UDP port filter.
func (r *GopacketPCAPReader) Open(filename string) error {
	handle, err := pcap.OpenOffline(filename)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", filename, err)
	}
	filter := "udp"
	if r.UDPPort > 0 {
		filter = fmt.Sprintf("udp port %d", r.UDPPort)
	}
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}
	log.Printf("PCAP BPF filter set: %s", filter)

	r.handle = handle
	r.source = gopacket.NewPacketSource(handle, handle.LinkType())
	return nil
}

// NextPacket returns the next UDP payload from the capture.
func (r *GopacketPCAPReader) NextPacket() (*PCAPPacket, error) {
	for {
		packet, err := r.source.NextPacket()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("PCAP read failed: %w", err)
		}
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		return &PCAPPacket{
			Data:      udp.Payload,
			Timestamp: packet.Metadata().Timestamp,
		}, nil
	}
}

// Close releases the pcap handle.
func (r *GopacketPCAPReader) Close() {
	if r.handle != nil {
		r.handle.Close()
		r.handle = nil
	}
}

// NewPCAPReader returns the gopacket-backed reader.
func NewPCAPReader(udpPort int) PCAPReader {
	return &GopacketPCAPReader{UDPPort: udpPort}
}
