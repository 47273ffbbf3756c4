//go:build !pcap
// +build !pcap

package network

import "errors"

// NewPCAPReader is unavailable without the 'pcap' build tag; live capture
// reading needs libpcap. Replay tests use MockPCAPReader instead.
func NewPCAPReader(udpPort int) PCAPReader {
	return &unavailableReader{}
}

type unavailableReader struct{}

func (*unavailableReader) Open(string) error {
	return errors.New("PCAP support not compiled in; rebuild with -tags pcap")
}

func (*unavailableReader) NextPacket() (*PCAPPacket, error) {
	return nil, errors.New("PCAP support not compiled in")
}

func (*unavailableReader) Close() {}
