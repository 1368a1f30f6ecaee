package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/sszokoly/sipcounter/internal/core"
)

// PcapOptions configures the pcap source.
type PcapOptions struct {
	// File is an offline capture to replay. When empty, Interface is
	// opened for live capture instead.
	File      string `mapstructure:"file"`
	Interface string `mapstructure:"interface"`
	// BPF is an optional capture filter, e.g. "port 5060".
	BPF     string `mapstructure:"bpf"`
	Snaplen int    `mapstructure:"snaplen"`
	Promisc bool   `mapstructure:"promisc"`
}

// PcapSource reads packets via libpcap and emits the SIP payloads it finds,
// together with the transport endpoints of the carrying packet. Non-SIP
// packets are skipped.
type PcapSource struct {
	opts   PcapOptions
	handle *pcap.Handle
}

func NewPcapSource(opts PcapOptions) *PcapSource {
	if opts.Snaplen == 0 {
		opts.Snaplen = 65535
	}
	return &PcapSource{opts: opts}
}

func (s *PcapSource) Start(ctx context.Context) error {
	var (
		handle *pcap.Handle
		err    error
	)
	switch {
	case s.opts.File != "":
		handle, err = pcap.OpenOffline(s.opts.File)
	case s.opts.Interface != "":
		handle, err = pcap.OpenLive(s.opts.Interface, int32(s.opts.Snaplen), s.opts.Promisc, pcap.BlockForever)
	default:
		return fmt.Errorf("%w: pcap source needs file or interface", core.ErrConfigInvalid)
	}
	if err != nil {
		return fmt.Errorf("failed to open capture: %w", err)
	}
	if s.opts.BPF != "" {
		if err := handle.SetBPFFilter(s.opts.BPF); err != nil {
			handle.Close()
			return fmt.Errorf("failed to set bpf filter %q: %w", s.opts.BPF, err)
		}
	}
	s.handle = handle
	return nil
}

// Next reads packets until one carries a SIP payload, then returns it with
// its transport metadata. Returns io.EOF at the end of an offline capture.
func (s *PcapSource) Next() (core.Message, error) {
	if s.handle == nil {
		return core.Message{}, core.ErrSourceNotStarted
	}
	for {
		data, _, err := s.handle.ReadPacketData()
		if err != nil {
			if err == io.EOF {
				return core.Message{}, io.EOF
			}
			return core.Message{}, fmt.Errorf("failed to read packet: %w", err)
		}

		msg, ok := s.decode(data)
		if ok {
			return msg, nil
		}
	}
}

// decode extracts network and transport layers and keeps the packet only
// when its payload looks like SIP.
func (s *PcapSource) decode(data []byte) (core.Message, bool) {
	packet := gopacket.NewPacket(data, s.handle.LinkType(), gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	netLayer := packet.NetworkLayer()
	if netLayer == nil {
		return core.Message{}, false
	}
	flow := netLayer.NetworkFlow()

	var (
		srcPort, dstPort int
		proto            string
		payload          []byte
	)
	switch t := packet.TransportLayer().(type) {
	case *layers.TCP:
		srcPort, dstPort = int(t.SrcPort), int(t.DstPort)
		proto = "TCP"
		payload = t.LayerPayload()
	case *layers.UDP:
		srcPort, dstPort = int(t.SrcPort), int(t.DstPort)
		proto = "UDP"
		payload = t.LayerPayload()
	default:
		return core.Message{}, false
	}

	if !likelySIP(payload) {
		return core.Message{}, false
	}

	return core.Message{
		Payload: string(payload),
		SrcIP:   flow.Src().String(),
		SrcPort: srcPort,
		DstIP:   flow.Dst().String(),
		DstPort: dstPort,
		Proto:   proto,
	}, true
}

func (s *PcapSource) Close() error {
	if s.handle != nil {
		s.handle.Close()
	}
	return nil
}

// likelySIP is a fast prefix check, no full parse.
func likelySIP(payload []byte) bool {
	if len(payload) < 8 {
		return false
	}
	prefix := string(payload[:8])
	return strings.HasPrefix(prefix, "SIP/2.0 ") ||
		strings.HasPrefix(prefix, "INVITE ") ||
		strings.HasPrefix(prefix, "REGISTER") ||
		strings.HasPrefix(prefix, "BYE ") ||
		strings.HasPrefix(prefix, "CANCEL ") ||
		strings.HasPrefix(prefix, "ACK ") ||
		strings.HasPrefix(prefix, "OPTIONS ") ||
		strings.HasPrefix(prefix, "SUBSCRI") ||
		strings.HasPrefix(prefix, "NOTIFY ") ||
		strings.HasPrefix(prefix, "PRACK ") ||
		strings.HasPrefix(prefix, "REFER ") ||
		strings.HasPrefix(prefix, "INFO ") ||
		strings.HasPrefix(prefix, "UPDATE ") ||
		strings.HasPrefix(prefix, "PUBLISH ") ||
		strings.HasPrefix(prefix, "MESSAGE ")
}
