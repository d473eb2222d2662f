package telemetrysim

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// CaptureWriter writes UDP datagrams as Ethernet frames into a pcap stream.
type CaptureWriter struct {
	w   *pcapgo.Writer
	src *net.UDPAddr
	dst *net.UDPAddr
}

// NewCaptureWriter writes the pcap file header and returns a writer framing
// every datagram from src to dst.
func NewCaptureWriter(out io.Writer, src, dst *net.UDPAddr) (*CaptureWriter, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &CaptureWriter{w: w, src: src, dst: dst}, nil
}

// Write appends one datagram captured at ts.
func (c *CaptureWriter) Write(payload []byte, ts time.Time) error {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    ipv4(c.src.IP),
		DstIP:    ipv4(c.dst.IP),
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(c.src.Port),
		DstPort: layers.UDPPort(c.dst.Port),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("checksum layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
	if err := c.w.WritePacket(ci, data); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

func ipv4(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return net.IPv4(127, 0, 0, 1).To4()
}
