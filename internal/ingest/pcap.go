package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/logcode.report/internal/icd"
	"github.com/banshee-data/logcode.report/internal/monitoring"
)

// ReadPCAPFile reads UDP-encapsulated log packets from a capture file. Each
// UDP payload is one complete log packet: 12-byte header followed by the
// logcode payload. Packets on other ports or too short to carry a header
// are skipped, not failed; captures routinely interleave unrelated traffic.
//
// port filters on UDP destination port; 0 accepts every UDP packet.
func ReadPCAPFile(path string, port int) ([]*icd.ParsedPacket, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture file %s: %v", path, err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture file %s: %v", path, err)
	}

	var packets []*icd.ParsedPacket
	read, skipped := 0, 0

	for {
		data, _, err := reader.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read packet %d from %s: %v", read+skipped+1, path, err)
		}

		packet := gopacket.NewPacket(data, reader.LinkType(), gopacket.Default)
		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			skipped++
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok {
			skipped++
			continue
		}
		if port != 0 && int(udp.DstPort) != port {
			skipped++
			continue
		}

		payload := udp.Payload
		if len(payload) < icd.HeaderSize {
			skipped++
			continue
		}

		packets = append(packets, &icd.ParsedPacket{
			Length:  len(payload),
			Header:  payload[:icd.HeaderSize],
			Payload: payload[icd.HeaderSize:],
		})
		read++
	}

	monitoring.Logf("capture %s: %d log packets read, %d frames skipped", path, read, skipped)
	return packets, nil
}

// ReadHexLogFile reads a multi-packet hex log dump from disk and parses
// every packet chunk. Unparseable chunks are reported and skipped so one
// corrupt entry does not sink the whole file.
func ReadHexLogFile(path string) ([]*icd.ParsedPacket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file %s: %v", path, err)
	}

	chunks := SplitPackets(string(data))
	if len(chunks) == 0 {
		return nil, &MalformedHexError{Reason: fmt.Sprintf("no packets found in %s", path)}
	}

	var packets []*icd.ParsedPacket
	for i, chunk := range chunks {
		pkt, err := ParseHexInput(chunk)
		if err != nil {
			monitoring.Logf("log file %s: skipping packet %d: %v", path, i+1, err)
			continue
		}
		packets = append(packets, pkt)
	}
	return packets, nil
}
