// Package capture defines the boundary between the packet-capture driver
// and the detection pipeline. The driver itself — reading frames off a
// NIC — is an external collaborator; this package only describes the
// event it delivers and provides a line-delimited-JSON Source so the
// engine can be driven from a replay file, a Unix socket, or a pipe from
// whatever real capture process is attached in front of it.
package capture

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net"

	"github.com/danger-dream/apollo-ips/internal/types"
)

// Source delivers packets to emit until ctx is canceled or the
// underlying driver fails. Run must not suspend on anything other than
// the packet source itself, per the capture-thread design.
type Source interface {
	Run(ctx context.Context, emit func(types.Packet)) error
}

// record is the wire shape a capture driver writes, one per line.
type record struct {
	SrcIP     string `json:"src_ip"`
	DstPort   uint16 `json:"dst_port"`
	HasTCP    bool   `json:"has_tcp"`
	Payload   []byte `json:"payload"`
	Size      int    `json:"size"`
	Timestamp int64  `json:"timestamp"`
}

// JSONLines reads newline-delimited packet records from r. It is the
// default Source: any real capture driver (XDP, AF_PACKET, a span port
// tap) can sit in front of it by writing to the pipe or socket r wraps.
type JSONLines struct {
	r io.Reader
}

func NewJSONLines(r io.Reader) *JSONLines {
	return &JSONLines{r: r}
}

func (s *JSONLines) Run(ctx context.Context, emit func(types.Packet)) error {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lines := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		errs <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return <-errs
			}
			var rec record
			if err := json.Unmarshal(line, &rec); err != nil {
				continue
			}
			emit(types.Packet{
				SrcIP:     net.ParseIP(rec.SrcIP),
				DstPort:   rec.DstPort,
				HasTCP:    rec.HasTCP,
				Payload:   rec.Payload,
				Size:      rec.Size,
				Timestamp: rec.Timestamp,
			})
		}
	}
}
