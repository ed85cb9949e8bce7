package gauge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/robertodauria/netgauge/pkg/gauge/results"
	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

// ErrNoPong is returned when the echo channel closes or times out before a
// pong message is received.
var ErrNoPong = errors.New("latency: no pong received")

// echoMessage is the wire format of the echo channel. The client sends
// {"type":"ping","t":<epoch-ms>} and the server answers with type "pong".
type echoMessage struct {
	Type string `json:"type"`
	T    int64  `json:"t"`
}

// ProbeLatency measures a single round-trip time against the echo channel.
//
// The probe opens the channel, sends one ping tagged with the client clock,
// and waits for the first pong. The returned Latency is unknown when the
// dial fails, the channel errors, or no pong arrives within
// spec.LatencyTimeout; the channel is closed on every path. Retries are the
// caller's responsibility.
func ProbeLatency(ctx context.Context, tx Transport, timeout time.Duration) (results.Latency, error) {
	if timeout <= 0 {
		timeout = spec.LatencyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := tx.Echo(ctx)
	if err != nil {
		return results.Latency{}, fmt.Errorf("latency: dial failed: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	conn.SetReadDeadline(deadline)
	conn.SetWriteDeadline(deadline)
	conn.SetReadLimit(spec.MaxMessageSize)

	start := time.Now()
	ping := echoMessage{Type: "ping", T: start.UnixMilli()}
	if err := conn.WriteJSON(ping); err != nil {
		return results.Latency{}, fmt.Errorf("latency: ping failed: %w", err)
	}

	// Read until the first pong. Anything else before the deadline is
	// ignored so a chatty server does not skew the measurement.
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return results.Latency{}, fmt.Errorf("%w: %s", ErrNoPong, err)
		}
		var m echoMessage
		if err := json.Unmarshal(data, &m); err != nil {
			zap.L().Sugar().Debugw("latency: discarding unparseable message",
				"error", err)
			return results.Latency{}, fmt.Errorf("latency: bad message: %w", err)
		}
		if m.Type != "pong" {
			continue
		}
		return results.NewLatency(time.Since(start)), nil
	}
}
