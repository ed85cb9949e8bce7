package gauge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

// echoServer returns an httptest server whose /ws endpoint answers pings
// according to reply. A nil reply never answers.
func echoServer(t *testing.T, reply func(ping echoMessage) interface{}) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(rw http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(rw, req, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if reply == nil {
				continue
			}
			var ping echoMessage
			if err := json.Unmarshal(data, &ping); err != nil {
				t.Errorf("bad ping: %v", err)
				return
			}
			if err := conn.WriteJSON(reply(ping)); err != nil {
				return
			}
		}
	})
	return httptest.NewServer(mux)
}

func TestProbeLatency(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := echoServer(t, func(ping echoMessage) interface{} {
		return echoMessage{Type: "pong", T: ping.T}
	})
	defer srv.Close()

	tx := NewTransport(srv.URL)
	latency, err := ProbeLatency(context.Background(), tx, time.Second)
	if err != nil {
		t.Fatalf("ProbeLatency() error = %v", err)
	}
	if !latency.Known || latency.Millis < 0 {
		t.Errorf("ProbeLatency() = %v, want known non-negative", latency)
	}
}

func TestProbeLatencyNoPong(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := echoServer(t, nil)
	defer srv.Close()

	tx := NewTransport(srv.URL)
	start := time.Now()
	latency, err := ProbeLatency(context.Background(), tx, 100*time.Millisecond)
	if err == nil {
		t.Fatal("ProbeLatency() error = nil, want timeout")
	}
	if latency.Known {
		t.Errorf("ProbeLatency() = %v, want unknown", latency)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe did not respect its timeout: %v", elapsed)
	}
}

func TestProbeLatencyIgnoresOtherMessages(t *testing.T) {
	// Tagged messages other than pong are skipped while waiting.
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(rw http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(rw, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.WriteJSON(echoMessage{Type: "notice"})
		conn.WriteJSON(echoMessage{Type: "pong"})
		conn.ReadMessage() // wait for the client to close
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tx := NewTransport(srv.URL)
	latency, err := ProbeLatency(context.Background(), tx, time.Second)
	if err != nil {
		t.Fatalf("ProbeLatency() error = %v", err)
	}
	if !latency.Known {
		t.Errorf("ProbeLatency() = %v, want known", latency)
	}
}

func TestProbeLatencyDialFailure(t *testing.T) {
	// Closed server: the dial fails and the result is unknown.
	srv := echoServer(t, nil)
	srv.Close()

	tx := NewTransport(srv.URL)
	latency, err := ProbeLatency(context.Background(), tx, 100*time.Millisecond)
	if err == nil || latency.Known {
		t.Errorf("ProbeLatency() = (%v, %v), want unknown with error", latency, err)
	}
}
