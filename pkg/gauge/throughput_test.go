package gauge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

// fakeTransport implements Transport with injectable behavior per
// operation.
type fakeTransport struct {
	mu         sync.Mutex
	chunkCalls int
	sinkBytes  int64

	chunk func(call int) (io.ReadCloser, error)
	sink  func(body io.Reader, length int64) error
}

func (f *fakeTransport) Echo(ctx context.Context) (*websocket.Conn, error) {
	return nil, errors.New("no echo channel in this fake")
}

func (f *fakeTransport) Chunk(ctx context.Context, sizeMB float64) (io.ReadCloser, error) {
	f.mu.Lock()
	call := f.chunkCalls
	f.chunkCalls++
	f.mu.Unlock()
	if f.chunk == nil {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return f.chunk(call)
}

func (f *fakeTransport) Sink(ctx context.Context, body io.Reader, length int64) error {
	n, _ := io.Copy(io.Discard, body)
	atomic.StoreInt64(&f.sinkBytes, n)
	if f.sink == nil {
		return nil
	}
	return f.sink(body, length)
}

func TestMeasureDownload(t *testing.T) {
	t.Run("aggregates-bytes-across-streams", func(t *testing.T) {
		payload := bytes.Repeat([]byte{0xa5}, 100_000)
		tx := &fakeTransport{
			chunk: func(int) (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(payload)), nil
			},
		}
		rate, err := MeasureDownload(context.Background(), tx, 6, 2, time.Minute)
		if err != nil {
			t.Fatalf("MeasureDownload() error = %v", err)
		}
		if !rate.Known || rate.Mbps < 0 {
			t.Errorf("MeasureDownload() = %v, want known non-negative", rate)
		}
		if tx.chunkCalls != 6 {
			t.Errorf("chunk calls = %d, want 6", tx.chunkCalls)
		}
	})

	t.Run("per-stream-failures-are-swallowed", func(t *testing.T) {
		payload := bytes.Repeat([]byte{0x5a}, 10_000)
		tx := &fakeTransport{
			chunk: func(call int) (io.ReadCloser, error) {
				if call%2 == 0 {
					return nil, errors.New("connection refused")
				}
				return io.NopCloser(bytes.NewReader(payload)), nil
			},
		}
		rate, err := MeasureDownload(context.Background(), tx, 4, 2, time.Minute)
		if err != nil {
			t.Fatalf("MeasureDownload() error = %v, want failures swallowed", err)
		}
		if !rate.Known {
			t.Errorf("MeasureDownload() = %v, want known", rate)
		}
	})

	t.Run("all-streams-failed-is-unknown", func(t *testing.T) {
		tx := &fakeTransport{
			chunk: func(int) (io.ReadCloser, error) {
				return nil, errors.New("connection refused")
			},
		}
		rate, err := MeasureDownload(context.Background(), tx, 6, 2, time.Minute)
		if !errors.Is(err, ErrAllStreamsFailed) {
			t.Fatalf("MeasureDownload() error = %v, want ErrAllStreamsFailed", err)
		}
		if rate.Known {
			t.Errorf("MeasureDownload() = %v, want unknown", rate)
		}
	})

	t.Run("zero-bytes-with-success-status-is-zero", func(t *testing.T) {
		tx := &fakeTransport{}
		rate, err := MeasureDownload(context.Background(), tx, 2, 2, time.Minute)
		if err != nil {
			t.Fatalf("MeasureDownload() error = %v", err)
		}
		if !rate.Known || rate.Mbps != 0 {
			t.Errorf("MeasureDownload() = %v, want 0.0 known", rate)
		}
	})

	t.Run("partial-bytes-count-on-cut-stream", func(t *testing.T) {
		// A reader that yields some bytes and then fails mid-chunk.
		tx := &fakeTransport{
			chunk: func(int) (io.ReadCloser, error) {
				return io.NopCloser(io.MultiReader(
					bytes.NewReader(bytes.Repeat([]byte{1}, 5000)),
					&failingReader{},
				)), nil
			},
		}
		rate, err := MeasureDownload(context.Background(), tx, 1, 2, time.Minute)
		if err != nil {
			t.Fatalf("MeasureDownload() error = %v", err)
		}
		if !rate.Known {
			t.Errorf("MeasureDownload() = %v, want known from partial bytes", rate)
		}
	})
}

type failingReader struct{}

func (*failingReader) Read([]byte) (int, error) {
	return 0, errors.New("stream reset")
}

func TestMeasureUpload(t *testing.T) {
	t.Run("sends-aggregate-payload", func(t *testing.T) {
		tx := &fakeTransport{}
		rate, err := MeasureUpload(context.Background(), tx, 6, 2, time.Minute)
		if err != nil {
			t.Fatalf("MeasureUpload() error = %v", err)
		}
		if !rate.Known || rate.Mbps < 0 {
			t.Errorf("MeasureUpload() = %v, want known non-negative", rate)
		}
		want := int64(6 * 2 * spec.BytesPerMB)
		if got := atomic.LoadInt64(&tx.sinkBytes); got != want {
			t.Errorf("uploaded %d bytes, want %d", got, want)
		}
	})

	t.Run("non-success-response-is-unknown", func(t *testing.T) {
		tx := &fakeTransport{
			sink: func(io.Reader, int64) error {
				return errors.New("unexpected status 503")
			},
		}
		rate, err := MeasureUpload(context.Background(), tx, 2, 1, time.Minute)
		if err == nil {
			t.Fatal("MeasureUpload() error = nil, want non-nil")
		}
		if rate.Known {
			t.Errorf("MeasureUpload() = %v, want unknown", rate)
		}
	})
}

func TestMeasureInvalidDirection(t *testing.T) {
	_, err := Measure(context.Background(), &fakeTransport{}, "sideways", 1, 1, time.Minute)
	if err == nil {
		t.Fatal("Measure() accepted an invalid direction")
	}
}

func TestRandomPayload(t *testing.T) {
	// An odd size exercises the final short block.
	const size = spec.RandBlockSize*2 + 12345
	payload, err := randomPayload(size)
	if err != nil {
		t.Fatalf("randomPayload() error = %v", err)
	}
	if len(payload) != size {
		t.Fatalf("len(payload) = %d, want %d", len(payload), size)
	}
	// Not all zero: crypto/rand filled every block.
	if bytes.Equal(payload[:spec.RandBlockSize], make([]byte, spec.RandBlockSize)) {
		t.Error("first block was not filled")
	}
	if bytes.Equal(payload[size-100:], make([]byte, 100)) {
		t.Error("final short block was not filled")
	}
}
