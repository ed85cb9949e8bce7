package gauge

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/robertodauria/netgauge/pkg/gauge/results"
	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

var (
	// ErrAllStreamsFailed is returned when every concurrent transfer
	// reported a transport-level failure.
	ErrAllStreamsFailed = errors.New("throughput: all streams failed")

	// ErrZeroDuration guards the divide-by-zero case on clock anomalies.
	ErrZeroDuration = errors.New("throughput: non-positive duration")
)

// Measure runs the throughput estimator for the given direction.
func Measure(ctx context.Context, tx Transport, dir spec.Direction, workers int, chunkSizeMB float64, timeout time.Duration) (results.Rate, error) {
	switch dir {
	case spec.DirectionDownload:
		return MeasureDownload(ctx, tx, workers, chunkSizeMB, timeout)
	case spec.DirectionUpload:
		return MeasureUpload(ctx, tx, workers, chunkSizeMB, timeout)
	default:
		return results.Rate{}, fmt.Errorf("throughput: invalid direction %q", dir)
	}
}

// MeasureDownload estimates download throughput by fetching workers
// concurrent chunks of chunkSizeMB megabytes each and dividing the total
// bytes received by the wall-clock duration of the whole operation.
//
// Bytes are credited incrementally as they arrive, so streams interrupted
// by the global timeout still contribute partial progress. Per-stream
// errors are swallowed: a failed stream contributes zero bytes and does not
// abort its siblings. The Rate is unknown only when every stream failed
// before receiving a success status, or on a non-positive duration.
func MeasureDownload(ctx context.Context, tx Transport, workers int, chunkSizeMB float64, timeout time.Duration) (results.Rate, error) {
	if timeout <= 0 {
		timeout = spec.DownloadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var totalBytes int64
	var okStreams int32

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		stream := i
		g.Go(func() error {
			n, err := fetchChunk(ctx, tx, chunkSizeMB, &totalBytes)
			if err != nil {
				// Swallowed: only total bytes and elapsed time matter.
				zap.L().Sugar().Debugw("download stream failed",
					"stream", stream,
					"bytes", n,
					"error", err)
				return nil
			}
			atomic.AddInt32(&okStreams, 1)
			return nil
		})
	}
	g.Wait()
	elapsed := time.Since(start)

	if elapsed <= 0 {
		return results.Rate{}, ErrZeroDuration
	}
	if atomic.LoadInt32(&okStreams) == 0 {
		return results.Rate{}, ErrAllStreamsFailed
	}
	return results.NewRate(atomic.LoadInt64(&totalBytes), elapsed), nil
}

// fetchChunk requests one chunk and copies it into the shared byte counter.
// It returns the bytes read by this stream. An error after a success status
// still leaves the partial bytes credited.
func fetchChunk(ctx context.Context, tx Transport, sizeMB float64, totalBytes *int64) (int64, error) {
	body, err := tx.Chunk(ctx, sizeMB)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	var streamBytes int64
	buf := make([]byte, 32*1024)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			streamBytes += int64(n)
			atomic.AddInt64(totalBytes, int64(n))
		}
		if err == io.EOF {
			return streamBytes, nil
		}
		if err != nil {
			// The chunk was cut short (timeout, reset). The bytes
			// already read stay counted.
			return streamBytes, nil
		}
	}
}

// MeasureUpload estimates upload throughput by sending a single payload of
// workers×chunkSizeMB byte-exact megabytes to the upload sink and dividing
// by the time from first write to server response.
//
// The payload is the aggregate of all workers: one stream sized as N chunks
// rather than N parallel streams, preserving the single-sink semantics of
// the upload endpoint. The Rate is unknown on transport failure, a
// non-success response, or a non-positive duration.
func MeasureUpload(ctx context.Context, tx Transport, workers int, chunkSizeMB float64, timeout time.Duration) (results.Rate, error) {
	if timeout <= 0 {
		timeout = spec.UploadTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	size := int64(float64(workers) * chunkSizeMB * spec.BytesPerMB)
	payload, err := randomPayload(size)
	if err != nil {
		return results.Rate{}, fmt.Errorf("throughput: payload generation failed: %w", err)
	}

	start := time.Now()
	if err := tx.Sink(ctx, bytes.NewReader(payload), size); err != nil {
		return results.Rate{}, err
	}
	elapsed := time.Since(start)

	if elapsed <= 0 {
		return results.Rate{}, ErrZeroDuration
	}
	return results.NewRate(size, elapsed), nil
}

// randomPayload builds size bytes from a cryptographically strong source,
// reading spec.RandBlockSize bytes at a time.
func randomPayload(size int64) ([]byte, error) {
	payload := make([]byte, size)
	for off := int64(0); off < size; off += spec.RandBlockSize {
		end := off + spec.RandBlockSize
		if end > size {
			end = size
		}
		if _, err := rand.Read(payload[off:end]); err != nil {
			return nil, err
		}
	}
	return payload, nil
}
