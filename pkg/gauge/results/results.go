// Package results contains the data model for link quality measurements.
package results

import (
	"fmt"
	"math"
	"time"
)

// Rate is a throughput reading in Mbps. Known distinguishes a measured value
// (including a true zero) from a failed or timed-out measurement.
type Rate struct {
	Mbps  float64
	Known bool
}

// NewRate computes a Rate from a byte count and a wall-clock duration.
// The result is floored at zero and rounded to one decimal place. A
// non-positive duration yields an unknown Rate regardless of bytes.
func NewRate(numBytes int64, elapsed time.Duration) Rate {
	if elapsed <= 0 {
		return Rate{}
	}
	mbps := float64(numBytes) * 8 / 1e6 / elapsed.Seconds()
	if mbps < 0 {
		mbps = 0
	}
	return Rate{
		Mbps:  math.Round(mbps*10) / 10,
		Known: true,
	}
}

func (r Rate) String() string {
	if !r.Known {
		return "unknown"
	}
	return fmt.Sprintf("%.1f", r.Mbps)
}

// Latency is a round-trip time reading in milliseconds.
type Latency struct {
	Millis int64
	Known  bool
}

// NewLatency rounds elapsed to the nearest millisecond.
func NewLatency(elapsed time.Duration) Latency {
	return Latency{
		Millis: int64(math.Round(float64(elapsed) / float64(time.Millisecond))),
		Known:  true,
	}
}

func (l Latency) String() string {
	if !l.Known {
		return "unknown"
	}
	return fmt.Sprintf("%dms", l.Millis)
}

// Sample is one completed measurement round.
type Sample struct {
	When     time.Time
	Download Rate
	Upload   Rate
}

// Label returns the timestamp label used when rendering the sample.
func (s Sample) Label() string {
	return s.When.Format("15:04:05")
}

// Series is the ordered sequence of samples collected during a single run.
// It is append-only while a run is in progress and reset at the start of the
// next one. The sampling loop is its only writer.
type Series struct {
	RunID     string
	StartTime time.Time
	samples   []Sample
}

// Reset discards all samples and marks the start of a new run.
func (s *Series) Reset(runID string) {
	s.RunID = runID
	s.StartTime = time.Now().UTC()
	s.samples = s.samples[:0]
}

// Append adds a completed sample to the series.
func (s *Series) Append(sample Sample) {
	s.samples = append(s.samples, sample)
}

// Len returns the number of recorded samples.
func (s *Series) Len() int {
	return len(s.samples)
}

// Samples returns a copy of the recorded samples in chronological order.
func (s *Series) Samples() []Sample {
	out := make([]Sample, len(s.samples))
	copy(out, s.samples)
	return out
}
