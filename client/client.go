// Package client implements the sampling loop: repeated rounds of
// {download, upload} throughput measurements preceded by a single latency
// probe, feeding an append-only series and an event emitter.
package client

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/robertodauria/netgauge/client/config"
	"github.com/robertodauria/netgauge/client/emitter"
	"github.com/robertodauria/netgauge/pkg/gauge"
	"github.com/robertodauria/netgauge/pkg/gauge/results"
	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

// ErrAlreadyRunning is returned by Run when a run is already in progress on
// this Client.
var ErrAlreadyRunning = errors.New("client: run already in progress")

// Client owns the run state and the series for a measurement run.
type Client struct {
	config    *config.Config
	transport gauge.Transport
	emitter   emitter.Emitter
	series    results.Series
	running   int32
}

// New creates a Client for the configured server with a log emitter.
func New(cfg *config.Config) *Client {
	return NewWithEmitter(cfg, &emitter.LogEmitter{})
}

// NewWithEmitter creates a Client pushing events to the given emitter.
func NewWithEmitter(cfg *config.Config, e emitter.Emitter) *Client {
	cfg.ApplyDefaults()
	return NewWithTransport(cfg, e, gauge.NewTransport(cfg.ServerBase))
}

// NewWithTransport creates a Client with a custom transport. Useful for
// testing the sampling loop without a network.
func NewWithTransport(cfg *config.Config, e emitter.Emitter, tx gauge.Transport) *Client {
	cfg.ApplyDefaults()
	return &Client{
		config:    cfg,
		transport: tx,
		emitter:   e,
	}
}

// Running reports whether a run is in progress.
func (c *Client) Running() bool {
	return atomic.LoadInt32(&c.running) == 1
}

// Run executes one measurement run and returns the recorded samples.
//
// The run probes latency once, then performs cfg.Rounds rounds of download
// and upload measurements with a pause between rounds. Measurement failures
// never abort the run: they record unknown values and the loop proceeds.
//
// Cancellation is cooperative. The context is checked between rounds only;
// an in-flight measurement is bounded by its own timeout and is not aborted
// mid-flight. A cancelled run returns the samples recorded so far and a nil
// error.
func (c *Client) Run(ctx context.Context) ([]results.Sample, error) {
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return nil, ErrAlreadyRunning
	}
	defer atomic.StoreInt32(&c.running, 0)

	runID := uuid.NewString()
	c.series.Reset(runID)
	c.emitter.OnStart(runID)

	// One latency probe per run, published immediately.
	latency, err := gauge.ProbeLatency(context.Background(), c.transport, c.config.LatencyTimeout)
	if err != nil {
		c.emitter.OnError(0, "latency", err)
	}
	c.emitter.OnLatency(latency)

	for round := 1; round <= c.config.Rounds; round++ {
		if ctx.Err() != nil {
			break
		}
		c.runRound(round)
		if round < c.config.Rounds {
			c.pause(ctx)
		}
	}

	samples := c.series.Samples()
	c.emitter.OnComplete(runID, samples)
	return samples, nil
}

// runRound measures download then upload, strictly serialized so the two
// estimates do not contend for bandwidth, and records one sample.
//
// Measurements run on background contexts bounded by their own timeouts:
// cancelling the run context must not abort a round that already started.
func (c *Client) runRound(round int) {
	sample := results.Sample{When: time.Now()}

	c.emitter.OnMeasure(round, spec.DirectionDownload)
	download, err := gauge.MeasureDownload(context.Background(), c.transport,
		c.config.Workers, c.config.ChunkSizeMB, c.config.DownloadTimeout)
	if err != nil {
		c.emitter.OnError(round, spec.DirectionDownload, err)
	}
	sample.Download = download
	c.emitter.OnPartial(round, sample)

	c.emitter.OnMeasure(round, spec.DirectionUpload)
	upload, err := gauge.MeasureUpload(context.Background(), c.transport,
		c.config.Workers, c.config.ChunkSizeMB, c.config.UploadTimeout)
	if err != nil {
		c.emitter.OnError(round, spec.DirectionUpload, err)
	}
	sample.Upload = upload

	c.series.Append(sample)
	c.emitter.OnSample(round, sample)
}

// pause waits the inter-round pause, returning early on cancellation.
func (c *Client) pause(ctx context.Context) {
	timer := time.NewTimer(c.config.RoundPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
