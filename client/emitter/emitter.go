package emitter

import (
	"go.uber.org/zap"

	"github.com/robertodauria/netgauge/pkg/gauge/results"
	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

// Emitter is the sink for measurement events. The sampling loop pushes
// samples through this interface and has no dependency on any rendering
// surface, so the engine can run headless.
type Emitter interface {
	// OnStart is called once when a run begins.
	OnStart(runID string)

	// OnLatency is called with the run's single latency probe result.
	OnLatency(l results.Latency)

	// OnMeasure is called just before a throughput measurement starts.
	OnMeasure(round int, dir spec.Direction)

	// OnPartial is called mid-round, after the download measurement but
	// before the upload measurement. The sample's Upload is unknown.
	OnPartial(round int, s results.Sample)

	// OnSample is called with the completed sample for a round.
	OnSample(round int, s results.Sample)

	// OnError is called when a measurement comes back unknown. The
	// round still records a sample and the run continues.
	OnError(round int, dir spec.Direction, err error)

	// OnComplete is called when the run ends, naturally or cancelled.
	OnComplete(runID string, samples []results.Sample)
}

// LogEmitter emits measurement events to the global zap logger.
type LogEmitter struct{}

func (e *LogEmitter) OnStart(runID string) {
	zap.L().Sugar().Infof("run %s: starting", runID)
}

func (e *LogEmitter) OnLatency(l results.Latency) {
	zap.L().Sugar().Infof("latency: %s", l)
}

func (e *LogEmitter) OnMeasure(round int, dir spec.Direction) {
	zap.L().Sugar().Infof("round %d: measuring %s", round, dir)
}

func (e *LogEmitter) OnPartial(round int, s results.Sample) {
	zap.L().Sugar().Infof("round %d: download: %s Mbps", round, s.Download)
}

func (e *LogEmitter) OnSample(round int, s results.Sample) {
	zap.L().Sugar().Infof("round %d: download: %s Mbps, upload: %s Mbps",
		round, s.Download, s.Upload)
}

func (e *LogEmitter) OnError(round int, dir spec.Direction, err error) {
	zap.L().Sugar().Warnf("round %d: %s: %v", round, dir, err)
}

func (e *LogEmitter) OnComplete(runID string, samples []results.Sample) {
	zap.L().Sugar().Infof("run %s: completed with %d samples", runID, len(samples))
}
