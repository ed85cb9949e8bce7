package config

import (
	"errors"
	"strings"
	"time"

	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

// ErrNoServer is returned when a run is started without a server address.
var ErrNoServer = errors.New("config: server address is required")

// Config drives a measurement run.
type Config struct {
	// ServerBase is the http(s) base URL of the measurement server,
	// without a trailing slash.
	ServerBase string

	// Workers is the number of concurrent transfer streams used by the
	// throughput tests.
	Workers int

	// ChunkSizeMB is the size in megabytes of each download chunk
	// request. Workers×ChunkSizeMB bounds the upload payload size.
	ChunkSizeMB float64

	// Rounds is the number of measurement rounds in a run.
	Rounds int

	// RoundPause is the pause between rounds, giving the sink time to
	// render and the network time to drain.
	RoundPause time.Duration

	// Per-operation timeouts.
	LatencyTimeout  time.Duration
	DownloadTimeout time.Duration
	UploadTimeout   time.Duration
}

// New creates a Config for the given server with default tunables applied.
func New(serverBase string) *Config {
	cfg := &Config{ServerBase: serverBase}
	cfg.ApplyDefaults()
	return cfg
}

// NewDefault creates a Config with default tunables and no server.
func NewDefault() *Config {
	return New("")
}

// ApplyDefaults normalizes the server base and fills zero-valued tunables
// with their defaults.
func (c *Config) ApplyDefaults() {
	c.ServerBase = strings.TrimRight(strings.TrimSpace(c.ServerBase), "/")
	if c.Workers <= 0 {
		c.Workers = spec.DefaultWorkers
	}
	if c.ChunkSizeMB <= 0 {
		c.ChunkSizeMB = spec.DefaultChunkSizeMB
	}
	if c.Rounds <= 0 {
		c.Rounds = spec.DefaultRounds
	}
	if c.RoundPause <= 0 {
		c.RoundPause = spec.DefaultRoundPause
	}
	if c.LatencyTimeout <= 0 {
		c.LatencyTimeout = spec.LatencyTimeout
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = spec.DownloadTimeout
	}
	if c.UploadTimeout <= 0 {
		c.UploadTimeout = spec.UploadTimeout
	}
}

// Validate reports whether the configuration can start a run. A missing
// server address is a precondition failure, not a measurement failure.
func (c *Config) Validate() error {
	if c.ServerBase == "" {
		return ErrNoServer
	}
	return nil
}
