package spec

import "time"

const (
	// Paths exposed by the measurement server.
	EchoPath     = "/ws"
	DownloadPath = "/download"
	UploadPath   = "/upload"

	// Per-operation deadlines.
	LatencyTimeout  = 5 * time.Second
	DownloadTimeout = 30 * time.Second
	UploadTimeout   = 30 * time.Second

	// RandBlockSize is the size of each crypto/rand read used to build the
	// upload payload. Generating the payload in bounded pieces keeps memory
	// pressure predictable for large worker counts.
	RandBlockSize = 256 * 1024

	// BytesPerMB is the byte-exact megabyte used to size upload payloads.
	BytesPerMB = 1024 * 1024

	MaxMessageSize = 1 << 20
)

const (
	DefaultWorkers     = 6
	DefaultChunkSizeMB = 2
	DefaultRounds      = 4
	DefaultRoundPause  = 800 * time.Millisecond
)

// Direction indicates the direction of a throughput measurement.
type Direction string

const (
	// DirectionDownload is a server-to-client measurement.
	DirectionDownload = Direction("download")

	// DirectionUpload is a client-to-server measurement.
	DirectionUpload = Direction("upload")
)
