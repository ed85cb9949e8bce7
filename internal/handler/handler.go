// Package handler implements the measurement server endpoints: a websocket
// echo channel for latency probes, a sized download endpoint, and an upload
// sink.
package handler

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netgauge_requests_total",
		Help: "Requests received, by endpoint.",
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netgauge_errors_total",
		Help: "Requests failed, by endpoint.",
	}, []string{"endpoint"})
)

// DefaultMaxChunkMB caps the ?size= parameter of the download endpoint.
const DefaultMaxChunkMB = 64

// Handler serves the measurement endpoints.
type Handler struct {
	maxChunkMB float64
	block      []byte
	upgrader   websocket.Upgrader
}

// New creates a Handler. maxChunkMB bounds the per-request download size; a
// non-positive value selects DefaultMaxChunkMB.
func New(maxChunkMB float64) *Handler {
	if maxChunkMB <= 0 {
		maxChunkMB = DefaultMaxChunkMB
	}
	// One random block generated up front and repeated on the wire. The
	// payload must be incompressible, not unpredictable per request.
	block := make([]byte, spec.RandBlockSize)
	if _, err := rand.Read(block); err != nil {
		panic(err)
	}
	return &Handler{
		maxChunkMB: maxChunkMB,
		block:      block,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  spec.MaxMessageSize,
			WriteBufferSize: spec.MaxMessageSize,
			// The renderer may be served from a different origin.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

type echoMessage struct {
	Type string `json:"type"`
	T    int64  `json:"t"`
}

// Echo upgrades the connection to a websocket and answers every ping with a
// pong carrying the client's timestamp.
func (h *Handler) Echo(rw http.ResponseWriter, req *http.Request) {
	requestsTotal.WithLabelValues("echo").Inc()
	conn, err := h.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		errorsTotal.WithLabelValues("echo").Inc()
		zap.L().Sugar().Warnw("echo: upgrade failed",
			"client", req.RemoteAddr,
			"error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(spec.MaxMessageSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m echoMessage
		if err := json.Unmarshal(data, &m); err != nil || m.Type != "ping" {
			zap.L().Sugar().Debugw("echo: ignoring message",
				"client", req.RemoteAddr)
			continue
		}
		pong := echoMessage{Type: "pong", T: m.T}
		if err := conn.WriteJSON(pong); err != nil {
			return
		}
	}
}

// Download streams approximately size megabytes (1e6 bytes per MB) of
// incompressible data, flushing after each block so concurrent requests
// interleave fairly.
func (h *Handler) Download(rw http.ResponseWriter, req *http.Request) {
	requestsTotal.WithLabelValues("download").Inc()
	sizeMB := float64(spec.DefaultChunkSizeMB)
	if v := req.URL.Query().Get("size"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			errorsTotal.WithLabelValues("download").Inc()
			http.Error(rw, "invalid size", http.StatusBadRequest)
			return
		}
		sizeMB = parsed
	}
	if sizeMB > h.maxChunkMB {
		sizeMB = h.maxChunkMB
	}

	total := int64(sizeMB * 1e6)
	rw.Header().Set("Content-Type", "application/octet-stream")
	rw.Header().Set("Content-Length", strconv.FormatInt(total, 10))

	flusher, _ := rw.(http.Flusher)
	for sent := int64(0); sent < total; {
		block := h.block
		if remaining := total - sent; remaining < int64(len(block)) {
			block = block[:remaining]
		}
		n, err := rw.Write(block)
		sent += int64(n)
		if err != nil {
			// Client went away; the bytes it read still count on
			// its side.
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

type uploadAck struct {
	BytesReceived int64 `json:"bytesReceived"`
}

// Upload drains the request body and acknowledges the byte count.
func (h *Handler) Upload(rw http.ResponseWriter, req *http.Request) {
	requestsTotal.WithLabelValues("upload").Inc()
	n, err := io.Copy(io.Discard, req.Body)
	if err != nil {
		errorsTotal.WithLabelValues("upload").Inc()
		zap.L().Sugar().Warnw("upload: body read failed",
			"client", req.RemoteAddr,
			"bytes", n,
			"error", err)
		http.Error(rw, "read failed", http.StatusBadRequest)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(uploadAck{BytesReceived: n})
}

// Register installs the measurement endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(spec.EchoPath, h.Echo)
	mux.HandleFunc(spec.DownloadPath, h.Download)
	mux.HandleFunc(spec.UploadPath, h.Upload)
}
