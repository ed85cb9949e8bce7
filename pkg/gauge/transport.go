// Package gauge implements the link quality measurement engine: a latency
// prober over a websocket echo channel and a concurrent multi-stream
// throughput estimator for download and upload.
package gauge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

// Transport performs the network operations the engine depends on: an echo
// round-trip channel, a sized chunk download, and an upload sink.
type Transport interface {
	// Echo opens the duplex echo channel at <base>/ws.
	Echo(ctx context.Context) (*websocket.Conn, error)

	// Chunk requests a chunk of sizeMB megabytes from the download
	// endpoint and returns the response body. A non-success status is
	// reported as an error.
	Chunk(ctx context.Context, sizeMB float64) (io.ReadCloser, error)

	// Sink uploads length bytes read from body to the upload endpoint.
	// A non-success status is reported as an error.
	Sink(ctx context.Context, body io.Reader, length int64) error
}

// HTTPTransport implements Transport against a measurement server reachable
// at an http(s) base URL.
type HTTPTransport struct {
	base   string
	client *http.Client
	dialer *websocket.Dialer
}

// NewTransport creates an HTTPTransport for the given base URL. The base
// must have been normalized already (no trailing slash).
func NewTransport(base string) *HTTPTransport {
	return &HTTPTransport{
		base:   base,
		client: &http.Client{},
		dialer: &websocket.Dialer{
			TLSClientConfig: &tls.Config{},
			ReadBufferSize:  spec.MaxMessageSize,
			WriteBufferSize: spec.MaxMessageSize,
		},
	}
}

var errUnsupportedScheme = errors.New("unsupported URL scheme")

// echoURL translates the http(s) base into its websocket equivalent and
// appends the echo path.
func echoURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already translated
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + spec.EchoPath
	return u.String(), nil
}

func (t *HTTPTransport) Echo(ctx context.Context) (*websocket.Conn, error) {
	wsURL, err := echoURL(t.base)
	if err != nil {
		return nil, err
	}
	conn, _, err := t.dialer.DialContext(ctx, wsURL, http.Header{})
	return conn, err
}

func (t *HTTPTransport) Chunk(ctx context.Context, sizeMB float64) (io.ReadCloser, error) {
	chunkURL := fmt.Sprintf("%s%s?size=%g", t.base, spec.DownloadPath, sizeMB)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chunkURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (t *HTTPTransport) Sink(ctx context.Context, body io.Reader, length int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.base+spec.UploadPath, body)
	if err != nil {
		return err
	}
	req.ContentLength = length
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upload: unexpected status %d", resp.StatusCode)
	}
	return nil
}
