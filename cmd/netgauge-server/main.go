package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/m-lab/go/prometheusx"
	"github.com/m-lab/go/rtx"
	"go.uber.org/zap"

	"github.com/robertodauria/netgauge/internal/handler"
	"github.com/robertodauria/netgauge/internal/logging"
)

var (
	flagListen     = flag.String("listen", ":8080", "Listen address/port for the measurement endpoints")
	flagMaxChunkMB = flag.Float64("max-chunk-mb", handler.DefaultMaxChunkMB, "Maximum download chunk size in MB")
	flagVerbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	defer logging.Setup(*flagVerbose)()

	defer prometheusx.MustServeMetrics().Close()

	mux := http.NewServeMux()
	handler.New(*flagMaxChunkMB).Register(mux)

	srv := &http.Server{
		Addr:    *flagListen,
		Handler: logging.MakeAccessLogHandler(mux),
		// Absolute timeouts so a stalled client cannot hold a
		// connection forever. Downloads are bounded well below this.
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
	}

	zap.L().Sugar().Infof("listening for measurements on %s", *flagListen)
	rtx.Must(srv.ListenAndServe(), "Could not start measurement server")
}
