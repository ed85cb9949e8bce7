package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-lab/go/rtx"

	"github.com/robertodauria/netgauge/client"
	"github.com/robertodauria/netgauge/client/config"
	"github.com/robertodauria/netgauge/internal/logging"
	"github.com/robertodauria/netgauge/pkg/gauge/spec"
)

var (
	flagServer  = flag.String("server", "", "Base URL of the measurement server (required)")
	flagWorkers = flag.Int("workers", spec.DefaultWorkers, "Number of concurrent transfer streams")
	flagChunkMB = flag.Float64("chunk-mb", spec.DefaultChunkSizeMB, "Download chunk size in MB")
	flagRounds  = flag.Int("rounds", spec.DefaultRounds, "Number of measurement rounds")
	flagVerbose = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()
	defer logging.Setup(*flagVerbose)()

	cfg := config.New(*flagServer)
	cfg.Workers = *flagWorkers
	cfg.ChunkSizeMB = *flagChunkMB
	cfg.Rounds = *flagRounds
	cfg.ApplyDefaults()

	// SIGINT requests cooperative cancellation: the round in flight
	// completes and no new round starts.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	samples, err := client.New(cfg).Run(ctx)
	rtx.Must(err, "Measurement run failed")

	for _, s := range samples {
		fmt.Printf("%s  download: %s Mbps  upload: %s Mbps\n",
			s.Label(), s.Download, s.Upload)
	}
}
