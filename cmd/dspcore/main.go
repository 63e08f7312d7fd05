// Command dspcore boots a simulated multi-core DSP firmware image: it
// loads a platform descriptor and deployment config, wires the pipeline
// runtime and IPC dispatcher together, starts the per-core schedulers,
// and optionally serves prometheus metrics and a websocket mailbox
// bridge for an out-of-process host simulator to drive.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jangala-audio/dspcore/internal/config"
	"github.com/jangala-audio/dspcore/internal/ipc"
	"github.com/jangala-audio/dspcore/internal/logging"
	"github.com/jangala-audio/dspcore/internal/metrics"
	"github.com/jangala-audio/dspcore/internal/platform"
	"github.com/jangala-audio/dspcore/internal/runtime"
)

// xrunWatchInterval is how often the xrun-notification bridge polls
// pipeline.XrunStats for new activity; short enough that a host waiting
// on an xrun notification doesn't see it arrive a whole scheduler period late.
const xrunWatchInterval = 2 * time.Millisecond

// fwVersion is the firmware ABI version reported in the fw_ready
// notification's first word.
const fwVersion = 0x0400_0000

func main() {
	platformPath := flag.String("platform", "", "Path to a YAML platform descriptor (defaults to the built-in descriptor)")
	topologyPath := flag.String("topology", "", "Path to a binary topology blob to instantiate at boot")
	dev := flag.String("dev", "", "Set to any value to use development logging instead of env-driven config")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *dev != "" {
		cfg.Logging.Development = true
	}

	logCfg := logging.Config{Level: cfg.Logging.Level, Development: cfg.Logging.Development, OutputPaths: []string{"stdout"}}
	log0, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("dspcore: build logger: %v", err)
	}
	defer log0.Sync()

	plat := platform.Default()
	if *platformPath != "" {
		plat, err = platform.Load(*platformPath)
		if err != nil {
			log0.Sugar().Fatalw("load platform descriptor", "path", *platformPath, "error", err)
		}
	}

	rt, err := runtime.New(cfg, plat, log0)
	if err != nil {
		log0.Sugar().Fatalw("build runtime", "error", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	dispatcher := ipc.NewDispatcher(rt, m, log0)
	rt.BindDispatcher(dispatcher)
	rt.BindMetrics(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *topologyPath != "" {
		blob, err := os.ReadFile(*topologyPath)
		if err != nil {
			log0.Sugar().Fatalw("read topology blob", "path", *topologyPath, "error", err)
		}
		if err := rt.LoadTopology(ctx, blob); err != nil {
			log0.Sugar().Fatalw("load topology blob", "path", *topologyPath, "error", err)
		}
		log0.Sugar().Infow("topology loaded", "path", *topologyPath)
	}

	dispatcher.PushFWReady(fwVersion, len(rt.Scheduler().Cores))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return rt.Scheduler().Run(gctx) })
	g.Go(func() error { rt.WatchXruns(gctx, xrunWatchInterval); return nil })

	var metricsSrv, mailboxSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		g.Go(func() error {
			log0.Sugar().Infow("metrics listener starting", "addr", cfg.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	if cfg.Mailbox.Enabled {
		bridge := ipc.NewWSBridge(dispatcher, log0)
		mux := http.NewServeMux()
		mux.Handle("/mailbox", bridge)
		mailboxSrv = &http.Server{Addr: cfg.Mailbox.Addr, Handler: mux}
		g.Go(func() error {
			log0.Sugar().Infow("mailbox bridge starting", "addr", cfg.Mailbox.Addr)
			if err := mailboxSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			log0.Sugar().Infow("shutdown signal received", "signal", sig.String())
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(shutdownCtx)
			}
			if mailboxSrv != nil {
				_ = mailboxSrv.Shutdown(shutdownCtx)
			}
			cancel()
			return nil
		case <-gctx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log0.Sugar().Fatalw("dspcore exited with error", "error", err)
	}
	log0.Sugar().Info("dspcore shut down cleanly")
}
