// Command server runs the key-value store: it loads a config file
// named on the command line (spec §6), wires the keyspace, pub/sub
// bus, dispatcher and supervisor together, and serves RESP connections
// until SIGINT/SIGTERM or a client's SHUTDOWN command, mirroring the
// teacher's main.go flag-parse-then-run shape.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/kvstore/internal/config"
	"github.com/adred-codev/kvstore/internal/logging"
	"github.com/adred-codev/kvstore/internal/metrics"
	"github.com/adred-codev/kvstore/internal/pubsub"
	"github.com/adred-codev/kvstore/internal/server"
	"github.com/adred-codev/kvstore/internal/store"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config-file>\n", os.Args[0])
		os.Exit(1)
	}
	configPath := os.Args[1]

	bootLogger := log.New(os.Stdout, "[kvstore] ", log.LstdFlags)

	// automaxprocs sets GOMAXPROCS from the container's cgroup CPU quota
	// before anything sizes the worker pool off runtime.GOMAXPROCS.
	bootLogger.Printf("GOMAXPROCS: %d", runtime.GOMAXPROCS(0))

	cfg, err := config.Load(configPath)
	if err != nil {
		bootLogger.Fatalf("failed to load config %s: %v", configPath, err)
	}
	bootLogger.Print(cfg.String())

	logPath, _ := cfg.Get(config.Logfile)
	logSink, err := logging.New(logPath, cfg.Verbose())
	if err != nil {
		bootLogger.Fatalf("failed to open log sink: %v", err)
	}

	dbFilename, _ := cfg.Get(config.DBFilename)
	listenPort, _ := cfg.Get(config.Port)

	opts := server.Options{
		ListenAddr:       ":" + listenPort,
		MetricsAddr:      ":9121",
		SnapshotPath:     dbFilename,
		SnapshotInterval: 5 * time.Minute,
		WorkerCount:      runtime.GOMAXPROCS(0) * 2,
		WorkerQueueSize:  0,
	}
	if timeout, ok := cfg.Get(config.Timeout); ok {
		if secs, err := time.ParseDuration(timeout + "s"); err == nil {
			opts.IdleTimeout = secs
		}
	}

	srv := server.New(opts, store.New(), pubsub.New(), cfg, metrics.New(), logSink)
	if err := srv.Start(); err != nil {
		bootLogger.Fatalf("failed to start server: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	bootLogger.Print("shutting down...")
	if err := srv.Shutdown(10 * time.Second); err != nil {
		bootLogger.Printf("error during shutdown: %v", err)
	}
}
