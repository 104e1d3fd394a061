// Package server is the supervisor (spec §4.H): it owns the listening
// socket, the worker pool, the admission limiter, the periodic
// snapshot and memory-sampling timers, and the dedicated metrics
// listener, wiring every other component together the way the
// teacher's Server/NewServer/Start/Shutdown does.
package server

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/adred-codev/kvstore/internal/config"
	"github.com/adred-codev/kvstore/internal/dispatch"
	"github.com/adred-codev/kvstore/internal/logging"
	"github.com/adred-codev/kvstore/internal/metrics"
	"github.com/adred-codev/kvstore/internal/pubsub"
	"github.com/adred-codev/kvstore/internal/session"
	"github.com/adred-codev/kvstore/internal/snapshot"
	"github.com/adred-codev/kvstore/internal/store"
)

// Options configures the supervisor. Values not set by the caller fall
// back to the defaults NewAdmissionLimiter/NewWorkerPool already apply.
type Options struct {
	ListenAddr       string
	MetricsAddr      string
	SnapshotPath     string
	SnapshotInterval time.Duration
	IdleTimeout      time.Duration
	AdmissionRate    float64
	AdmissionBurst   int
	WorkerCount      int
	WorkerQueueSize  int
}

// Server is the supervisor tying the keyspace, pub/sub bus, dispatcher,
// config and metrics together behind one listening socket.
type Server struct {
	opts Options

	Store      *store.Store
	Bus        *pubsub.Bus
	Config     *config.Config
	Metrics    *metrics.Metrics
	Log        *logging.Sink
	Dispatcher *dispatch.Dispatcher

	limiter         *AdmissionLimiter
	sessionPool     *WorkerPool // bounds concurrent sessions (spec §4.H/§5's fixed-size worker pool)
	maintenancePool *WorkerPool // periodic snapshot/memory-sample jobs only

	listener net.Listener

	mu       sync.Mutex
	sessions map[string]net.Conn

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	shutdownOnce sync.Once
}

// New wires every component together. The Dispatcher is constructed
// here so its Shutdown callback can close over the resulting Server.
func New(opts Options, s *store.Store, bus *pubsub.Bus, cfg *config.Config, m *metrics.Metrics, log *logging.Sink) *Server {
	// spec §4.H: "a fixed-size worker pool (default 4)".
	workerCount := opts.WorkerCount
	if workerCount <= 0 {
		workerCount = 4
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Server{
		opts:    opts,
		Store:   s,
		Bus:     bus,
		Config:  cfg,
		Metrics: m,
		Log:     log,
		limiter: NewAdmissionLimiter(opts.AdmissionRate, opts.AdmissionBurst),
		// sessionPool's queue depth/drop metrics are the ones named in
		// SPEC_FULL.md's DOMAIN STACK table; maintenancePool is an
		// internal helper the spec doesn't describe, so it is kept off
		// those gauges to avoid two pools stomping on one reading.
		sessionPool:     NewWorkerPool(workerCount, opts.WorkerQueueSize, log, m),
		maintenancePool: NewWorkerPool(2, 8, log, nil),
		sessions:        make(map[string]net.Conn),
		ctx:             ctx,
		cancel:          cancel,
	}
	srv.Dispatcher = dispatch.New(s, bus, cfg, m, log)
	srv.Dispatcher.Shutdown = srv.TriggerShutdown
	return srv
}

// TriggerShutdown begins an asynchronous graceful shutdown; it is safe
// to call from a session goroutine handling the SHUTDOWN command
// (spec §4.E) without deadlocking on that same session's teardown.
func (s *Server) TriggerShutdown() {
	go s.Shutdown(5 * time.Second)
}

// Start binds the listener and launches the accept loop, the worker
// pool, the metrics listener and the maintenance timers. It returns
// once the listener is bound; the remaining goroutines run until
// Shutdown.
func (s *Server) Start() error {
	if s.opts.SnapshotPath != "" {
		if err := snapshot.Load(s.Store, s.opts.SnapshotPath); err != nil {
			if s.Log != nil {
				s.Log.Error(err, "failed to load snapshot at startup", map[string]any{"path": s.opts.SnapshotPath})
			}
		}
	}

	ln, err := net.Listen("tcp", s.opts.ListenAddr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.opts.ListenAddr, err)
	}
	s.listener = ln

	s.sessionPool.Start(s.ctx)
	s.maintenancePool.Start(s.ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()

	if s.opts.MetricsAddr != "" && s.Metrics != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Metrics.Serve(s.ctx, s.opts.MetricsAddr); err != nil && s.Log != nil {
				s.Log.Error(err, "metrics listener stopped", map[string]any{"addr": s.opts.MetricsAddr})
			}
		}()
	}

	if s.opts.SnapshotPath != "" {
		interval := s.opts.SnapshotInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.maintenanceLoop(interval)
		}()
	}

	if s.Log != nil {
		s.Log.Info("server listening", map[string]any{"addr": s.opts.ListenAddr})
	}
	return nil
}

// acceptLoop admits connections through the rate limiter, then hands
// each one to the session pool (spec §4.H: "a fixed-size worker pool
// ... via a single job queue"). A session occupies a pool worker for
// its entire lifetime, so once every worker is busy and the queue is
// full, acceptLoop blocks in SubmitWait rather than spawning another
// goroutine — this is the actual concurrency bound the pool exists to
// enforce, not just a label on an unrelated goroutine.
func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if s.Log != nil {
				s.Log.Error(err, "accept error", nil)
			}
			return
		}

		if !s.limiter.Allow() {
			if s.Metrics != nil {
				s.Metrics.ConnectionsRejected.Inc()
			}
			conn.Close()
			continue
		}

		if s.Metrics != nil {
			s.Metrics.ConnectionsTotal.Inc()
			s.Metrics.ConnectionsActive.Inc()
		}

		addr := conn.RemoteAddr().String()
		s.mu.Lock()
		s.sessions[addr] = conn
		s.mu.Unlock()

		sess := session.New(conn, s.Dispatcher, s.Log, s.opts.IdleTimeout)
		s.wg.Add(1)
		queued := s.sessionPool.SubmitWait(s.ctx, func() {
			defer s.wg.Done()
			sess.Run()
			s.mu.Lock()
			delete(s.sessions, addr)
			s.mu.Unlock()
			if s.Metrics != nil {
				s.Metrics.ConnectionsActive.Dec()
			}
		})
		if !queued {
			// s.ctx ended the wait: shutdown is in progress.
			s.wg.Done()
			s.mu.Lock()
			delete(s.sessions, addr)
			s.mu.Unlock()
			conn.Close()
			if s.Metrics != nil {
				s.Metrics.ConnectionsActive.Dec()
			}
		}
	}
}

// maintenanceLoop periodically saves a snapshot, samples process
// memory, and refreshes the keyspace/subscription gauges, all
// submitted through the maintenance pool so a slow disk write never
// delays the next tick.
func (s *Server) maintenanceLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.maintenancePool.Submit(func() { s.saveSnapshot() })
			s.maintenancePool.Submit(func() {
				maxMem, _ := s.Config.Get(config.MaxMemory)
				limit, _ := strconv.ParseInt(maxMem, 10, 64)
				sampleMemory(s.Log, s.Metrics, limit)
			})
			s.maintenancePool.Submit(func() { s.sampleGauges() })
		}
	}
}

// sampleGauges refreshes the gauges that have no natural increment/
// decrement point in the request path: keyspace size and the
// subscription bus's subscriber/channel counts.
func (s *Server) sampleGauges() {
	if s.Metrics == nil {
		return
	}
	if s.Store != nil {
		s.Metrics.KeyspaceSize.Set(float64(s.Store.DBSize()))
	}
	if s.Bus != nil {
		subs, channels := s.Bus.Stats()
		s.Metrics.SubscriberCount.Set(float64(subs))
		s.Metrics.ChannelCount.Set(float64(channels))
	}
}

func (s *Server) saveSnapshot() {
	start := time.Now()
	err := snapshot.Save(s.Store, s.opts.SnapshotPath)
	if s.Metrics != nil {
		s.Metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			s.Metrics.SnapshotFailures.Inc()
		}
	}
	if err != nil && s.Log != nil {
		s.Log.Error(err, "snapshot save failed", map[string]any{"path": s.opts.SnapshotPath})
	}
}

// Shutdown stops accepting connections, closes every open session,
// writes a final snapshot, drains the worker pool and waits for every
// goroutine Start launched to return. It is idempotent.
func (s *Server) Shutdown(grace time.Duration) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}

		s.mu.Lock()
		conns := make([]net.Conn, 0, len(s.sessions))
		for _, c := range s.sessions {
			conns = append(conns, c)
		}
		s.mu.Unlock()
		for _, c := range conns {
			c.Close()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(grace):
			if s.Log != nil {
				s.Log.Info("shutdown grace period elapsed with sessions still draining", nil)
			}
		}

		if s.opts.SnapshotPath != "" {
			if saveErr := snapshot.Save(s.Store, s.opts.SnapshotPath); saveErr != nil {
				err = saveErr
			}
		}
		s.sessionPool.Stop()
		s.maintenancePool.Stop()
		if s.Log != nil {
			s.Log.Info("server shutdown complete", nil)
			s.Log.Close()
		}
	})
	return err
}
