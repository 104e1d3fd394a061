// Package dispatch implements the command table: it maps one decoded
// RESP request to a keyspace, pub/sub, or server operation and
// produces the RESP reply (spec §4.E). It is the single place that
// knows the arity and argument shape of every command.
package dispatch

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adred-codev/kvstore/internal/config"
	"github.com/adred-codev/kvstore/internal/glob"
	"github.com/adred-codev/kvstore/internal/logging"
	"github.com/adred-codev/kvstore/internal/metrics"
	"github.com/adred-codev/kvstore/internal/pubsub"
	"github.com/adred-codev/kvstore/internal/resp"
	"github.com/adred-codev/kvstore/internal/store"
)

// Conn is the session-facing surface the dispatcher needs: an address
// to key pub/sub and monitor registration by, and a non-blocking write
// surface for replies a handler sends directly (SUBSCRIBE/UNSUBSCRIBE
// reply once per channel, not once per command).
type Conn interface {
	Addr() string
	TrySend(frame []byte) bool
}

// subscribedOnly is the command whitelist the gate enforces once a
// connection holds at least one subscription (spec §4.E).
var subscribedOnly = map[string]bool{
	"subscribe":   true,
	"unsubscribe": true,
	"pubsub":      true,
	"ping":        true,
	"quit":        true,
}

// handler executes one command's body. Handlers that must reply with
// more than one frame (or none at all) write directly to conn via
// TrySend and return sendReply=false; everything else returns a single
// resp.Value to be written by Dispatch.
type handler func(d *Dispatcher, conn Conn, args [][]byte) (reply resp.Value, sendReply bool)

type commandSpec struct {
	minArgs int // extra args beyond the command name, inclusive lower bound
	maxArgs int // -1 means unbounded
	fn      handler
}

// Dispatcher wires the keyspace, pub/sub bus, and config together and
// owns the monitor-connection registry (spec §4.H's control thread,
// realized here as a small mutex-guarded set rather than an actor
// goroutine — see DESIGN.md).
type Dispatcher struct {
	Store   *store.Store
	Bus     *pubsub.Bus
	Config  *config.Config
	Metrics *metrics.Metrics
	Log     *logging.Sink

	Shutdown func() // invoked on a successful SHUTDOWN command

	monMu    sync.RWMutex
	monitors map[string]Conn

	commands map[string]commandSpec
}

// New builds a Dispatcher ready to serve requests.
func New(s *store.Store, bus *pubsub.Bus, cfg *config.Config, m *metrics.Metrics, log *logging.Sink) *Dispatcher {
	d := &Dispatcher{
		Store:    s,
		Bus:      bus,
		Config:   cfg,
		Metrics:  m,
		Log:      log,
		monitors: make(map[string]Conn),
	}
	d.commands = d.buildCommandTable()
	return d
}

// broadcastMonitor sends one RESP simple-string line describing the
// command to every registered monitor connection except addr itself.
// Dispatch calls it for every known command that passes the
// subscribed-mode gate and the arity check (spec §4.E's "Monitor
// side-effect"); the session records the command in its own
// OperationRegister separately.
func (d *Dispatcher) broadcastMonitor(addr, name string, args [][]byte) {
	d.monMu.RLock()
	if len(d.monitors) == 0 {
		d.monMu.RUnlock()
		return
	}
	conns := make([]Conn, 0, len(d.monitors))
	for a, c := range d.monitors {
		if a != addr { // a monitor does not echo its own traffic
			conns = append(conns, c)
		}
	}
	d.monMu.RUnlock()

	line := formatMonitorLine(addr, name, args)
	frame := resp.Encode(resp.SimpleString(line))
	for _, c := range conns {
		c.TrySend(frame)
	}
}

func formatMonitorLine(addr, name string, args [][]byte) string {
	var b strings.Builder
	b.WriteString(addr)
	b.WriteByte(' ')
	b.WriteString(name)
	for _, a := range args {
		b.WriteByte(' ')
		b.Write(a)
	}
	return b.String()
}

func (d *Dispatcher) registerMonitor(conn Conn) {
	d.monMu.Lock()
	d.monitors[conn.Addr()] = conn
	d.monMu.Unlock()
}

// Unregister removes conn from every piece of shared registry state it
// might be part of: the monitor set and, via the bus, its pub/sub
// subscriptions. Called by the session on connection close.
func (d *Dispatcher) Unregister(conn Conn) {
	d.monMu.Lock()
	delete(d.monitors, conn.Addr())
	d.monMu.Unlock()
	d.Bus.UnsubscribeAll(conn.Addr())
}

// Subscribed reports whether conn currently has at least one active
// channel subscription — the subscribed-mode gate's predicate.
func (d *Dispatcher) Subscribed(conn Conn) bool {
	return d.Bus.SubscriptionCount(conn.Addr()) > 0
}

// Dispatch executes one parsed command and returns the RESP reply to
// write back, or ok=false if the handler already wrote its own
// reply(s) directly (SUBSCRIBE/UNSUBSCRIBE).
func (d *Dispatcher) Dispatch(conn Conn, args [][]byte) (reply resp.Value, ok bool) {
	if len(args) == 0 {
		return resp.ErrorValue("ERR empty command"), true
	}
	name := strings.ToLower(string(args[0]))
	spec, known := d.commands[name]
	if !known {
		return resp.ErrorValue("ERR unknown command '" + name + "'"), true
	}

	if d.Subscribed(conn) && !subscribedOnly[name] {
		return resp.ErrorValue("ERR only (P)SUBSCRIBE / (P)UNSUBSCRIBE / PUBSUB / PING / QUIT allowed in this context"), true
	}

	extra := args[1:]
	if len(extra) < spec.minArgs || (spec.maxArgs >= 0 && len(extra) > spec.maxArgs) {
		if d.Metrics != nil {
			d.Metrics.CommandErrors.WithLabelValues(name).Inc()
		}
		return resp.ErrorValue("ERR wrong number of arguments for '" + name + "' command"), true
	}

	if d.Metrics != nil {
		d.Metrics.CommandsTotal.WithLabelValues(name).Inc()
	}
	d.broadcastMonitor(conn.Addr(), name, extra)

	start := time.Now()
	reply, sendReply := spec.fn(d, conn, extra)
	if d.Metrics != nil {
		d.Metrics.CommandLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
	if sendReply && reply.Type == resp.TypeError && d.Metrics != nil {
		d.Metrics.CommandErrors.WithLabelValues(name).Inc()
	}
	return reply, sendReply
}

func (d *Dispatcher) buildCommandTable() map[string]commandSpec {
	t := make(map[string]commandSpec)
	addStringCommands(t)
	addListCommands(t)
	addSetCommands(t)
	addKeyCommands(t)
	addPubSubCommands(t)
	addServerCommands(t)
	return t
}

// --- shared reply helpers ---

func errFromStoreErr(err error) resp.Value {
	return resp.ErrorValue(err.Error())
}

func bulkArrayReply(vs [][]byte) resp.Value {
	elems := make([]resp.Value, len(vs))
	for i, v := range vs {
		elems[i] = resp.Bulk(v)
	}
	return resp.Array(elems)
}

func boolIntReply(b bool) resp.Value {
	if b {
		return resp.Integer(1)
	}
	return resp.Integer(0)
}

func parseIntArg(b []byte) (int, error) {
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, store.ErrNotAnInt
	}
	return n, nil
}

func parseInt64Arg(b []byte) (int64, error) {
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, store.ErrNotAnInt
	}
	return n, nil
}

func globMatcher(pattern []byte) func([]byte) bool {
	return func(key []byte) bool { return glob.Match(pattern, key) }
}

func eqFold(a []byte, s string) bool { return bytes.EqualFold(a, []byte(s)) }
