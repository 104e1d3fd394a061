package dispatch

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/adred-codev/kvstore/internal/config"
	"github.com/adred-codev/kvstore/internal/metrics"
	"github.com/adred-codev/kvstore/internal/pubsub"
	"github.com/adred-codev/kvstore/internal/resp"
	"github.com/adred-codev/kvstore/internal/store"
)

type fakeConn struct {
	addr string
	sent [][]byte
}

func (f *fakeConn) Addr() string { return f.addr }
func (f *fakeConn) TrySend(frame []byte) bool {
	f.sent = append(f.sent, frame)
	return true
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return New(store.New(), pubsub.New(), cfg, nil, nil)
}

func args(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func mustEncode(t *testing.T, v resp.Value) string {
	t.Helper()
	return string(resp.Encode(v))
}

func TestSetAndGet(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}

	reply, ok := d.Dispatch(c, args("SET", "k", "v"))
	if !ok || reply.Type != resp.TypeSimpleString || reply.Str != "OK" {
		t.Fatalf("SET reply = %+v", reply)
	}
	reply, ok = d.Dispatch(c, args("GET", "k"))
	if !ok || string(reply.Bulk) != "v" {
		t.Fatalf("GET reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("GET", "missing"))
	if !reply.Null {
		t.Fatalf("expected null bulk for missing key, got %+v", reply)
	}
}

func TestArityError(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}
	reply, ok := d.Dispatch(c, args("GET"))
	if !ok || reply.Type != resp.TypeError {
		t.Fatalf("expected arity error, got %+v", reply)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}
	reply, ok := d.Dispatch(c, args("FROBNICATE"))
	if !ok || reply.Type != resp.TypeError {
		t.Fatalf("expected unknown command error, got %+v", reply)
	}
}

func TestWrongTypeError(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}
	d.Dispatch(c, args("LPUSH", "k", "v"))
	reply, _ := d.Dispatch(c, args("GET", "k"))
	if reply.Type != resp.TypeError {
		t.Fatalf("expected WRONGTYPE error, got %+v", reply)
	}
}

func TestListAndSetCommands(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}

	reply, _ := d.Dispatch(c, args("RPUSH", "l", "a", "b", "c"))
	if reply.Int != 3 {
		t.Fatalf("RPUSH reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("LRANGE", "l", "0", "-1"))
	if len(reply.Array) != 3 {
		t.Fatalf("LRANGE reply = %+v", reply)
	}

	reply, _ = d.Dispatch(c, args("SADD", "s", "x", "y"))
	if reply.Int != 2 {
		t.Fatalf("SADD reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("SISMEMBER", "s", "x"))
	if reply.Int != 1 {
		t.Fatalf("SISMEMBER reply = %+v", reply)
	}
}

func TestLPopRejectsNegativeCount(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}
	d.Dispatch(c, args("RPUSH", "l", "a", "b"))

	reply, ok := d.Dispatch(c, args("LPOP", "l", "-1"))
	if !ok || reply.Type != resp.TypeError {
		t.Fatalf("expected a range error for a negative count, got %+v", reply)
	}

	reply, ok = d.Dispatch(c, args("RPOP", "l", "-3"))
	if !ok || reply.Type != resp.TypeError {
		t.Fatalf("expected a range error for a negative count, got %+v", reply)
	}
}

func TestKeyCommands(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}

	d.Dispatch(c, args("SET", "k", "v"))
	reply, _ := d.Dispatch(c, args("EXPIRE", "k", "100"))
	if reply.Int != 1 {
		t.Fatalf("EXPIRE reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("TTL", "k"))
	if reply.Int <= 0 {
		t.Fatalf("TTL reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("TYPE", "k"))
	if reply.Str != "string" {
		t.Fatalf("TYPE reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("KEYS", "*"))
	if len(reply.Array) != 1 {
		t.Fatalf("KEYS reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("DEL", "k"))
	if reply.Int != 1 {
		t.Fatalf("DEL reply = %+v", reply)
	}
}

func TestSortCommand(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}
	d.Dispatch(c, args("RPUSH", "nums", "3", "1", "2"))
	reply, _ := d.Dispatch(c, args("SORT", "nums"))
	if string(reply.Array[0].Bulk) != "1" || string(reply.Array[2].Bulk) != "3" {
		t.Fatalf("SORT reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("SORT", "nums", "DESC"))
	if string(reply.Array[0].Bulk) != "3" {
		t.Fatalf("SORT DESC reply = %+v", reply)
	}
}

func TestPubSubSubscribeGateAndPublish(t *testing.T) {
	d := newTestDispatcher(t)
	sub := &fakeConn{addr: "sub"}
	pub := &fakeConn{addr: "pub"}

	_, ok := d.Dispatch(sub, args("SUBSCRIBE", "news"))
	if ok {
		t.Fatal("SUBSCRIBE should report sendReply=false (it writes its own frames)")
	}
	if len(sub.sent) != 1 {
		t.Fatalf("expected one subscribe ack, got %d", len(sub.sent))
	}

	if !d.Subscribed(sub) {
		t.Fatal("expected subscribed-mode to be active")
	}
	reply, ok := d.Dispatch(sub, args("GET", "k"))
	if !ok || reply.Type != resp.TypeError {
		t.Fatalf("expected gate rejection, got %+v", reply)
	}

	reply, ok = d.Dispatch(pub, args("PUBLISH", "news", "hello"))
	if !ok || reply.Int != 1 {
		t.Fatalf("PUBLISH reply = %+v", reply)
	}
	if len(sub.sent) != 2 {
		t.Fatalf("expected subscriber to receive the message frame, got %d frames", len(sub.sent))
	}

	_, ok = d.Dispatch(sub, args("UNSUBSCRIBE"))
	if ok {
		t.Fatal("UNSUBSCRIBE should report sendReply=false")
	}
	if d.Subscribed(sub) {
		t.Fatal("expected subscribed-mode to be cleared")
	}
}

func TestMonitorBroadcastsCommands(t *testing.T) {
	d := newTestDispatcher(t)
	mon := &fakeConn{addr: "mon"}
	other := &fakeConn{addr: "other"}

	d.Dispatch(mon, args("MONITOR"))
	d.Dispatch(other, args("SET", "k", "v"))
	if len(mon.sent) != 1 {
		t.Fatalf("expected monitor to observe one command, got %d", len(mon.sent))
	}
}

func TestConfigGetSet(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}
	reply, _ := d.Dispatch(c, args("CONFIG", "SET", "maxmemory", "1024"))
	if reply.Str != "OK" {
		t.Fatalf("CONFIG SET reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("CONFIG", "GET", "maxmemory"))
	if len(reply.Array) != 2 || string(reply.Array[1].Bulk) != "1024" {
		t.Fatalf("CONFIG GET reply = %+v", reply)
	}
}

func TestPingEcho(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}
	reply, _ := d.Dispatch(c, args("PING"))
	if reply.Str != "PONG" {
		t.Fatalf("PING reply = %+v", reply)
	}
	reply, _ = d.Dispatch(c, args("ECHO", "hi"))
	if string(reply.Bulk) != "hi" {
		t.Fatalf("ECHO reply = %+v", reply)
	}
}

func TestDispatchObservesCommandMetrics(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	m := metrics.New()
	d := New(store.New(), pubsub.New(), cfg, m, nil)
	c := &fakeConn{addr: "a"}

	d.Dispatch(c, args("SET", "k", "v"))
	d.Dispatch(c, args("LPUSH", "l", "x"))
	d.Dispatch(c, args("GET", "l")) // wrong type: l holds a list

	if got := testutil.ToFloat64(m.CommandsTotal.WithLabelValues("set")); got != 1 {
		t.Fatalf("CommandsTotal[set] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CommandErrors.WithLabelValues("get")); got != 1 {
		t.Fatalf("CommandErrors[get] = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.CommandLatency); n == 0 {
		t.Fatal("expected CommandLatency to have observed at least one sample")
	}
}

func TestUnregisterClearsMonitorAndSubscriptions(t *testing.T) {
	d := newTestDispatcher(t)
	c := &fakeConn{addr: "a"}
	// MONITOR first: once subscribed, the gate would reject it.
	d.Dispatch(c, args("MONITOR"))
	d.Dispatch(c, args("SUBSCRIBE", "ch"))
	d.Unregister(c)
	if d.Subscribed(c) {
		t.Fatal("expected subscriptions cleared after Unregister")
	}
	d.monMu.RLock()
	_, monitoring := d.monitors[c.addr]
	d.monMu.RUnlock()
	if monitoring {
		t.Fatal("expected monitor registration cleared after Unregister")
	}
}
