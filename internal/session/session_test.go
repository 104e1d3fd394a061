package session

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/adred-codev/kvstore/internal/config"
	"github.com/adred-codev/kvstore/internal/dispatch"
	"github.com/adred-codev/kvstore/internal/pubsub"
	"github.com/adred-codev/kvstore/internal/resp"
	"github.com/adred-codev/kvstore/internal/store"
)

func newTestDispatcher(t *testing.T) *dispatch.Dispatcher {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	return dispatch.New(store.New(), pubsub.New(), cfg, nil, nil)
}

func readFrame(t *testing.T, r *bufio.Reader) resp.Value {
	t.Helper()
	var buf []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte: %v", err)
		}
		buf = append(buf, b)
		if v, n, err := resp.Decode(buf); err == nil {
			_ = n
			return v
		}
	}
}

func TestSessionDispatchesCommands(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	d := newTestDispatcher(t)
	sess := New(server, d, nil, 0)
	go sess.Run()

	req := resp.EncodeRequest([][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	if _, err := client.Write(req); err != nil {
		t.Fatalf("write: %v", err)
	}
	r := bufio.NewReader(client)
	reply := readFrame(t, r)
	if reply.Type != resp.TypeSimpleString || reply.Str != "OK" {
		t.Fatalf("SET reply = %+v", reply)
	}

	req = resp.EncodeRequest([][]byte{[]byte("GET"), []byte("k")})
	client.Write(req)
	reply = readFrame(t, r)
	if string(reply.Bulk) != "v" {
		t.Fatalf("GET reply = %+v", reply)
	}

	snap := sess.Register.Snapshot()
	if len(snap) != 2 || snap[0] != "set" || snap[1] != "get" {
		t.Fatalf("operation register = %v", snap)
	}
}

func TestSessionSurvivesBadCommand(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	d := newTestDispatcher(t)
	sess := New(server, d, nil, 0)
	go sess.Run()
	r := bufio.NewReader(client)

	client.Write(resp.EncodeRequest([][]byte{[]byte("RPUSH"), []byte("l"), []byte("a")}))
	readFrame(t, r)

	client.Write(resp.EncodeRequest([][]byte{[]byte("LPOP"), []byte("l"), []byte("-1")}))
	reply := readFrame(t, r)
	if reply.Type != resp.TypeError {
		t.Fatalf("expected an error reply for a negative count, got %+v", reply)
	}

	client.Write(resp.EncodeRequest([][]byte{[]byte("GET"), []byte("l")}))
	reply = readFrame(t, r)
	if reply.Type != resp.TypeError {
		t.Fatalf("expected the connection to stay usable after the bad command, got %+v", reply)
	}
}

func TestSessionClosesOnEOF(t *testing.T) {
	client, server := net.Pipe()
	d := newTestDispatcher(t)
	sess := New(server, d, nil, 0)

	runDone := make(chan struct{})
	go func() {
		sess.Run()
		close(runDone)
	}()

	client.Close()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not exit after client closed connection")
	}
}

func TestSessionPubSubDelivery(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	d := newTestDispatcher(t)
	sess := New(server, d, nil, 0)
	go sess.Run()

	r := bufio.NewReader(client)
	client.Write(resp.EncodeRequest([][]byte{[]byte("SUBSCRIBE"), []byte("news")}))
	ack := readFrame(t, r)
	if len(ack.Array) != 3 || string(ack.Array[0].Bulk) != "subscribe" {
		t.Fatalf("subscribe ack = %+v", ack)
	}

	delivered := d.Bus.Publish("news", resp.Encode(resp.Array([]resp.Value{
		resp.Bulk([]byte("message")),
		resp.Bulk([]byte("news")),
		resp.Bulk([]byte("hi")),
	})))
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	msg := readFrame(t, r)
	if len(msg.Array) != 3 || string(msg.Array[2].Bulk) != "hi" {
		t.Fatalf("message frame = %+v", msg)
	}
}
