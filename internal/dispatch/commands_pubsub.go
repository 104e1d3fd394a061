package dispatch

import (
	"github.com/adred-codev/kvstore/internal/pubsub"
	"github.com/adred-codev/kvstore/internal/resp"
)

func addPubSubCommands(t map[string]commandSpec) {
	t["subscribe"] = commandSpec{1, -1, cmdSubscribe}
	t["unsubscribe"] = commandSpec{0, -1, cmdUnsubscribe}
	t["publish"] = commandSpec{2, 2, cmdPublish}
	t["pubsub"] = commandSpec{1, 2, cmdPubSub}
}

// connSink adapts a Conn to pubsub.Sink; Conn already exposes the
// exact TrySend signature the bus needs.
type connSink struct{ Conn }

func cmdSubscribe(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	for _, ch := range args {
		channel := string(ch)
		count := d.Bus.Subscribe(channel, pubsub.Subscriber{Addr: conn.Addr(), Sink: connSink{conn}})
		reply := resp.Array([]resp.Value{
			resp.Bulk([]byte("subscribe")),
			resp.Bulk(ch),
			resp.Integer(int64(count)),
		})
		conn.TrySend(resp.Encode(reply))
	}
	return resp.Value{}, false
}

func cmdUnsubscribe(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	channels := args
	if len(channels) == 0 {
		for _, ch := range d.Bus.SubscribedChannels(conn.Addr()) {
			channels = append(channels, []byte(ch))
		}
	}
	if len(channels) == 0 {
		// Nothing subscribed: Redis still emits one reply with a nil
		// channel and the current (zero) count.
		reply := resp.Array([]resp.Value{
			resp.Bulk([]byte("unsubscribe")),
			resp.NullBulk(),
			resp.Integer(0),
		})
		conn.TrySend(resp.Encode(reply))
		return resp.Value{}, false
	}
	for _, ch := range channels {
		channel := string(ch)
		count := d.Bus.Unsubscribe(conn.Addr(), channel)
		reply := resp.Array([]resp.Value{
			resp.Bulk([]byte("unsubscribe")),
			resp.Bulk(ch),
			resp.Integer(int64(count)),
		})
		conn.TrySend(resp.Encode(reply))
	}
	return resp.Value{}, false
}

func cmdPublish(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n := d.Bus.Publish(string(args[0]), resp.Encode(resp.Array([]resp.Value{
		resp.Bulk([]byte("message")),
		resp.Bulk(args[0]),
		resp.Bulk(args[1]),
	})))
	return resp.Integer(int64(n)), true
}

func cmdPubSub(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	switch {
	case eqFold(args[0], "CHANNELS"):
		pattern := ""
		if len(args) == 2 {
			pattern = string(args[1])
		}
		chans := d.Bus.Channels(pattern)
		out := make([][]byte, len(chans))
		for i, c := range chans {
			out[i] = []byte(c)
		}
		return bulkArrayReply(out), true
	case eqFold(args[0], "NUMSUB"):
		names := toStrings(args[1:])
		counts := d.Bus.NumSub(names)
		elems := make([]resp.Value, 0, len(names)*2)
		for i, name := range names {
			elems = append(elems, resp.Bulk([]byte(name)), resp.Integer(int64(counts[i])))
		}
		return resp.Array(elems), true
	default:
		return resp.ErrorValue("ERR unknown PUBSUB subcommand"), true
	}
}
