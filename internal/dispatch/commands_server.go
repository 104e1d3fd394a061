package dispatch

import "github.com/adred-codev/kvstore/internal/resp"

func addServerCommands(t map[string]commandSpec) {
	t["ping"] = commandSpec{0, 1, cmdPing}
	t["echo"] = commandSpec{1, 1, cmdEcho}
	t["config"] = commandSpec{2, 3, cmdConfig}
	t["monitor"] = commandSpec{0, 0, cmdMonitor}
	t["shutdown"] = commandSpec{0, 1, cmdShutdown}
	t["quit"] = commandSpec{0, 0, cmdQuit}
}

func cmdPing(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	if len(args) == 1 {
		return resp.Bulk(args[0]), true
	}
	return resp.SimpleString("PONG"), true
}

func cmdEcho(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return resp.Bulk(args[0]), true
}

func cmdConfig(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	switch {
	case eqFold(args[0], "GET"):
		if len(args) != 2 {
			return resp.ErrorValue("ERR wrong number of arguments for 'config|get' command"), true
		}
		key := string(args[1])
		v, ok := d.Config.Get(key)
		if !ok {
			return resp.Array(nil), true
		}
		return resp.Array([]resp.Value{resp.Bulk([]byte(key)), resp.Bulk([]byte(v))}), true
	case eqFold(args[0], "SET"):
		if len(args) != 3 {
			return resp.ErrorValue("ERR wrong number of arguments for 'config|set' command"), true
		}
		d.Config.Set(string(args[1]), string(args[2]))
		return resp.SimpleString("OK"), true
	default:
		return resp.ErrorValue("ERR unknown CONFIG subcommand"), true
	}
}

func cmdMonitor(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	d.registerMonitor(conn)
	return resp.SimpleString("OK"), true
}

func cmdShutdown(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	if d.Shutdown != nil {
		d.Shutdown()
	}
	return resp.Value{}, false
}

func cmdQuit(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return resp.SimpleString("OK"), true
}
