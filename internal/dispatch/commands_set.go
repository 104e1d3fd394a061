package dispatch

import "github.com/adred-codev/kvstore/internal/resp"

func addSetCommands(t map[string]commandSpec) {
	t["sadd"] = commandSpec{2, -1, cmdSAdd}
	t["scard"] = commandSpec{1, 1, cmdSCard}
	t["sismember"] = commandSpec{2, 2, cmdSIsMember}
	t["smembers"] = commandSpec{1, 1, cmdSMembers}
	t["srem"] = commandSpec{2, -1, cmdSRem}
}

func cmdSAdd(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.SAdd(string(args[0]), args[1:])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdSCard(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.SCard(string(args[0]))
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdSIsMember(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	ok, err := d.Store.SIsMember(string(args[0]), args[1])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return boolIntReply(ok), true
}

func cmdSMembers(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	out, err := d.Store.SMembers(string(args[0]))
	if err != nil {
		return errFromStoreErr(err), true
	}
	return bulkArrayReply(out), true
}

func cmdSRem(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.SRem(string(args[0]), args[1:])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}
