package dispatch

import (
	"github.com/adred-codev/kvstore/internal/resp"
)

func addListCommands(t map[string]commandSpec) {
	t["lpush"] = commandSpec{2, -1, cmdLPush}
	t["rpush"] = commandSpec{2, -1, cmdRPush}
	t["lpushx"] = commandSpec{2, -1, cmdLPushX}
	t["rpushx"] = commandSpec{2, -1, cmdRPushX}
	t["llen"] = commandSpec{1, 1, cmdLLen}
	t["lindex"] = commandSpec{2, 2, cmdLIndex}
	t["lrange"] = commandSpec{3, 3, cmdLRange}
	t["lrem"] = commandSpec{3, 3, cmdLRem}
	t["lset"] = commandSpec{3, 3, cmdLSet}
	t["lpop"] = commandSpec{1, 2, cmdLPop}
	t["rpop"] = commandSpec{1, 2, cmdRPop}
}

func cmdLPush(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.LPush(string(args[0]), args[1:])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdRPush(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.RPush(string(args[0]), args[1:])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdLPushX(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.LPushX(string(args[0]), args[1:])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdRPushX(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.RPushX(string(args[0]), args[1:])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdLLen(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.LLen(string(args[0]))
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdLIndex(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	i, err := parseIntArg(args[1])
	if err != nil {
		return resp.ErrorValue("ERR value is not an integer or out of range"), true
	}
	v, err := d.Store.LIndex(string(args[0]), i)
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Bulk(v), true
}

func cmdLRange(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	lo, err := parseIntArg(args[1])
	if err != nil {
		return resp.ErrorValue("ERR value is not an integer or out of range"), true
	}
	hi, err := parseIntArg(args[2])
	if err != nil {
		return resp.ErrorValue("ERR value is not an integer or out of range"), true
	}
	out, err := d.Store.LRange(string(args[0]), lo, hi)
	if err != nil {
		return errFromStoreErr(err), true
	}
	return bulkArrayReply(out), true
}

func cmdLRem(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	count, err := parseIntArg(args[1])
	if err != nil {
		return resp.ErrorValue("ERR value is not an integer or out of range"), true
	}
	n, err := d.Store.LRem(string(args[0]), count, args[2])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdLSet(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	i, err := parseIntArg(args[1])
	if err != nil {
		return resp.ErrorValue("ERR value is not an integer or out of range"), true
	}
	if err := d.Store.LSet(string(args[0]), i, args[2]); err != nil {
		return errFromStoreErr(err), true
	}
	return resp.SimpleString("OK"), true
}

func cmdLPop(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return listPop(d, args, false)
}

func cmdRPop(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return listPop(d, args, true)
}

func listPop(d *Dispatcher, args [][]byte, right bool) (resp.Value, bool) {
	single := len(args) == 1
	count := 1
	if !single {
		n, err := parseIntArg(args[1])
		if err != nil {
			return resp.ErrorValue("ERR value is not an integer or out of range"), true
		}
		if n < 0 {
			return resp.ErrorValue("ERR value is out of range, must be positive"), true
		}
		count = n
	}
	var out [][]byte
	var err error
	if right {
		out, err = d.Store.RPop(string(args[0]), count)
	} else {
		out, err = d.Store.LPop(string(args[0]), count)
	}
	if err != nil {
		return errFromStoreErr(err), true
	}
	if single {
		if len(out) == 0 {
			return resp.NullBulk(), true
		}
		return resp.Bulk(out[0]), true
	}
	return bulkArrayReply(out), true
}
