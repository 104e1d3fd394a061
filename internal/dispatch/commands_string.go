package dispatch

import (
	"strings"

	"github.com/adred-codev/kvstore/internal/resp"
	"github.com/adred-codev/kvstore/internal/store"
)

func addStringCommands(t map[string]commandSpec) {
	t["get"] = commandSpec{1, 1, cmdGet}
	t["set"] = commandSpec{2, -1, cmdSet}
	t["append"] = commandSpec{2, 2, cmdAppend}
	t["strlen"] = commandSpec{1, 1, cmdStrlen}
	t["getdel"] = commandSpec{1, 1, cmdGetDel}
	t["getset"] = commandSpec{2, 2, cmdGetSet}
	t["mget"] = commandSpec{1, -1, cmdMGet}
	t["mset"] = commandSpec{2, -1, cmdMSet}
	t["incrby"] = commandSpec{2, 2, cmdIncrBy}
	t["decrby"] = commandSpec{2, 2, cmdDecrBy}
}

func cmdGet(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	v, ok, err := d.Store.Get(string(args[0]))
	if err != nil {
		return errFromStoreErr(err), true
	}
	if !ok {
		return resp.NullBulk(), true
	}
	return resp.Bulk(v), true
}

func cmdSet(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	key := string(args[0])
	val := args[1]
	var opts store.SetOptions
	for i := 2; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "NX":
			opts.OnlyIfAbsent = true
		case "XX":
			opts.OnlyIfExists = true
		case "KEEPTTL":
			opts.KeepTTL = true
		case "EX":
			i++
			if i >= len(args) {
				return resp.ErrorValue("ERR syntax error"), true
			}
			n, err := parseInt64Arg(args[i])
			if err != nil {
				return resp.ErrorValue("ERR value is not an integer or out of range"), true
			}
			opts.HasExpire = true
			opts.ExpireAt = store.NowFunc() + n
		case "PX":
			i++
			if i >= len(args) {
				return resp.ErrorValue("ERR syntax error"), true
			}
			n, err := parseInt64Arg(args[i])
			if err != nil {
				return resp.ErrorValue("ERR value is not an integer or out of range"), true
			}
			opts.HasExpire = true
			opts.ExpireAt = store.NowFunc() + n/1000
		default:
			return resp.ErrorValue("ERR syntax error"), true
		}
	}
	applied, err := d.Store.Set(key, val, opts)
	if err != nil {
		return errFromStoreErr(err), true
	}
	if !applied {
		return resp.NullBulk(), true
	}
	return resp.SimpleString("OK"), true
}

func cmdAppend(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.Append(string(args[0]), args[1])
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdStrlen(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	n, err := d.Store.Strlen(string(args[0]))
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(int64(n)), true
}

func cmdGetDel(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	v, ok, err := d.Store.GetDel(string(args[0]))
	if err != nil {
		return errFromStoreErr(err), true
	}
	if !ok {
		return resp.NullBulk(), true
	}
	return resp.Bulk(v), true
}

func cmdGetSet(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	old, had, err := d.Store.GetSet(string(args[0]), args[1])
	if err != nil {
		return errFromStoreErr(err), true
	}
	if !had {
		return resp.NullBulk(), true
	}
	return resp.Bulk(old), true
}

func cmdMGet(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	keys := make([]string, len(args))
	for i, a := range args {
		keys[i] = string(a)
	}
	return bulkArrayReply(d.Store.MGet(keys)), true
}

func cmdMSet(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	if len(args)%2 != 0 {
		return resp.ErrorValue("ERR wrong number of arguments for 'mset' command"), true
	}
	pairs := make(map[string][]byte, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		pairs[string(args[i])] = args[i+1]
	}
	d.Store.MSet(pairs)
	return resp.SimpleString("OK"), true
}

func cmdIncrBy(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return incrByDelta(d, args, 1)
}

func cmdDecrBy(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return incrByDelta(d, args, -1)
}

func incrByDelta(d *Dispatcher, args [][]byte, sign int64) (resp.Value, bool) {
	n, err := parseInt64Arg(args[1])
	if err != nil {
		return resp.ErrorValue("ERR value is not an integer or out of range"), true
	}
	result, err := d.Store.IncrBy(string(args[0]), sign*n)
	if err != nil {
		return errFromStoreErr(err), true
	}
	return resp.Integer(result), true
}
