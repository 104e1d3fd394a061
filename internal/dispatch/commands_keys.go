package dispatch

import (
	"strings"

	"github.com/adred-codev/kvstore/internal/resp"
	"github.com/adred-codev/kvstore/internal/store"
)

func addKeyCommands(t map[string]commandSpec) {
	t["del"] = commandSpec{1, -1, cmdDel}
	t["exists"] = commandSpec{1, -1, cmdExists}
	t["expire"] = commandSpec{2, 2, cmdExpire}
	t["expireat"] = commandSpec{2, 2, cmdExpireAt}
	t["persist"] = commandSpec{1, 1, cmdPersist}
	t["ttl"] = commandSpec{1, 1, cmdTTL}
	t["touch"] = commandSpec{1, -1, cmdTouch}
	t["rename"] = commandSpec{2, 2, cmdRename}
	t["copy"] = commandSpec{2, 3, cmdCopy}
	t["type"] = commandSpec{1, 1, cmdType}
	t["keys"] = commandSpec{1, 1, cmdKeys}
	t["sort"] = commandSpec{1, -1, cmdSort}
	t["dbsize"] = commandSpec{0, 0, cmdDBSize}
	t["flushall"] = commandSpec{0, 0, cmdFlushAll}
	t["flushdb"] = commandSpec{0, 0, cmdFlushAll}
}

func cmdDel(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	keys := toStrings(args)
	return resp.Integer(int64(d.Store.Delete(keys...))), true
}

func cmdExists(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	keys := toStrings(args)
	return resp.Integer(int64(d.Store.Exists(keys...))), true
}

func cmdExpire(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	sec, err := parseInt64Arg(args[1])
	if err != nil {
		return resp.ErrorValue("ERR value is not an integer or out of range"), true
	}
	ok := d.Store.Expire(string(args[0]), store.NowFunc()+sec)
	return boolIntReply(ok), true
}

func cmdExpireAt(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	ts, err := parseInt64Arg(args[1])
	if err != nil {
		return resp.ErrorValue("ERR value is not an integer or out of range"), true
	}
	ok := d.Store.Expire(string(args[0]), ts)
	return boolIntReply(ok), true
}

func cmdPersist(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return boolIntReply(d.Store.Persist(string(args[0]))), true
}

func cmdTTL(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return resp.Integer(d.Store.TTL(string(args[0]))), true
}

func cmdTouch(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	keys := toStrings(args)
	return resp.Integer(int64(d.Store.Touch(keys...))), true
}

func cmdRename(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	if err := d.Store.Rename(string(args[0]), string(args[1])); err != nil {
		return resp.ErrorValue(err.Error()), true
	}
	return resp.SimpleString("OK"), true
}

func cmdCopy(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	replace := false
	if len(args) == 3 {
		if !eqFold(args[2], "REPLACE") {
			return resp.ErrorValue("ERR syntax error"), true
		}
		replace = true
	}
	if err := d.Store.Copy(string(args[0]), string(args[1]), replace); err != nil {
		return resp.Integer(0), true
	}
	return resp.Integer(1), true
}

func cmdType(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	kind, ok := d.Store.Type(string(args[0]))
	if !ok {
		return resp.SimpleString(""), true
	}
	return resp.SimpleString(kind), true
}

func cmdKeys(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	match := globMatcher(args[0])
	keys := d.Store.Keys(match)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return bulkArrayReply(out), true
}

func cmdSort(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	key := string(args[0])
	desc := false
	byPattern := ""
	limitOff, limitCount := 0, -1

	for i := 1; i < len(args); i++ {
		switch strings.ToUpper(string(args[i])) {
		case "ASC":
			desc = false
		case "DESC":
			desc = true
		case "BY":
			i++
			if i >= len(args) {
				return resp.ErrorValue("ERR syntax error"), true
			}
			byPattern = string(args[i])
		case "LIMIT":
			if i+2 >= len(args) {
				return resp.ErrorValue("ERR syntax error"), true
			}
			off, err := parseIntArg(args[i+1])
			if err != nil {
				return resp.ErrorValue("ERR value is not an integer or out of range"), true
			}
			cnt, err := parseIntArg(args[i+2])
			if err != nil {
				return resp.ErrorValue("ERR value is not an integer or out of range"), true
			}
			limitOff, limitCount = off, cnt
			i += 2
		default:
			return resp.ErrorValue("ERR syntax error"), true
		}
	}

	out, err := d.Store.Sort(key, desc, limitOff, limitCount, byPattern)
	if err != nil {
		return errFromStoreErr(err), true
	}
	return bulkArrayReply(out), true
}

func cmdDBSize(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	return resp.Integer(int64(d.Store.DBSize())), true
}

func cmdFlushAll(d *Dispatcher, conn Conn, args [][]byte) (resp.Value, bool) {
	d.Store.FlushAll()
	return resp.SimpleString("OK"), true
}

func toStrings(args [][]byte) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = string(a)
	}
	return out
}
