// Package snapshot serializes the keyspace to a text dump file and
// reloads it at startup, per spec §4.C/§4.D. The file format is one
// line per live entry:
//
//	key;last_access;expire_or_empty;type;count;values
//
// where values is a comma-separated list of comma-free tokens and
// count is the number of tokens values was built from. count exists
// only to disambiguate a list/set with exactly one empty-string
// element from an empty list/set: both join to "" under
// strings.Join(tokens, ","), so values alone can't tell them apart.
// It does not help with a token that itself contains ';' or ',' —
// that case is still unescaped and left undefined (spec §9).
package snapshot

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adred-codev/kvstore/internal/store"
)

// Save writes a read snapshot of s to path. It is safe to call while
// other goroutines mutate the live keyspace: Dump takes its own copy
// under the store's lock before any I/O happens.
func Save(s *store.Store, path string) error {
	dump := s.Dump()
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for key, e := range dump {
		line, err := encodeLine(key, e)
		if err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
		if _, err := w.WriteString(line); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func encodeLine(key string, e store.Entry) (string, error) {
	expire := ""
	if e.Volatile {
		expire = strconv.FormatInt(e.Deadline, 10)
	}
	var typ string
	var tokens []string
	switch e.Kind {
	case store.KindString:
		typ = "string"
		tokens = []string{string(e.Str)}
	case store.KindList:
		typ = "list"
		for _, v := range e.List {
			tokens = append(tokens, string(v))
		}
	case store.KindSet:
		typ = "set"
		for m := range e.Set {
			tokens = append(tokens, m)
		}
	default:
		return "", fmt.Errorf("snapshot: unknown kind %v for key %q", e.Kind, key)
	}
	count := ""
	if typ != "string" {
		count = strconv.Itoa(len(tokens))
	}
	fields := []string{
		key,
		strconv.FormatInt(e.LastAccess, 10),
		expire,
		typ,
		count,
		strings.Join(tokens, ","),
	}
	return strings.Join(fields, ";") + "\n", nil
}

// Load reads path into s, replacing its contents. A missing file is
// tolerated: it is created empty and Load leaves s untouched.
// Malformed lines abort the load with an error (spec: "strict on
// malformed lines (it aborts startup)").
func Load(s *store.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			empty, cerr := os.Create(path)
			if cerr != nil {
				return cerr
			}
			return empty.Close()
		}
		return err
	}
	defer f.Close()

	entries := make(map[string]store.Entry)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, entry, err := decodeLine(line)
		if err != nil {
			return fmt.Errorf("snapshot: malformed line %d: %w", lineNo, err)
		}
		entries[key] = entry
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	s.Load(entries)
	return nil
}

func decodeLine(line string) (string, store.Entry, error) {
	fields := strings.SplitN(line, ";", 6)
	if len(fields) != 6 {
		return "", store.Entry{}, fmt.Errorf("expected 6 fields, got %d", len(fields))
	}
	key := fields[0]
	lastAccess, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", store.Entry{}, fmt.Errorf("bad last_access: %w", err)
	}
	e := store.Entry{LastAccess: lastAccess}
	if fields[2] != "" {
		deadline, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return "", store.Entry{}, fmt.Errorf("bad expire: %w", err)
		}
		e.Volatile = true
		e.Deadline = deadline
	}
	values := fields[5]
	switch fields[3] {
	case "string":
		// A string entry always has exactly one token, even when it is
		// the empty string, so it is never split on "," and carries no
		// count field.
		e.Kind = store.KindString
		e.Str = []byte(values)
		return key, e, nil
	default:
	}
	count, err := strconv.Atoi(fields[4])
	if err != nil {
		return "", store.Entry{}, fmt.Errorf("bad count: %w", err)
	}
	var tokens []string
	switch {
	case count == 0:
		tokens = nil
	case values == "" && count == 1:
		// The one-empty-string-element case values=="" can't
		// distinguish from count alone — without it this would decode
		// as zero elements instead of one.
		tokens = []string{""}
	default:
		tokens = strings.Split(values, ",")
	}
	switch fields[3] {
	case "list":
		e.Kind = store.KindList
		e.List = make([][]byte, len(tokens))
		for i, t := range tokens {
			e.List[i] = []byte(t)
		}
	case "set":
		e.Kind = store.KindSet
		e.Set = make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			e.Set[t] = struct{}{}
		}
	default:
		return "", store.Entry{}, fmt.Errorf("unknown type %q", fields[3])
	}
	return key, e, nil
}
