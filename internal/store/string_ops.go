package store

import (
	"errors"
	"strconv"
)

// SetOptions controls the optional clauses of SET: EX/PX, NX/XX and
// KEEPTTL (spec §4.C).
type SetOptions struct {
	HasExpire   bool
	ExpireAt    int64 // epoch seconds, only meaningful if HasExpire
	OnlyIfAbsent bool // NX
	OnlyIfExists bool // XX
	KeepTTL     bool
}

var (
	ErrNotSet      = errors.New("ERR SET condition not met")
	ErrNoSuchKey   = errors.New("ERR no such key")
	ErrNotAnInt    = errors.New("ERR value is not an integer or out of range")
	ErrOutOfRange  = errors.New("ERR index out of range")
)

// Get returns the string value at key. ok is false if the key is
// missing; err is ErrWrongType if it holds a non-string value.
func (s *Store) Get(key string) (val []byte, ok bool, err error) {
	s.withRead(key, func(e *Entry, present bool) {
		if !present {
			return
		}
		if e.Kind != KindString {
			err = ErrWrongType
			return
		}
		val = append([]byte(nil), e.Str...)
		ok = true
	})
	if err != nil {
		return nil, false, err
	}
	return val, ok, nil
}

// Set installs v at key per opts, returning whether the write was
// applied (false only for an unmet NX/XX condition).
func (s *Store) Set(key string, v []byte, opts SetOptions) (applied bool, err error) {
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		if opts.OnlyIfAbsent && present {
			return e
		}
		if opts.OnlyIfExists && !present {
			return e
		}
		applied = true
		var out *Entry
		if opts.KeepTTL && present {
			out = &Entry{Kind: KindString, Volatile: e.Volatile, Deadline: e.Deadline}
		} else {
			out = &Entry{Kind: KindString}
		}
		out.Str = append([]byte(nil), v...)
		if opts.HasExpire {
			out.Volatile = true
			out.Deadline = opts.ExpireAt
		}
		touch(out)
		return out
	})
	return applied, nil
}

// Append concatenates v onto the string at key, creating it if absent,
// and returns the new length.
func (s *Store) Append(key string, v []byte) (newLen int, err error) {
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		if present && e.Kind != KindString {
			err = ErrWrongType
			return e
		}
		var out *Entry
		if present {
			out = e
		} else {
			out = &Entry{Kind: KindString}
		}
		out.Str = append(out.Str, v...)
		newLen = len(out.Str)
		touch(out)
		return out
	})
	if err != nil {
		return 0, err
	}
	return newLen, nil
}

// Strlen returns the byte length of the string at key, 0 if missing.
func (s *Store) Strlen(key string) (n int, err error) {
	s.withRead(key, func(e *Entry, present bool) {
		if !present {
			return
		}
		if e.Kind != KindString {
			err = ErrWrongType
			return
		}
		n = len(e.Str)
	})
	return n, err
}

// GetDel returns the string value at key and deletes it atomically.
func (s *Store) GetDel(key string) (val []byte, ok bool, err error) {
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		if !present {
			return nil
		}
		if e.Kind != KindString {
			err = ErrWrongType
			return e
		}
		val = append([]byte(nil), e.Str...)
		ok = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return val, ok, nil
}

// GetSet returns the previous string value at key (if any) and
// installs v, making the key Persistent.
func (s *Store) GetSet(key string, v []byte) (old []byte, hadOld bool, err error) {
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		if present {
			if e.Kind != KindString {
				err = ErrWrongType
				return e
			}
			old = append([]byte(nil), e.Str...)
			hadOld = true
		}
		out := &Entry{Kind: KindString, Str: append([]byte(nil), v...)}
		touch(out)
		return out
	})
	if err != nil {
		return nil, false, err
	}
	return old, hadOld, nil
}

// MGet returns, per key, the string value or nil if missing or of the
// wrong kind (MGET never errors — non-string keys read as nil).
func (s *Store) MGet(keys []string) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		s.withRead(k, func(e *Entry, present bool) {
			if present && e.Kind == KindString {
				out[i] = append([]byte(nil), e.Str...)
			}
		})
	}
	return out
}

// MSet overwrites every given key=value pair unconditionally,
// regardless of prior kind, making each key Persistent. It never
// fails.
func (s *Store) MSet(pairs map[string][]byte) {
	for k, v := range pairs {
		s.withWrite(k, func(e *Entry, present bool) *Entry {
			out := &Entry{Kind: KindString, Str: append([]byte(nil), v...)}
			touch(out)
			return out
		})
	}
}

// IncrBy parses the current string as a signed 64-bit integer (base 0
// if absent), adds delta, and stores the decimal result.
func (s *Store) IncrBy(key string, delta int64) (result int64, err error) {
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		var base int64
		if present {
			if e.Kind != KindString {
				err = ErrWrongType
				return e
			}
			n, perr := strconv.ParseInt(string(e.Str), 10, 64)
			if perr != nil {
				err = ErrNotAnInt
				return e
			}
			base = n
		}
		sum := base + delta
		if (delta > 0 && sum < base) || (delta < 0 && sum > base) {
			err = ErrNotAnInt
			return e
		}
		var out *Entry
		if present {
			out = e
		} else {
			out = &Entry{Kind: KindString}
		}
		out.Str = []byte(strconv.FormatInt(sum, 10))
		touch(out)
		result = sum
		return out
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}
