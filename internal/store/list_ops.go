package store

// resolveIndex converts a possibly-negative Redis-style index (counted
// from the tail when negative) into a slice index, or reports it is
// out of range.
func resolveIndex(i, length int) (int, bool) {
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, false
	}
	return i, true
}

// push appends (right=true) or prepends (right=false) values to the
// list at key. If mustExist is true and the key is absent, it refuses
// to create it (LPUSHX/RPUSHX) and returns 0.
func (s *Store) push(key string, values [][]byte, right, mustExist bool) (newLen int, err error) {
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		if present && e.Kind != KindList {
			err = ErrWrongType
			return e
		}
		if !present && mustExist {
			return nil
		}
		var out *Entry
		if present {
			out = e
		} else {
			out = &Entry{Kind: KindList}
		}
		dup := make([][]byte, len(values))
		for i, v := range values {
			dup[i] = append([]byte(nil), v...)
		}
		if right {
			out.List = append(out.List, dup...)
		} else {
			// Prepend in the order given: LPUSH a b c results in c,b,a
			// at the head, matching Redis semantics.
			for _, v := range dup {
				out.List = append([][]byte{v}, out.List...)
			}
		}
		touch(out)
		newLen = len(out.List)
		return out
	})
	if err != nil {
		return 0, err
	}
	return newLen, nil
}

// LPush prepends values, creating key if absent.
func (s *Store) LPush(key string, values [][]byte) (int, error) { return s.push(key, values, false, false) }

// RPush appends values, creating key if absent.
func (s *Store) RPush(key string, values [][]byte) (int, error) { return s.push(key, values, true, false) }

// LPushX prepends values but refuses to create the key.
func (s *Store) LPushX(key string, values [][]byte) (int, error) { return s.push(key, values, false, true) }

// RPushX appends values but refuses to create the key.
func (s *Store) RPushX(key string, values [][]byte) (int, error) { return s.push(key, values, true, true) }

// LLen returns the element count, 0 if missing.
func (s *Store) LLen(key string) (n int, err error) {
	s.withRead(key, func(e *Entry, present bool) {
		if !present {
			return
		}
		if e.Kind != KindList {
			err = ErrWrongType
			return
		}
		n = len(e.List)
	})
	return n, err
}

// LIndex returns the element at i (negative counts from the tail), or
// nil if out of range.
func (s *Store) LIndex(key string, i int) (val []byte, err error) {
	s.withRead(key, func(e *Entry, present bool) {
		if !present {
			return
		}
		if e.Kind != KindList {
			err = ErrWrongType
			return
		}
		idx, ok := resolveIndex(i, len(e.List))
		if !ok {
			return
		}
		val = append([]byte(nil), e.List[idx]...)
	})
	return val, err
}

// LRange returns an inclusive [lo,hi] slice with Redis-style clamping:
// negative indices resolve from the tail and lo>hi yields empty. The
// stored list is unchanged.
func (s *Store) LRange(key string, lo, hi int) (out [][]byte, err error) {
	s.withRead(key, func(e *Entry, present bool) {
		if !present {
			return
		}
		if e.Kind != KindList {
			err = ErrWrongType
			return
		}
		n := len(e.List)
		if lo < 0 {
			lo += n
		}
		if hi < 0 {
			hi += n
		}
		if lo < 0 {
			lo = 0
		}
		if hi >= n {
			hi = n - 1
		}
		if lo > hi || n == 0 {
			out = [][]byte{}
			return
		}
		out = make([][]byte, 0, hi-lo+1)
		for i := lo; i <= hi; i++ {
			out = append(out, append([]byte(nil), e.List[i]...))
		}
	})
	if out == nil && err == nil {
		out = [][]byte{}
	}
	return out, err
}

// LRem removes occurrences of v from the list at key: count>0 scans
// from the head, count<0 from the tail (absolute value), count==0
// removes every occurrence. Returns the number removed.
func (s *Store) LRem(key string, count int, v []byte) (removed int, err error) {
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		if !present {
			return nil
		}
		if e.Kind != KindList {
			err = ErrWrongType
			return e
		}
		limit := count
		if limit < 0 {
			limit = -limit
		}
		out := make([][]byte, 0, len(e.List))
		if count >= 0 {
			for _, el := range e.List {
				if bytesEqual(el, v) && (count == 0 || removed < limit) {
					removed++
					continue
				}
				out = append(out, el)
			}
		} else {
			for i := len(e.List) - 1; i >= 0; i-- {
				el := e.List[i]
				if bytesEqual(el, v) && removed < limit {
					removed++
					continue
				}
				out = append([][]byte{el}, out...)
			}
		}
		e.List = out
		touch(e)
		return e
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// LSet replaces the element at index i; out-of-range is an error.
func (s *Store) LSet(key string, i int, v []byte) error {
	var err error
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		if !present {
			err = ErrNoSuchKey
			return nil
		}
		if e.Kind != KindList {
			err = ErrWrongType
			return e
		}
		idx, ok := resolveIndex(i, len(e.List))
		if !ok {
			err = ErrOutOfRange
			return e
		}
		e.List[idx] = append([]byte(nil), v...)
		touch(e)
		return e
	})
	return err
}

// pop removes up to count elements from the head (right=false) or
// tail (right=true).
func (s *Store) pop(key string, right bool, count int) (out [][]byte, err error) {
	if count < 0 {
		return nil, ErrOutOfRange
	}
	s.withWrite(key, func(e *Entry, present bool) *Entry {
		if !present {
			return nil
		}
		if e.Kind != KindList {
			err = ErrWrongType
			return e
		}
		n := count
		if n > len(e.List) {
			n = len(e.List)
		}
		if right {
			out = make([][]byte, n)
			copy(out, e.List[len(e.List)-n:])
			reverseBytes(out)
			e.List = e.List[:len(e.List)-n]
		} else {
			out = make([][]byte, n)
			copy(out, e.List[:n])
			e.List = e.List[n:]
		}
		touch(e)
		if len(e.List) == 0 {
			return nil
		}
		return e
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func reverseBytes(b [][]byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// LPop pops up to count elements from the head. count<0 returns
// ErrOutOfRange.
func (s *Store) LPop(key string, count int) ([][]byte, error) { return s.pop(key, false, count) }

// RPop pops up to count elements from the tail.
func (s *Store) RPop(key string, count int) ([][]byte, error) { return s.pop(key, true, count) }

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
