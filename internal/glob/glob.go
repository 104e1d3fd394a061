// Package glob implements shell-style pattern matching on byte slices,
// the same dialect Redis uses for KEYS and PUBSUB CHANNELS filters.
package glob

// Match reports whether text matches pattern under the following
// dialect:
//
//	*       any run of bytes, including empty
//	?       exactly one byte
//	[...]   one byte from the bracketed set; a-z is an inclusive range,
//	        a leading ! inverts the set, \x escapes x literally
//	\x      outside brackets, the literal byte x
//	other   matches itself
//
// A bare "*" is a fast path that matches everything, including the
// empty string.
func Match(pattern, text []byte) bool {
	if len(pattern) == 1 && pattern[0] == '*' {
		return true
	}
	return match(pattern, text)
}

func match(pattern, text []byte) bool {
	var pi, ti int
	for pi < len(pattern) {
		switch pattern[pi] {
		case '*':
			for pi+1 < len(pattern) && pattern[pi+1] == '*' {
				pi++
			}
			if pi+1 == len(pattern) {
				return true
			}
			rest := pattern[pi+1:]
			for i := ti; i <= len(text); i++ {
				if match(rest, text[i:]) {
					return true
				}
			}
			return false
		case '?':
			if ti >= len(text) {
				return false
			}
		case '[':
			end, ok := matchClass(pattern, pi, text, ti)
			if !ok {
				return false
			}
			pi = end
		case '\\':
			pi++
			if pi >= len(pattern) || ti >= len(text) || pattern[pi] != text[ti] {
				return false
			}
		default:
			if ti >= len(text) || pattern[pi] != text[ti] {
				return false
			}
		}
		pi++
		ti++
	}
	return ti == len(text)
}

// matchClass consumes a "[...]" class starting at pattern[start] == '['
// and reports the index of the closing ']' plus whether text[ti] is a
// member of the (possibly negated) class.
func matchClass(pattern []byte, start int, text []byte, ti int) (int, bool) {
	i := start + 1
	negate := false
	if i < len(pattern) && pattern[i] == '!' {
		negate = true
		i++
	}
	if ti >= len(text) {
		// still need to skip to the closing bracket to keep the caller's
		// index correct even though the overall match already failed.
		for i < len(pattern) && pattern[i] != ']' {
			if pattern[i] == '\\' {
				i++
			}
			i++
		}
		return i, false
	}
	c := text[ti]
	found := false
	for i < len(pattern) && pattern[i] != ']' {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			i++
			if pattern[i] == c {
				found = true
			}
			i++
			continue
		}
		if i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']' {
			lo, hi := pattern[i], pattern[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if c >= lo && c <= hi {
				found = true
			}
			i += 3
			continue
		}
		if pattern[i] == c {
			found = true
		}
		i++
	}
	if negate {
		found = !found
	}
	return i, found
}
