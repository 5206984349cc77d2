// Package textgate classifies content as printable text.
//
// Content is printable when it is valid UTF-8 and every rune is either a
// graphic character (unicode.IsPrint) or ordinary whitespace: tab, newline,
// vertical tab, form feed or carriage return. Anything else, including NUL
// bytes and other control characters, disqualifies the content.
package textgate

import (
	"unicode"
	"unicode/utf8"
)

// Printable reports whether b is printable text in its entirety.
func Printable(b []byte) bool {
	var s Scanner
	return s.Write(b) && s.Close()
}

// PrintableRune reports whether r is allowed in printable text.
func PrintableRune(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return unicode.IsPrint(r)
}

// Scanner checks a stream window by window. A multi-byte sequence split
// across two windows is carried over rather than rejected. The zero value is
// ready to use.
type Scanner struct {
	carry [utf8.UTFMax]byte
	n     int
	bad   bool
}

// Write classifies the next window and reports whether the stream is still
// printable. Once it returns false every later call returns false.
func (s *Scanner) Write(window []byte) bool {
	if s.bad {
		return false
	}

	if s.n > 0 {
		// Complete the carried sequence with the head of this window.
		need := utf8.UTFMax - s.n
		if need > len(window) {
			need = len(window)
		}
		buf := make([]byte, 0, utf8.UTFMax)
		buf = append(buf, s.carry[:s.n]...)
		buf = append(buf, window[:need]...)

		if !utf8.FullRune(buf) {
			if len(buf) >= utf8.UTFMax {
				s.bad = true
				return false
			}
			s.n = copy(s.carry[:], buf)
			return true
		}
		r, size := utf8.DecodeRune(buf)
		if (r == utf8.RuneError && size == 1) || !PrintableRune(r) {
			s.bad = true
			return false
		}
		window = window[size-s.n:]
		s.n = 0
	}

	for i := 0; i < len(window); {
		c := window[i]
		if c < utf8.RuneSelf {
			if !PrintableRune(rune(c)) {
				s.bad = true
				return false
			}
			i++
			continue
		}
		if !utf8.FullRune(window[i:]) {
			s.n = copy(s.carry[:], window[i:])
			return true
		}
		r, size := utf8.DecodeRune(window[i:])
		if (r == utf8.RuneError && size == 1) || !PrintableRune(r) {
			s.bad = true
			return false
		}
		i += size
	}
	return true
}

// Close reports whether the stream ended cleanly: printable so far and with
// no truncated multi-byte sequence left over.
func (s *Scanner) Close() bool {
	return !s.bad && s.n == 0
}
