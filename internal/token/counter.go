// Package token counts prompt tokens for transcript budgeting.
package token

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the BPE encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// Counter counts tokens with a tiktoken encoding when one can be loaded and
// falls back to a byte-length estimate otherwise (the encoding data may be
// unavailable offline).
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads the given encoding. A load failure is not an error; the
// counter degrades to estimation.
func NewCounter(encoding string) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Count returns the token count for s.
func (c *Counter) Count(s string) int {
	if s == "" {
		return 0
	}
	if c == nil || c.enc == nil {
		return Estimate(s)
	}
	return len(c.enc.Encode(s, nil, nil))
}

// Estimate approximates the token count without an encoding: ~4 bytes per
// token for ASCII text, with multi-byte runes counted as one token each.
func Estimate(s string) int {
	if s == "" {
		return 0
	}
	ascii := 0
	wide := 0
	for _, r := range s {
		if utf8.RuneLen(r) == 1 {
			ascii++
		} else {
			wide++
		}
	}
	n := ascii/4 + wide
	if n < 1 {
		n = 1
	}
	return n
}
