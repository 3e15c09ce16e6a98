// Package ident encodes 128-bit identifiers as prefixed text IDs using a
// restricted base32 alphabet that excludes visually confusable characters.
// Encoding is canonical uppercase; decoding is case-insensitive and folds
// I/L to 1 and O to 0.
package ident

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"casgate/internal/constants"
)

// alphabet is the Crockford base32 symbol set (no I, L, O, U).
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// decodeMap maps input bytes to 5-bit values, with confusable folding.
var decodeMap = func() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		m[c] = int8(i)
		if c >= 'A' && c <= 'Z' {
			m[c+'a'-'A'] = int8(i)
		}
	}
	// Confusable folding: I/L read as 1, O reads as 0.
	for _, c := range []byte{'I', 'i', 'L', 'l'} {
		m[c] = 1
	}
	for _, c := range []byte{'O', 'o'} {
		m[c] = 0
	}
	return m
}()

// Encode encodes raw bytes as uppercase restricted base32 (5 bits per
// symbol, most significant bit first, no padding). 16 bytes yield 26 chars.
func Encode(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data)*8 + 4) / 5)

	var acc uint32
	var bits uint
	for _, b := range data {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			sb.WriteByte(alphabet[(acc>>bits)&31])
		}
	}
	if bits > 0 {
		sb.WriteByte(alphabet[(acc<<(5-bits))&31])
	}
	return sb.String()
}

// Decode decodes a restricted base32 string produced by Encode back into
// bytes. Trailing pad bits must be zero so every value has exactly one
// canonical encoding.
func Decode(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)*5/8)

	var acc uint32
	var bits uint
	for i := 0; i < len(s); i++ {
		v := decodeMap[s[i]]
		if v < 0 {
			return nil, fmt.Errorf("invalid base32 character %q at position %d", s[i], i)
		}
		acc = acc<<5 | uint32(v)
		bits += 5
		if bits >= 8 {
			bits -= 8
			out = append(out, byte(acc>>bits))
		}
	}
	if bits > 0 && acc&((1<<bits)-1) != 0 {
		return nil, fmt.Errorf("non-canonical base32 encoding: trailing bits set")
	}
	return out, nil
}

// NewDelegateID returns a fresh delegate text ID: the dlt_ prefix plus
// 26 chars encoding a 128-bit random value.
func NewDelegateID() string {
	id := uuid.New()
	return constants.DelegateIDPrefix + Encode(id[:])
}

// ParseDelegateID validates a delegate text ID and returns its canonical
// (uppercase) form.
func ParseDelegateID(s string) (string, error) {
	raw, err := parse(s, constants.DelegateIDPrefix)
	if err != nil {
		return "", err
	}
	return constants.DelegateIDPrefix + Encode(raw), nil
}

// parse strips the prefix and decodes the 26-char payload to 16 bytes.
func parse(s, prefix string) ([]byte, error) {
	if !strings.HasPrefix(s, prefix) {
		return nil, fmt.Errorf("missing %q prefix", prefix)
	}
	body := s[len(prefix):]
	if len(body) != constants.TextIDLength {
		return nil, fmt.Errorf("id payload must be %d chars, got %d", constants.TextIDLength, len(body))
	}
	raw, err := Decode(body)
	if err != nil {
		return nil, err
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("id payload must decode to 16 bytes, got %d", len(raw))
	}
	return raw, nil
}
