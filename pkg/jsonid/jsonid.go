// Package jsonid implements the wire contract for 64-bit row identifiers.
//
// Storage hands out int64 ids, but JSON consumers only handle integers
// losslessly inside the IEEE-754 safe range. Ids within that range are
// serialized as JSON numbers; ids outside it are serialized as strings.
// Decoding accepts both forms and converts numeric strings back to int64.
package jsonid

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxSafeInteger is the largest integer a double-backed JSON consumer can
// represent exactly (2^53 - 1).
const MaxSafeInteger = int64(1)<<53 - 1

// ID is a 64-bit row identifier with safe-integer-aware JSON encoding.
type ID int64

// Int64 returns the id as a plain int64.
func (id ID) Int64() int64 { return int64(id) }

// String returns the decimal representation of the id.
func (id ID) String() string { return strconv.FormatInt(int64(id), 10) }

// MarshalJSON emits a JSON number inside the safe-integer range and a
// quoted decimal string outside it.
func (id ID) MarshalJSON() ([]byte, error) {
	v := int64(id)
	if v > MaxSafeInteger || v < -MaxSafeInteger {
		return []byte(`"` + strconv.FormatInt(v, 10) + `"`), nil
	}
	return []byte(strconv.FormatInt(v, 10)), nil
}

// UnmarshalJSON accepts either a JSON number or a numeric string.
func (id *ID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("invalid id %s: %w", s, err)
		}
		s = unquoted
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", s, err)
	}
	*id = ID(v)
	return nil
}

// Parse converts a decimal string (for example a chi URL parameter) into an
// ID. It rejects empty input, signs other than a single leading minus, and
// values outside int64 range.
func Parse(s string) (ID, error) {
	// strconv.ParseInt tolerates a leading plus, which the JSON number
	// grammar does not.
	if strings.HasPrefix(s, "+") {
		return 0, fmt.Errorf("invalid id %q: leading plus sign", s)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(v), nil
}
