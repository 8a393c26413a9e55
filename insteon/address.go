package insteon

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// AddressSize is the number of bytes in an INSTEON device address.
const AddressSize = 3

// ErrInvalidAddressFormat is returned when a textual address is not of the
// form "HH.HH.HH".
var ErrInvalidAddressFormat = errors.New("insteon: invalid address format, expected 'HH.HH.HH'")

// Address is an INSTEON device address.
//
// The bytes are an opaque key: only equality and byte-lexicographic ordering
// are defined on them. The canonical text form is three lower-case two-digit
// hex groups separated by dots, e.g. "2b.a1.11".
type Address [AddressSize]byte

// ParseAddress parses the "HH.HH.HH" text form of an address.
//
// Input is case-insensitive. Every group must be exactly two hex digits, so
// "2.33.44" and "22.33" are rejected along with non-hex characters.
func ParseAddress(s string) (Address, error) {
	var addr Address

	groups := strings.Split(s, ".")
	if len(groups) != AddressSize {
		return addr, fmt.Errorf("%w: %q has %d groups", ErrInvalidAddressFormat, s, len(groups))
	}

	for i, group := range groups {
		if len(group) != 2 {
			return addr, fmt.Errorf("%w: group %q in %q", ErrInvalidAddressFormat, group, s)
		}

		if _, err := hex.Decode(addr[i:i+1], []byte(group)); err != nil {
			return addr, fmt.Errorf("%w: group %q in %q", ErrInvalidAddressFormat, group, s)
		}
	}

	return addr, nil
}

// MustParseAddress is like ParseAddress but panics on error.
// It is intended for constants and tests.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}

	return addr
}

// AddressFromBytes copies the first AddressSize bytes of b into an Address.
// It panics if b is shorter than AddressSize.
func AddressFromBytes(b []byte) Address {
	var addr Address
	copy(addr[:], b[:AddressSize])

	return addr
}

// String returns the canonical "hh.hh.hh" form.
func (a Address) String() string {
	const digits = "0123456789abcdef"

	buf := make([]byte, 0, 8)
	for i, b := range a {
		if i > 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, digits[b>>4], digits[b&0x0F])
	}

	return string(buf)
}

// Bytes returns the address as a newly allocated slice.
func (a Address) Bytes() []byte {
	return []byte{a[0], a[1], a[2]}
}

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to,
// or after b.
func (a Address) Compare(b Address) int {
	return bytes.Compare(a[:], b[:])
}

// IsZero reports whether a is 00.00.00.
func (a Address) IsZero() bool {
	return a == Address{}
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, so addresses can be
// read directly from configuration files.
func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = addr

	return nil
}

// UnmarshalFlag implements the go-flags Unmarshaler interface, so an Address
// can be used as a command-line argument type.
func (a *Address) UnmarshalFlag(value string) error {
	return a.UnmarshalText([]byte(value))
}
