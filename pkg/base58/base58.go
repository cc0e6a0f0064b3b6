// Package base58 provides helpers for working with base58-encoded
// 32-byte addresses.
package base58

import (
	"fmt"

	"github.com/mr-tron/base58"
)

func DecodeFromString(in string) ([32]byte, error) {
	var out [32]byte
	decoded, err := base58.Decode(in)
	if err != nil {
		return out, err
	}
	if len(decoded) != 32 {
		return out, fmt.Errorf("decoded base58 string was %d bytes, expected 32", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}

// MustDecodeFromString decodes a 32-byte base58 address, panicking on
// malformed input. Intended for compile-time constant addresses.
func MustDecodeFromString(in string) [32]byte {
	out, err := DecodeFromString(in)
	if err != nil {
		panic(err.Error())
	}
	return out
}

func EncodeToString(in [32]byte) string {
	return base58.Encode(in[:])
}
