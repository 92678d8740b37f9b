// Package rlp implements just enough of Ethereum's RLP codec to serialize
// the account 4-tuple State.Commit writes into the account trie and the
// [sender, nonce] list CREATE addresses are derived from. Storage slot
// values are written to the storage trie as raw 32-byte words and do not go
// through this package. Transaction RLP decoding and signature recovery are
// treated as given and are not implemented here.
package rlp

import (
	"bytes"
	"errors"
	"math/big"
)

// ErrMalformed is returned by Split and DecodeAccount when the input is not
// well-formed RLP.
var ErrMalformed = errors.New("rlp: malformed input")

// EncodeBytes RLP-encodes a byte string.
func EncodeBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return []byte{b[0]}
	}
	return append(encodeHeader(0x80, 0xb7, len(b)), b...)
}

// EncodeUint64 RLP-encodes x as a minimal big-endian byte string.
func EncodeUint64(x uint64) []byte {
	if x == 0 {
		return []byte{0x80}
	}
	var buf [8]byte
	i := 8
	for x > 0 {
		i--
		buf[i] = byte(x)
		x >>= 8
	}
	return EncodeBytes(buf[i:])
}

// EncodeBig RLP-encodes a non-negative big.Int as a minimal big-endian byte
// string, trimming leading zero bytes before writing them to the trie.
func EncodeBig(x *big.Int) []byte {
	if x == nil || x.Sign() == 0 {
		return []byte{0x80}
	}
	return EncodeBytes(bytes.TrimLeft(x.Bytes(), "\x00"))
}

// EncodeList wraps the concatenation of already-encoded items in an RLP list
// header.
func EncodeList(items ...[]byte) []byte {
	var body []byte
	for _, it := range items {
		body = append(body, it...)
	}
	return append(encodeHeader(0xc0, 0xf7, len(body)), body...)
}

func encodeHeader(short, longBase byte, size int) []byte {
	if size < 56 {
		return []byte{short + byte(size)}
	}
	lenBytes := big.NewInt(int64(size)).Bytes()
	return append([]byte{longBase + byte(len(lenBytes))}, lenBytes...)
}

// Split parses the first RLP item from b, returning whether it is a list,
// its content, and the remaining unparsed bytes.
func Split(b []byte) (isList bool, content []byte, rest []byte, err error) {
	if len(b) == 0 {
		return false, nil, nil, ErrMalformed
	}
	switch tag := b[0]; {
	case tag < 0x80:
		return false, b[0:1], b[1:], nil
	case tag < 0xb8:
		size := int(tag - 0x80)
		if len(b) < 1+size {
			return false, nil, nil, ErrMalformed
		}
		return false, b[1 : 1+size], b[1+size:], nil
	case tag < 0xc0:
		lenlen := int(tag - 0xb7)
		size, b2, e := readLen(b[1:], lenlen)
		if e != nil {
			return false, nil, nil, e
		}
		if len(b2) < size {
			return false, nil, nil, ErrMalformed
		}
		return false, b2[:size], b2[size:], nil
	case tag < 0xf8:
		size := int(tag - 0xc0)
		if len(b) < 1+size {
			return false, nil, nil, ErrMalformed
		}
		return true, b[1 : 1+size], b[1+size:], nil
	default:
		lenlen := int(tag - 0xf7)
		size, b2, e := readLen(b[1:], lenlen)
		if e != nil {
			return false, nil, nil, e
		}
		if len(b2) < size {
			return false, nil, nil, ErrMalformed
		}
		return true, b2[:size], b2[size:], nil
	}
}

func readLen(b []byte, lenlen int) (int, []byte, error) {
	if len(b) < lenlen {
		return 0, nil, ErrMalformed
	}
	n := new(big.Int).SetBytes(b[:lenlen])
	if !n.IsInt64() {
		return 0, nil, ErrMalformed
	}
	return int(n.Int64()), b[lenlen:], nil
}

// SplitAll splits every top-level item out of an RLP list's content.
func SplitAll(content []byte) ([][]byte, error) {
	var items [][]byte
	for len(content) > 0 {
		_, item, rest, err := Split(content)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		content = rest
	}
	return items, nil
}
