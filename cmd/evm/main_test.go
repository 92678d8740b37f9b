package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeHexStripsPrefix(t *testing.T) {
	b, err := decodeHex("0x6001600101")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x01, 0x60, 0x01, 0x01}, b)
}

func TestDecodeHexEmptyIsNil(t *testing.T) {
	b, err := decodeHex("")
	require.NoError(t, err)
	assert.Nil(t, b)
}

func TestDecodeHexRejectsMalformed(t *testing.T) {
	_, err := decodeHex("0xzz")
	assert.Error(t, err)
}
