// Package view reads token account buffers in place without decoding them
// into structs.
package view

import (
	"encoding/binary"
	"errors"
	"unsafe"

	"github.com/gagliardetto/solana-go"
)

var ErrInvalidBuffer = errors.New("invalid buffer size")

// Token account layout.
const (
	TokenAccountLen = 165

	tokenMint    = 0
	tokenOwner   = 32
	tokenAmount  = 64
	tokenState   = 108
	tokenNative  = 109
	tokenAmountN = 8
)

func pubkeyAt(buf []byte, off int) solana.PublicKey {
	return *(*solana.PublicKey)(unsafe.Pointer(&buf[off]))
}

// TokenAccountView reads a token account.
type TokenAccountView struct {
	buffer []byte
}

// NewTokenAccountView wraps buffer.
func NewTokenAccountView(buffer []byte) (*TokenAccountView, error) {
	if len(buffer) < TokenAccountLen {
		return nil, ErrInvalidBuffer
	}
	return &TokenAccountView{buffer: buffer}, nil
}

func (v *TokenAccountView) Mint() solana.PublicKey {
	return pubkeyAt(v.buffer, tokenMint)
}

func (v *TokenAccountView) Owner() solana.PublicKey {
	return pubkeyAt(v.buffer, tokenOwner)
}

func (v *TokenAccountView) Amount() uint64 {
	return binary.LittleEndian.Uint64(v.buffer[tokenAmount : tokenAmount+tokenAmountN])
}

// State is 0 uninitialized, 1 initialized, 2 frozen.
func (v *TokenAccountView) State() uint8 {
	return v.buffer[tokenState]
}

func (v *TokenAccountView) IsNative() bool {
	return binary.LittleEndian.Uint32(v.buffer[tokenNative:tokenNative+4]) == 1
}
