// Package account provides helpers for walking and decoding the account
// handles an instruction receives.
//
// # Overview
//
//   - Iterator: hands out the ordered account handles one at a time and
//     reports ErrNotEnoughAccountKeys when the caller asks for more than
//     were supplied.
//   - Decoded Account: holds typed account data together with the handle's
//     lamports and owner.
//   - Account Decoders: interface-based mechanism to decode raw account data,
//     optionally restricted to accounts owned by one program.
package account

import (
	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/pkg/types"
)

// Iterator walks an ordered list of account handles.
type Iterator struct {
	accounts []*types.AccountInfo
	pos      int
}

// NewIterator creates an Iterator over accounts.
func NewIterator(accounts []*types.AccountInfo) *Iterator {
	return &Iterator{accounts: accounts}
}

// Next returns the next account handle.
func (it *Iterator) Next() (*types.AccountInfo, error) {
	if it.pos >= len(it.accounts) || it.accounts[it.pos] == nil {
		return nil, cerrors.ErrNotEnoughAccountKeys.WithDetails(map[string]any{
			"index":    it.pos,
			"supplied": len(it.accounts),
		})
	}
	info := it.accounts[it.pos]
	it.pos++
	return info, nil
}

// NextN returns the next n account handles.
func (it *Iterator) NextN(n int) ([]*types.AccountInfo, error) {
	out := make([]*types.AccountInfo, 0, n)
	for i := 0; i < n; i++ {
		info, err := it.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, nil
}

// Remaining returns the number of handles not yet consumed.
func (it *Iterator) Remaining() int {
	return len(it.accounts) - it.pos
}

// DecodedAccount represents the decoded data of an account handle.
//
// Type parameter T is the type of data specific to the account, which is
// determined by the decoder used.
type DecodedAccount[T any] struct {
	// Key is the account address.
	Key types.Pubkey

	// Lamports is the number of lamports in the account.
	Lamports uint64

	// Data is the decoded data specific to the account.
	Data T

	// Owner is the public key of the account's owner.
	Owner types.Pubkey
}

// AccountDecoder defines an interface for decoding account handles into
// structured data types.
type AccountDecoder[T any] interface {
	// DecodeAccount decodes an account handle into a DecodedAccount.
	// Returns nil if the account cannot be decoded by this decoder.
	DecodeAccount(info *types.AccountInfo) *DecodedAccount[T]
}

// AccountDecoderFunc is a function type that implements AccountDecoder.
type AccountDecoderFunc[T any] func(info *types.AccountInfo) *DecodedAccount[T]

// DecodeAccount implements AccountDecoder interface.
func (f AccountDecoderFunc[T]) DecodeAccount(info *types.AccountInfo) *DecodedAccount[T] {
	return f(info)
}

// ProgramAccountDecoder decodes accounts owned by a single program.
type ProgramAccountDecoder[T any] struct {
	// ProgramID is the expected owner of accounts this decoder handles.
	ProgramID types.Pubkey

	// DecodeFunc is the function that decodes the account data.
	DecodeFunc func(data []byte) (T, error)
}

// NewProgramAccountDecoder creates a new ProgramAccountDecoder.
func NewProgramAccountDecoder[T any](
	programID types.Pubkey,
	decodeFunc func(data []byte) (T, error),
) *ProgramAccountDecoder[T] {
	return &ProgramAccountDecoder[T]{
		ProgramID:  programID,
		DecodeFunc: decodeFunc,
	}
}

// Decode checks ownership and decodes the account data. An account owned by
// another program yields ErrIncorrectProgramID; decode failures are returned
// as is.
func (d *ProgramAccountDecoder[T]) Decode(info *types.AccountInfo) (*DecodedAccount[T], error) {
	if !info.Owner.Equals(d.ProgramID) {
		return nil, cerrors.ErrIncorrectProgramID.WithDetails(map[string]any{
			"account":  info.Key.String(),
			"owner":    info.Owner.String(),
			"expected": d.ProgramID.String(),
		})
	}

	data, err := d.DecodeFunc(info.Data)
	if err != nil {
		return nil, err
	}

	return &DecodedAccount[T]{
		Key:      info.Key,
		Lamports: info.Lamports,
		Data:     data,
		Owner:    info.Owner,
	}, nil
}

// DecodeAccount implements AccountDecoder interface.
// It only decodes accounts owned by the specified program.
func (d *ProgramAccountDecoder[T]) DecodeAccount(info *types.AccountInfo) *DecodedAccount[T] {
	decoded, err := d.Decode(info)
	if err != nil {
		return nil
	}
	return decoded
}

// CompositeAccountDecoder tries multiple decoders in sequence.
// It returns the result from the first decoder that succeeds.
type CompositeAccountDecoder[T any] struct {
	decoders []AccountDecoder[T]
}

// NewCompositeAccountDecoder creates a new CompositeAccountDecoder.
func NewCompositeAccountDecoder[T any](decoders ...AccountDecoder[T]) *CompositeAccountDecoder[T] {
	return &CompositeAccountDecoder[T]{
		decoders: decoders,
	}
}

// AddDecoder adds a decoder to the composite.
func (c *CompositeAccountDecoder[T]) AddDecoder(decoder AccountDecoder[T]) {
	c.decoders = append(c.decoders, decoder)
}

// DecodeAccount implements AccountDecoder interface.
func (c *CompositeAccountDecoder[T]) DecodeAccount(info *types.AccountInfo) *DecodedAccount[T] {
	for _, decoder := range c.decoders {
		if result := decoder.DecodeAccount(info); result != nil {
			return result
		}
	}
	return nil
}
