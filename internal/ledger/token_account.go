package ledger

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go/programs/token"

	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/pkg/types"
	"github.com/lugondev/go-amm/pkg/view"
)

// TokenAccountLen is the size of a token account.
const TokenAccountLen = view.TokenAccountLen

// NewTokenAccount returns an initialized token account record.
func NewTokenAccount(mint, owner types.Pubkey, amount uint64) *token.Account {
	return &token.Account{
		Mint:   mint,
		Owner:  owner,
		Amount: amount,
		State:  token.Initialized,
	}
}

// EncodeTokenAccount serializes acc into the 165-byte token account layout.
func EncodeTokenAccount(acc *token.Account) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, TokenAccountLen))
	if err := bin.NewBinEncoder(buf).Encode(acc); err != nil {
		return nil, fmt.Errorf("failed to encode token account: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTokenAccount parses a token account. Short data is invalid.
func DecodeTokenAccount(data []byte) (*token.Account, error) {
	if len(data) < TokenAccountLen {
		return nil, cerrors.ErrInvalidAccountData.WithDetails(map[string]any{
			"want_len": TokenAccountLen,
			"got_len":  len(data),
		})
	}
	var acc token.Account
	if err := bin.NewBinDecoder(data[:TokenAccountLen]).Decode(&acc); err != nil {
		return nil, cerrors.ErrInvalidAccountData.WithCause(err)
	}
	return &acc, nil
}

// Balance returns the token amount held by info.
func Balance(info *types.AccountInfo) (uint64, error) {
	v, err := tokenView(info)
	if err != nil {
		return 0, err
	}
	return v.Amount(), nil
}

// Owner returns the token owner recorded in info.
func Owner(info *types.AccountInfo) (types.Pubkey, error) {
	v, err := tokenView(info)
	if err != nil {
		return types.Pubkey{}, err
	}
	return v.Owner(), nil
}

func tokenView(info *types.AccountInfo) (*view.TokenAccountView, error) {
	v, err := view.NewTokenAccountView(info.Data)
	if err != nil {
		return nil, cerrors.ErrInvalidAccountData.WithCause(err).WithDetails(map[string]any{
			"account":  info.Key.String(),
			"want_len": TokenAccountLen,
			"got_len":  len(info.Data),
		})
	}
	return v, nil
}

func storeTokenAccount(info *types.AccountInfo, acc *token.Account) error {
	data, err := EncodeTokenAccount(acc)
	if err != nil {
		return err
	}
	if len(info.Data) < len(data) {
		return cerrors.ErrInvalidAccountData.WithDetails(map[string]any{"account": info.Key.String()})
	}
	copy(info.Data, data)
	return nil
}
