// Package state defines the pool's persistent record and its fixed-width
// binary codec.
//
// The record occupies exactly 129 bytes of the program-owned pool state
// account:
//
//	offset  size  field
//	0       1     initialized flag (0 or 1)
//	1       32    initializer
//	33      32    vault A
//	65      32    vault B
//	97      32    vault receipt
//
// The record is written once by Init, read by every other operation and
// zeroed by Close. Pool ratios are never stored; they are recomputed from
// live vault balances.
package state

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/pkg/types"
)

// Len is the serialized width of PoolState.
const Len = 1 + 4*solana.PublicKeyLength

// Field offsets within the record.
const (
	OffsetInitialized  = 0
	OffsetInitializer  = 1
	OffsetVaultA       = OffsetInitializer + solana.PublicKeyLength
	OffsetVaultB       = OffsetVaultA + solana.PublicKeyLength
	OffsetVaultReceipt = OffsetVaultB + solana.PublicKeyLength
)

// VaultRole names one of the pool's three custody accounts.
type VaultRole uint8

const (
	VaultA VaultRole = iota
	VaultB
	VaultReceipt

	vaultRoleCount
)

func (r VaultRole) String() string {
	switch r {
	case VaultA:
		return "vault_a"
	case VaultB:
		return "vault_b"
	case VaultReceipt:
		return "vault_receipt"
	default:
		return fmt.Sprintf("VaultRole(%d)", uint8(r))
	}
}

// Roles lists every vault role in record order.
func Roles() []VaultRole {
	return []VaultRole{VaultA, VaultB, VaultReceipt}
}

// PoolState is the pool's persistent record.
type PoolState struct {
	Initialized bool         `json:"initialized"`
	Initializer types.Pubkey `json:"initializer"`

	// Vaults is indexed by VaultRole.
	Vaults [vaultRoleCount]types.Pubkey `json:"vaults"`
}

// Vault returns the stored identity of the vault with the given role.
func (s *PoolState) Vault(role VaultRole) types.Pubkey {
	return s.Vaults[role]
}

// SetVault records the identity of the vault with the given role.
func (s *PoolState) SetVault(role VaultRole, key types.Pubkey) {
	s.Vaults[role] = key
}

// CheckVault returns ErrInvalidAccountData when key is not the stored vault for role.
func (s *PoolState) CheckVault(role VaultRole, key types.Pubkey) error {
	if !s.Vaults[role].Equals(key) {
		return cerrors.ErrInvalidAccountData.WithDetails(map[string]any{
			"vault":    role.String(),
			"expected": s.Vaults[role].String(),
			"got":      key.String(),
		})
	}
	return nil
}

// IsInitialized reports whether Init has run.
func (s *PoolState) IsInitialized() bool {
	return s.Initialized
}

// MarshalWithEncoder writes the 129-byte layout.
func (s PoolState) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := enc.WriteBool(s.Initialized); err != nil {
		return err
	}
	if err := enc.WriteBytes(s.Initializer[:], false); err != nil {
		return err
	}
	for _, role := range Roles() {
		if err := enc.WriteBytes(s.Vaults[role][:], false); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalWithDecoder reads the 129-byte layout. The flag byte must be 0 or 1.
func (s *PoolState) UnmarshalWithDecoder(dec *bin.Decoder) error {
	flag, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	switch flag {
	case 0:
		s.Initialized = false
	case 1:
		s.Initialized = true
	default:
		return fmt.Errorf("invalid initialized flag %d", flag)
	}

	if s.Initializer, err = readPubkey(dec); err != nil {
		return err
	}
	for _, role := range Roles() {
		if s.Vaults[role], err = readPubkey(dec); err != nil {
			return fmt.Errorf("%s: %w", role, err)
		}
	}
	return nil
}

func readPubkey(dec *bin.Decoder) (types.Pubkey, error) {
	raw, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return types.Pubkey{}, err
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// UnpackUnchecked decodes a record without looking at the initialized flag.
// Inputs shorter than Len, or with a flag other than 0 or 1, are invalid.
func UnpackUnchecked(data []byte) (*PoolState, error) {
	if len(data) < Len {
		return nil, cerrors.ErrInvalidAccountData.WithDetails(map[string]any{
			"want_len": Len,
			"got_len":  len(data),
		})
	}
	var s PoolState
	if err := bin.NewBinDecoder(data[:Len]).Decode(&s); err != nil {
		return nil, cerrors.ErrInvalidAccountData.WithCause(err)
	}
	return &s, nil
}

// Unpack decodes a record that must already be initialized.
func Unpack(data []byte) (*PoolState, error) {
	s, err := UnpackUnchecked(data)
	if err != nil {
		return nil, err
	}
	if !s.Initialized {
		return nil, cerrors.ErrUninitializedAccount
	}
	return s, nil
}

// Pack encodes the record into a fresh Len-byte slice.
func Pack(s *PoolState) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, Len))
	if err := bin.NewBinEncoder(buf).Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode pool state: %w", err)
	}
	return buf.Bytes(), nil
}

// PackInto encodes the record into the first Len bytes of dst. Bytes beyond
// Len are left untouched.
func PackInto(s *PoolState, dst []byte) error {
	if len(dst) < Len {
		return cerrors.ErrInvalidAccountData.WithDetails(map[string]any{
			"want_len": Len,
			"got_len":  len(dst),
		})
	}
	data, err := Pack(s)
	if err != nil {
		return err
	}
	copy(dst, data)
	return nil
}
