// Package types provides base Solana types and structures used throughout the pool program.
// It wraps and extends the solana-go library types for consistency and convenience.
package types

import (
	"bytes"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Pubkey is a Solana public key (32 bytes).
type Pubkey = solana.PublicKey

// AccountInfo is the handle the host passes to a program for each account an
// instruction references. The program reads and mutates Lamports and Data in
// place; the host decides whether those mutations are kept.
type AccountInfo struct {
	// Key is the public key of the account.
	Key Pubkey `json:"key"`

	// IsSigner indicates if the transaction was signed by this account.
	IsSigner bool `json:"is_signer"`

	// IsWritable indicates if the account may be mutated.
	IsWritable bool `json:"is_writable"`

	// Lamports is the number of lamports owned by this account.
	Lamports uint64 `json:"lamports"`

	// Data is the data held in this account.
	Data []byte `json:"data"`

	// Owner is the program that owns this account.
	Owner Pubkey `json:"owner"`

	// Executable indicates if the account contains a program.
	Executable bool `json:"executable"`
}

// DataLen returns the size of the account data.
func (a *AccountInfo) DataLen() int {
	return len(a.Data)
}

// Clone returns a deep copy of the account.
func (a *AccountInfo) Clone() *AccountInfo {
	c := *a
	c.Data = bytes.Clone(a.Data)
	return &c
}

// ZeroData clears the account data without changing its size.
func (a *AccountInfo) ZeroData() {
	clear(a.Data)
}

// AccountMeta describes a single account involved in an instruction.
type AccountMeta struct {
	// Pubkey is the public key of the account.
	Pubkey Pubkey `json:"pubkey"`

	// IsSigner indicates if the account is a signer.
	IsSigner bool `json:"is_signer"`

	// IsWritable indicates if the account is writable.
	IsWritable bool `json:"is_writable"`
}

// Instruction represents a Solana instruction.
type Instruction struct {
	// ProgramID is the program that will process this instruction.
	ProgramID Pubkey `json:"program_id"`

	// Accounts is the list of accounts to pass to the program.
	Accounts []AccountMeta `json:"accounts"`

	// Data is the instruction data.
	Data []byte `json:"data"`
}

// AccountStorageOverhead is the per-account byte overhead charged by rent.
const AccountStorageOverhead uint64 = 128

// RentSize is the serialized size of the rent sysvar.
const RentSize = 17

// Rent mirrors the rent sysvar: the parameters that decide how many lamports
// an account must hold to be exempt from rent collection.
type Rent struct {
	// LamportsPerByteYear is the rental rate.
	LamportsPerByteYear uint64 `json:"lamports_per_byte_year"`

	// ExemptionThreshold is the number of years of rent an account must hold.
	ExemptionThreshold float64 `json:"exemption_threshold"`

	// BurnPercent is the share of collected rent that is burned.
	BurnPercent uint8 `json:"burn_percent"`
}

// DefaultRent returns the mainnet rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear: 3480,
		ExemptionThreshold:  2.0,
		BurnPercent:         50,
	}
}

// MinimumBalance returns the lamports needed for an account of dataLen bytes
// to be rent exempt.
func (r Rent) MinimumBalance(dataLen int) uint64 {
	size := AccountStorageOverhead + uint64(dataLen)
	return uint64(float64(size*r.LamportsPerByteYear) * r.ExemptionThreshold)
}

// IsExempt reports whether an account with the given balance and size is rent exempt.
func (r Rent) IsExempt(lamports uint64, dataLen int) bool {
	return lamports >= r.MinimumBalance(dataLen)
}

// MarshalWithEncoder writes the sysvar layout: u64 rate, f64 threshold, u8 burn percent.
func (r Rent) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint64(r.LamportsPerByteYear, bin.LE); err != nil {
		return err
	}
	if err := encoder.WriteUint64(math.Float64bits(r.ExemptionThreshold), bin.LE); err != nil {
		return err
	}
	return encoder.WriteUint8(r.BurnPercent)
}

// UnmarshalWithDecoder reads the sysvar layout.
func (r *Rent) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	rate, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	threshold, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return err
	}
	burn, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	r.LamportsPerByteYear = rate
	r.ExemptionThreshold = math.Float64frombits(threshold)
	r.BurnPercent = burn
	return nil
}

// EncodeRent serializes the rent sysvar.
func EncodeRent(r Rent) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBinEncoder(buf).Encode(r); err != nil {
		return nil, fmt.Errorf("failed to encode rent sysvar: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRent deserializes the rent sysvar.
func DecodeRent(data []byte) (Rent, error) {
	var r Rent
	if len(data) < RentSize {
		return r, fmt.Errorf("rent sysvar too short: need %d bytes, got %d", RentSize, len(data))
	}
	if err := bin.NewBinDecoder(data).Decode(&r); err != nil {
		return r, fmt.Errorf("failed to decode rent sysvar: %w", err)
	}
	return r, nil
}
