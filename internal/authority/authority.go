// Package authority derives the pool authority: the program-derived address
// that owns the pool vaults and signs ledger calls on the pool's behalf.
package authority

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/pkg/types"
)

// DefaultSeed is the seed label deployed pools were derived with.
const DefaultSeed = "bravv"

// Authority is a derived pool authority together with the seeds that prove it.
type Authority struct {
	Address types.Pubkey
	Bump    uint8
	Seed    []byte
}

// SignerSeeds returns the seeds to present to the ledger for signed calls.
func (a Authority) SignerSeeds() [][]byte {
	return SignerSeeds(a.Seed, a.Bump)
}

// Derive finds the pool authority address and bump for programID and seed.
// The result depends only on its inputs.
func Derive(programID types.Pubkey, seed []byte) (types.Pubkey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{seed}, programID)
	if err != nil {
		return types.Pubkey{}, 0, fmt.Errorf("failed to derive pool authority: %w", err)
	}
	return addr, bump, nil
}

// New derives the Authority for programID and seed.
func New(programID types.Pubkey, seed []byte) (Authority, error) {
	addr, bump, err := Derive(programID, seed)
	if err != nil {
		return Authority{}, err
	}
	return Authority{Address: addr, Bump: bump, Seed: seed}, nil
}

// SignerSeeds builds the seed list {seed, {bump}}.
func SignerSeeds(seed []byte, bump uint8) [][]byte {
	return [][]byte{seed, {bump}}
}

// Verify returns ErrInvalidSeeds when candidate is not the pool authority.
func Verify(programID types.Pubkey, seed []byte, candidate types.Pubkey) (Authority, error) {
	a, err := New(programID, seed)
	if err != nil {
		return Authority{}, cerrors.ErrInvalidSeeds.WithCause(err)
	}
	if !a.Address.Equals(candidate) {
		return Authority{}, cerrors.ErrInvalidSeeds.WithDetails(map[string]any{
			"expected": a.Address.String(),
			"got":      candidate.String(),
		})
	}
	return a, nil
}
