package authority

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/lugondev/go-amm/internal/errors"
)

func TestDeriveIsStable(t *testing.T) {
	program := solana.NewWallet().PublicKey()

	a1, b1, err := Derive(program, []byte(DefaultSeed))
	require.NoError(t, err)
	a2, b2, err := Derive(program, []byte(DefaultSeed))
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, b1, b2)
	assert.False(t, a1.IsOnCurve())
}

func TestSignerSeedsRecreateAddress(t *testing.T) {
	program := solana.NewWallet().PublicKey()

	a, err := New(program, []byte(DefaultSeed))
	require.NoError(t, err)

	seeds := a.SignerSeeds()
	require.Len(t, seeds, 2)
	assert.Equal(t, []byte(DefaultSeed), seeds[0])
	assert.Equal(t, []byte{a.Bump}, seeds[1])

	addr, err := solana.CreateProgramAddress(seeds, program)
	require.NoError(t, err)
	assert.Equal(t, a.Address, addr)
}

func TestDifferentProgramsDifferentAuthorities(t *testing.T) {
	a, _, err := Derive(solana.NewWallet().PublicKey(), []byte(DefaultSeed))
	require.NoError(t, err)
	b, _, err := Derive(solana.NewWallet().PublicKey(), []byte(DefaultSeed))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerify(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	addr, _, err := Derive(program, []byte(DefaultSeed))
	require.NoError(t, err)

	got, err := Verify(program, []byte(DefaultSeed), addr)
	require.NoError(t, err)
	assert.Equal(t, addr, got.Address)

	_, err = Verify(program, []byte(DefaultSeed), solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, cerrors.ErrInvalidSeeds)
}
