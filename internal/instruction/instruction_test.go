package instruction

import (
	"math/rand/v2"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/lugondev/go-amm/internal/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Instruction
	}{
		{"init", []byte{0}, Init{}},
		{
			"provide",
			[]byte{1, 10, 0, 0, 0, 0, 0, 0, 0, 100, 0, 0, 0, 0, 0, 0, 0},
			ProvideLiquidity{AmountA: 10, AmountB: 100},
		},
		{"claim", []byte{2, 3, 0, 0, 0, 0, 0, 0, 0}, ClaimLiquidity{Amount: 3}},
		{"trade a for b", []byte{3, 5, 0, 0, 0, 0, 0, 0, 0}, TradeAForB{Amount: 5}},
		{"trade b for a", []byte{4, 0, 1, 0, 0, 0, 0, 0, 0}, TradeBForA{Amount: 256}},
		{"close", []byte{5}, Close{}},
		{"trailing bytes ignored", []byte{5, 0xff, 0xff}, Close{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown opcode", []byte{6}},
		{"high opcode", []byte{0xff, 1, 2, 3}},
		{"provide missing second amount", []byte{1, 10, 0, 0, 0, 0, 0, 0, 0, 100, 0}},
		{"claim truncated", []byte{2, 3, 0, 0}},
		{"trade without amount", []byte{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, cerrors.ErrInvalidInstruction)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, ix := range []Instruction{
		Init{},
		ProvideLiquidity{AmountA: 1, AmountB: ^uint64(0)},
		ClaimLiquidity{Amount: 42},
		TradeAForB{Amount: 7},
		TradeBForA{Amount: 9},
		Close{},
	} {
		t.Run(ix.Opcode().String(), func(t *testing.T) {
			data, err := Encode(ix)
			require.NoError(t, err)
			assert.Equal(t, byte(ix.Opcode()), data[0])

			back, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, ix, back)
		})
	}
}

// argLen is the number of argument bytes that follow op's tag.
func argLen(op Opcode) int {
	switch op {
	case OpcodeProvideLiquidity:
		return 16
	case OpcodeClaimLiquidity, OpcodeTradeAForB, OpcodeTradeBForA:
		return 8
	}
	return 0
}

func TestDecodeEncodeRandomPayloads(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for op := OpcodeInit; op <= OpcodeClose; op++ {
		t.Run(op.String(), func(t *testing.T) {
			for i := range 256 {
				payload := make([]byte, 1+argLen(op)+rng.IntN(8))
				for j := range payload {
					payload[j] = byte(rng.Uint32())
				}
				payload[0] = byte(op)

				ix, err := Decode(payload)
				require.NoError(t, err)
				require.Equal(t, op, ix.Opcode())

				data, err := Encode(ix)
				require.NoError(t, err)
				require.Equal(t, payload[:1+argLen(op)], data, "payload %d", i)
			}
		})
	}
}

func FuzzDecodeEncode(f *testing.F) {
	f.Add([]byte{0})
	f.Add([]byte{1, 10, 0, 0, 0, 0, 0, 0, 0, 100, 0, 0, 0, 0, 0, 0, 0, 0xff})
	f.Add([]byte{4, 0, 1, 0, 0, 0, 0, 0, 0})
	f.Add([]byte{5, 0xff, 0xff})
	f.Add([]byte{2, 3})
	f.Add([]byte{6})

	f.Fuzz(func(t *testing.T, data []byte) {
		ix, err := Decode(data)
		if err != nil {
			assert.ErrorIs(t, err, cerrors.ErrInvalidInstruction)
			return
		}
		assert.True(t, ix.Opcode().Valid())

		encoded, err := Encode(ix)
		require.NoError(t, err)
		require.LessOrEqual(t, len(encoded), len(data))
		assert.Equal(t, data[:len(encoded)], encoded)
	})
}

func TestEncodeLengths(t *testing.T) {
	assert.Len(t, MustEncode(Init{}), 1)
	assert.Len(t, MustEncode(ProvideLiquidity{}), 17)
	assert.Len(t, MustEncode(ClaimLiquidity{}), 9)
	assert.Len(t, MustEncode(Close{}), 1)

	_, err := Encode(nil)
	assert.ErrorIs(t, err, cerrors.ErrInvalidInstruction)
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "TradeBForA", OpcodeTradeBForA.String())
	assert.Equal(t, "Opcode(9)", Opcode(9).String())
	assert.False(t, Opcode(6).Valid())
	assert.Equal(t, "ProvideLiquidity{amount_a=1, amount_b=2}", ProvideLiquidity{AmountA: 1, AmountB: 2}.String())
}

func TestBuilderAccountOrder(t *testing.T) {
	program := solana.NewWallet().PublicKey()
	la := LiquidityAccounts{
		Provider:        solana.NewWallet().PublicKey(),
		ProviderA:       solana.NewWallet().PublicKey(),
		ProviderB:       solana.NewWallet().PublicKey(),
		ProviderReceipt: solana.NewWallet().PublicKey(),
		PoolVaultA:      solana.NewWallet().PublicKey(),
		PoolVaultB:      solana.NewWallet().PublicKey(),
		PoolReceipt:     solana.NewWallet().PublicKey(),
		PoolState:       solana.NewWallet().PublicKey(),
		PoolAuthority:   solana.NewWallet().PublicKey(),
	}

	provide := NewProvideLiquidityInstruction(program, la, 10, 100)
	require.Len(t, provide.Accounts, 10)
	assert.Equal(t, la.Provider, provide.Accounts[0].Pubkey)
	assert.True(t, provide.Accounts[0].IsSigner)
	assert.Equal(t, la.ProviderReceipt, provide.Accounts[1].Pubkey)
	assert.Equal(t, la.ProviderA, provide.Accounts[2].Pubkey)
	assert.Equal(t, la.ProviderB, provide.Accounts[3].Pubkey)
	assert.Equal(t, solana.TokenProgramID, provide.Accounts[8].Pubkey)
	assert.Equal(t, la.PoolAuthority, provide.Accounts[9].Pubkey)

	claim := NewClaimLiquidityInstruction(program, la, 3)
	require.Len(t, claim.Accounts, 10)
	assert.Equal(t, la.ProviderA, claim.Accounts[1].Pubkey)
	assert.Equal(t, la.ProviderB, claim.Accounts[2].Pubkey)
	assert.Equal(t, la.ProviderReceipt, claim.Accounts[3].Pubkey)

	ia := InitAccounts{Initializer: la.Provider, VaultA: la.PoolVaultA, VaultB: la.PoolVaultB, VaultReceipt: la.PoolReceipt, PoolState: la.PoolState}
	initIx := NewInitInstruction(program, ia)
	require.Len(t, initIx.Accounts, 7)
	assert.Equal(t, solana.SysVarRentPubkey, initIx.Accounts[5].Pubkey)
	assert.Equal(t, []byte{0}, initIx.Data)

	ta := TradeAccounts{Trader: la.Provider, TraderA: la.ProviderA, TraderB: la.ProviderB, PoolVaultA: la.PoolVaultA, PoolVaultB: la.PoolVaultB, PoolState: la.PoolState, PoolAuthority: la.PoolAuthority}
	trade := NewTradeBForAInstruction(program, ta, 5)
	require.Len(t, trade.Accounts, 8)
	assert.Equal(t, program, trade.ProgramID)
	assert.Equal(t, byte(OpcodeTradeBForA), trade.Data[0])

	closeIx := NewCloseInstruction(program, CloseAccounts{Initializer: la.Provider, PoolAuthority: la.PoolAuthority})
	require.Len(t, closeIx.Accounts, 7)
	assert.True(t, closeIx.Accounts[0].IsSigner)
	assert.True(t, closeIx.Accounts[6].IsWritable)
}

func BenchmarkDecode(b *testing.B) {
	data := MustEncode(ProvideLiquidity{AmountA: 10, AmountB: 100})
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Decode(data)
	}
}
