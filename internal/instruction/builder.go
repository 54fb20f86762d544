package instruction

import (
	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-amm/pkg/types"
)

// InitAccounts lists the accounts an Init instruction references.
type InitAccounts struct {
	Initializer  types.Pubkey
	VaultA       types.Pubkey
	VaultB       types.Pubkey
	VaultReceipt types.Pubkey
	PoolState    types.Pubkey
}

// LiquidityAccounts lists the accounts ProvideLiquidity and ClaimLiquidity reference.
type LiquidityAccounts struct {
	Provider        types.Pubkey
	ProviderA       types.Pubkey
	ProviderB       types.Pubkey
	ProviderReceipt types.Pubkey
	PoolVaultA      types.Pubkey
	PoolVaultB      types.Pubkey
	PoolReceipt     types.Pubkey
	PoolState       types.Pubkey
	PoolAuthority   types.Pubkey
}

// TradeAccounts lists the accounts TradeAForB and TradeBForA reference.
type TradeAccounts struct {
	Trader        types.Pubkey
	TraderA       types.Pubkey
	TraderB       types.Pubkey
	PoolVaultA    types.Pubkey
	PoolVaultB    types.Pubkey
	PoolState     types.Pubkey
	PoolAuthority types.Pubkey
}

// CloseAccounts lists the accounts a Close instruction references.
type CloseAccounts struct {
	Initializer   types.Pubkey
	PoolVaultA    types.Pubkey
	PoolVaultB    types.Pubkey
	PoolReceipt   types.Pubkey
	PoolState     types.Pubkey
	PoolAuthority types.Pubkey
}

func signer(key types.Pubkey, writable bool) types.AccountMeta {
	return types.AccountMeta{Pubkey: key, IsSigner: true, IsWritable: writable}
}

func writable(key types.Pubkey) types.AccountMeta {
	return types.AccountMeta{Pubkey: key, IsWritable: true}
}

func readonly(key types.Pubkey) types.AccountMeta {
	return types.AccountMeta{Pubkey: key}
}

func build(programID types.Pubkey, ix Instruction, metas ...types.AccountMeta) *types.Instruction {
	return &types.Instruction{
		ProgramID: programID,
		Accounts:  metas,
		Data:      MustEncode(ix),
	}
}

// NewInitInstruction builds an Init instruction.
func NewInitInstruction(programID types.Pubkey, a InitAccounts) *types.Instruction {
	return build(programID, Init{},
		signer(a.Initializer, false),
		writable(a.VaultA),
		writable(a.VaultB),
		writable(a.VaultReceipt),
		writable(a.PoolState),
		readonly(solana.SysVarRentPubkey),
		readonly(solana.TokenProgramID),
	)
}

// NewProvideLiquidityInstruction builds a ProvideLiquidity instruction.
func NewProvideLiquidityInstruction(programID types.Pubkey, a LiquidityAccounts, amountA, amountB uint64) *types.Instruction {
	return build(programID, ProvideLiquidity{AmountA: amountA, AmountB: amountB},
		signer(a.Provider, false),
		writable(a.ProviderReceipt),
		writable(a.ProviderA),
		writable(a.ProviderB),
		writable(a.PoolVaultA),
		writable(a.PoolVaultB),
		writable(a.PoolReceipt),
		readonly(a.PoolState),
		readonly(solana.TokenProgramID),
		readonly(a.PoolAuthority),
	)
}

// NewClaimLiquidityInstruction builds a ClaimLiquidity instruction.
func NewClaimLiquidityInstruction(programID types.Pubkey, a LiquidityAccounts, amount uint64) *types.Instruction {
	return build(programID, ClaimLiquidity{Amount: amount},
		signer(a.Provider, false),
		writable(a.ProviderA),
		writable(a.ProviderB),
		writable(a.ProviderReceipt),
		writable(a.PoolVaultA),
		writable(a.PoolVaultB),
		writable(a.PoolReceipt),
		readonly(a.PoolState),
		readonly(solana.TokenProgramID),
		readonly(a.PoolAuthority),
	)
}

func tradeMetas(a TradeAccounts) []types.AccountMeta {
	return []types.AccountMeta{
		signer(a.Trader, false),
		writable(a.TraderA),
		writable(a.TraderB),
		writable(a.PoolVaultA),
		writable(a.PoolVaultB),
		readonly(a.PoolState),
		readonly(solana.TokenProgramID),
		readonly(a.PoolAuthority),
	}
}

// NewTradeAForBInstruction builds a TradeAForB instruction.
func NewTradeAForBInstruction(programID types.Pubkey, a TradeAccounts, amount uint64) *types.Instruction {
	return build(programID, TradeAForB{Amount: amount}, tradeMetas(a)...)
}

// NewTradeBForAInstruction builds a TradeBForA instruction.
func NewTradeBForAInstruction(programID types.Pubkey, a TradeAccounts, amount uint64) *types.Instruction {
	return build(programID, TradeBForA{Amount: amount}, tradeMetas(a)...)
}

// NewCloseInstruction builds a Close instruction.
func NewCloseInstruction(programID types.Pubkey, a CloseAccounts) *types.Instruction {
	return build(programID, Close{},
		signer(a.Initializer, true),
		writable(a.PoolVaultA),
		writable(a.PoolVaultB),
		writable(a.PoolReceipt),
		writable(a.PoolState),
		readonly(solana.TokenProgramID),
		writable(a.PoolAuthority),
	)
}
