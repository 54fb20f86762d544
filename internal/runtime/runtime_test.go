package runtime

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-amm/internal/authority"
	"github.com/lugondev/go-amm/internal/common"
	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/instruction"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/metrics"
	"github.com/lugondev/go-amm/internal/processor"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

func newKey() types.Pubkey {
	return solana.NewWallet().PublicKey()
}

type harness struct {
	t    *testing.T
	host *Host
	log  *metrics.LogMetrics
	auth authority.Authority

	initializer                             types.Pubkey
	mintA, mintB, mintReceipt               types.Pubkey
	vaultA, vaultB, vaultReceipt, poolState types.Pubkey
}

func newHarness(t *testing.T, balanceA, balanceB, balanceReceipt uint64) *harness {
	t.Helper()
	proc := processor.New(newKey()).WithLogger(common.DiscardLogger())
	auth, err := proc.Authority()
	require.NoError(t, err)

	log := metrics.NewLogMetrics(common.DiscardLogger())
	host, err := NewHost(proc, WithMetrics(metrics.NewCollection(log)))
	require.NoError(t, err)
	host.WithLogger(common.DiscardLogger())

	h := &harness{
		t:            t,
		host:         host,
		log:          log,
		auth:         auth,
		initializer:  newKey(),
		mintA:        newKey(),
		mintB:        newKey(),
		mintReceipt:  newKey(),
		vaultA:       newKey(),
		vaultB:       newKey(),
		vaultReceipt: newKey(),
		poolState:    newKey(),
	}
	host.CreateSystemAccount(h.initializer, 1_000_000_000)
	require.NoError(t, host.CreateTokenAccount(h.vaultA, h.mintA, h.initializer, balanceA))
	require.NoError(t, host.CreateTokenAccount(h.vaultB, h.mintB, h.initializer, balanceB))
	require.NoError(t, host.CreateTokenAccount(h.vaultReceipt, h.mintReceipt, h.initializer, balanceReceipt))
	host.CreateProgramAccount(h.poolState, state.Len, 0)
	return h
}

func (h *harness) exec(ix *types.Instruction) error {
	_, err := h.host.Execute(context.Background(), ix)
	return err
}

func (h *harness) init() {
	h.t.Helper()
	require.NoError(h.t, h.exec(instruction.NewInitInstruction(h.host.ProgramID(), instruction.InitAccounts{
		Initializer:  h.initializer,
		VaultA:       h.vaultA,
		VaultB:       h.vaultB,
		VaultReceipt: h.vaultReceipt,
		PoolState:    h.poolState,
	})))
}

func (h *harness) balance(key types.Pubkey) uint64 {
	h.t.Helper()
	b, err := h.host.TokenBalance(key)
	require.NoError(h.t, err)
	return b
}

type wallet struct {
	key, a, b, receipt types.Pubkey
}

func (h *harness) newWallet(a, b, receipt uint64) wallet {
	h.t.Helper()
	w := wallet{key: newKey(), a: newKey(), b: newKey(), receipt: newKey()}
	h.host.CreateSystemAccount(w.key, 1_000_000)
	require.NoError(h.t, h.host.CreateTokenAccount(w.a, h.mintA, w.key, a))
	require.NoError(h.t, h.host.CreateTokenAccount(w.b, h.mintB, w.key, b))
	require.NoError(h.t, h.host.CreateTokenAccount(w.receipt, h.mintReceipt, w.key, receipt))
	return w
}

func (h *harness) liquidityAccounts(w wallet) instruction.LiquidityAccounts {
	return instruction.LiquidityAccounts{
		Provider:        w.key,
		ProviderA:       w.a,
		ProviderB:       w.b,
		ProviderReceipt: w.receipt,
		PoolVaultA:      h.vaultA,
		PoolVaultB:      h.vaultB,
		PoolReceipt:     h.vaultReceipt,
		PoolState:       h.poolState,
		PoolAuthority:   h.auth.Address,
	}
}

func (h *harness) tradeAccounts(w wallet) instruction.TradeAccounts {
	return instruction.TradeAccounts{
		Trader:        w.key,
		TraderA:       w.a,
		TraderB:       w.b,
		PoolVaultA:    h.vaultA,
		PoolVaultB:    h.vaultB,
		PoolState:     h.poolState,
		PoolAuthority: h.auth.Address,
	}
}

func (h *harness) closeAccounts() instruction.CloseAccounts {
	return instruction.CloseAccounts{
		Initializer:   h.initializer,
		PoolVaultA:    h.vaultA,
		PoolVaultB:    h.vaultB,
		PoolReceipt:   h.vaultReceipt,
		PoolState:     h.poolState,
		PoolAuthority: h.auth.Address,
	}
}

func TestNewHostSeedsSysvars(t *testing.T) {
	h := newHarness(t, 0, 0, 0)

	rentInfo, ok := h.host.Account(solana.SysVarRentPubkey)
	require.True(t, ok)
	rent, err := types.DecodeRent(rentInfo.Data)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultRent(), rent)

	tokenProgram, ok := h.host.Account(solana.TokenProgramID)
	require.True(t, ok)
	assert.True(t, tokenProgram.Executable)

	_, err = NewHost(nil)
	assert.ErrorIs(t, err, cerrors.ErrInvalidArgument)
}

func TestPoolLifecycle(t *testing.T) {
	h := newHarness(t, 100, 10, 1000)
	h.init()

	for _, vault := range []types.Pubkey{h.vaultA, h.vaultB, h.vaultReceipt} {
		owner, err := h.host.TokenOwner(vault)
		require.NoError(t, err)
		assert.Equal(t, h.auth.Address, owner)
	}

	provider := h.newWallet(5, 50, 0)
	require.NoError(t, h.exec(instruction.NewProvideLiquidityInstruction(h.host.ProgramID(), h.liquidityAccounts(provider), 5, 50)))
	assert.Equal(t, uint64(105), h.balance(h.vaultA))
	assert.Equal(t, uint64(60), h.balance(h.vaultB))
	assert.Equal(t, uint64(5), h.balance(provider.receipt))
	assert.Equal(t, uint64(995), h.balance(h.vaultReceipt))

	trader := h.newWallet(1, 0, 0)
	require.NoError(t, h.exec(instruction.NewTradeAForBInstruction(h.host.ProgramID(), h.tradeAccounts(trader), 1)))
	assert.Equal(t, uint64(0), h.balance(trader.a))
	assert.Equal(t, uint64(1), h.balance(trader.b))
	assert.Equal(t, uint64(106), h.balance(h.vaultA))
	assert.Equal(t, uint64(59), h.balance(h.vaultB))

	require.NoError(t, h.exec(instruction.NewClaimLiquidityInstruction(h.host.ProgramID(), h.liquidityAccounts(provider), 3)))
	assert.Equal(t, uint64(2), h.balance(provider.receipt))
	assert.Equal(t, uint64(998), h.balance(h.vaultReceipt))
	assert.Equal(t, uint64(3), h.balance(provider.a))
	assert.Equal(t, uint64(3), h.balance(provider.b))
	assert.Equal(t, uint64(103), h.balance(h.vaultA))
	assert.Equal(t, uint64(56), h.balance(h.vaultB))
}

func TestFailedInvocationRollsBack(t *testing.T) {
	h := newHarness(t, 100, 10, 0)
	h.init()

	// The trader pays in before the payout fails for lack of funds.
	trader := h.newWallet(5, 0, 0)
	_, err := h.host.Execute(context.Background(), instruction.NewTradeAForBInstruction(h.host.ProgramID(), h.tradeAccounts(trader), 5))
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	assert.Equal(t, uint64(5), h.balance(trader.a))
	assert.Equal(t, uint64(0), h.balance(trader.b))
	assert.Equal(t, uint64(100), h.balance(h.vaultA))
	assert.Equal(t, uint64(10), h.balance(h.vaultB))
	assert.Equal(t, uint64(1), h.log.Counter(metrics.MetricInvocationsRolledBack))
	assert.Equal(t, uint64(1), h.log.Counter(metrics.MetricInvocationsCommitted), "only the init")
}

func TestCloseReclaimsLamports(t *testing.T) {
	h := newHarness(t, 0, 0, 0)
	h.init()
	h.host.CreateSystemAccount(h.auth.Address, 5_000)

	vaultLamports := h.host.Lamports(h.vaultA) + h.host.Lamports(h.vaultB) + h.host.Lamports(h.vaultReceipt)
	before := h.host.Lamports(h.initializer)
	stateLamports := h.host.Lamports(h.poolState)

	inv, err := h.host.Execute(context.Background(), instruction.NewCloseInstruction(h.host.ProgramID(), h.closeAccounts()))
	require.NoError(t, err)

	assert.Equal(t, before+vaultLamports+stateLamports+5_000, h.host.Lamports(h.initializer))
	for _, key := range []types.Pubkey{h.vaultA, h.vaultB, h.vaultReceipt, h.auth.Address, h.poolState} {
		assert.False(t, h.host.Exists(key), key.String())
	}
	assert.Len(t, inv.Purged, 5)
}

func TestClosedPoolCannotBeInitializedAgain(t *testing.T) {
	h := newHarness(t, 0, 0, 0)
	h.init()
	require.NoError(t, h.exec(instruction.NewCloseInstruction(h.host.ProgramID(), h.closeAccounts())))

	w := h.newWallet(0, 0, 0)
	err := h.exec(instruction.NewInitInstruction(h.host.ProgramID(), instruction.InitAccounts{
		Initializer:  w.key,
		VaultA:       w.a,
		VaultB:       w.b,
		VaultReceipt: w.receipt,
		PoolState:    h.poolState,
	}))
	assert.ErrorIs(t, err, cerrors.ErrNotRentExempt)
	assert.False(t, h.host.Exists(h.poolState))

	owner, err := h.host.TokenOwner(w.a)
	require.NoError(t, err)
	assert.Equal(t, w.key, owner)
}

func TestCloseWithFundedVaultRollsBack(t *testing.T) {
	h := newHarness(t, 0, 7, 0)
	h.init()

	before := h.host.Lamports(h.initializer)
	_, err := h.host.Execute(context.Background(), instruction.NewCloseInstruction(h.host.ProgramID(), h.closeAccounts()))
	require.ErrorIs(t, err, ledger.ErrNonNativeHasBalance)

	// Vault A closed inside the failed invocation and must be back.
	assert.True(t, h.host.Exists(h.vaultA))
	assert.Equal(t, uint64(7), h.balance(h.vaultB))
	assert.Equal(t, before, h.host.Lamports(h.initializer))

	poolState, ok := h.host.Account(h.poolState)
	require.True(t, ok)
	pool, err := state.Unpack(poolState.Data)
	require.NoError(t, err)
	assert.Equal(t, h.initializer, pool.Initializer)
}

func TestRollbackLogsHostCode(t *testing.T) {
	h := newHarness(t, 0, 0, 0)
	h.init()

	var out bytes.Buffer
	h.host.WithLogger(slog.New(slog.NewTextHandler(&out, nil)))

	accounts := h.closeAccounts()
	accounts.Initializer = h.newWallet(0, 0, 0).key
	err := h.exec(instruction.NewCloseInstruction(h.host.ProgramID(), accounts))
	require.ErrorIs(t, err, cerrors.ErrInvalidInitializer)

	assert.Contains(t, out.String(), "invocation rolled back")
	assert.Contains(t, out.String(), `code="custom program error: 0x1"`)
}

func TestExecuteRejectsForeignProgram(t *testing.T) {
	h := newHarness(t, 0, 0, 0)
	ix := instruction.NewInitInstruction(newKey(), instruction.InitAccounts{
		Initializer:  h.initializer,
		VaultA:       h.vaultA,
		VaultB:       h.vaultB,
		VaultReceipt: h.vaultReceipt,
		PoolState:    h.poolState,
	})

	inv, err := h.host.Execute(context.Background(), ix)
	assert.ErrorIs(t, err, cerrors.ErrIncorrectProgramID)
	assert.NotEqual(t, uuid.Nil, inv.ID)

	_, err = h.host.Execute(context.Background(), nil)
	assert.ErrorIs(t, err, cerrors.ErrInvalidArgument)
}

func TestExecuteHonorsCanceledContext(t *testing.T) {
	h := newHarness(t, 0, 0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.host.Execute(ctx, instruction.NewInitInstruction(h.host.ProgramID(), instruction.InitAccounts{
		Initializer: h.initializer,
	}))
	assert.ErrorIs(t, err, context.Canceled)
}

// scribbler writes to every account it is given.
type scribbler struct {
	id types.Pubkey
}

func (s scribbler) ProgramID() types.Pubkey { return s.id }

func (s scribbler) Process(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, data []byte) error {
	for _, a := range accounts {
		a.Lamports++
	}
	return nil
}

func TestReadonlyAccountsCannotChange(t *testing.T) {
	prog := scribbler{id: newKey()}
	host, err := NewHost(prog)
	require.NoError(t, err)
	host.WithLogger(common.DiscardLogger())

	key := newKey()
	host.CreateSystemAccount(key, 10)

	_, err = host.Execute(context.Background(), &types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{{Pubkey: key}},
	})
	require.ErrorIs(t, err, ErrReadonlyModified)
	assert.Equal(t, uint64(10), host.Lamports(key))

	_, err = host.Execute(context.Background(), &types.Instruction{
		ProgramID: prog.id,
		Accounts:  []types.AccountMeta{{Pubkey: key, IsWritable: true}, {Pubkey: key}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(12), host.Lamports(key), "duplicate keys share one handle")
}
