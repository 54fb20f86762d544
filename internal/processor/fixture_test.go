package processor

import (
	"context"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/require"

	"github.com/lugondev/go-amm/internal/authority"
	"github.com/lugondev/go-amm/internal/common"
	"github.com/lugondev/go-amm/internal/instruction"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

const tokenAccountLamports = 2_039_280

func newKey() types.Pubkey {
	return solana.NewWallet().PublicKey()
}

func tokenAccount(t testing.TB, mint, owner types.Pubkey, amount uint64) *types.AccountInfo {
	t.Helper()
	data, err := ledger.EncodeTokenAccount(ledger.NewTokenAccount(mint, owner, amount))
	require.NoError(t, err)
	return &types.AccountInfo{
		Key:        newKey(),
		IsWritable: true,
		Lamports:   tokenAccountLamports,
		Data:       data,
		Owner:      solana.TokenProgramID,
	}
}

func balanceOf(t testing.TB, info *types.AccountInfo) uint64 {
	t.Helper()
	b, err := ledger.Balance(info)
	require.NoError(t, err)
	return b
}

// pool is an initialized pool with its vaults already owned by the pool authority.
type pool struct {
	t testing.TB

	proc   *Processor
	ledger *ledger.TokenLedger
	auth   authority.Authority

	mintA, mintB, mintReceipt types.Pubkey

	initializer  *types.AccountInfo
	vaultA       *types.AccountInfo
	vaultB       *types.AccountInfo
	vaultReceipt *types.AccountInfo
	state        *types.AccountInfo
	rent         *types.AccountInfo
	tokenProgram *types.AccountInfo
	authority    *types.AccountInfo
}

func newProcessor(t testing.TB) *Processor {
	t.Helper()
	return New(newKey()).WithLogger(common.DiscardLogger())
}

// newUninitializedPool returns a pool whose vaults are still owned by the initializer.
func newUninitializedPool(t testing.TB, balanceA, balanceB, balanceReceipt uint64) *pool {
	t.Helper()
	proc := newProcessor(t)
	auth, err := proc.Authority()
	require.NoError(t, err)

	rentData, err := types.EncodeRent(types.DefaultRent())
	require.NoError(t, err)

	p := &pool{
		t:           t,
		proc:        proc,
		ledger:      ledger.NewTokenLedger(proc.ProgramID()).WithLogger(common.DiscardLogger()),
		auth:        auth,
		mintA:       newKey(),
		mintB:       newKey(),
		mintReceipt: newKey(),
		initializer: &types.AccountInfo{Key: newKey(), IsSigner: true, IsWritable: true, Lamports: 1_000_000_000},
		state: &types.AccountInfo{
			Key:        newKey(),
			IsWritable: true,
			Lamports:   types.DefaultRent().MinimumBalance(state.Len),
			Data:       make([]byte, state.Len),
			Owner:      proc.ProgramID(),
		},
		rent:         &types.AccountInfo{Key: solana.SysVarRentPubkey, Data: rentData, Owner: solana.SysVarRentPubkey},
		tokenProgram: &types.AccountInfo{Key: solana.TokenProgramID, Executable: true},
		authority:    &types.AccountInfo{Key: auth.Address, IsWritable: true},
	}
	p.vaultA = tokenAccount(t, p.mintA, p.initializer.Key, balanceA)
	p.vaultB = tokenAccount(t, p.mintB, p.initializer.Key, balanceB)
	p.vaultReceipt = tokenAccount(t, p.mintReceipt, p.initializer.Key, balanceReceipt)
	return p
}

func newPool(t testing.TB, balanceA, balanceB, balanceReceipt uint64) *pool {
	t.Helper()
	p := newUninitializedPool(t, balanceA, balanceB, balanceReceipt)
	require.NoError(t, p.run(instruction.Init{}, p.initAccounts()...))
	return p
}

func (p *pool) run(ix instruction.Instruction, accounts ...*types.AccountInfo) error {
	return p.runWith(p.ledger, ix, accounts...)
}

func (p *pool) runWith(svc ledger.TransferService, ix instruction.Instruction, accounts ...*types.AccountInfo) error {
	return p.proc.Process(context.Background(), svc, accounts, instruction.MustEncode(ix))
}

func (p *pool) initAccounts() []*types.AccountInfo {
	return []*types.AccountInfo{p.initializer, p.vaultA, p.vaultB, p.vaultReceipt, p.state, p.rent, p.tokenProgram}
}

// user is a caller holding one account per pool mint.
type user struct {
	signer  *types.AccountInfo
	a       *types.AccountInfo
	b       *types.AccountInfo
	receipt *types.AccountInfo
}

func (p *pool) newUser(a, b, receipt uint64) *user {
	key := newKey()
	return &user{
		signer:  &types.AccountInfo{Key: key, IsSigner: true},
		a:       tokenAccount(p.t, p.mintA, key, a),
		b:       tokenAccount(p.t, p.mintB, key, b),
		receipt: tokenAccount(p.t, p.mintReceipt, key, receipt),
	}
}

func (p *pool) provideAccounts(u *user) []*types.AccountInfo {
	return []*types.AccountInfo{u.signer, u.receipt, u.a, u.b, p.vaultA, p.vaultB, p.vaultReceipt, p.state, p.tokenProgram, p.authority}
}

func (p *pool) claimAccounts(u *user) []*types.AccountInfo {
	return []*types.AccountInfo{u.signer, u.a, u.b, u.receipt, p.vaultA, p.vaultB, p.vaultReceipt, p.state, p.tokenProgram, p.authority}
}

func (p *pool) tradeAccounts(u *user) []*types.AccountInfo {
	return []*types.AccountInfo{u.signer, u.a, u.b, p.vaultA, p.vaultB, p.state, p.tokenProgram, p.authority}
}

func (p *pool) closeAccounts() []*types.AccountInfo {
	return []*types.AccountInfo{p.initializer, p.vaultA, p.vaultB, p.vaultReceipt, p.state, p.tokenProgram, p.authority}
}

// snapshot captures lamports and data of accounts for unchanged-state assertions.
func snapshot(accounts ...*types.AccountInfo) []*types.AccountInfo {
	out := make([]*types.AccountInfo, len(accounts))
	for i, a := range accounts {
		out[i] = a.Clone()
	}
	return out
}

func requireUnchanged(t testing.TB, before []*types.AccountInfo, after ...*types.AccountInfo) {
	t.Helper()
	require.Len(t, after, len(before))
	for i := range before {
		require.Equal(t, before[i].Lamports, after[i].Lamports, "lamports of %s", after[i].Key)
		require.Equal(t, before[i].Data, after[i].Data, "data of %s", after[i].Key)
	}
}

// transferCall is one token instruction seen by recorder.
type transferCall struct {
	Kind        string
	Source      types.Pubkey
	Destination types.Pubkey
	Authority   types.Pubkey
	Amount      uint64
	Signed      bool
}

// recorder is a TransferService that records calls without moving balances.
type recorder struct {
	calls  []transferCall
	failAt int
}

func newRecorder() *recorder {
	return &recorder{failAt: -1}
}

func (r *recorder) Invoke(ctx context.Context, ix solana.Instruction, accounts []*types.AccountInfo) error {
	return r.record(ix, accounts, false)
}

func (r *recorder) InvokeSigned(ctx context.Context, ix solana.Instruction, accounts []*types.AccountInfo, signerSeeds ...[][]byte) error {
	return r.record(ix, accounts, len(signerSeeds) > 0)
}

func (r *recorder) record(ix solana.Instruction, accounts []*types.AccountInfo, signed bool) error {
	if r.failAt == len(r.calls) {
		return fmt.Errorf("injected failure at call %d", r.failAt)
	}
	data, err := ix.Data()
	if err != nil {
		return err
	}
	decoded, err := token.DecodeInstruction(ix.Accounts(), data)
	if err != nil {
		return err
	}
	for _, meta := range ix.Accounts() {
		found := false
		for _, info := range accounts {
			if info.Key.Equals(meta.PublicKey) {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("account %s not passed", meta.PublicKey)
		}
	}

	call := transferCall{Signed: signed}
	switch impl := decoded.Impl.(type) {
	case *token.Transfer:
		call.Kind = "transfer"
		call.Source = impl.Accounts[0].PublicKey
		call.Destination = impl.Accounts[1].PublicKey
		call.Authority = impl.Accounts[2].PublicKey
		call.Amount = *impl.Amount
	case *token.SetAuthority:
		call.Kind = "set_authority"
		call.Source = impl.Accounts[0].PublicKey
		call.Destination = *impl.NewAuthority
		call.Authority = impl.Accounts[1].PublicKey
	case *token.CloseAccount:
		call.Kind = "close"
		call.Source = impl.Accounts[0].PublicKey
		call.Destination = impl.Accounts[1].PublicKey
		call.Authority = impl.Accounts[2].PublicKey
	}
	r.calls = append(r.calls, call)
	return nil
}
