package processor

import (
	"context"

	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

// processInit expects:
//
//	0. [signer]   initializer
//	1. [writable] vault A
//	2. [writable] vault B
//	3. [writable] vault receipt
//	4. [writable] pool state
//	5. []         rent sysvar
//	6. []         token program
func (p *Processor) processInit(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo) error {
	handles, err := p.take(accounts, 7)
	if err != nil {
		return err
	}
	initializer, vaultA, vaultB, vaultReceipt, poolInfo, rentInfo, tokenProgram :=
		handles[0], handles[1], handles[2], handles[3], handles[4], handles[5], handles[6]

	if err := requireSigner(initializer); err != nil {
		return err
	}

	if !rentInfo.Key.Equals(solana.SysVarRentPubkey) {
		return cerrors.ErrInvalidArgument.WithDetails(map[string]any{"rent": rentInfo.Key.String()})
	}
	rent, err := types.DecodeRent(rentInfo.Data)
	if err != nil {
		return cerrors.ErrInvalidArgument.WithCause(err)
	}

	if !rent.IsExempt(poolInfo.Lamports, poolInfo.DataLen()) {
		return cerrors.ErrNotRentExempt.WithDetails(map[string]any{
			"lamports": poolInfo.Lamports,
			"required": rent.MinimumBalance(poolInfo.DataLen()),
		})
	}
	pool, err := p.poolStateUnchecked(poolInfo)
	if err != nil {
		return err
	}
	if pool.IsInitialized() {
		return cerrors.ErrAccountAlreadyInitialized
	}

	if err := checkTokenProgram(tokenProgram); err != nil {
		return err
	}
	auth, err := p.Authority()
	if err != nil {
		return err
	}

	pool.Initialized = true
	pool.Initializer = initializer.Key
	vaults := map[state.VaultRole]*types.AccountInfo{
		state.VaultA:       vaultA,
		state.VaultB:       vaultB,
		state.VaultReceipt: vaultReceipt,
	}
	for _, role := range state.Roles() {
		pool.SetVault(role, vaults[role].Key)
	}
	if err := state.PackInto(pool, poolInfo.Data); err != nil {
		return err
	}

	for _, role := range state.Roles() {
		vault := vaults[role]
		ix := ledger.SetOwner(vault.Key, initializer.Key, auth.Address)
		if err := p.invoke(ctx, svc, "transfer ownership of "+role.String(), ix, vault, initializer); err != nil {
			return err
		}
	}

	p.GetLogger().Info("pool initialized",
		"pool_state", poolInfo.Key,
		"initializer", initializer.Key,
		"authority", auth.Address,
	)
	return nil
}
