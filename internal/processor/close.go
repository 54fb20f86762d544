package processor

import (
	"context"

	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

// processClose expects:
//
//	0. [signer, writable] initializer
//	1. [writable]         pool vault A
//	2. [writable]         pool vault B
//	3. [writable]         pool vault receipt
//	4. [writable]         pool state
//	5. []                 token program
//	6. [writable]         pool authority
func (p *Processor) processClose(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo) error {
	handles, err := p.take(accounts, 7)
	if err != nil {
		return err
	}
	initializer := handles[0]
	vaults := map[state.VaultRole]*types.AccountInfo{
		state.VaultA:       handles[1],
		state.VaultB:       handles[2],
		state.VaultReceipt: handles[3],
	}
	poolInfo, tokenProgram, authInfo := handles[4], handles[5], handles[6]

	if err := requireSigner(initializer); err != nil {
		return err
	}
	pool, err := p.poolState(poolInfo)
	if err != nil {
		return err
	}
	if !pool.Initializer.Equals(initializer.Key) {
		return cerrors.ErrInvalidInitializer.WithDetails(map[string]any{
			"initializer": pool.Initializer.String(),
			"caller":      initializer.Key.String(),
		})
	}
	if err := checkVaults(pool, vaults); err != nil {
		return err
	}
	if err := checkTokenProgram(tokenProgram); err != nil {
		return err
	}
	auth, err := p.verifyAuthority(authInfo)
	if err != nil {
		return err
	}

	// Everything the initializer can end up holding must fit before anything moves.
	total := initializer.Lamports
	for _, role := range state.Roles() {
		if total, err = addChecked(total, vaults[role].Lamports); err != nil {
			return err
		}
	}
	for _, info := range []*types.AccountInfo{authInfo, poolInfo} {
		if total, err = addChecked(total, info.Lamports); err != nil {
			return err
		}
	}

	for _, role := range state.Roles() {
		vault := vaults[role]
		if err := p.invokeSigned(ctx, svc, "close "+role.String(), auth,
			ledger.CloseAccount(vault.Key, initializer.Key, auth.Address),
			vault, initializer, authInfo); err != nil {
			return err
		}
	}

	// The pool state goes with the authority so the host drops both and the
	// record cannot be initialized again.
	var reclaimed uint64
	for _, info := range []*types.AccountInfo{authInfo, poolInfo} {
		if initializer.Lamports, err = addChecked(initializer.Lamports, info.Lamports); err != nil {
			return err
		}
		reclaimed += info.Lamports
		info.Lamports = 0
		info.ZeroData()
	}

	p.GetLogger().Info("pool closed",
		"pool_state", poolInfo.Key,
		"initializer", initializer.Key,
		"reclaimed_lamports", reclaimed,
	)
	return nil
}
