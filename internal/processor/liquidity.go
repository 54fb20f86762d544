package processor

import (
	"context"

	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

// processProvideLiquidity expects:
//
//	0. [signer]   provider
//	1. [writable] provider receipt account
//	2. [writable] provider A account
//	3. [writable] provider B account
//	4. [writable] pool vault A
//	5. [writable] pool vault B
//	6. [writable] pool vault receipt
//	7. []         pool state
//	8. []         token program
//	9. []         pool authority
func (p *Processor) processProvideLiquidity(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, amountA, amountB uint64) error {
	handles, err := p.take(accounts, 10)
	if err != nil {
		return err
	}
	provider, providerReceipt, providerA, providerB := handles[0], handles[1], handles[2], handles[3]
	vaultA, vaultB, vaultReceipt := handles[4], handles[5], handles[6]
	poolInfo, tokenProgram, authInfo := handles[7], handles[8], handles[9]

	if err := requireSigner(provider); err != nil {
		return err
	}
	pool, err := p.poolState(poolInfo)
	if err != nil {
		return err
	}
	if err := checkVaults(pool, map[state.VaultRole]*types.AccountInfo{
		state.VaultA:       vaultA,
		state.VaultB:       vaultB,
		state.VaultReceipt: vaultReceipt,
	}); err != nil {
		return err
	}
	if err := checkTokenProgram(tokenProgram); err != nil {
		return err
	}
	auth, err := p.verifyAuthority(authInfo)
	if err != nil {
		return err
	}

	balanceA, err := balance(vaultA)
	if err != nil {
		return err
	}
	balanceB, err := balance(vaultB)
	if err != nil {
		return err
	}
	poolRatio, err := ratio(balanceA, balanceB)
	if err != nil {
		return err
	}
	depositRatio, err := ratio(amountB, amountA)
	if err != nil {
		return err
	}
	if poolRatio != depositRatio {
		return cerrors.ErrInvalidRatio.WithDetails(map[string]any{
			"pool_ratio":    poolRatio,
			"deposit_ratio": depositRatio,
		})
	}

	if err := p.invoke(ctx, svc, "deposit asset A",
		ledger.Transfer(providerA.Key, vaultA.Key, provider.Key, amountA),
		providerA, vaultA, provider); err != nil {
		return err
	}
	if err := p.invoke(ctx, svc, "deposit asset B",
		ledger.Transfer(providerB.Key, vaultB.Key, provider.Key, amountB),
		providerB, vaultB, provider); err != nil {
		return err
	}

	// Receipt issuance equals the A-side deposit.
	receipt := amountA
	if err := p.invokeSigned(ctx, svc, "issue receipt", auth,
		ledger.Transfer(vaultReceipt.Key, providerReceipt.Key, auth.Address, receipt),
		vaultReceipt, providerReceipt, authInfo); err != nil {
		return err
	}

	p.GetLogger().Info("liquidity provided",
		"provider", provider.Key,
		"amount_a", amountA,
		"amount_b", amountB,
		"receipt", receipt,
	)
	return nil
}

// processClaimLiquidity expects:
//
//	0. [signer]   provider
//	1. [writable] provider A account
//	2. [writable] provider B account
//	3. [writable] provider receipt account
//	4. [writable] pool vault A
//	5. [writable] pool vault B
//	6. [writable] pool vault receipt
//	7. []         pool state
//	8. []         token program
//	9. []         pool authority
func (p *Processor) processClaimLiquidity(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, receiptAmount uint64) error {
	handles, err := p.take(accounts, 10)
	if err != nil {
		return err
	}
	provider, providerA, providerB, providerReceipt := handles[0], handles[1], handles[2], handles[3]
	vaultA, vaultB, vaultReceipt := handles[4], handles[5], handles[6]
	poolInfo, tokenProgram, authInfo := handles[7], handles[8], handles[9]

	if err := requireSigner(provider); err != nil {
		return err
	}
	pool, err := p.poolState(poolInfo)
	if err != nil {
		return err
	}
	if err := checkVaults(pool, map[state.VaultRole]*types.AccountInfo{
		state.VaultA:       vaultA,
		state.VaultB:       vaultB,
		state.VaultReceipt: vaultReceipt,
	}); err != nil {
		return err
	}
	if err := checkTokenProgram(tokenProgram); err != nil {
		return err
	}
	auth, err := p.verifyAuthority(authInfo)
	if err != nil {
		return err
	}

	balanceA, err := balance(vaultA)
	if err != nil {
		return err
	}
	balanceB, err := balance(vaultB)
	if err != nil {
		return err
	}
	poolRatio, err := ratio(balanceA, balanceB)
	if err != nil {
		return err
	}
	amountA := receiptAmount
	amountB, err := mulChecked(amountA, poolRatio)
	if err != nil {
		return err
	}

	if err := p.invoke(ctx, svc, "return receipt",
		ledger.Transfer(providerReceipt.Key, vaultReceipt.Key, provider.Key, receiptAmount),
		providerReceipt, vaultReceipt, provider); err != nil {
		return err
	}
	if err := p.invokeSigned(ctx, svc, "withdraw asset A", auth,
		ledger.Transfer(vaultA.Key, providerA.Key, auth.Address, amountA),
		vaultA, providerA, authInfo); err != nil {
		return err
	}
	if err := p.invokeSigned(ctx, svc, "withdraw asset B", auth,
		ledger.Transfer(vaultB.Key, providerB.Key, auth.Address, amountB),
		vaultB, providerB, authInfo); err != nil {
		return err
	}

	p.GetLogger().Info("liquidity claimed",
		"provider", provider.Key,
		"receipt", receiptAmount,
		"amount_a", amountA,
		"amount_b", amountB,
	)
	return nil
}
