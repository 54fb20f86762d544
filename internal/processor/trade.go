package processor

import (
	"context"

	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

// tradeLeg describes one direction of a swap: the trader pays into the
// "in" vault and is paid from the "out" vault.
type tradeLeg struct {
	in, out state.VaultRole
}

var (
	aForB = tradeLeg{in: state.VaultA, out: state.VaultB}
	bForA = tradeLeg{in: state.VaultB, out: state.VaultA}
)

func (p *Processor) processTradeAForB(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, amount uint64) error {
	return p.processTrade(ctx, svc, accounts, aForB, amount)
}

func (p *Processor) processTradeBForA(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, amount uint64) error {
	return p.processTrade(ctx, svc, accounts, bForA, amount)
}

// processTrade expects:
//
//	0. [signer]   trader
//	1. [writable] trader A account
//	2. [writable] trader B account
//	3. [writable] pool vault A
//	4. [writable] pool vault B
//	5. []         pool state
//	6. []         token program
//	7. []         pool authority
//
// The payout is amount * floor(balance(in) / balance(out)).
func (p *Processor) processTrade(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, leg tradeLeg, amount uint64) error {
	handles, err := p.take(accounts, 8)
	if err != nil {
		return err
	}
	trader := handles[0]
	traderAccounts := map[state.VaultRole]*types.AccountInfo{
		state.VaultA: handles[1],
		state.VaultB: handles[2],
	}
	vaults := map[state.VaultRole]*types.AccountInfo{
		state.VaultA: handles[3],
		state.VaultB: handles[4],
	}
	poolInfo, tokenProgram, authInfo := handles[5], handles[6], handles[7]

	if err := requireSigner(trader); err != nil {
		return err
	}
	pool, err := p.poolState(poolInfo)
	if err != nil {
		return err
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

	balanceIn, err := balance(vaults[leg.in])
	if err != nil {
		return err
	}
	balanceOut, err := balance(vaults[leg.out])
	if err != nil {
		return err
	}
	poolRatio, err := ratio(balanceIn, balanceOut)
	if err != nil {
		return err
	}
	payout, err := mulChecked(amount, poolRatio)
	if err != nil {
		return err
	}

	payIn, payFrom := vaults[leg.in], traderAccounts[leg.in]
	if err := p.invoke(ctx, svc, "pay "+leg.in.String(),
		ledger.Transfer(payFrom.Key, payIn.Key, trader.Key, amount),
		payFrom, payIn, trader); err != nil {
		return err
	}
	payOut, payTo := vaults[leg.out], traderAccounts[leg.out]
	if err := p.invokeSigned(ctx, svc, "pay out "+leg.out.String(), auth,
		ledger.Transfer(payOut.Key, payTo.Key, auth.Address, payout),
		payOut, payTo, authInfo); err != nil {
		return err
	}

	p.GetLogger().Info("trade executed",
		"trader", trader.Key,
		"in", leg.in.String(),
		"amount_in", amount,
		"out", leg.out.String(),
		"amount_out", payout,
	)
	return nil
}
