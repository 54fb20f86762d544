package processor

import (
	"context"
	"fmt"
	"math/bits"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-amm/internal/account"
	"github.com/lugondev/go-amm/internal/authority"
	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

// take returns the first n handles in instruction order. Handles past n are
// ignored.
func (p *Processor) take(accounts []*types.AccountInfo, n int) ([]*types.AccountInfo, error) {
	it := account.NewIterator(accounts)
	handles, err := it.NextN(n)
	if err != nil {
		return nil, err
	}
	if extra := it.Remaining(); extra > 0 {
		p.GetLogger().Debug("ignoring trailing accounts", "expected", n, "extra", extra)
	}
	return handles, nil
}

func requireSigner(info *types.AccountInfo) error {
	if !info.IsSigner {
		return cerrors.ErrMissingRequiredSignature.WithDetails(map[string]any{"account": info.Key.String()})
	}
	return nil
}

func checkTokenProgram(info *types.AccountInfo) error {
	if !info.Key.Equals(solana.TokenProgramID) {
		return cerrors.ErrIncorrectProgramID.WithDetails(map[string]any{
			"transfer_service": info.Key.String(),
			"expected":         solana.TokenProgramID.String(),
		})
	}
	return nil
}

// poolState loads the initialized record held by a program-owned account.
func (p *Processor) poolState(info *types.AccountInfo) (*state.PoolState, error) {
	decoded, err := account.NewProgramAccountDecoder(p.programID, state.Unpack).Decode(info)
	if err != nil {
		return nil, err
	}
	return decoded.Data, nil
}

// poolStateUnchecked loads the record without requiring it to be initialized.
func (p *Processor) poolStateUnchecked(info *types.AccountInfo) (*state.PoolState, error) {
	decoded, err := account.NewProgramAccountDecoder(p.programID, state.UnpackUnchecked).Decode(info)
	if err != nil {
		return nil, err
	}
	return decoded.Data, nil
}

func (p *Processor) verifyAuthority(info *types.AccountInfo) (authority.Authority, error) {
	return authority.Verify(p.programID, p.seed, info.Key)
}

// checkVaults verifies each supplied vault against the stored identity for its role.
func checkVaults(s *state.PoolState, vaults map[state.VaultRole]*types.AccountInfo) error {
	for _, role := range state.Roles() {
		info, ok := vaults[role]
		if !ok {
			continue
		}
		if err := s.CheckVault(role, info.Key); err != nil {
			return err
		}
	}
	return nil
}

func balance(info *types.AccountInfo) (uint64, error) {
	b, err := ledger.Balance(info)
	if err != nil {
		return 0, fmt.Errorf("read balance of %s: %w", info.Key, err)
	}
	return b, nil
}

// ratio is floor(num / den).
func ratio(num, den uint64) (uint64, error) {
	if den == 0 {
		return 0, cerrors.ErrDivisionByZero.WithDetails(map[string]any{"numerator": num})
	}
	return num / den, nil
}

func mulChecked(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, cerrors.ErrAmountOverflow.WithDetails(map[string]any{"a": a, "b": b})
	}
	return lo, nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, cerrors.ErrAmountOverflow.WithDetails(map[string]any{"a": a, "b": b})
	}
	return sum, nil
}

func (p *Processor) invoke(ctx context.Context, svc ledger.TransferService, step string, ix solana.Instruction, accounts ...*types.AccountInfo) error {
	p.GetLogger().Debug("calling transfer service", "step", step)
	if err := svc.Invoke(ctx, ix, accounts); err != nil {
		return cerrors.Wrap(err, step)
	}
	return nil
}

func (p *Processor) invokeSigned(ctx context.Context, svc ledger.TransferService, step string, auth authority.Authority, ix solana.Instruction, accounts ...*types.AccountInfo) error {
	p.GetLogger().Debug("calling transfer service as pool authority", "step", step, "authority", auth.Address)
	if err := svc.InvokeSigned(ctx, ix, accounts, auth.SignerSeeds()); err != nil {
		return cerrors.Wrap(err, step)
	}
	return nil
}
