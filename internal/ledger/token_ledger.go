package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/bits"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/lugondev/go-amm/internal/common"
	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/pkg/types"
)

// Token program conditions.
var (
	ErrInsufficientFunds   = cerrors.NewError("INSUFFICIENT_FUNDS", "insufficient funds")
	ErrOwnerMismatch       = cerrors.NewError("OWNER_MISMATCH", "owner does not match")
	ErrMintMismatch        = cerrors.NewError("MINT_MISMATCH", "account not associated with this mint")
	ErrNonNativeHasBalance = cerrors.NewError("NON_NATIVE_HAS_BALANCE", "non-native account can only be closed if its balance is zero")
	ErrOverflow            = cerrors.NewError("OVERFLOW", "operation overflowed")
	ErrAccountNotReady     = cerrors.NewError("UNINITIALIZED_STATE", "state is uninitialized")
	ErrAccountFrozen       = cerrors.NewError("ACCOUNT_FROZEN", "account is frozen")
	ErrUnsupported         = cerrors.NewError("UNSUPPORTED_INSTRUCTION", "instruction not supported by the ledger")
)

// TokenLedger executes Transfer, SetAuthority(AccountOwner) and CloseAccount
// against token accounts held in AccountInfo handles. Seed signatures are
// checked against callerProgramID.
type TokenLedger struct {
	common.LoggerMixin
	callerProgramID types.Pubkey
}

// NewTokenLedger creates a ledger that accepts seed signatures from callerProgramID.
func NewTokenLedger(callerProgramID types.Pubkey) *TokenLedger {
	return &TokenLedger{
		LoggerMixin:     common.NewLoggerMixin(),
		callerProgramID: callerProgramID,
	}
}

// WithLogger sets a custom logger for the ledger.
func (l *TokenLedger) WithLogger(logger *slog.Logger) *TokenLedger {
	l.SetLogger(logger)
	return l
}

// Invoke implements TransferService.
func (l *TokenLedger) Invoke(ctx context.Context, ix solana.Instruction, accounts []*types.AccountInfo) error {
	return l.InvokeSigned(ctx, ix, accounts)
}

// InvokeSigned implements TransferService.
func (l *TokenLedger) InvokeSigned(ctx context.Context, ix solana.Instruction, accounts []*types.AccountInfo, signerSeeds ...[][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ix.ProgramID().Equals(solana.TokenProgramID) {
		return cerrors.ErrIncorrectProgramID.WithDetails(map[string]any{"program_id": ix.ProgramID().String()})
	}

	data, err := ix.Data()
	if err != nil {
		return cerrors.ErrInvalidInstruction.WithCause(err)
	}
	decoded, err := token.DecodeInstruction(ix.Accounts(), data)
	if err != nil {
		return cerrors.ErrInvalidInstruction.WithCause(err)
	}

	inv := &invocation{
		ledger:   l,
		accounts: accounts,
		signers:  l.seedSigners(signerSeeds),
	}

	switch impl := decoded.Impl.(type) {
	case *token.Transfer:
		return inv.transfer(impl)
	case *token.SetAuthority:
		return inv.setAuthority(impl)
	case *token.CloseAccount:
		return inv.closeAccount(impl)
	default:
		return ErrUnsupported.WithDetails(map[string]any{
			"instruction": token.InstructionIDToName(decoded.TypeID.Uint8()),
		})
	}
}

func (l *TokenLedger) seedSigners(signerSeeds [][][]byte) []types.Pubkey {
	out := make([]types.Pubkey, 0, len(signerSeeds))
	for _, seeds := range signerSeeds {
		addr, err := solana.CreateProgramAddress(seeds, l.callerProgramID)
		if err != nil {
			l.GetLogger().Debug("ignoring signer seeds", "error", err)
			continue
		}
		out = append(out, addr)
	}
	return out
}

type invocation struct {
	ledger   *TokenLedger
	accounts []*types.AccountInfo
	signers  []types.Pubkey
}

func (inv *invocation) lookup(meta *solana.AccountMeta) (*types.AccountInfo, error) {
	if meta == nil {
		return nil, cerrors.ErrNotEnoughAccountKeys
	}
	for _, info := range inv.accounts {
		if info != nil && info.Key.Equals(meta.PublicKey) {
			return info, nil
		}
	}
	return nil, cerrors.ErrNotEnoughAccountKeys.WithDetails(map[string]any{"missing": meta.PublicKey.String()})
}

func (inv *invocation) signed(info *types.AccountInfo) bool {
	if info.IsSigner {
		return true
	}
	for _, s := range inv.signers {
		if s.Equals(info.Key) {
			return true
		}
	}
	return false
}

// authorize resolves the authority account and checks it owns acc and has signed.
func (inv *invocation) authorize(meta *solana.AccountMeta, acc *token.Account) error {
	authority, err := inv.lookup(meta)
	if err != nil {
		return err
	}
	if !acc.Owner.Equals(authority.Key) {
		return ErrOwnerMismatch.WithDetails(map[string]any{
			"owner":     acc.Owner.String(),
			"authority": authority.Key.String(),
		})
	}
	if !inv.signed(authority) {
		return cerrors.ErrMissingRequiredSignature.WithDetails(map[string]any{"authority": authority.Key.String()})
	}
	return nil
}

func (inv *invocation) load(meta *solana.AccountMeta) (*types.AccountInfo, *token.Account, error) {
	info, err := inv.lookup(meta)
	if err != nil {
		return nil, nil, err
	}
	acc, err := DecodeTokenAccount(info.Data)
	if err != nil {
		return nil, nil, err
	}
	switch acc.State {
	case token.Initialized:
	case token.Frozen:
		return nil, nil, ErrAccountFrozen.WithDetails(map[string]any{"account": info.Key.String()})
	default:
		return nil, nil, ErrAccountNotReady.WithDetails(map[string]any{"account": info.Key.String()})
	}
	return info, acc, nil
}

func (inv *invocation) transfer(t *token.Transfer) error {
	if t.Amount == nil || len(t.Accounts) < 3 {
		return cerrors.ErrInvalidInstruction
	}
	amount := *t.Amount

	srcInfo, src, err := inv.load(t.Accounts[0])
	if err != nil {
		return err
	}
	dstInfo, dst, err := inv.load(t.Accounts[1])
	if err != nil {
		return err
	}
	if err := inv.authorize(t.Accounts[2], src); err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return ErrMintMismatch.WithDetails(map[string]any{
			"source_mint":      src.Mint.String(),
			"destination_mint": dst.Mint.String(),
		})
	}
	if src.Amount < amount {
		return ErrInsufficientFunds.WithDetails(map[string]any{
			"account":   srcInfo.Key.String(),
			"balance":   src.Amount,
			"requested": amount,
		})
	}

	if srcInfo == dstInfo {
		inv.ledger.GetLogger().Debug("self transfer", "account", srcInfo.Key, "amount", amount)
		return nil
	}

	credited, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrOverflow.WithDetails(map[string]any{"account": dstInfo.Key.String()})
	}
	src.Amount -= amount
	dst.Amount = credited

	if err := storeTokenAccount(srcInfo, src); err != nil {
		return err
	}
	if err := storeTokenAccount(dstInfo, dst); err != nil {
		return err
	}

	inv.ledger.GetLogger().Debug("transfer",
		"source", srcInfo.Key,
		"destination", dstInfo.Key,
		"amount", amount,
	)
	return nil
}

func (inv *invocation) setAuthority(s *token.SetAuthority) error {
	if s.AuthorityType == nil || len(s.Accounts) < 2 {
		return cerrors.ErrInvalidInstruction
	}
	if *s.AuthorityType != token.AuthorityAccountOwner {
		return ErrUnsupported.WithDetails(map[string]any{"authority_type": uint8(*s.AuthorityType)})
	}
	if s.NewAuthority == nil {
		return cerrors.ErrInvalidInstruction.WithCause(fmt.Errorf("account owner cannot be cleared"))
	}

	info, acc, err := inv.load(s.Accounts[0])
	if err != nil {
		return err
	}
	if err := inv.authorize(s.Accounts[1], acc); err != nil {
		return err
	}

	previous := acc.Owner
	acc.Owner = *s.NewAuthority
	acc.Delegate = nil
	acc.DelegatedAmount = 0
	if err := storeTokenAccount(info, acc); err != nil {
		return err
	}

	inv.ledger.GetLogger().Debug("set authority",
		"account", info.Key,
		"previous_owner", previous,
		"new_owner", acc.Owner,
	)
	return nil
}

func (inv *invocation) closeAccount(c *token.CloseAccount) error {
	if len(c.Accounts) < 3 {
		return cerrors.ErrInvalidInstruction
	}

	info, acc, err := inv.load(c.Accounts[0])
	if err != nil {
		return err
	}
	dest, err := inv.lookup(c.Accounts[1])
	if err != nil {
		return err
	}
	if info == dest {
		return cerrors.ErrInvalidAccountData.WithCause(fmt.Errorf("cannot close an account into itself"))
	}
	if acc.IsNative == nil && acc.Amount != 0 {
		return ErrNonNativeHasBalance.WithDetails(map[string]any{
			"account": info.Key.String(),
			"balance": acc.Amount,
		})
	}
	if err := inv.authorize(c.Accounts[2], acc); err != nil {
		return err
	}

	lamports, carry := bits.Add64(dest.Lamports, info.Lamports, 0)
	if carry != 0 {
		return ErrOverflow.WithDetails(map[string]any{"account": dest.Key.String()})
	}
	released := info.Lamports
	dest.Lamports = lamports
	info.Lamports = 0
	info.ZeroData()

	inv.ledger.GetLogger().Debug("close account",
		"account", info.Key,
		"destination", dest.Key,
		"lamports", released,
	)
	return nil
}
