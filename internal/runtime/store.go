package runtime

import (
	"github.com/gagliardetto/solana-go"

	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/pkg/types"
)

// SetAccount stores a copy of info, replacing any account with the same key.
func (h *Host) SetAccount(info *types.AccountInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := info.Clone()
	c.IsSigner = false
	c.IsWritable = false
	h.accounts[c.Key] = c
}

// Account returns a copy of the stored account.
func (h *Host) Account(key types.Pubkey) (*types.AccountInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, ok := h.accounts[key]
	if !ok {
		return nil, false
	}
	return info.Clone(), true
}

// Lamports returns the lamports of key, or zero when it does not exist.
func (h *Host) Lamports(key types.Pubkey) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if info, ok := h.accounts[key]; ok {
		return info.Lamports
	}
	return 0
}

// Exists reports whether key is in the store.
func (h *Host) Exists(key types.Pubkey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, ok := h.accounts[key]
	return ok
}

// CreateSystemAccount stores a data-less account owned by the system program.
func (h *Host) CreateSystemAccount(key types.Pubkey, lamports uint64) {
	h.SetAccount(&types.AccountInfo{
		Key:      key,
		Lamports: lamports,
		Owner:    solana.SystemProgramID,
	})
}

// CreateTokenAccount stores an initialized token account funded at the rent
// exemption minimum.
func (h *Host) CreateTokenAccount(key, mint, owner types.Pubkey, amount uint64) error {
	data, err := ledger.EncodeTokenAccount(ledger.NewTokenAccount(mint, owner, amount))
	if err != nil {
		return err
	}
	h.SetAccount(&types.AccountInfo{
		Key:      key,
		Lamports: h.rent.MinimumBalance(len(data)),
		Data:     data,
		Owner:    solana.TokenProgramID,
	})
	return nil
}

// CreateProgramAccount stores a zeroed account of space bytes owned by the
// hosted program. A zero lamports value funds it at the rent exemption
// minimum.
func (h *Host) CreateProgramAccount(key types.Pubkey, space int, lamports uint64) {
	if lamports == 0 {
		lamports = h.rent.MinimumBalance(space)
	}
	h.SetAccount(&types.AccountInfo{
		Key:      key,
		Lamports: lamports,
		Data:     make([]byte, space),
		Owner:    h.program.ProgramID(),
	})
}

// TokenBalance returns the amount held by the token account key.
func (h *Host) TokenBalance(key types.Pubkey) (uint64, error) {
	info, ok := h.Account(key)
	if !ok {
		return 0, cerrors.ErrInvalidArgument.WithDetails(map[string]any{"account": key.String(), "reason": "not found"})
	}
	return ledger.Balance(info)
}

// TokenOwner returns the owner recorded in the token account key.
func (h *Host) TokenOwner(key types.Pubkey) (types.Pubkey, error) {
	info, ok := h.Account(key)
	if !ok {
		return types.Pubkey{}, cerrors.ErrInvalidArgument.WithDetails(map[string]any{"account": key.String(), "reason": "not found"})
	}
	return ledger.Owner(info)
}
