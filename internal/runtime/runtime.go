// Package runtime hosts a single program over an in-memory account store.
//
// Each Execute call is one atomic invocation: the referenced accounts are
// copied into working handles, the program runs against the copies, and the
// copies are committed only when the program returns without error. A failed
// invocation leaves the store exactly as it was.
package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/lugondev/go-amm/internal/common"
	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/metrics"
	"github.com/lugondev/go-amm/pkg/buffer"
	"github.com/lugondev/go-amm/pkg/types"
)

// ErrReadonlyModified is returned when a program changed an account the
// instruction did not mark writable.
var ErrReadonlyModified = cerrors.NewError("READONLY_DATA_MODIFIED", "instruction modified a read-only account")

var sysvarOwner = solana.MustPublicKeyFromBase58("Sysvar1111111111111111111111111111111111111")

// Program is the entrypoint the host dispatches to.
type Program interface {
	ProgramID() types.Pubkey
	Process(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, data []byte) error
}

// Invocation describes one committed or rolled back Execute call.
type Invocation struct {
	ID        uuid.UUID
	ProgramID types.Pubkey
	Accounts  int
	Elapsed   time.Duration
	// Purged lists accounts removed from the store because they were left
	// with zero lamports.
	Purged []types.Pubkey
}

// Host owns the account store and runs instructions against it.
type Host struct {
	common.LoggerMixin

	mu       sync.Mutex
	program  Program
	accounts map[types.Pubkey]*types.AccountInfo
	rent     types.Rent
	buffers  *buffer.Pool
	metrics  *metrics.Collection
}

// Option configures a Host.
type Option func(*Host)

// WithRent sets the rent parameters published in the rent sysvar.
func WithRent(rent types.Rent) Option {
	return func(h *Host) {
		h.rent = rent
	}
}

// WithMetrics sets the collection invocation outcomes are reported to.
func WithMetrics(m *metrics.Collection) Option {
	return func(h *Host) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHost creates a host for program with the rent sysvar and the token
// program already present in the store.
func NewHost(program Program, opts ...Option) (*Host, error) {
	if program == nil {
		return nil, cerrors.ErrInvalidArgument.WithDetails(map[string]any{"reason": "nil program"})
	}
	h := &Host{
		LoggerMixin: common.NewLoggerMixin(),
		program:     program,
		accounts:    make(map[types.Pubkey]*types.AccountInfo),
		rent:        types.DefaultRent(),
		buffers:     buffer.NewPool(),
		metrics:     metrics.NewCollection(metrics.NewNoopMetrics()),
	}
	for _, opt := range opts {
		opt(h)
	}

	rentData, err := types.EncodeRent(h.rent)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rent sysvar: %w", err)
	}
	h.accounts[solana.SysVarRentPubkey] = &types.AccountInfo{
		Key:      solana.SysVarRentPubkey,
		Lamports: h.rent.MinimumBalance(types.RentSize),
		Data:     rentData,
		Owner:    sysvarOwner,
	}
	h.accounts[solana.TokenProgramID] = &types.AccountInfo{
		Key:        solana.TokenProgramID,
		Lamports:   1,
		Owner:      solana.BPFLoaderProgramID,
		Executable: true,
	}
	h.accounts[program.ProgramID()] = &types.AccountInfo{
		Key:        program.ProgramID(),
		Lamports:   1,
		Owner:      solana.BPFLoaderProgramID,
		Executable: true,
	}
	return h, nil
}

// WithLogger sets a custom logger for the host.
func (h *Host) WithLogger(logger *slog.Logger) *Host {
	h.SetLogger(logger)
	return h
}

// Rent returns the rent parameters of the host.
func (h *Host) Rent() types.Rent {
	return h.rent
}

// ProgramID returns the id of the hosted program.
func (h *Host) ProgramID() types.Pubkey {
	return h.program.ProgramID()
}

// Execute runs ix atomically.
func (h *Host) Execute(ctx context.Context, ix *types.Instruction) (Invocation, error) {
	inv := Invocation{ID: uuid.New()}
	if ix == nil {
		return inv, cerrors.ErrInvalidArgument.WithDetails(map[string]any{"reason": "nil instruction"})
	}
	inv.ProgramID = ix.ProgramID
	inv.Accounts = len(ix.Accounts)
	if err := ctx.Err(); err != nil {
		return inv, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	logger := h.GetLogger().With("invocation", inv.ID.String())
	if !ix.ProgramID.Equals(h.program.ProgramID()) {
		return inv, cerrors.ErrIncorrectProgramID.WithDetails(map[string]any{
			"program_id": ix.ProgramID.String(),
		})
	}

	handles, working := h.resolve(ix.Accounts)
	defer h.release(working)

	start := time.Now()
	svc := ledger.NewTokenLedger(h.program.ProgramID()).WithLogger(logger)
	err := h.program.Process(ctx, svc, handles, ix.Data)
	if err == nil {
		err = h.checkReadonly(working)
	}
	inv.Elapsed = time.Since(start)

	if err != nil {
		h.report(ctx, logger, h.metrics.IncrementCounter(ctx, metrics.MetricInvocationsRolledBack, 1))
		logger.Warn("invocation rolled back",
			"code", cerrors.HostCode(err),
			"error", err,
			"elapsed", inv.Elapsed,
		)
		return inv, err
	}

	inv.Purged = h.commit(working)
	h.report(ctx, logger,
		h.metrics.IncrementCounter(ctx, metrics.MetricInvocationsCommitted, 1),
		h.metrics.UpdateGauge(ctx, metrics.MetricAccountsStored, float64(len(h.accounts))),
	)
	logger.Debug("invocation committed",
		"accounts", inv.Accounts,
		"purged", len(inv.Purged),
		"elapsed", inv.Elapsed,
	)
	return inv, nil
}

func (h *Host) report(ctx context.Context, logger *slog.Logger, errs ...error) {
	if err := errors.Join(errs...); err != nil {
		logger.DebugContext(ctx, "metrics not recorded", "error", err)
	}
}

// handle is a working copy of one store account.
type handle struct {
	info     *types.AccountInfo
	writable bool
	// origLamports and origData are what the store held before the call.
	origLamports uint64
	origData     []byte
}

// resolve builds working handles for metas. A key listed more than once maps
// to the same handle, with signer and writable flags merged. Keys missing
// from the store resolve to empty system accounts.
func (h *Host) resolve(metas []types.AccountMeta) ([]*types.AccountInfo, map[types.Pubkey]*handle) {
	working := make(map[types.Pubkey]*handle, len(metas))
	for _, meta := range metas {
		w, ok := working[meta.Pubkey]
		if !ok {
			w = &handle{info: &types.AccountInfo{Key: meta.Pubkey, Owner: solana.SystemProgramID}}
			if stored, exists := h.accounts[meta.Pubkey]; exists {
				w.info.Lamports = stored.Lamports
				w.info.Data = h.buffers.Clone(stored.Data)
				w.info.Owner = stored.Owner
				w.info.Executable = stored.Executable
				w.origData = stored.Data
			}
			w.origLamports = w.info.Lamports
			working[meta.Pubkey] = w
		}
		w.info.IsSigner = w.info.IsSigner || meta.IsSigner
		w.info.IsWritable = w.info.IsWritable || meta.IsWritable
		w.writable = w.info.IsWritable
	}

	handles := make([]*types.AccountInfo, len(metas))
	for i, meta := range metas {
		handles[i] = working[meta.Pubkey].info
	}
	return handles, working
}

func (h *Host) checkReadonly(working map[types.Pubkey]*handle) error {
	for key, w := range working {
		if w.writable {
			continue
		}
		if w.info.Lamports != w.origLamports || !bytes.Equal(w.info.Data, w.origData) {
			return ErrReadonlyModified.WithDetails(map[string]any{"account": key.String()})
		}
	}
	return nil
}

// commit writes writable handles back to the store and purges accounts left
// without lamports.
func (h *Host) commit(working map[types.Pubkey]*handle) []types.Pubkey {
	var purged []types.Pubkey
	for key, w := range working {
		if !w.writable {
			continue
		}
		if w.info.Lamports == 0 {
			if _, exists := h.accounts[key]; exists {
				delete(h.accounts, key)
				purged = append(purged, key)
			}
			continue
		}
		stored, exists := h.accounts[key]
		if !exists {
			stored = &types.AccountInfo{Key: key, Owner: w.info.Owner}
			h.accounts[key] = stored
		}
		stored.Lamports = w.info.Lamports
		stored.Owner = w.info.Owner
		if len(stored.Data) == len(w.info.Data) {
			copy(stored.Data, w.info.Data)
		} else {
			stored.Data = append([]byte(nil), w.info.Data...)
		}
	}
	sort.Slice(purged, func(i, j int) bool {
		return purged[i].String() < purged[j].String()
	})
	return purged
}

func (h *Host) release(working map[types.Pubkey]*handle) {
	for _, w := range working {
		h.buffers.Put(w.info.Data)
		w.info.Data = nil
	}
}
