// Package processor implements the liquidity pool program: it decodes an
// instruction payload and runs the matching pool operation against the
// account handles supplied by the host.
//
// Six operations are supported:
//
//   - Init: records the pool's initializer and vaults and hands vault
//     ownership to the pool authority.
//   - ProvideLiquidity: deposits both assets at the pool ratio and issues
//     receipt tokens.
//   - ClaimLiquidity: burns receipt tokens back into the pool and pays out
//     both assets.
//   - TradeAForB and TradeBForA: swap one asset for the other at the
//     truncated pool ratio.
//   - Close: closes the vaults and returns the authority's and the pool
//     state's lamports to the initializer, ending the pool.
//
// The processor holds no state between calls. Every balance movement goes
// through the ledger.TransferService passed to Process; atomicity across the
// transfers of one operation is the host's responsibility.
package processor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lugondev/go-amm/internal/authority"
	"github.com/lugondev/go-amm/internal/common"
	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/instruction"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/metrics"
	"github.com/lugondev/go-amm/pkg/types"
)

// Processor runs pool instructions for one program id.
type Processor struct {
	common.LoggerMixin

	programID types.Pubkey
	seed      []byte
	metrics   *metrics.Collection
}

// Option configures a Processor.
type Option func(*Processor)

// WithSeed overrides the pool authority seed label.
func WithSeed(seed []byte) Option {
	return func(p *Processor) {
		if len(seed) > 0 {
			p.seed = seed
		}
	}
}

// WithMetrics sets the metrics collection instructions are reported to.
func WithMetrics(m *metrics.Collection) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// New creates a Processor for programID.
func New(programID types.Pubkey, opts ...Option) *Processor {
	p := &Processor{
		LoggerMixin: common.NewLoggerMixin(),
		programID:   programID,
		seed:        []byte(authority.DefaultSeed),
		metrics:     metrics.NewCollection(metrics.NewNoopMetrics()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithLogger sets a custom logger for the processor.
func (p *Processor) WithLogger(logger *slog.Logger) *Processor {
	p.SetLogger(logger)
	return p
}

// ProgramID returns the program id the processor runs as.
func (p *Processor) ProgramID() types.Pubkey {
	return p.programID
}

// Seed returns the pool authority seed label.
func (p *Processor) Seed() []byte {
	return p.seed
}

// Authority derives the pool authority for this program.
func (p *Processor) Authority() (authority.Authority, error) {
	return authority.New(p.programID, p.seed)
}

// Process decodes data and runs the instruction against accounts.
func (p *Processor) Process(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, data []byte) error {
	ix, err := instruction.Decode(data)
	if err != nil {
		p.record(ctx, "", 0, err)
		return err
	}

	start := time.Now()
	err = p.Execute(ctx, svc, accounts, ix)
	p.record(ctx, ix.Opcode().String(), time.Since(start), err)
	return err
}

// Execute runs an already decoded instruction.
func (p *Processor) Execute(ctx context.Context, svc ledger.TransferService, accounts []*types.AccountInfo, ix instruction.Instruction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if svc == nil {
		return cerrors.ErrInvalidArgument.WithDetails(map[string]any{"reason": "nil transfer service"})
	}

	logger := p.GetLogger()
	logger.Info("Instruction: " + ix.Opcode().String())

	var err error
	switch ix := ix.(type) {
	case instruction.Init:
		err = p.processInit(ctx, svc, accounts)
	case instruction.ProvideLiquidity:
		err = p.processProvideLiquidity(ctx, svc, accounts, ix.AmountA, ix.AmountB)
	case instruction.ClaimLiquidity:
		err = p.processClaimLiquidity(ctx, svc, accounts, ix.Amount)
	case instruction.TradeAForB:
		err = p.processTradeAForB(ctx, svc, accounts, ix.Amount)
	case instruction.TradeBForA:
		err = p.processTradeBForA(ctx, svc, accounts, ix.Amount)
	case instruction.Close:
		err = p.processClose(ctx, svc, accounts)
	default:
		err = cerrors.ErrInvalidInstruction
	}

	if err != nil {
		logger.Warn("instruction failed", "instruction", ix.String(), "error", err)
		return err
	}
	logger.Debug("instruction succeeded", "instruction", ix.String())
	return nil
}

func (p *Processor) record(ctx context.Context, name string, elapsed time.Duration, err error) {
	errs := []error{p.metrics.IncrementCounter(ctx, metrics.MetricInstructionsProcessed, 1)}
	if name != "" {
		errs = append(errs,
			p.metrics.IncrementCounter(ctx, metrics.InstructionCounter(name), 1),
			p.metrics.RecordHistogram(ctx, metrics.MetricInstructionProcessTimeNanoseconds, float64(elapsed.Nanoseconds())),
		)
	}
	outcome := metrics.MetricInstructionsSucceeded
	if err != nil {
		outcome = metrics.MetricInstructionsFailed
	}
	errs = append(errs, p.metrics.IncrementCounter(ctx, outcome, 1))

	if merr := errors.Join(errs...); merr != nil {
		p.GetLogger().Debug("metrics not recorded", "instruction", name, "error", merr)
	}
}
