package scenario

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/lugondev/go-amm/internal/common"
	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/instruction"
	"github.com/lugondev/go-amm/internal/metrics"
	"github.com/lugondev/go-amm/internal/processor"
	"github.com/lugondev/go-amm/internal/runtime"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

// StepResult is the outcome of one step.
type StepResult struct {
	Label      string
	Op         string
	Invocation uuid.UUID
	// Err is the error the program returned, if any.
	Err error
	// Failure explains why the step did not meet its expectations.
	Failure string
}

// Passed reports whether the step met its expectations.
func (r StepResult) Passed() bool {
	return r.Failure == ""
}

// Report is the outcome of a whole scenario.
type Report struct {
	Name     string
	Steps    []StepResult
	Tokens   map[string]uint64
	Lamports map[string]uint64
}

// Failed returns the number of steps that missed their expectations.
func (r *Report) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Passed() {
			n++
		}
	}
	return n
}

// AccountNames returns the names in Lamports in sorted order.
func (r *Report) AccountNames() []string {
	names := make([]string, 0, len(r.Lamports))
	for name := range r.Lamports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Runner executes a Document on a fresh host.
type Runner struct {
	common.LoggerMixin

	doc   *Document
	host  *runtime.Host
	proc  *processor.Processor
	keys  map[string]types.Pubkey
	token map[string]bool
}

// Option configures a Runner.
type Option func(*options)

type options struct {
	seed      []byte
	rent      *types.Rent
	programID *types.Pubkey
	logger    *slog.Logger
	metrics   *metrics.Collection
}

// WithSeed sets the pool authority seed label.
func WithSeed(seed string) Option {
	return func(o *options) {
		o.seed = []byte(seed)
	}
}

// WithRent sets the rent sysvar parameters.
func WithRent(rent types.Rent) Option {
	return func(o *options) {
		o.rent = &rent
	}
}

// WithProgramID sets the program id used when the document has none.
func WithProgramID(id types.Pubkey) Option {
	return func(o *options) {
		o.programID = &id
	}
}

// WithLogger sets the logger shared by the runner, host and processor.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the collection both the processor and the host report to.
func WithMetrics(m *metrics.Collection) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// NewRunner prepares a host holding every account doc declares.
func NewRunner(doc *Document, opts ...Option) (*Runner, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	programID := solana.NewWallet().PublicKey()
	switch {
	case doc.ProgramID != "":
		key, err := solana.PublicKeyFromBase58(doc.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("invalid program_id %q: %w", doc.ProgramID, err)
		}
		programID = key
	case o.programID != nil:
		programID = *o.programID
	}

	proc := processor.New(programID, processor.WithSeed(o.seed), processor.WithMetrics(o.metrics))
	hostOpts := []runtime.Option{runtime.WithMetrics(o.metrics)}
	if o.rent != nil {
		hostOpts = append(hostOpts, runtime.WithRent(*o.rent))
	}
	host, err := runtime.NewHost(proc, hostOpts...)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		LoggerMixin: common.NewLoggerMixin(),
		doc:         doc,
		host:        host,
		proc:        proc,
		keys:        make(map[string]types.Pubkey),
		token:       make(map[string]bool),
	}
	if o.logger != nil {
		r.SetLogger(o.logger)
		proc.WithLogger(o.logger)
		host.WithLogger(o.logger)
	}

	auth, err := proc.Authority()
	if err != nil {
		return nil, err
	}
	r.keys[NameRent] = solana.SysVarRentPubkey
	r.keys[NameTokenProgram] = solana.TokenProgramID
	r.keys[NameAuthority] = auth.Address

	if err := r.createAccounts(); err != nil {
		return nil, err
	}
	return r, nil
}

// Host returns the host the runner drives.
func (r *Runner) Host() *runtime.Host {
	return r.host
}

// Key returns the key bound to name, creating one for names never seen.
func (r *Runner) Key(name string) types.Pubkey {
	if key, ok := r.keys[name]; ok {
		return key
	}
	key := solana.NewWallet().PublicKey()
	r.keys[name] = key
	return key
}

func (r *Runner) createAccounts() error {
	names := make([]string, 0, len(r.doc.Accounts))
	for name := range r.doc.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := r.doc.Accounts[name]
		key := r.Key(name)
		switch spec.Kind {
		case KindSystem:
			r.host.CreateSystemAccount(key, spec.Lamports)
		case KindToken:
			if err := r.host.CreateTokenAccount(key, r.Key(spec.Mint), r.Key(spec.Owner), spec.Amount); err != nil {
				return fmt.Errorf("account %q: %w", name, err)
			}
			r.token[name] = true
		case KindState:
			space := spec.Space
			if space == 0 {
				space = state.Len
			}
			r.host.CreateProgramAccount(key, space, spec.Lamports)
		}
	}
	return nil
}

// Run executes every step in order. The returned error covers problems with
// the document itself; step outcomes are in the report.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{Name: r.doc.Name}
	logger := r.GetLogger()

	for i, step := range r.doc.Steps {
		ix, err := r.build(step)
		if err != nil {
			return report, fmt.Errorf("step %s: %w", step.Label(i), err)
		}

		inv, err := r.host.Execute(ctx, ix)
		result := StepResult{Label: step.Label(i), Op: step.Op, Invocation: inv.ID, Err: err}
		result.Failure = r.check(step, err)
		report.Steps = append(report.Steps, result)

		if result.Passed() {
			logger.Info("step passed", "step", result.Label, "invocation", inv.ID.String())
		} else {
			logger.Warn("step failed", "step", result.Label, "reason", result.Failure)
		}
	}

	report.Tokens = make(map[string]uint64)
	report.Lamports = make(map[string]uint64)
	for name := range r.doc.Accounts {
		key := r.keys[name]
		report.Lamports[name] = r.host.Lamports(key)
		if r.token[name] && r.host.Exists(key) {
			if b, err := r.host.TokenBalance(key); err == nil {
				report.Tokens[name] = b
			}
		}
	}
	return report, nil
}

func (r *Runner) check(step Step, err error) string {
	want, werr := expectedCode(step.ExpectError)
	if werr != nil {
		return werr.Error()
	}
	switch {
	case want == "" && err != nil:
		return fmt.Sprintf("unexpected error: %v", err)
	case want != "" && err == nil:
		return fmt.Sprintf("expected %s, got success", want)
	case want != "":
		if got := cerrors.Code(err); got != want {
			return fmt.Sprintf("expected %s, got %s (%v)", want, cerrors.HostCode(err), err)
		}
	}

	for _, name := range sortedKeys(step.ExpectBalances) {
		want := step.ExpectBalances[name]
		got, err := r.host.TokenBalance(r.keys[name])
		if err != nil {
			return fmt.Sprintf("balance of %s: %v", name, err)
		}
		if got != want {
			return fmt.Sprintf("balance of %s: want %d, got %d", name, want, got)
		}
	}
	for _, name := range sortedKeys(step.ExpectLamports) {
		want := step.ExpectLamports[name]
		if got := r.host.Lamports(r.keys[name]); got != want {
			return fmt.Sprintf("lamports of %s: want %d, got %d", name, want, got)
		}
	}
	return ""
}

func (r *Runner) build(step Step) (*types.Instruction, error) {
	key := func(role string) (types.Pubkey, error) {
		name := step.accountFor(role)
		k, ok := r.keys[name]
		if !ok {
			return types.Pubkey{}, fmt.Errorf("role %s: unknown account %q", role, name)
		}
		return k, nil
	}
	keys := make(map[string]types.Pubkey)
	for _, role := range roles[step.Op] {
		k, err := key(role)
		if err != nil {
			return nil, err
		}
		keys[role] = k
	}

	programID := r.proc.ProgramID()
	var ix *types.Instruction
	switch step.Op {
	case OpInit:
		ix = instruction.NewInitInstruction(programID, instruction.InitAccounts{
			Initializer:  keys["initializer"],
			VaultA:       keys["vault_a"],
			VaultB:       keys["vault_b"],
			VaultReceipt: keys["vault_receipt"],
			PoolState:    keys["pool_state"],
		})
	case OpProvideLiquidity, OpClaimLiquidity:
		accounts := instruction.LiquidityAccounts{
			Provider:        keys["provider"],
			ProviderA:       keys["provider_a"],
			ProviderB:       keys["provider_b"],
			ProviderReceipt: keys["provider_receipt"],
			PoolVaultA:      keys["vault_a"],
			PoolVaultB:      keys["vault_b"],
			PoolReceipt:     keys["vault_receipt"],
			PoolState:       keys["pool_state"],
			PoolAuthority:   keys["pool_authority"],
		}
		if step.Op == OpProvideLiquidity {
			ix = instruction.NewProvideLiquidityInstruction(programID, accounts, step.AmountA, step.AmountB)
		} else {
			ix = instruction.NewClaimLiquidityInstruction(programID, accounts, step.Amount)
		}
	case OpTradeAForB, OpTradeBForA:
		accounts := instruction.TradeAccounts{
			Trader:        keys["trader"],
			TraderA:       keys["trader_a"],
			TraderB:       keys["trader_b"],
			PoolVaultA:    keys["vault_a"],
			PoolVaultB:    keys["vault_b"],
			PoolState:     keys["pool_state"],
			PoolAuthority: keys["pool_authority"],
		}
		if step.Op == OpTradeAForB {
			ix = instruction.NewTradeAForBInstruction(programID, accounts, step.Amount)
		} else {
			ix = instruction.NewTradeBForAInstruction(programID, accounts, step.Amount)
		}
	case OpClose:
		ix = instruction.NewCloseInstruction(programID, instruction.CloseAccounts{
			Initializer:   keys["initializer"],
			PoolVaultA:    keys["vault_a"],
			PoolVaultB:    keys["vault_b"],
			PoolReceipt:   keys["vault_receipt"],
			PoolState:     keys["pool_state"],
			PoolAuthority: keys["pool_authority"],
		})
	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}

	if step.Signers != nil {
		signers := make([]types.Pubkey, 0, len(step.Signers))
		for _, name := range step.Signers {
			k, ok := r.keys[name]
			if !ok {
				return nil, fmt.Errorf("signer: unknown account %q", name)
			}
			signers = append(signers, k)
		}
		for i := range ix.Accounts {
			ix.Accounts[i].IsSigner = slices.Contains(signers, ix.Accounts[i].Pubkey)
		}
	}
	return ix, nil
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
