// Package scenario runs YAML-described pool sessions against the simulated
// host.
//
// A document declares named accounts and an ordered list of steps:
//
//	accounts:
//	  initializer:   {kind: system, lamports: 1000000000}
//	  vault_a:       {kind: token, mint: mint_a, owner: initializer, amount: 100}
//	  pool_state:    {kind: state}
//	steps:
//	  - op: init
//	  - op: trade_a_for_b
//	    amount: 5
//	    accounts: {trader: alice, trader_a: alice_a, trader_b: alice_b}
//	    expect_balances: {alice_b: 50}
//
// Every instruction role defaults to the account with the same name. The
// names rent, token_program and authority are predefined; mint names need no
// declaration.
package scenario

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	cerrors "github.com/lugondev/go-amm/internal/errors"
)

// Account kinds.
const (
	KindSystem = "system"
	KindToken  = "token"
	KindState  = "state"
)

// Operation names.
const (
	OpInit             = "init"
	OpProvideLiquidity = "provide_liquidity"
	OpClaimLiquidity   = "claim_liquidity"
	OpTradeAForB       = "trade_a_for_b"
	OpTradeBForA       = "trade_b_for_a"
	OpClose            = "close"
)

// Predefined account names.
const (
	NameRent         = "rent"
	NameTokenProgram = "token_program"
	NameAuthority    = "authority"
)

// Document is a parsed scenario file.
type Document struct {
	Name      string                 `yaml:"name"`
	ProgramID string                 `yaml:"program_id"`
	Accounts  map[string]AccountSpec `yaml:"accounts"`
	Steps     []Step                 `yaml:"steps"`
}

// AccountSpec declares one account in the store.
type AccountSpec struct {
	Kind     string `yaml:"kind"`
	Lamports uint64 `yaml:"lamports"`
	// Token accounts.
	Mint   string `yaml:"mint"`
	Owner  string `yaml:"owner"`
	Amount uint64 `yaml:"amount"`
	// State accounts; zero space means the pool state size.
	Space int `yaml:"space"`
}

// Step is one instruction and its expected outcome.
type Step struct {
	Name    string `yaml:"name"`
	Op      string `yaml:"op"`
	Amount  uint64 `yaml:"amount"`
	AmountA uint64 `yaml:"amount_a"`
	AmountB uint64 `yaml:"amount_b"`
	// Accounts maps instruction roles to account names.
	Accounts map[string]string `yaml:"accounts"`
	// Signers replaces the signer flags the builder sets when present.
	Signers []string `yaml:"signers"`
	// ExpectError is the error the step must fail with, either as a code
	// (INVALID_RATIO) or as a custom error number (0x3).
	ExpectError    string            `yaml:"expect_error"`
	ExpectBalances map[string]uint64 `yaml:"expect_balances"`
	ExpectLamports map[string]uint64 `yaml:"expect_lamports"`
}

// Label names the step in reports.
func (s Step) Label(index int) string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("#%d %s", index+1, s.Op)
}

// Load parses a document. Unknown fields are rejected.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile parses the document at path.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scenario: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks account kinds and step operations.
func (d *Document) Validate() error {
	for name, spec := range d.Accounts {
		switch {
		case name == NameRent || name == NameTokenProgram:
			return fmt.Errorf("account %q: reserved name", name)
		case name == NameAuthority && spec.Kind != KindSystem:
			return fmt.Errorf("account %q: the pool authority can only be funded as a system account", name)
		}
		switch spec.Kind {
		case KindSystem, KindState:
		case KindToken:
			if spec.Mint == "" || spec.Owner == "" {
				return fmt.Errorf("account %q: token accounts need mint and owner", name)
			}
		default:
			return fmt.Errorf("account %q: unknown kind %q", name, spec.Kind)
		}
	}
	if len(d.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}
	for i, step := range d.Steps {
		if _, ok := roles[step.Op]; !ok {
			return fmt.Errorf("step %s: unknown op %q", step.Label(i), step.Op)
		}
		for role := range step.Accounts {
			if !hasRole(step.Op, role) {
				return fmt.Errorf("step %s: op %s has no role %q", step.Label(i), step.Op, role)
			}
		}
		if _, err := expectedCode(step.ExpectError); err != nil {
			return fmt.Errorf("step %s: expect_error: %w", step.Label(i), err)
		}
	}
	return nil
}

// roles lists the account roles each op takes.
var roles = map[string][]string{
	OpInit:             {"initializer", "vault_a", "vault_b", "vault_receipt", "pool_state"},
	OpProvideLiquidity: {"provider", "provider_a", "provider_b", "provider_receipt", "vault_a", "vault_b", "vault_receipt", "pool_state", "pool_authority"},
	OpClaimLiquidity:   {"provider", "provider_a", "provider_b", "provider_receipt", "vault_a", "vault_b", "vault_receipt", "pool_state", "pool_authority"},
	OpTradeAForB:       {"trader", "trader_a", "trader_b", "vault_a", "vault_b", "pool_state", "pool_authority"},
	OpTradeBForA:       {"trader", "trader_a", "trader_b", "vault_a", "vault_b", "pool_state", "pool_authority"},
	OpClose:            {"initializer", "vault_a", "vault_b", "vault_receipt", "pool_state", "pool_authority"},
}

func hasRole(op, role string) bool {
	for _, r := range roles[op] {
		if r == role {
			return true
		}
	}
	return false
}

// accountFor returns the account name bound to role in step.
func (s Step) accountFor(role string) string {
	if name, ok := s.Accounts[role]; ok {
		return name
	}
	if role == "pool_authority" {
		return NameAuthority
	}
	return role
}

// expectedCode resolves an expect_error value to an error code. Values are
// code names in any case, or custom error numbers such as 0x3.
func expectedCode(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if n, err := strconv.ParseUint(value, 0, 32); err == nil {
		e, ok := cerrors.FromNumber(uint32(n))
		if !ok {
			return "", fmt.Errorf("unknown custom error number %s", value)
		}
		return e.Code, nil
	}
	code := strings.ToUpper(value)
	if _, ok := cerrors.FromCode(code); !ok {
		return "", fmt.Errorf("unknown error code %q", value)
	}
	return code, nil
}
