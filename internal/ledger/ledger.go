// Package ledger is the pool's view of the token program: the service that
// moves balances, changes vault ownership and closes vaults.
//
// The pool never touches token balances itself. It builds token program
// instructions with the constructors below and hands them, together with
// the account handles they reference, to a TransferService. Calls the pool
// authorizes as its derived authority go through InvokeSigned with the
// authority's signer seeds.
//
// TokenLedger is an in-memory TransferService with token program semantics,
// used by the simulated host and by tests.
package ledger

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/lugondev/go-amm/pkg/types"
)

// TransferService executes token program instructions against account handles.
type TransferService interface {
	// Invoke runs ix, authorized only by the signer flags on accounts.
	Invoke(ctx context.Context, ix solana.Instruction, accounts []*types.AccountInfo) error

	// InvokeSigned runs ix with additional signatures proven by signerSeeds.
	// Each seed set signs for the program address it derives under the
	// calling program.
	InvokeSigned(ctx context.Context, ix solana.Instruction, accounts []*types.AccountInfo, signerSeeds ...[][]byte) error
}

// Transfer builds a token transfer of amount from source to destination,
// authorized by owner.
func Transfer(source, destination, owner types.Pubkey, amount uint64) solana.Instruction {
	return token.NewTransferInstruction(amount, source, destination, owner, nil).Build()
}

// SetOwner builds a SetAuthority(AccountOwner) instruction moving ownership
// of subject from currentOwner to newOwner.
func SetOwner(subject, currentOwner, newOwner types.Pubkey) solana.Instruction {
	return token.NewSetAuthorityInstruction(token.AuthorityAccountOwner, newOwner, subject, currentOwner, nil).Build()
}

// CloseAccount builds an instruction closing account and sending its lamports
// to destination, authorized by owner.
func CloseAccount(account, destination, owner types.Pubkey) solana.Instruction {
	return token.NewCloseAccountInstruction(account, destination, owner, nil).Build()
}
