package cmd

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/spf13/cobra"

	"github.com/lugondev/go-amm/internal/account"
	"github.com/lugondev/go-amm/internal/ledger"
	"github.com/lugondev/go-amm/internal/state"
	"github.com/lugondev/go-amm/pkg/types"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Account data commands",
	Long:  `Decode pool state records and token accounts from raw account data.`,
}

var accountDecodeCmd = &cobra.Command{
	Use:   "decode <data>",
	Short: "Decode account data",
	Long: `Decode account data given as hex or, with --base64, as base64.
The --owner flag selects the layout: the pool program id (default) for a pool
state record, or the token program id for a token account.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := decodeInput(args[0], accountBase64)
		if err != nil {
			return err
		}

		// The program id is only needed when decoding pool state.
		id, idErr := programID()
		owner := id
		if accountOwner != "" {
			if owner, err = solana.PublicKeyFromBase58(accountOwner); err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}
		} else if idErr != nil {
			return idErr
		}

		decoded := accountDecoder(id).DecodeAccount(&types.AccountInfo{Data: data, Owner: owner})
		if decoded == nil {
			return fmt.Errorf("no layout for owner %s (data length %d)", owner, len(data))
		}
		return printAccount(cmd.OutOrStdout(), decoded.Data)
	},
}

var (
	accountOwner  string
	accountBase64 bool
)

// accountDecoder decodes token accounts owned by the token program and, when
// programID is set, pool state records owned by programID.
func accountDecoder(programID types.Pubkey) *account.CompositeAccountDecoder[any] {
	dec := account.NewCompositeAccountDecoder[any](
		account.NewProgramAccountDecoder(solana.TokenProgramID, func(data []byte) (any, error) {
			return ledger.DecodeTokenAccount(data)
		}),
	)
	if !programID.IsZero() {
		dec.AddDecoder(account.NewProgramAccountDecoder(programID, func(data []byte) (any, error) {
			return state.UnpackUnchecked(data)
		}))
	}
	return dec
}

func printAccount(out io.Writer, decoded any) error {
	switch acc := decoded.(type) {
	case *state.PoolState:
		fmt.Fprintf(out, "Pool state\n")
		fmt.Fprintf(out, "  Initialized:   %t\n", acc.Initialized)
		fmt.Fprintf(out, "  Initializer:   %s\n", acc.Initializer)
		for _, role := range state.Roles() {
			fmt.Fprintf(out, "  %-14s %s\n", role.String()+":", acc.Vault(role))
		}
	case *token.Account:
		fmt.Fprintf(out, "Token account\n")
		fmt.Fprintf(out, "  Mint:   %s\n", acc.Mint)
		fmt.Fprintf(out, "  Owner:  %s\n", acc.Owner)
		fmt.Fprintf(out, "  Amount: %d\n", acc.Amount)
		fmt.Fprintf(out, "  State:  %d\n", acc.State)
	default:
		return fmt.Errorf("unsupported account type %T", decoded)
	}
	return nil
}

func decodeInput(s string, b64 bool) ([]byte, error) {
	if b64 {
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid base64: %w", err)
		}
		return data, nil
	}
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountDecodeCmd)

	accountDecodeCmd.Flags().StringVar(&accountOwner, "owner", "", "account owner selecting the layout (default: the pool program)")
	accountDecodeCmd.Flags().BoolVar(&accountBase64, "base64", false, "data is base64 instead of hex")
}
