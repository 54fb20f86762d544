package cmd

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-amm/internal/instruction"
	"github.com/lugondev/go-amm/internal/scenario"
)

var instructionCmd = &cobra.Command{
	Use:   "instruction",
	Short: "Instruction payload commands",
	Long:  `Encode pool instructions into their wire payload and decode payloads back.`,
}

var instructionEncodeCmd = &cobra.Command{
	Use:   "encode <op> [amount] [amount_b]",
	Short: "Encode an instruction payload as hex",
	Long: `Encode an instruction payload as hex. Ops: init, provide_liquidity <a> <b>,
claim_liquidity <amount>, trade_a_for_b <amount>, trade_b_for_a <amount>, close.`,
	Args: cobra.RangeArgs(1, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ix, err := parseInstruction(args[0], args[1:])
		if err != nil {
			return err
		}
		data, err := instruction.Encode(ix)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
		return nil
	},
}

var instructionDecodeCmd = &cobra.Command{
	Use:   "decode <hex>",
	Short: "Decode a hex instruction payload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := hex.DecodeString(strings.TrimPrefix(args[0], "0x"))
		if err != nil {
			return fmt.Errorf("invalid hex: %w", err)
		}
		ix, err := instruction.Decode(data)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Opcode:      %d (%s)\n", uint8(ix.Opcode()), ix.Opcode())
		fmt.Fprintf(out, "Instruction: %s\n", ix)
		return nil
	},
}

func parseInstruction(op string, args []string) (instruction.Instruction, error) {
	amounts := make([]uint64, len(args))
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", arg, err)
		}
		amounts[i] = v
	}
	want := func(n int) error {
		if len(amounts) != n {
			return fmt.Errorf("%s takes %d amount(s), got %d", op, n, len(amounts))
		}
		return nil
	}

	switch op {
	case scenario.OpInit:
		return instruction.Init{}, want(0)
	case scenario.OpProvideLiquidity:
		if err := want(2); err != nil {
			return nil, err
		}
		return instruction.ProvideLiquidity{AmountA: amounts[0], AmountB: amounts[1]}, nil
	case scenario.OpClaimLiquidity, scenario.OpTradeAForB, scenario.OpTradeBForA:
		if err := want(1); err != nil {
			return nil, err
		}
		switch op {
		case scenario.OpClaimLiquidity:
			return instruction.ClaimLiquidity{Amount: amounts[0]}, nil
		case scenario.OpTradeAForB:
			return instruction.TradeAForB{Amount: amounts[0]}, nil
		default:
			return instruction.TradeBForA{Amount: amounts[0]}, nil
		}
	case scenario.OpClose:
		return instruction.Close{}, want(0)
	}
	return nil, fmt.Errorf("unknown op %q", op)
}

func init() {
	rootCmd.AddCommand(instructionCmd)
	instructionCmd.AddCommand(instructionEncodeCmd)
	instructionCmd.AddCommand(instructionDecodeCmd)
}
