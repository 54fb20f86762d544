package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-amm/internal/authority"
)

var authorityCmd = &cobra.Command{
	Use:   "authority",
	Short: "Derive the pool authority",
	Long:  `Derive the program-derived address that owns the pool vaults, with its bump seed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := programID()
		if err != nil {
			return err
		}
		auth, err := authority.New(id, []byte(cfg.Program.Seed))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Program:   %s\n", id)
		fmt.Fprintf(out, "Seed:      %s\n", auth.Seed)
		fmt.Fprintf(out, "Authority: %s\n", auth.Address)
		fmt.Fprintf(out, "Bump:      %d\n", auth.Bump)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authorityCmd)
}
