package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lugondev/go-amm/internal/common"
	"github.com/lugondev/go-amm/internal/config"
	"github.com/lugondev/go-amm/pkg/types"
)

var (
	cfgFile string
	cfg     = config.DefaultConfig()
	logger  = slog.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "amm",
	Short: "AMM CLI - A two-asset liquidity pool program toolkit",
	Long: `amm works with the two-asset liquidity pool program offline.

It provides commands for:
- Deriving the pool authority
- Encoding and decoding instruction payloads
- Decoding pool state and token account data
- Simulating pool sessions described in YAML`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.amm.yaml or $HOME/.amm.yaml)")
	rootCmd.PersistentFlags().String("program-id", "", "pool program id (base58)")
	rootCmd.PersistentFlags().String("seed", "", "pool authority seed label")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	bindings := map[string]string{
		"program.id":   "program-id",
		"program.seed": "seed",
		"log.level":    "log-level",
		"log.format":   "log-format",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding flag: %v\n", err)
		}
	}
}

func initConfig() error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded
	logger = common.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", "path", used)
	}
	return nil
}

// programID returns the configured program id.
func programID() (types.Pubkey, error) {
	key, err := cfg.Program.Key()
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("%w (set --program-id, program.id or AMM_PROGRAM_ID)", err)
	}
	return key, nil
}
