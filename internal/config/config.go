package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"

	"github.com/lugondev/go-amm/internal/authority"
	"github.com/lugondev/go-amm/pkg/types"
)

// ErrNoProgramID is returned by ProgramConfig.Key when no id is configured.
var ErrNoProgramID = errors.New("program id not configured")

// Config holds all configuration for the application
type Config struct {
	Program ProgramConfig `mapstructure:"program"`
	Rent    RentConfig    `mapstructure:"rent"`
	Log     LogConfig     `mapstructure:"log"`
}

// ProgramConfig identifies the pool program
type ProgramConfig struct {
	ID   string `mapstructure:"id"`   // base58
	Seed string `mapstructure:"seed"` // pool authority seed label
}

// RentConfig holds the parameters published in the rent sysvar
type RentConfig struct {
	LamportsPerByteYear uint64  `mapstructure:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `mapstructure:"exemption_threshold"`
	BurnPercent         uint8   `mapstructure:"burn_percent"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	rent := types.DefaultRent()
	return &Config{
		Program: ProgramConfig{
			Seed: authority.DefaultSeed,
		},
		Rent: RentConfig{
			LamportsPerByteYear: rent.LamportsPerByteYear,
			ExemptionThreshold:  rent.ExemptionThreshold,
			BurnPercent:         rent.BurnPercent,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	return LoadWith(viper.GetViper(), configPath)
}

// LoadWith loads configuration through v. Flags bound to v take precedence
// over the file and environment.
func LoadWith(v *viper.Viper, configPath string) (*Config, error) {
	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".amm")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	// Environment variables
	v.SetEnvPrefix("AMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys absent
// from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("program.id", cfg.Program.ID)
	v.SetDefault("program.seed", cfg.Program.Seed)
	v.SetDefault("rent.lamports_per_byte_year", cfg.Rent.LamportsPerByteYear)
	v.SetDefault("rent.exemption_threshold", cfg.Rent.ExemptionThreshold)
	v.SetDefault("rent.burn_percent", cfg.Rent.BurnPercent)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// Validate checks values the rest of the program relies on
func (c *Config) Validate() error {
	if c.Program.ID != "" {
		if _, err := c.Program.Key(); err != nil {
			return err
		}
	}
	if len(c.Program.Seed) == 0 || len(c.Program.Seed) > solana.MaxSeedLength {
		return fmt.Errorf("program.seed must be 1..%d bytes, got %d", solana.MaxSeedLength, len(c.Program.Seed))
	}
	if c.Rent.ExemptionThreshold < 0 {
		return fmt.Errorf("rent.exemption_threshold must not be negative")
	}
	if c.Rent.BurnPercent > 100 {
		return fmt.Errorf("rent.burn_percent must be at most 100, got %d", c.Rent.BurnPercent)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Key parses the configured program id
func (c *ProgramConfig) Key() (types.Pubkey, error) {
	if c.ID == "" {
		return types.Pubkey{}, ErrNoProgramID
	}
	key, err := solana.PublicKeyFromBase58(c.ID)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("invalid program.id %q: %w", c.ID, err)
	}
	return key, nil
}

// Params returns the rent sysvar value
func (c *RentConfig) Params() types.Rent {
	return types.Rent{
		LamportsPerByteYear: c.LamportsPerByteYear,
		ExemptionThreshold:  c.ExemptionThreshold,
		BurnPercent:         c.BurnPercent,
	}
}
