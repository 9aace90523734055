package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"custodia/native/custody"
)

// Config is the daemon's top-level configuration.
type Config struct {
	RPCAddress      string `toml:"rpcAddress"`
	MetricsAddress  string `toml:"metricsAddress"`
	DataDir         string `toml:"dataDir"`
	StorageBackend  string `toml:"storageBackend"`
	Environment     string `toml:"environment"`
	LogFile         string `toml:"logFile"`
	OracleMode      string `toml:"oracleMode"`
	OracleURL       string `toml:"oracleUrl"`
	OperatorAddress string `toml:"operatorAddress"`

	Custody custody.Config `toml:"custody"`
}

func defaultConfig() Config {
	return Config{
		RPCAddress:     "127.0.0.1:8645",
		MetricsAddress: "127.0.0.1:9465",
		DataDir:        "./custodia-data",
		StorageBackend: "leveldb",
		Environment:    "development",
		OracleMode:     "manual",
		Custody: custody.Config{
			BankCapWei: "1000000000000000000000",
		},
	}
}

// Load reads the TOML configuration at path, creating it with defaults when
// missing, then validates it.
func Load(path string) (Config, error) {
	cfg := defaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, cfg); err != nil {
			return Config{}, err
		}
	} else if err != nil {
		return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Custody.Normalise()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func writeDefault(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer file.Close()
	if _, err := fmt.Fprintln(file, "# operatorAddress must be set before the daemon will start."); err != nil {
		return fmt.Errorf("config: write defaults: %w", err)
	}
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode defaults: %w", err)
	}
	return nil
}

func (c Config) validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: rpcAddress is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.StorageBackend)) {
	case "leveldb", "bolt", "memory":
	default:
		return fmt.Errorf("config: storageBackend must be leveldb, bolt, or memory (got %q)", c.StorageBackend)
	}
	switch strings.ToLower(strings.TrimSpace(c.OracleMode)) {
	case "manual":
	case "http":
		if strings.TrimSpace(c.OracleURL) == "" {
			return fmt.Errorf("config: oracleUrl is required when oracleMode is http")
		}
	default:
		return fmt.Errorf("config: oracleMode must be manual or http (got %q)", c.OracleMode)
	}
	if strings.TrimSpace(c.OperatorAddress) == "" {
		return fmt.Errorf("config: operatorAddress is required (fill it in before starting the daemon)")
	}
	operator, err := custody.ParseAddress(c.OperatorAddress)
	if err != nil {
		return fmt.Errorf("config: operatorAddress: %w", err)
	}
	if operator == ([20]byte{}) {
		return fmt.Errorf("config: operatorAddress must not be the zero address")
	}
	if _, err := c.Custody.Parameters(); err != nil {
		return err
	}
	return nil
}
