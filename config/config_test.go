package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefaultButRequiresOperator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	// The first run writes the default file but fails fast: the generated
	// defaults carry no operator address and must be filled in.
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected missing operatorAddress to fail")
	}
	if !strings.Contains(err.Error(), "operatorAddress") {
		t.Fatalf("error = %v, want operatorAddress mention", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
}

func TestLoadCompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
rpcAddress = "127.0.0.1:8645"
storageBackend = "memory"
oracleMode = "manual"
operatorAddress = "0x00000000000000000000000000000000000000aa"

[custody]
bankCapWei = "1000000000000000000000"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageBackend != "memory" {
		t.Fatalf("backend = %q, want memory", cfg.StorageBackend)
	}
	if cfg.OracleMode != "manual" {
		t.Fatalf("oracle mode = %q, want manual", cfg.OracleMode)
	}
}

func TestLoadRejectsZeroOperator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
rpcAddress = "127.0.0.1:8645"
storageBackend = "memory"
oracleMode = "manual"
operatorAddress = "0x0000000000000000000000000000000000000000"

[custody]
bankCapWei = "100"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected zero operatorAddress to fail")
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
rpcAddress = "127.0.0.1:8645"
storageBackend = "postgres"
oracleMode = "manual"

[custody]
bankCapWei = "100"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected invalid backend to fail")
	}
}

func TestLoadRejectsHTTPOracleWithoutURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
rpcAddress = "127.0.0.1:8645"
storageBackend = "memory"
oracleMode = "http"

[custody]
bankCapWei = "100"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing oracleUrl to fail")
	}
}

func TestLoadValidatesCustodyParams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
rpcAddress = "127.0.0.1:8645"
storageBackend = "memory"
oracleMode = "manual"
operatorAddress = "0x00000000000000000000000000000000000000aa"

[custody]
bankCapWei = "-5"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected negative bank cap to fail")
	}
}
