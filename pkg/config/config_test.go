package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

adapters:
  echo:
    enabled: true
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Adapters.Echo.Port != 20002 {
		t.Errorf("Expected default echo port 20002, got %d", cfg.Adapters.Echo.Port)
	}
	if cfg.Adapters.Echo.PoolSize != 5 {
		t.Errorf("Expected default pool size 5, got %d", cfg.Adapters.Echo.PoolSize)
	}
	if cfg.Processor.Type != "echo" {
		t.Errorf("Expected default processor 'echo', got %q", cfg.Processor.Type)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: debug
  format: json

server:
  shutdown_timeout: 10s
  metrics:
    enabled: true
    port: 9191

adapters:
  echo:
    enabled: true
    port: 30000
    pool_size: 8
    framing: chunked
    max_connections: 100
    accept_rate:
      requests_per_second: 50
      burst: 10
    queue:
      max_depth: 1000
    write_timeout: 5s
    shutdown_timeout: 2s
    reply:
      identity: false

processor:
  type: reverse
  reverse:
    delay: 250ms
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if !cfg.Server.Metrics.Enabled || cfg.Server.Metrics.Port != 9191 {
		t.Errorf("Expected metrics enabled on 9191, got %+v", cfg.Server.Metrics)
	}

	e := cfg.Adapters.Echo
	if e.Port != 30000 || e.PoolSize != 8 || e.Framing != "chunked" {
		t.Errorf("Unexpected echo settings: port=%d pool=%d framing=%q", e.Port, e.PoolSize, e.Framing)
	}
	if e.MaxConnections != 100 || e.Queue.MaxDepth != 1000 {
		t.Errorf("Unexpected limits: max_connections=%d max_depth=%d", e.MaxConnections, e.Queue.MaxDepth)
	}
	if e.AcceptRate.RequestsPerSecond != 50 || e.AcceptRate.Burst != 10 {
		t.Errorf("Unexpected accept rate: %+v", e.AcceptRate)
	}
	if e.WriteTimeout != 5*time.Second || e.ShutdownTimeout != 2*time.Second {
		t.Errorf("Unexpected timeouts: write=%v shutdown=%v", e.WriteTimeout, e.ShutdownTimeout)
	}
	if e.Reply.IdentityEnabled() {
		t.Error("Expected identity replies to be disabled")
	}

	proc, err := CreateProcessor(&cfg.Processor)
	if err != nil {
		t.Fatalf("Failed to create processor: %v", err)
	}
	if proc.Name() != "reverse" {
		t.Errorf("Expected reverse processor, got %q", proc.Name())
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Point XDG at an empty directory so a user config is never picked up
	tmpDir := t.TempDir()
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	_ = os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer func() { _ = os.Setenv("XDG_CONFIG_HOME", oldXDG) }()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults when no config file exists, got: %v", err)
	}

	if !cfg.Adapters.Echo.Enabled {
		t.Error("Expected echo adapter to be enabled by default")
	}
	if cfg.Adapters.Echo.Port != 20002 {
		t.Errorf("Expected default port 20002, got %d", cfg.Adapters.Echo.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"
  invalid yaml here
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
adapters:
  echo:
    enabled: true
    framing: words
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected validation error for unknown framing")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"

[adapters.echo]
enabled = true
port = 21000
pool_size = 3

[processor]
type = "upper"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.Echo.Port != 21000 {
		t.Errorf("Expected port 21000, got %d", cfg.Adapters.Echo.Port)
	}
	if cfg.Adapters.Echo.PoolSize != 3 {
		t.Errorf("Expected pool size 3, got %d", cfg.Adapters.Echo.PoolSize)
	}
	if cfg.Processor.Type != "upper" {
		t.Errorf("Expected processor 'upper', got %q", cfg.Processor.Type)
	}
}

func TestConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	_ = os.Setenv("XDG_CONFIG_HOME", tmpDir)
	defer func() { _ = os.Setenv("XDG_CONFIG_HOME", oldXDG) }()

	if ConfigExists() {
		t.Fatal("Expected no config in an empty directory")
	}

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()
	if path == "" {
		t.Fatal("Expected non-empty default config path")
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()
	if dir == "" {
		t.Fatal("Expected non-empty config directory")
	}
	if filepath.Base(dir) != "hsha" {
		t.Errorf("Expected directory name 'hsha', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	_ = os.Setenv("HSHA_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("HSHA_ADAPTERS_ECHO_POOL_SIZE", "9")
	defer func() {
		_ = os.Unsetenv("HSHA_LOGGING_LEVEL")
		_ = os.Unsetenv("HSHA_ADAPTERS_ECHO_POOL_SIZE")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

adapters:
  echo:
    enabled: true
    pool_size: 2
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.Echo.PoolSize != 9 {
		t.Errorf("Expected pool size 9 from env var, got %d", cfg.Adapters.Echo.PoolSize)
	}
}
