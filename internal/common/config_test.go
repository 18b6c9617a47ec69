package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port default = %d, want %d", cfg.Server.Port, 8080)
	}
	if got := cfg.Market.GetSnapshotTTL(); got != 300*time.Second {
		t.Errorf("Market snapshot TTL default = %v, want %v", got, 300*time.Second)
	}
	if cfg.Market.MaxCandidates != 150 {
		t.Errorf("Market.MaxCandidates default = %d, want 150", cfg.Market.MaxCandidates)
	}
	if cfg.Pipeline.MaxWorkers != 3 {
		t.Errorf("Pipeline.MaxWorkers default = %d, want 3", cfg.Pipeline.MaxWorkers)
	}
	if cfg.Pipeline.PrefetchThreshold != 5 {
		t.Errorf("Pipeline.PrefetchThreshold default = %d, want 5", cfg.Pipeline.PrefetchThreshold)
	}
	want := []string{"eastmoney", "tencent", "eastmoney82", "sina"}
	if len(cfg.Market.Providers) != len(want) {
		t.Fatalf("Market.Providers default = %v, want %v", cfg.Market.Providers, want)
	}
	for i, p := range want {
		if cfg.Market.Providers[i] != p {
			t.Errorf("Market.Providers[%d] = %q, want %q", i, cfg.Market.Providers[i], p)
		}
	}
}

func TestConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("TIDESCAN_PORT", "9090")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d after env override, want %d", cfg.Server.Port, 9090)
	}
}

func TestConfig_ProviderChainEnvOverride(t *testing.T) {
	t.Setenv("TIDESCAN_MARKET_PROVIDERS", "sina, eastmoney")

	cfg := NewDefaultConfig()
	applyEnvOverrides(cfg)

	if len(cfg.Market.Providers) != 2 || cfg.Market.Providers[0] != "sina" || cfg.Market.Providers[1] != "eastmoney" {
		t.Errorf("Market.Providers = %v after env override, want [sina eastmoney]", cfg.Market.Providers)
	}
}

func TestLoadConfig_FileMerge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tidescan.toml")
	content := `
environment = "production"

[server]
port = 9000

[market]
snapshot_ttl = "60s"
max_candidates = 50
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if got := cfg.Market.GetSnapshotTTL(); got != 60*time.Second {
		t.Errorf("snapshot TTL = %v, want 60s", got)
	}
	if cfg.Market.MaxCandidates != 50 {
		t.Errorf("MaxCandidates = %d, want 50", cfg.Market.MaxCandidates)
	}
	// Sections absent from the file keep their defaults
	if cfg.Pipeline.MaxWorkers != 3 {
		t.Errorf("Pipeline.MaxWorkers = %d, want default 3", cfg.Pipeline.MaxWorkers)
	}
}

func TestLoadConfig_MissingFileSkipped(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/tidescan.toml")
	if err != nil {
		t.Fatalf("LoadConfig with missing file: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestResolveAPIKey_EnvWins(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")

	key, err := ResolveAPIKey("gemini_api_key", "from-config")
	if err != nil {
		t.Fatalf("ResolveAPIKey: %v", err)
	}
	if key != "from-env" {
		t.Errorf("key = %q, want %q", key, "from-env")
	}
}

func clearAPIKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"GEMINI_API_KEY", "TIDESCAN_GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(name, "")
	}
}

func TestResolveAPIKey_Fallback(t *testing.T) {
	clearAPIKeyEnv(t)

	key, err := ResolveAPIKey("gemini_api_key", "from-config")
	if err != nil {
		t.Fatalf("ResolveAPIKey: %v", err)
	}
	if key != "from-config" {
		t.Errorf("key = %q, want %q", key, "from-config")
	}
}

func TestResolveAPIKey_Missing(t *testing.T) {
	clearAPIKeyEnv(t)

	if _, err := ResolveAPIKey("gemini_api_key", ""); err == nil {
		t.Error("expected error for unresolvable key")
	}
}
