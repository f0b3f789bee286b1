package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "DATABASE_DSN", "GEMINI_API_KEY", "GEMINI_MODEL",
		"PINATA_BASE_URL", "PINATA_JWT", "IPFS_GATEWAY_URL",
		"EXPLORER_BASE_URL", "LEDGER_NETWORK",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.GeminiModel != "gemini-2.5-flash" {
		t.Errorf("GeminiModel = %q", cfg.GeminiModel)
	}
	if cfg.PinataBaseURL != "https://api.pinata.cloud" {
		t.Errorf("PinataBaseURL = %q", cfg.PinataBaseURL)
	}
	if cfg.GatewayBaseURL != "https://gateway.pinata.cloud/ipfs" {
		t.Errorf("GatewayBaseURL = %q", cfg.GatewayBaseURL)
	}
	if cfg.ExplorerBaseURL != "https://sepolia-blockscout.lisk.com" {
		t.Errorf("ExplorerBaseURL = %q", cfg.ExplorerBaseURL)
	}
	if cfg.LedgerNetwork != "lisk-sepolia" {
		t.Errorf("LedgerNetwork = %q", cfg.LedgerNetwork)
	}
	if cfg.GeminiAPIKey != "" || cfg.PinataJWT != "" {
		t.Error("credentials should default to empty")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("GEMINI_API_KEY", "key-123")
	t.Setenv("LEDGER_NETWORK", "lisk-mainnet")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.GeminiAPIKey != "key-123" {
		t.Errorf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}
	if cfg.LedgerNetwork != "lisk-mainnet" {
		t.Errorf("LedgerNetwork = %q", cfg.LedgerNetwork)
	}
}
