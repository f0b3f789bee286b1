package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the service reads from the environment. Values are
// loaded once at startup and passed down; nothing reads the environment after
// that.
type Config struct {
	Port        string
	DatabaseDSN string

	GeminiAPIKey string
	GeminiModel  string

	PinataBaseURL string
	PinataJWT     string

	GatewayBaseURL  string
	ExplorerBaseURL string
	LedgerNetwork   string
}

// Load reads configuration from the environment, after loading a local .env
// file when one exists.
func Load() Config {
	// Missing .env is fine; real environments set variables directly.
	_ = godotenv.Load()

	return Config{
		Port:            getenv("PORT", "8080"),
		DatabaseDSN:     getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=receipts port=5432 sslmode=disable"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getenv("GEMINI_MODEL", "gemini-2.5-flash"),
		PinataBaseURL:   getenv("PINATA_BASE_URL", "https://api.pinata.cloud"),
		PinataJWT:       os.Getenv("PINATA_JWT"),
		GatewayBaseURL:  getenv("IPFS_GATEWAY_URL", "https://gateway.pinata.cloud/ipfs"),
		ExplorerBaseURL: getenv("EXPLORER_BASE_URL", "https://sepolia-blockscout.lisk.com"),
		LedgerNetwork:   getenv("LEDGER_NETWORK", "lisk-sepolia"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
