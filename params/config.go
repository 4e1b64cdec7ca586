package params

import (
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
)

type Engine struct {
	// MinReserve is the dust floor below which no pool reserve may fall.
	MinReserve           fixed.Point
	MaxFeeBps            uint32
	DefaultDisputeWindow time.Duration
	// TickInterval paces the sweep that applies cutoff and dispute expiry.
	TickInterval time.Duration
}

type Storage struct {
	DataDir string
	LogFile string
	// LogLevel is debug, info, warn or error.
	LogLevel string
	// JournalFile is the JSON-lines event journal; empty disables it.
	JournalFile string
}

type API struct {
	Addr           string
	RateLimitRPS   float64
	RateLimitBurst int
	CORSOrigins    []string
}

type P2P struct {
	Enabled   bool
	Listen    string
	Bootstrap []string
}

type Oracle struct {
	// SigScheme is "eip712", "bls" or "auto".
	SigScheme         string
	ChainID           *big.Int
	VerifyingContract common.Address
	// FeedURL is the price service used for price-feed markets; empty leaves
	// them unresolvable.
	FeedURL     string
	FeedTimeout time.Duration
}

type Config struct {
	Engine  Engine
	Storage Storage
	API     API
	P2P     P2P
	Oracle  Oracle
}

func Default() Config {
	return Config{
		Engine: Engine{
			MinReserve:           fixed.FromRaw(1_000_000), // 0.001
			MaxFeeBps:            1000,
			DefaultDisputeWindow: 24 * time.Hour,
			TickInterval:         time.Second,
		},
		Storage: Storage{
			DataDir:     "data",
			LogLevel:    "info",
			JournalFile: "data/events.log",
		},
		API: API{
			Addr:           ":8080",
			RateLimitRPS:   20,
			RateLimitBurst: 40,
			CORSOrigins:    []string{"http://localhost:3000", "http://localhost:3001"},
		},
		P2P: P2P{
			Listen: "/ip4/0.0.0.0/tcp/0",
		},
		Oracle: Oracle{
			SigScheme:   "auto",
			ChainID:     big.NewInt(1337),
			FeedTimeout: 5 * time.Second,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Storage.DataDir = getEnv("DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.LogFile = getEnv("LOG_FILE", cfg.Storage.LogFile)
	cfg.Storage.LogLevel = getEnv("LOG_LEVEL", cfg.Storage.LogLevel)
	cfg.Storage.JournalFile = getEnv("JOURNAL_FILE", cfg.Storage.JournalFile)

	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if rps := os.Getenv("API_RATE_LIMIT_RPS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.API.RateLimitRPS = v
		}
	}
	if burst := os.Getenv("API_RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.API.RateLimitBurst = v
		}
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.API.CORSOrigins = splitList(origins)
	}

	if minReserve := os.Getenv("MIN_RESERVE"); minReserve != "" {
		if v, err := fixed.Parse(minReserve); err == nil {
			cfg.Engine.MinReserve = v
		}
	}
	if maxFee := os.Getenv("MAX_FEE_BPS"); maxFee != "" {
		if v, err := strconv.ParseUint(maxFee, 10, 32); err == nil {
			cfg.Engine.MaxFeeBps = uint32(v)
		}
	}
	if window := os.Getenv("DEFAULT_DISPUTE_WINDOW"); window != "" {
		if d, err := time.ParseDuration(window); err == nil {
			cfg.Engine.DefaultDisputeWindow = d
		}
	}
	if tick := os.Getenv("TICK_INTERVAL_MS"); tick != "" {
		if ms, err := strconv.Atoi(tick); err == nil && ms > 0 {
			cfg.Engine.TickInterval = time.Duration(ms) * time.Millisecond
		}
	}

	if enabled := os.Getenv("P2P_ENABLED"); enabled != "" {
		cfg.P2P.Enabled = enabled == "true"
	}
	cfg.P2P.Listen = getEnv("P2P_LISTEN", cfg.P2P.Listen)
	if bs := os.Getenv("P2P_BOOTSTRAP"); bs != "" {
		cfg.P2P.Bootstrap = splitList(bs)
	}

	cfg.Oracle.SigScheme = getEnv("ORACLE_SIG_SCHEME", cfg.Oracle.SigScheme)
	if chainID := os.Getenv("ORACLE_CHAIN_ID"); chainID != "" {
		if v, ok := new(big.Int).SetString(chainID, 10); ok {
			cfg.Oracle.ChainID = v
		}
	}
	if vc := os.Getenv("ORACLE_VERIFYING_CONTRACT"); common.IsHexAddress(vc) {
		cfg.Oracle.VerifyingContract = common.HexToAddress(vc)
	}

	cfg.Oracle.FeedURL = getEnv("ORACLE_FEED_URL", cfg.Oracle.FeedURL)

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
