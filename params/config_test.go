package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/uhyunpark/hyperpredict/pkg/app/core/fixed"
)

func TestLoadFromEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "MAX_FEE_BPS=250\nDEFAULT_DISPUTE_WINDOW=2h\nCORS_ORIGINS=https://a.example, https://b.example\n"
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	// env wins over the file
	t.Setenv("MAX_FEE_BPS", "300")
	t.Setenv("MIN_RESERVE", "0.5")
	t.Setenv("TICK_INTERVAL_MS", "250")
	t.Setenv("P2P_ENABLED", "true")
	t.Setenv("P2P_BOOTSTRAP", "/ip4/10.0.0.1/tcp/4001/p2p/x,")
	t.Setenv("ORACLE_CHAIN_ID", "8453")
	t.Setenv("ORACLE_VERIFYING_CONTRACT", "not-an-address")

	cfg := LoadFromEnv(envFile)

	if cfg.Engine.MaxFeeBps != 300 {
		t.Errorf("MaxFeeBps = %d, want 300", cfg.Engine.MaxFeeBps)
	}
	if cfg.Engine.MinReserve != fixed.MustParse("0.5") {
		t.Errorf("MinReserve = %s, want 0.5", cfg.Engine.MinReserve)
	}
	if cfg.Engine.DefaultDisputeWindow != 2*time.Hour {
		t.Errorf("DefaultDisputeWindow = %s, want 2h", cfg.Engine.DefaultDisputeWindow)
	}
	if cfg.Engine.TickInterval != 250*time.Millisecond {
		t.Errorf("TickInterval = %s", cfg.Engine.TickInterval)
	}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", cfg.API.CORSOrigins)
	}
	if !cfg.P2P.Enabled || len(cfg.P2P.Bootstrap) != 1 {
		t.Errorf("P2P = %+v", cfg.P2P)
	}
	if cfg.Oracle.ChainID.Int64() != 8453 {
		t.Errorf("ChainID = %s", cfg.Oracle.ChainID)
	}
	if cfg.Oracle.VerifyingContract != Default().Oracle.VerifyingContract {
		t.Errorf("invalid contract address should be ignored")
	}
}
