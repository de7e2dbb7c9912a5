package experiments

import (
	"context"
	"testing"

	"github.com/chirpchirp/loralink/config"
	"github.com/chirpchirp/loralink/phy"
)

func testABRunSpec(dir, runID string, mode config.Mode, codecID string) config.RunSpec {
	return config.RunSpec{
		RunID: runID,
		Mode:  mode,
		Phy:   phy.Spec{SF: 7, BWHz: 125_000, CR: 5, Preamble: 8, CRCOn: true, ExplicitHeader: true, TxPowerDBm: 14},
		Window: config.WindowSpec{Dims: 12, W: 1, SampleHz: 10, Stride: 1},
		Codec:  config.CodecSpec{ID: codecID, Version: "1"},
		Tx: config.TxSpec{
			GuardMs:     1,
			AckTimeout:  config.AckTimeout{Fixed: 50},
			MaxRetries:  3,
			MaxInflight: 2,
			MaxWindows:  intPtrExperiments(4),
		},
		MaxPayloadBytes: 64,
		Logging:         config.LoggingSpec{OutDir: dir},
	}
}

func intPtrExperiments(n int) *int { return &n }

func TestRunPhase1ABRejectsModeMismatch(t *testing.T) {
	dir := t.TempDir()
	spec := ABSpec{
		Selected:      ProfileResult{Phy: map[string]any{"sf": 7}},
		RawRunSpec:    testABRunSpec(dir, "ab", config.ModeLatent, "raw"),
		LatentRunSpec: testABRunSpec(dir, "ab", config.ModeLatent, "raw"),
	}
	if _, err := RunPhase1AB(context.Background(), spec); err == nil {
		t.Fatalf("expected error for raw runspec not in RAW mode")
	}
}

func TestRunPhase1ABRejectsWindowMismatch(t *testing.T) {
	dir := t.TempDir()
	raw := testABRunSpec(dir, "ab", config.ModeRaw, "raw")
	latent := testABRunSpec(dir, "ab", config.ModeLatent, "raw")
	latent.Window.Stride = 2
	spec := ABSpec{
		Selected:      ProfileResult{Phy: map[string]any{"sf": 7}},
		RawRunSpec:    raw,
		LatentRunSpec: latent,
	}
	if _, err := RunPhase1AB(context.Background(), spec); err == nil {
		t.Fatalf("expected error for mismatched window specs")
	}
}

func TestRunPhase1ABComputesDelta(t *testing.T) {
	dir := t.TempDir()
	raw := testABRunSpec(dir, "ab", config.ModeRaw, "raw")
	latent := testABRunSpec(dir, "ab", config.ModeLatent, "raw")
	spec := ABSpec{
		Selected:      ProfileResult{Phy: map[string]any{"sf": 7}, LossRate: 0},
		RawRunSpec:    raw,
		LatentRunSpec: latent,
	}
	report, err := RunPhase1AB(context.Background(), spec)
	if err != nil {
		t.Fatalf("RunPhase1AB: %v", err)
	}
	if report.Raw.SentCount == 0 || report.Latent.SentCount == 0 {
		t.Fatalf("expected both sides to send windows: raw=%+v latent=%+v", report.Raw, report.Latent)
	}
	wantDelta := report.Latent.PDR - report.Raw.PDR
	if report.Delta.PDR != wantDelta {
		t.Fatalf("delta.pdr = %v, want %v", report.Delta.PDR, wantDelta)
	}
}
