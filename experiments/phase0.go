package experiments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chirpchirp/loralink/artifacts"
	"github.com/chirpchirp/loralink/codec"
	"github.com/chirpchirp/loralink/config"
	"github.com/chirpchirp/loralink/radio/mock"
	"github.com/chirpchirp/loralink/runtime"
	"github.com/chirpchirp/loralink/runtime/eventlog"
	"github.com/chirpchirp/loralink/sensing"
	"gopkg.in/yaml.v3"
)

// SweepProfile is one PHY/loss profile point in a phase0 calibration
// sweep.
type SweepProfile struct {
	ProfileID     string         `json:"profile_id" yaml:"profile_id"`
	Phy           map[string]any `json:"phy" yaml:"phy"`
	LossRate      float64        `json:"loss_rate" yaml:"loss_rate"`
	LossRateAB    *float64       `json:"loss_rate_ab,omitempty" yaml:"loss_rate_ab,omitempty"`
	LossRateBA    *float64       `json:"loss_rate_ba,omitempty" yaml:"loss_rate_ba,omitempty"`
	DropPattern   []bool         `json:"drop_pattern,omitempty" yaml:"drop_pattern,omitempty"`
	DropPatternAB []bool         `json:"drop_pattern_ab,omitempty" yaml:"drop_pattern_ab,omitempty"`
	DropPatternBA []bool         `json:"drop_pattern_ba,omitempty" yaml:"drop_pattern_ba,omitempty"`
	LatencyMs     int64          `json:"latency_ms,omitempty" yaml:"latency_ms,omitempty"`
	Seed          int64          `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// SweepSpec is the phase0 sweep's input: a base run spec plus the list
// of profiles to try until one lands in [target_pdr_low, target_pdr_high].
type SweepSpec struct {
	BaseRunSpec       config.RunSpec `json:"base_runspec" yaml:"base_runspec"`
	PacketsPerProfile int            `json:"packets_per_profile" yaml:"packets_per_profile"`
	TargetPDRLow      float64        `json:"target_pdr_low" yaml:"target_pdr_low"`
	TargetPDRHigh     float64        `json:"target_pdr_high" yaml:"target_pdr_high"`
	StepMs            int64          `json:"step_ms" yaml:"step_ms"`
	OutDir            string         `json:"out_dir" yaml:"out_dir"`
	Profiles          []SweepProfile `json:"profiles" yaml:"profiles"`
}

// ProfileResult is one sweep profile's metrics, and the inputs that
// produced them.
type ProfileResult struct {
	ProfileID string          `json:"profile_id"`
	Phy       map[string]any  `json:"phy"`
	Metrics   runtime.Metrics `json:"metrics"`
	LossRate  float64         `json:"loss_rate"`
}

// SweepResult is phase0's output: every profile tried, and the selected
// one (nil if no profile landed in the target PDR band).
type SweepResult struct {
	Selected *ProfileResult  `json:"selected"`
	Results  []ProfileResult `json:"results"`
}

// LoadSpecFile decodes a JSON or YAML file (by extension) into out.
func LoadSpecFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.HasSuffix(strings.ToLower(path), ".yaml") || strings.HasSuffix(strings.ToLower(path), ".yml") {
		return yaml.Unmarshal(data, out)
	}
	return json.Unmarshal(data, out)
}

func phyOverride(base config.RunSpec, phyFields map[string]any) (config.RunSpec, error) {
	spec := base
	raw, err := json.Marshal(phyFields)
	if err != nil {
		return spec, err
	}
	if err := json.Unmarshal(raw, &spec.Phy); err != nil {
		return spec, err
	}
	return spec, nil
}

func runOneProfile(ctx context.Context, base config.RunSpec, profile SweepProfile, packetsPerProfile int, stepMs int64, outDir string) (ProfileResult, error) {
	txSpec, err := phyOverride(base, profile.Phy)
	if err != nil {
		return ProfileResult{}, err
	}
	rxSpec := txSpec
	txSpec.Role = config.RoleTX
	rxSpec.Role = config.RoleRX
	txSpec.RunID = fmt.Sprintf("%s_%s_tx", base.RunID, profile.ProfileID)
	rxSpec.RunID = fmt.Sprintf("%s_%s_rx", base.RunID, profile.ProfileID)
	n := packetsPerProfile
	txSpec.Tx.MaxWindows = &n
	profileOutDir := filepath.Join(outDir, profile.ProfileID)
	txSpec.Logging.OutDir = profileOutDir
	rxSpec.Logging.OutDir = profileOutDir

	if err := txSpec.Validate(); err != nil {
		return ProfileResult{}, err
	}
	if err := rxSpec.Validate(); err != nil {
		return ProfileResult{}, err
	}

	clock := runtime.NewFakeClock(0)
	linkCfg := mock.Config{
		Clock:     clock,
		LatencyMs: profile.LatencyMs,
		LossAtoB:  lossModelFor(profile.LossRate, profile.LossRateAB, profile.DropPattern, profile.DropPatternAB, profile.Seed),
		LossBtoA:  lossModelFor(profile.LossRate, profile.LossRateBA, profile.DropPattern, profile.DropPatternBA, profile.Seed+1),
	}
	link := mock.NewLink(linkCfg)

	txCodec, err := codec.Create(txSpec.Codec.ID, txSpec.Codec.Version, txSpec.Codec.Params)
	if err != nil {
		return ProfileResult{}, err
	}
	rxCodec, err := codec.Create(rxSpec.Codec.ID, rxSpec.Codec.Version, rxSpec.Codec.Params)
	if err != nil {
		return ProfileResult{}, err
	}
	schemaHash := codec.PayloadSchemaHash(txCodec.PayloadSchema())
	manifest := artifacts.New(txCodec.ID(), txCodec.Version(), schemaHash, nil, nil, time.Now())
	if err := artifacts.Verify(artifacts.RunCodecView{ID: txSpec.Codec.ID, Version: txSpec.Codec.Version}, manifest, artifacts.CodecView{PayloadSchemaHash: schemaHash}); err != nil {
		return ProfileResult{}, err
	}

	txLogger, err := eventlog.New(txSpec.Logging.OutDir, txSpec.RunID, string(txSpec.Role), string(txSpec.Mode), txSpec.PhyProfileID(), clock)
	if err != nil {
		return ProfileResult{}, err
	}
	defer txLogger.Close()
	rxLogger, err := eventlog.New(rxSpec.Logging.OutDir, rxSpec.RunID, string(rxSpec.Role), string(rxSpec.Mode), rxSpec.PhyProfileID(), clock)
	if err != nil {
		return ProfileResult{}, err
	}
	defer rxLogger.Close()
	txLogger.LogRunStart(txSpec, manifest.CodecID+"@"+manifest.CodecVersion)
	rxLogger.LogRunStart(rxSpec, manifest.CodecID+"@"+manifest.CodecVersion)

	sampler := sensing.NewDummySampler(txSpec.Window.Dims, 0)
	txNode := runtime.NewTxNode(txSpec, link.A, txCodec, txLogger, sampler, nil, clock)
	rxNode := runtime.NewRxNode(rxSpec, link.B, rxCodec, rxLogger, clock, nil)

	maxSteps := packetsPerProfile * 10
	if err := RunPair(ctx, txNode, rxNode, clock, stepMs, maxSteps); err != nil {
		return ProfileResult{}, err
	}

	return ProfileResult{
		ProfileID: profile.ProfileID,
		Phy:       profile.Phy,
		Metrics:   txNode.Metrics(),
		LossRate:  profile.LossRate,
	}, nil
}

func lossModelFor(base float64, overrideRate *float64, basePattern, overridePattern []bool, seed int64) mock.LossModel {
	pattern := basePattern
	if overridePattern != nil {
		pattern = overridePattern
	}
	if len(pattern) > 0 {
		return mock.NewPatternLoss(pattern)
	}
	rate := base
	if overrideRate != nil {
		rate = *overrideRate
	}
	return mock.NewBernoulliLoss(rate, seed)
}

// RunPhase0Sweep walks spec.Profiles in order, returning the first whose
// measured PDR lands in [TargetPDRLow, TargetPDRHigh] as Selected, or nil
// if none does.
func RunPhase0Sweep(ctx context.Context, spec SweepSpec) (SweepResult, error) {
	stepMs := spec.StepMs
	if stepMs <= 0 {
		stepMs = 1
	}
	packets := spec.PacketsPerProfile
	if packets <= 0 {
		packets = 20
	}
	outDir := spec.OutDir
	if outDir == "" {
		outDir = spec.BaseRunSpec.Logging.OutDir
	}

	var result SweepResult
	for _, profile := range spec.Profiles {
		pr, err := runOneProfile(ctx, spec.BaseRunSpec, profile, packets, stepMs, outDir)
		if err != nil {
			return result, err
		}
		result.Results = append(result.Results, pr)
		if pr.Metrics.PDR >= spec.TargetPDRLow && pr.Metrics.PDR <= spec.TargetPDRHigh {
			selected := pr
			result.Selected = &selected
			return result, nil
		}
	}
	return result, nil
}
