package experiments

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/chirpchirp/loralink/artifacts"
	"github.com/chirpchirp/loralink/codec"
	"github.com/chirpchirp/loralink/config"
	"github.com/chirpchirp/loralink/radio/mock"
	"github.com/chirpchirp/loralink/runtime"
	"github.com/chirpchirp/loralink/runtime/eventlog"
	"github.com/chirpchirp/loralink/sensing"
)

// BAMSweepPoint is one pre-trained BAM manifest to try in a latent-codec
// calibration sweep. Unlike a phase0 PHY profile, the point doesn't carry
// latent_dim/packing directly — those live inside the manifest itself,
// baked in by whatever training run produced it — so the sweep only needs
// a path to load.
type BAMSweepPoint struct {
	PointID      string `json:"point_id" yaml:"point_id"`
	ManifestPath string `json:"manifest_path" yaml:"manifest_path"`
}

// BAMSweepSpec is a BAM sweep's input: a base run spec (PHY/loss already
// calibrated, e.g. by RunPhase0Sweep) plus the manifests to try in order.
type BAMSweepSpec struct {
	BaseRunSpec       config.RunSpec  `json:"base_runspec" yaml:"base_runspec"`
	PacketsPerProfile int             `json:"packets_per_profile" yaml:"packets_per_profile"`
	TargetPDRLow      float64         `json:"target_pdr_low" yaml:"target_pdr_low"`
	TargetPDRHigh     float64         `json:"target_pdr_high" yaml:"target_pdr_high"`
	StepMs            int64           `json:"step_ms" yaml:"step_ms"`
	OutDir            string          `json:"out_dir" yaml:"out_dir"`
	Points            []BAMSweepPoint `json:"points" yaml:"points"`
}

// BAMPointResult is one sweep point's metrics, plus the latent_dim/packing
// its manifest resolved to, for reporting.
type BAMPointResult struct {
	PointID      string          `json:"point_id"`
	ManifestPath string          `json:"manifest_path"`
	LatentDim    int             `json:"latent_dim"`
	Packing      string          `json:"packing"`
	Metrics      runtime.Metrics `json:"metrics"`
}

// BAMSweepResult is a BAM sweep's output: every point tried, and the
// selected one (nil if no point landed in the target PDR band).
type BAMSweepResult struct {
	Selected *BAMPointResult  `json:"selected"`
	Results  []BAMPointResult `json:"results"`
}

func runOneBAMPoint(ctx context.Context, base config.RunSpec, point BAMSweepPoint, packetsPerProfile int, stepMs int64, outDir string) (BAMPointResult, error) {
	bamArtifacts, err := artifacts.LoadBamArtifacts(point.ManifestPath)
	if err != nil {
		return BAMPointResult{}, err
	}

	txSpec := base
	rxSpec := base
	txSpec.Role = config.RoleTX
	rxSpec.Role = config.RoleRX
	txSpec.Mode = config.ModeLatent
	rxSpec.Mode = config.ModeLatent
	codecSpec := config.CodecSpec{
		ID:      "bam",
		Version: base.Codec.Version,
		Params:  map[string]any{"manifest_path": point.ManifestPath},
	}
	txSpec.Codec = codecSpec
	rxSpec.Codec = codecSpec
	txSpec.RunID = fmt.Sprintf("%s_%s_tx", base.RunID, point.PointID)
	rxSpec.RunID = fmt.Sprintf("%s_%s_rx", base.RunID, point.PointID)
	n := packetsPerProfile
	txSpec.Tx.MaxWindows = &n
	pointOutDir := filepath.Join(outDir, point.PointID)
	txSpec.Logging.OutDir = pointOutDir
	rxSpec.Logging.OutDir = pointOutDir

	if err := txSpec.Validate(); err != nil {
		return BAMPointResult{}, err
	}
	if err := rxSpec.Validate(); err != nil {
		return BAMPointResult{}, err
	}

	clock := runtime.NewFakeClock(0)
	linkCfg := mock.Config{Clock: clock}
	link := mock.NewLink(linkCfg)

	txCodec, err := codec.Create(txSpec.Codec.ID, txSpec.Codec.Version, txSpec.Codec.Params)
	if err != nil {
		return BAMPointResult{}, err
	}
	rxCodec, err := codec.Create(rxSpec.Codec.ID, rxSpec.Codec.Version, rxSpec.Codec.Params)
	if err != nil {
		return BAMPointResult{}, err
	}
	schemaHash := codec.PayloadSchemaHash(txCodec.PayloadSchema())
	manifest := artifacts.New(txCodec.ID(), txCodec.Version(), schemaHash, nil, nil, time.Now())
	if err := artifacts.Verify(artifacts.RunCodecView{ID: txSpec.Codec.ID, Version: txSpec.Codec.Version}, manifest, artifacts.CodecView{PayloadSchemaHash: schemaHash}); err != nil {
		return BAMPointResult{}, err
	}

	txLogger, err := eventlog.New(txSpec.Logging.OutDir, txSpec.RunID, string(txSpec.Role), string(txSpec.Mode), txSpec.PhyProfileID(), clock)
	if err != nil {
		return BAMPointResult{}, err
	}
	defer txLogger.Close()
	rxLogger, err := eventlog.New(rxSpec.Logging.OutDir, rxSpec.RunID, string(rxSpec.Role), string(rxSpec.Mode), rxSpec.PhyProfileID(), clock)
	if err != nil {
		return BAMPointResult{}, err
	}
	defer rxLogger.Close()
	txLogger.LogRunStart(txSpec, manifest.CodecID+"@"+manifest.CodecVersion)
	rxLogger.LogRunStart(rxSpec, manifest.CodecID+"@"+manifest.CodecVersion)

	sampler := sensing.NewDummySampler(txSpec.Window.Dims, 0)
	txNode := runtime.NewTxNode(txSpec, link.A, txCodec, txLogger, sampler, nil, clock)
	rxNode := runtime.NewRxNode(rxSpec, link.B, rxCodec, rxLogger, clock, nil)

	maxSteps := packetsPerProfile * 10
	if err := RunPair(ctx, txNode, rxNode, clock, stepMs, maxSteps); err != nil {
		return BAMPointResult{}, err
	}

	return BAMPointResult{
		PointID:      point.PointID,
		ManifestPath: point.ManifestPath,
		LatentDim:    bamArtifacts.LatentDim,
		Packing:      bamArtifacts.Packing,
		Metrics:      txNode.Metrics(),
	}, nil
}

// RunBAMSweep walks spec.Points in order — each a pre-trained BAM manifest
// varying latent_dim/packing — the same way RunPhase0Sweep walks PHY
// profiles, returning the first whose measured PDR lands in
// [TargetPDRLow, TargetPDRHigh] as Selected, or nil if none does. The
// training that produced each manifest happens offline, outside this
// package; RunBAMSweep only loads and exercises the results.
func RunBAMSweep(ctx context.Context, spec BAMSweepSpec) (BAMSweepResult, error) {
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

	var result BAMSweepResult
	for _, point := range spec.Points {
		pr, err := runOneBAMPoint(ctx, spec.BaseRunSpec, point, packets, stepMs, outDir)
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
