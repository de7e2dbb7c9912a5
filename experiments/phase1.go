package experiments

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chirpchirp/loralink/artifacts"
	"github.com/chirpchirp/loralink/codec"
	"github.com/chirpchirp/loralink/config"
	"github.com/chirpchirp/loralink/radio/mock"
	"github.com/chirpchirp/loralink/runtime"
	"github.com/chirpchirp/loralink/runtime/eventlog"
	"github.com/chirpchirp/loralink/sensing"
)

// ABDelta is the latent-minus-raw difference in the three headline metrics
// a phase1 A/B run compares.
type ABDelta struct {
	PDR        float64 `json:"pdr"`
	ETX        float64 `json:"etx"`
	TotalToAMs float64 `json:"total_toa_ms"`
}

// ABReport is phase1's output: the shared PHY profile the comparison ran
// under, each side's metrics, and their delta.
type ABReport struct {
	Phy    map[string]any  `json:"phy"`
	Raw    runtime.Metrics `json:"raw"`
	Latent runtime.Metrics `json:"latent"`
	Delta  ABDelta         `json:"delta"`
}

// ABSpec is phase1's input: a phase0 selection (for the PHY profile and
// loss model to run both sides under) plus a RAW and a LATENT run spec
// whose window shapes must agree.
type ABSpec struct {
	Selected      ProfileResult
	RawRunSpec    config.RunSpec
	LatentRunSpec config.RunSpec
}

func prepareABSpec(spec config.RunSpec, role config.Role, suffix string, phyFields map[string]any) (config.RunSpec, error) {
	out, err := phyOverride(spec, phyFields)
	if err != nil {
		return out, err
	}
	out.Role = role
	out.RunID = fmt.Sprintf("%s_%s_%s", spec.RunID, suffix, role)
	return out, nil
}

func runABSide(ctx context.Context, spec config.RunSpec, label string, profile ProfileResult) (runtime.Metrics, error) {
	clock := runtime.NewFakeClock(0)
	linkCfg := mock.Config{
		Clock:    clock,
		LossAtoB: mock.NewBernoulliLoss(profile.LossRate, 0),
		LossBtoA: mock.NewBernoulliLoss(profile.LossRate, 1),
	}
	link := mock.NewLink(linkCfg)

	c, err := codec.Create(spec.Codec.ID, spec.Codec.Version, spec.Codec.Params)
	if err != nil {
		return runtime.Metrics{}, err
	}
	schemaHash := codec.PayloadSchemaHash(c.PayloadSchema())
	manifest := artifacts.New(c.ID(), c.Version(), schemaHash, nil, nil, time.Now())
	if err := artifacts.Verify(artifacts.RunCodecView{ID: spec.Codec.ID, Version: spec.Codec.Version}, manifest, artifacts.CodecView{PayloadSchemaHash: schemaHash}); err != nil {
		return runtime.Metrics{}, err
	}

	txSpec, err := prepareABSpec(spec, config.RoleTX, label, profile.Phy)
	if err != nil {
		return runtime.Metrics{}, err
	}
	rxSpec, err := prepareABSpec(spec, config.RoleRX, label, profile.Phy)
	if err != nil {
		return runtime.Metrics{}, err
	}
	if err := txSpec.Validate(); err != nil {
		return runtime.Metrics{}, err
	}
	if err := rxSpec.Validate(); err != nil {
		return runtime.Metrics{}, err
	}

	txLogger, err := eventlog.New(txSpec.Logging.OutDir, txSpec.RunID, string(txSpec.Role), string(txSpec.Mode), txSpec.PhyProfileID(), clock)
	if err != nil {
		return runtime.Metrics{}, err
	}
	defer txLogger.Close()
	rxLogger, err := eventlog.New(rxSpec.Logging.OutDir, rxSpec.RunID, string(rxSpec.Role), string(rxSpec.Mode), rxSpec.PhyProfileID(), clock)
	if err != nil {
		return runtime.Metrics{}, err
	}
	defer rxLogger.Close()
	txLogger.LogRunStart(txSpec, manifest.CodecID+"@"+manifest.CodecVersion)
	rxLogger.LogRunStart(rxSpec, manifest.CodecID+"@"+manifest.CodecVersion)

	sampler := sensing.NewDummySampler(spec.Window.Dims, 0)
	txNode := runtime.NewTxNode(txSpec, link.A, c, txLogger, sampler, nil, clock)
	rxNode := runtime.NewRxNode(rxSpec, link.B, c, rxLogger, clock, nil)

	maxWindows := 1000
	if txSpec.Tx.MaxWindows != nil {
		maxWindows = *txSpec.Tx.MaxWindows
	}
	if err := RunPair(ctx, txNode, rxNode, clock, 1, maxWindows*10); err != nil {
		return runtime.Metrics{}, err
	}
	return txNode.Metrics(), nil
}

// RunPhase1AB runs the RAW and LATENT sides of spec over independent mock
// links sharing the phase0-selected PHY/loss profile, and reports the
// latent-minus-raw delta in PDR, ETX, and total airtime.
func RunPhase1AB(ctx context.Context, spec ABSpec) (ABReport, error) {
	if spec.RawRunSpec.Mode != config.ModeRaw {
		return ABReport{}, fmt.Errorf("experiments: raw runspec mode must be RAW")
	}
	if spec.LatentRunSpec.Mode != config.ModeLatent {
		return ABReport{}, fmt.Errorf("experiments: latent runspec mode must be LATENT")
	}
	if spec.RawRunSpec.Window != spec.LatentRunSpec.Window {
		return ABReport{}, fmt.Errorf("experiments: raw/latent window specs must match")
	}

	rawMetrics, err := runABSide(ctx, spec.RawRunSpec, "raw", spec.Selected)
	if err != nil {
		return ABReport{}, err
	}
	latentMetrics, err := runABSide(ctx, spec.LatentRunSpec, "latent", spec.Selected)
	if err != nil {
		return ABReport{}, err
	}

	return ABReport{
		Phy:    spec.Selected.Phy,
		Raw:    rawMetrics,
		Latent: latentMetrics,
		Delta: ABDelta{
			PDR:        latentMetrics.PDR - rawMetrics.PDR,
			ETX:        latentMetrics.ETX - rawMetrics.ETX,
			TotalToAMs: latentMetrics.TotalToAMs - rawMetrics.TotalToAMs,
		},
	}, nil
}

// WriteReport marshals report as indented JSON to path.
func WriteReport(path string, report any) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
