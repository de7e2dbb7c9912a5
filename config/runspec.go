// Package config loads and validates a run specification: the PHY profile,
// window shape, codec selection, ARQ timing, and logging sink a TX or RX
// node needs before it can start.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chirpchirp/loralink/phy"
	"gopkg.in/yaml.v3"
)

// ValidationError is returned by RunSpec.Validate for any field that fails
// its invariant.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func invalid(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf("config: "+format, args...)}
}

// Role is the node's position in a run: tx, rx, or the (non-radio)
// controller that drives experiments.
type Role string

const (
	RoleTX         Role = "tx"
	RoleRX         Role = "rx"
	RoleController Role = "controller"
)

// Mode selects whether TX sends raw quantized samples or an RX reconstructs
// them from a learned latent codec.
type Mode string

const (
	ModeRaw    Mode = "RAW"
	ModeLatent Mode = "LATENT"
)

// WindowSpec describes the shape of one sensor window: how many channels
// per step, how many steps per window, the sampling rate, and the stride
// between consecutive emitted windows (in samples).
type WindowSpec struct {
	Dims     int     `json:"dims" yaml:"dims"`
	W        int     `json:"W" yaml:"W"`
	SampleHz float64 `json:"sample_hz" yaml:"sample_hz"`
	Stride   int     `json:"stride" yaml:"stride"`
}

// CodecSpec selects a codec implementation by id/version plus a free-form
// parameter bag (quantization scales, manifest paths, compression level).
type CodecSpec struct {
	ID      string         `json:"id" yaml:"id"`
	Version string         `json:"version" yaml:"version"`
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// AckTimeout is either an explicit millisecond value or "auto", meaning the
// node should derive the timeout from the PHY's estimated time-on-air.
type AckTimeout struct {
	Auto  bool
	Fixed int64
}

// UnmarshalJSON accepts either the literal "auto" or a JSON number.
func (a *AckTimeout) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if strings.EqualFold(s, "auto") {
			*a = AckTimeout{Auto: true}
			return nil
		}
		return fmt.Errorf("config: invalid ack_timeout_ms: %q", s)
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("config: invalid ack_timeout_ms: %s", string(data))
	}
	*a = AckTimeout{Fixed: n}
	return nil
}

// MarshalJSON renders "auto" or the fixed millisecond value.
func (a AckTimeout) MarshalJSON() ([]byte, error) {
	if a.Auto {
		return json.Marshal("auto")
	}
	return json.Marshal(a.Fixed)
}

// UnmarshalYAML mirrors UnmarshalJSON for YAML sources.
func (a *AckTimeout) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		if strings.EqualFold(s, "auto") {
			*a = AckTimeout{Auto: true}
			return nil
		}
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid ack_timeout_ms: %s", value.Value)
	}
	*a = AckTimeout{Fixed: n}
	return nil
}

// TxSpec controls ARQ timing: the inter-frame guard, the ACK timeout, the
// retry budget, and how many unacknowledged windows may be in flight.
type TxSpec struct {
	GuardMs     int        `json:"guard_ms" yaml:"guard_ms"`
	AckTimeout  AckTimeout `json:"ack_timeout_ms" yaml:"ack_timeout_ms"`
	MaxRetries  int        `json:"max_retries" yaml:"max_retries"`
	MaxInflight int        `json:"max_inflight" yaml:"max_inflight"`
	MaxWindows  *int       `json:"max_windows,omitempty" yaml:"max_windows,omitempty"`
}

// LoggingSpec names the directory JSONL event logs and dataset logs are
// written under.
type LoggingSpec struct {
	OutDir string `json:"out_dir" yaml:"out_dir"`
}

// RunSpec is the full configuration a node needs to start a run: PHY
// profile, window shape, codec, ARQ timing, logging sink, and (for LATENT
// runs) the artifacts manifest binding the codec to its trained weights.
type RunSpec struct {
	RunID             string      `json:"run_id" yaml:"run_id"`
	Role              Role        `json:"role" yaml:"role"`
	Mode              Mode        `json:"mode" yaml:"mode"`
	Phy               phy.Spec    `json:"phy" yaml:"phy"`
	Window            WindowSpec  `json:"window" yaml:"window"`
	Codec             CodecSpec   `json:"codec" yaml:"codec"`
	Tx                TxSpec      `json:"tx" yaml:"tx"`
	Logging           LoggingSpec `json:"logging" yaml:"logging"`
	MaxPayloadBytes   int         `json:"max_payload_bytes" yaml:"max_payload_bytes"`
	ArtifactsManifest string      `json:"artifacts_manifest,omitempty" yaml:"artifacts_manifest,omitempty"`
}

// PhyProfileID returns the PHY's canonical cross-run identity string.
func (r RunSpec) PhyProfileID() string {
	return r.Phy.Identity()
}

// Validate checks every field-level invariant spec.md §3 names.
func (r RunSpec) Validate() error {
	if r.RunID == "" {
		return invalid("run_id must be non-empty")
	}
	switch r.Role {
	case RoleTX, RoleRX, RoleController:
	default:
		return invalid("invalid role: %s", r.Role)
	}
	switch r.Mode {
	case ModeRaw, ModeLatent:
	default:
		return invalid("invalid mode: %s", r.Mode)
	}
	if r.Window.Dims <= 0 || r.Window.W <= 0 {
		return invalid("window dims and W must be > 0")
	}
	if r.Window.SampleHz <= 0 {
		return invalid("window sample_hz must be > 0")
	}
	if r.Window.Stride <= 0 {
		return invalid("window stride must be > 0")
	}
	if r.Phy.SF <= 0 || r.Phy.BWHz <= 0 || r.Phy.CR <= 0 {
		return invalid("phy values must be > 0")
	}
	if r.Tx.GuardMs < 0 {
		return invalid("tx guard_ms must be >= 0")
	}
	if !r.Tx.AckTimeout.Auto && r.Tx.AckTimeout.Fixed <= 0 {
		return invalid("tx ack_timeout_ms must be > 0 or \"auto\"")
	}
	if r.Tx.MaxRetries < 0 || r.Tx.MaxInflight <= 0 {
		return invalid("tx max_retries must be >= 0 and max_inflight must be > 0")
	}
	if r.MaxPayloadBytes <= 0 || r.MaxPayloadBytes > 255 {
		return invalid("max_payload_bytes must be 1..255")
	}
	return nil
}

// Load reads a RunSpec from a JSON or YAML file (by extension) and
// validates it before returning.
func Load(path string) (RunSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunSpec{}, invalid("reading %s: %v", path, err)
	}
	var spec RunSpec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return RunSpec{}, invalid("parsing %s: %v", path, err)
		}
	default:
		if err := json.Unmarshal(data, &spec); err != nil {
			return RunSpec{}, invalid("parsing %s: %v", path, err)
		}
	}
	if err := spec.Validate(); err != nil {
		return RunSpec{}, err
	}
	return spec, nil
}

// Save writes a RunSpec as JSON or YAML (by the target path's extension).
func Save(path string, spec RunSpec) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(spec)
		if err != nil {
			return invalid("encoding %s: %v", path, err)
		}
		return os.WriteFile(path, data, 0o644)
	default:
		data, err := json.MarshalIndent(spec, "", "  ")
		if err != nil {
			return invalid("encoding %s: %v", path, err)
		}
		return os.WriteFile(path, data, 0o644)
	}
}
