package artifacts

import (
	"encoding/json"
	"os"
	"strings"
)

// BamArtifacts describes a trained BAM (bidirectional associative memory)
// autoencoder: where its layer weights live, how its latent vector is
// packed onto the wire, and the transmission-nonlinearity / cycle
// parameters it was trained with.
type BamArtifacts struct {
	ManifestVersion string   `json:"manifest_version"`
	ModelFormat     string   `json:"model_format"`
	ModelPath       string   `json:"model_path"`
	LatentDim       int      `json:"latent_dim"`
	Packing         string   `json:"packing"`
	Scale           *float64 `json:"scale"`
	Delta           *float64 `json:"delta"`
	EncodeCycles    int      `json:"encode_cycles"`
	DecodeCycles    int      `json:"decode_cycles"`
	InputDims       int      `json:"input_dims"`
	WindowW         int      `json:"window_W"`
	WindowStride    int      `json:"window_stride"`
	NormPath        string   `json:"norm_path"`
	Notes           string   `json:"notes"`
}

// LoadBamArtifacts reads a BAM artifacts manifest from a JSON file.
func LoadBamArtifacts(path string) (BamArtifacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BamArtifacts{}, newError("artifacts: load bam artifacts: %v", err)
	}
	var raw struct {
		ManifestVersion string   `json:"manifest_version"`
		ModelFormat     string   `json:"model_format"`
		ModelPath       string   `json:"model_path"`
		LatentDim       *int     `json:"latent_dim"`
		Packing         string   `json:"packing"`
		Scale           *float64 `json:"scale"`
		Delta           *float64 `json:"delta"`
		EncodeCycles    *int     `json:"encode_cycles"`
		DecodeCycles    *int     `json:"decode_cycles"`
		InputDims       *int     `json:"input_dims"`
		WindowW         *int     `json:"window_W"`
		WindowStride    *int     `json:"window_stride"`
		NormPath        string   `json:"norm_path"`
		Notes           string   `json:"notes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return BamArtifacts{}, newError("artifacts: load bam artifacts: %v", err)
	}

	missing := []string{}
	if raw.ManifestVersion == "" {
		missing = append(missing, "manifest_version")
	}
	if raw.ModelFormat == "" {
		missing = append(missing, "model_format")
	}
	if raw.ModelPath == "" {
		missing = append(missing, "model_path")
	}
	if raw.LatentDim == nil {
		missing = append(missing, "latent_dim")
	}
	if raw.Packing == "" {
		missing = append(missing, "packing")
	}
	if raw.InputDims == nil {
		missing = append(missing, "input_dims")
	}
	if raw.WindowW == nil {
		missing = append(missing, "window_W")
	}
	if raw.WindowStride == nil {
		missing = append(missing, "window_stride")
	}
	if len(missing) > 0 {
		return BamArtifacts{}, newError("artifacts: missing bam_artifacts keys: %s", strings.Join(missing, ", "))
	}

	encodeCycles, decodeCycles := 0, 0
	if raw.EncodeCycles != nil {
		encodeCycles = *raw.EncodeCycles
	}
	if raw.DecodeCycles != nil {
		decodeCycles = *raw.DecodeCycles
	}
	if encodeCycles < 0 || decodeCycles < 0 {
		return BamArtifacts{}, newError("artifacts: encode_cycles and decode_cycles must be >= 0")
	}

	return BamArtifacts{
		ManifestVersion: raw.ManifestVersion,
		ModelFormat:     raw.ModelFormat,
		ModelPath:       raw.ModelPath,
		LatentDim:       *raw.LatentDim,
		Packing:         raw.Packing,
		Scale:           raw.Scale,
		Delta:           raw.Delta,
		EncodeCycles:    encodeCycles,
		DecodeCycles:    decodeCycles,
		InputDims:       *raw.InputDims,
		WindowW:         *raw.WindowW,
		WindowStride:    *raw.WindowStride,
		NormPath:        raw.NormPath,
		Notes:           raw.Notes,
	}, nil
}

// ExpectedInputLen is the flattened input length a BAM model expects:
// input_dims * window_W.
func (a BamArtifacts) ExpectedInputLen() int {
	return a.InputDims * a.WindowW
}

var bamPackingBytes = map[string]int{
	"int8":    1,
	"int16":   2,
	"float16": 2,
	"float32": 4,
}

// ExpectedPayloadBytes is the fixed on-wire payload size for a given
// packing, or -1 if the packing is unrecognized.
func (a BamArtifacts) ExpectedPayloadBytes() int {
	bytesPer, ok := bamPackingBytes[strings.ToLower(a.Packing)]
	if !ok {
		return -1
	}
	return a.LatentDim * bytesPer
}
