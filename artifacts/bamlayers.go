package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// BamLayer holds one trained layer's forward (W) and backward (V) weight
// matrices, row-major, as returned by LoadBamLayers.
type BamLayer struct {
	W      [][]float64
	V      [][]float64
	InDim  int
	OutDim int
}

var layerFileRe = regexp.MustCompile(`^layer_(\d+)\.json$`)

// LoadBamLayers reads a directory of layer_<N>.json files (this module's
// Go-native equivalent of the original layer_npz_v1 numpy archives: the
// same per-layer W/V weight-matrix contract, serialized as JSON arrays
// instead of a numpy zip so it loads with the standard library) and
// returns them sorted by layer index, validating that consecutive layers'
// dimensions chain together and that the final layer's output dimension
// matches the declared latent_dim.
func LoadBamLayers(modelPath string, expectedInputDim, latentDim int) ([]BamLayer, error) {
	info, err := os.Stat(modelPath)
	if err != nil {
		return nil, newError("artifacts: bam model_path does not exist: %s", modelPath)
	}
	if !info.IsDir() {
		return nil, newError("artifacts: layer_json_v1 requires model_path to be a directory")
	}

	entries, err := os.ReadDir(modelPath)
	if err != nil {
		return nil, newError("artifacts: reading model_path: %v", err)
	}

	type indexed struct {
		idx  int
		name string
	}
	var files []indexed
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := layerFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		files = append(files, indexed{idx: idx, name: e.Name()})
	}
	if len(files) == 0 {
		return nil, newError("artifacts: no layer_*.json files found in %s", modelPath)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].idx < files[j].idx })

	var layers []BamLayer
	prevOut := -1
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(modelPath, f.name))
		if err != nil {
			return nil, newError("artifacts: reading layer file %s: %v", f.name, err)
		}
		var raw struct {
			W [][]float64 `json:"W"`
			V [][]float64 `json:"V"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, newError("artifacts: layer file %s: %v", f.name, err)
		}
		if len(raw.W) == 0 || len(raw.V) == 0 {
			return nil, newError("artifacts: layer file missing W/V: %s", f.name)
		}
		outDim := len(raw.W)
		inDim := len(raw.W[0])
		if len(raw.V) != inDim || len(raw.V[0]) != outDim {
			return nil, newError("artifacts: layer V shape mismatch with W: %s", f.name)
		}
		if prevOut == -1 {
			if inDim != expectedInputDim {
				return nil, newError("artifacts: layer input dim %d does not match expected %d", inDim, expectedInputDim)
			}
		} else if inDim != prevOut {
			return nil, newError("artifacts: layer input dim %d does not match previous %d", inDim, prevOut)
		}
		prevOut = outDim
		layers = append(layers, BamLayer{W: raw.W, V: raw.V, InDim: inDim, OutDim: outDim})
	}

	if prevOut != latentDim {
		return nil, newError("artifacts: latent_dim %d does not match model output %d", latentDim, prevOut)
	}
	return layers, nil
}

// BamNorm holds the per-channel mean/std normalization a BAM model was
// trained with.
type BamNorm struct {
	Mean []float64
	Std  []float64
}

// LoadBamNorm reads a JSON norm file ({"mean": [...], "std": [...]}),
// validating that both arrays have the expected length and that std
// carries no negative entries.
func LoadBamNorm(path string, expectedLen int) (BamNorm, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BamNorm{}, newError("artifacts: norm_path does not exist: %s", path)
	}
	var raw struct {
		Mean []float64 `json:"mean"`
		Std  []float64 `json:"std"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return BamNorm{}, newError("artifacts: norm file must contain mean and std arrays")
	}
	if raw.Mean == nil || raw.Std == nil {
		return BamNorm{}, newError("artifacts: norm file must contain mean and std arrays")
	}
	if len(raw.Mean) != expectedLen || len(raw.Std) != expectedLen {
		return BamNorm{}, newError("artifacts: norm mean/std length does not match expected input length")
	}
	for _, s := range raw.Std {
		if s < 0 {
			return BamNorm{}, newError("artifacts: norm std must be non-negative")
		}
	}
	return BamNorm{Mean: raw.Mean, Std: raw.Std}, nil
}
