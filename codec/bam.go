package codec

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/chirpchirp/loralink/artifacts"
	"gonum.org/v1/gonum/mat"
)

func init() {
	Register("bam", func(version string, params Params) (Codec, error) {
		manifestPath := params.stringOr("manifest_path", "")
		if manifestPath == "" {
			return nil, newError("codec: bam codec requires params.manifest_path")
		}
		return NewBamCodecFromManifest(version, manifestPath)
	})
}

// BamCodec runs a trained BAM (bidirectional associative memory)
// autoencoder's forward layers to compress a window into a latent vector,
// and its backward layers to reconstruct a window from a received one. Each
// layer applies a shared transmission nonlinearity that emulates what the
// channel does to an analog value, and may be cycled bidirectionally
// through its W/V pair to settle towards an attractor before moving to the
// next layer.
type BamCodec struct {
	version  string
	artifact artifacts.BamArtifacts
	layers   []artifacts.BamLayer
	norm     *artifacts.BamNorm
}

// NewBamCodecFromManifest loads a BAM manifest plus its layer weights (and
// optional normalization parameters) relative to the manifest file's
// directory.
func NewBamCodecFromManifest(version, manifestPath string) (*BamCodec, error) {
	art, err := artifacts.LoadBamArtifacts(manifestPath)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(manifestPath)
	return NewBamCodec(version, art, baseDir)
}

// NewBamCodec constructs a BamCodec from already-loaded artifacts, resolving
// model_path/norm_path relative to baseDir when they are not absolute.
func NewBamCodec(version string, art artifacts.BamArtifacts, baseDir string) (*BamCodec, error) {
	c := &BamCodec{version: version, artifact: art}
	if err := c.validateDynamics(); err != nil {
		return nil, err
	}
	if art.ModelFormat != "layer_npz_v1" && art.ModelFormat != "layer_json_v1" {
		return nil, newError("codec: unsupported bam model_format: %s", art.ModelFormat)
	}
	layers, err := artifacts.LoadBamLayers(resolvePath(baseDir, art.ModelPath), art.ExpectedInputLen(), art.LatentDim)
	if err != nil {
		return nil, err
	}
	c.layers = layers

	if art.NormPath != "" {
		norm, err := artifacts.LoadBamNorm(resolvePath(baseDir, art.NormPath), art.ExpectedInputLen())
		if err != nil {
			return nil, err
		}
		c.norm = &norm
	}
	return c, nil
}

func resolvePath(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func (c *BamCodec) validateDynamics() error {
	if c.artifact.EncodeCycles < 0 || c.artifact.DecodeCycles < 0 {
		return newError("codec: bam encode_cycles/decode_cycles must be >= 0")
	}
	delta := c.artifact.Delta
	if (c.artifact.EncodeCycles != 0 || c.artifact.DecodeCycles != 0) && delta != nil {
		if *delta >= 0.5 {
			return newError("codec: bam delta must be < 0.5 when encode_cycles/decode_cycles are enabled")
		}
	}
	return nil
}

func (c *BamCodec) ID() string      { return "bam" }
func (c *BamCodec) Version() string { return c.version }

func (c *BamCodec) applyNorm(v []float64) ([]float64, error) {
	if c.norm == nil {
		return v, nil
	}
	if len(v) != len(c.norm.Mean) {
		return nil, newError("codec: norm input length mismatch")
	}
	out := make([]float64, len(v))
	for i, x := range v {
		std := c.norm.Std[i]
		if std == 0 {
			out[i] = 0
			continue
		}
		out[i] = (x - c.norm.Mean[i]) / std
	}
	return out, nil
}

func (c *BamCodec) invertNorm(v []float64) ([]float64, error) {
	if c.norm == nil {
		return v, nil
	}
	if len(v) != len(c.norm.Mean) {
		return nil, newError("codec: norm input length mismatch")
	}
	out := make([]float64, len(v))
	for i, x := range v {
		std := c.norm.Std[i]
		if std == 0 {
			out[i] = c.norm.Mean[i]
			continue
		}
		out[i] = x*std + c.norm.Mean[i]
	}
	return out, nil
}

// transmission applies the cubic transmission nonlinearity
// (delta+1)*x - delta*x^3, clipped to [-1, 1], emulating a lossy analog
// channel between cycles. delta == nil or 0 is the identity.
func (c *BamCodec) transmission(v []float64) []float64 {
	delta := c.artifact.Delta
	if delta == nil || *delta == 0.0 {
		return v
	}
	d := *delta
	out := make([]float64, len(v))
	for i, x := range v {
		y := (d+1)*x - d*x*x*x
		if y < -1.0 {
			y = -1.0
		} else if y > 1.0 {
			y = 1.0
		}
		out[i] = y
	}
	return out
}

func matVec(rows [][]float64, v []float64) []float64 {
	nRows := len(rows)
	nCols := len(rows[0])
	W := mat.NewDense(nRows, nCols, flatten(rows))
	x := mat.NewVecDense(len(v), v)
	var y mat.VecDense
	y.MulVec(W, x)
	out := make([]float64, nRows)
	for i := 0; i < nRows; i++ {
		out[i] = y.AtVec(i)
	}
	return out
}

func flatten(rows [][]float64) []float64 {
	out := make([]float64, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func (c *BamCodec) Encode(window []float64) ([]byte, error) {
	expectedLen := c.artifact.ExpectedInputLen()
	if len(window) != expectedLen {
		return nil, newError("codec: bam window length %d does not match expected %d", len(window), expectedLen)
	}
	vector, err := c.applyNorm(append([]float64{}, window...))
	if err != nil {
		return nil, err
	}

	encodeCycles := c.artifact.EncodeCycles
	for _, layer := range c.layers {
		y0 := c.transmission(matVec(layer.W, vector))
		if encodeCycles <= 0 {
			vector = y0
			continue
		}
		yC, xC := y0, vector
		for i := 0; i < encodeCycles; i++ {
			xC = c.transmission(matVec(layer.V, yC))
			yC = c.transmission(matVec(layer.W, xC))
		}
		vector = yC
	}
	return c.pack(vector)
}

func (c *BamCodec) Decode(payload []byte) ([]float64, error) {
	expectedBytes := c.artifact.ExpectedPayloadBytes()
	if expectedBytes >= 0 && len(payload) != expectedBytes {
		return nil, newError("codec: bam payload length %d does not match expected %d", len(payload), expectedBytes)
	}
	vector, err := c.unpack(payload)
	if err != nil {
		return nil, err
	}

	decodeCycles := c.artifact.DecodeCycles
	for i := len(c.layers) - 1; i >= 0; i-- {
		layer := c.layers[i]
		x0 := c.transmission(matVec(layer.V, vector))
		if decodeCycles <= 0 {
			vector = x0
			continue
		}
		xC, yC := x0, vector
		for j := 0; j < decodeCycles; j++ {
			yC = c.transmission(matVec(layer.W, xC))
			xC = c.transmission(matVec(layer.V, yC))
		}
		vector = xC
	}
	return c.invertNorm(vector)
}

func (c *BamCodec) requireScale() (float64, error) {
	if c.artifact.Scale == nil {
		return 0, newError("codec: bam packing requires scale")
	}
	if *c.artifact.Scale <= 0 {
		return 0, newError("codec: bam scale must be positive")
	}
	return *c.artifact.Scale, nil
}

func (c *BamCodec) pack(vector []float64) ([]byte, error) {
	if len(vector) != c.artifact.LatentDim {
		return nil, newError("codec: latent vector length does not match latent_dim")
	}
	switch strings.ToLower(c.artifact.Packing) {
	case "int8":
		scale, err := c.requireScale()
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(vector))
		for i, v := range vector {
			out[i] = byte(int8(clampRound(v*scale, -128, 127)))
		}
		return out, nil
	case "int16":
		scale, err := c.requireScale()
		if err != nil {
			return nil, err
		}
		out := make([]byte, len(vector)*2)
		for i, v := range vector {
			q := int16(clampRound(v*scale, -32768, 32767))
			putInt16LE(out[2*i:], q)
		}
		return out, nil
	case "float16":
		out := make([]byte, len(vector)*2)
		for i, v := range vector {
			putFloat16LE(out[2*i:], float32ToFloat16(float32(v)))
		}
		return out, nil
	case "float32":
		out := make([]byte, len(vector)*4)
		for i, v := range vector {
			putFloat32LE(out[4*i:], float32(v))
		}
		return out, nil
	default:
		return nil, newError("codec: unsupported bam packing: %s", c.artifact.Packing)
	}
}

func (c *BamCodec) unpack(payload []byte) ([]float64, error) {
	switch strings.ToLower(c.artifact.Packing) {
	case "int8":
		scale, err := c.requireScale()
		if err != nil {
			return nil, err
		}
		if len(payload) != c.artifact.LatentDim {
			return nil, newError("codec: payload latent length mismatch")
		}
		out := make([]float64, len(payload))
		for i, b := range payload {
			out[i] = float64(int8(b)) / scale
		}
		return out, nil
	case "int16":
		scale, err := c.requireScale()
		if err != nil {
			return nil, err
		}
		if len(payload)%2 != 0 || len(payload)/2 != c.artifact.LatentDim {
			return nil, newError("codec: payload latent length mismatch")
		}
		out := make([]float64, len(payload)/2)
		for i := range out {
			out[i] = float64(getInt16LE(payload[2*i:])) / scale
		}
		return out, nil
	case "float16":
		if len(payload)%2 != 0 || len(payload)/2 != c.artifact.LatentDim {
			return nil, newError("codec: payload latent length mismatch")
		}
		out := make([]float64, len(payload)/2)
		for i := range out {
			out[i] = float64(float16ToFloat32(getFloat16LE(payload[2*i:])))
		}
		return out, nil
	case "float32":
		if len(payload)%4 != 0 || len(payload)/4 != c.artifact.LatentDim {
			return nil, newError("codec: payload latent length mismatch")
		}
		out := make([]float64, len(payload)/4)
		for i := range out {
			out[i] = float64(getFloat32LE(payload[4*i:]))
		}
		return out, nil
	default:
		return nil, newError("codec: unsupported bam packing: %s", c.artifact.Packing)
	}
}

func (c *BamCodec) PayloadSchema() string {
	scale := "none"
	if c.artifact.Scale != nil {
		scale = ftoa(*c.artifact.Scale)
	}
	return "bam:latent_dim=" + itoa(c.artifact.LatentDim) + ":packing=" + c.artifact.Packing + ":scale=" + scale
}

func clampRound(v, lo, hi float64) float64 {
	r := math.Round(v)
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}
