package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

func init() {
	Register("raw", func(version string, params Params) (Codec, error) {
		return NewRawCodec(version, params.floatOr("scale", 32767.0))
	})
}

// RawCodec quantizes each sample into a little-endian int16, clamped to
// [-1, 1] before scaling. It is the baseline, uncompressed wire format.
type RawCodec struct {
	version string
	scale   float64
}

// NewRawCodec constructs a RawCodec with the given quantization scale.
func NewRawCodec(version string, scale float64) (*RawCodec, error) {
	if scale <= 0 {
		return nil, newError("codec: raw scale must be > 0")
	}
	return &RawCodec{version: version, scale: scale}, nil
}

func (c *RawCodec) ID() string      { return "raw" }
func (c *RawCodec) Version() string { return c.version }

func (c *RawCodec) Encode(window []float64) ([]byte, error) {
	out := make([]byte, 2*len(window))
	for i, v := range window {
		clamped := math.Max(-1.0, math.Min(1.0, v))
		q := int32(math.Round(clamped * c.scale))
		if q < -32768 {
			q = -32768
		}
		if q > 32767 {
			q = 32767
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(q)))
	}
	return out, nil
}

func (c *RawCodec) Decode(payload []byte) ([]float64, error) {
	if len(payload)%2 != 0 {
		return nil, newError("codec: raw payload length must be even")
	}
	count := len(payload) / 2
	out := make([]float64, count)
	for i := 0; i < count; i++ {
		v := int16(binary.LittleEndian.Uint16(payload[2*i:]))
		out[i] = float64(v) / c.scale
	}
	return out, nil
}

func (c *RawCodec) PayloadSchema() string {
	return fmt.Sprintf("raw:int16:le:scale=%v", c.scale)
}
