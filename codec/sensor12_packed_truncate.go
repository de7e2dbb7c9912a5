package codec

import "fmt"

func init() {
	Register("sensor12_packed_truncate", func(version string, params Params) (Codec, error) {
		return NewSensor12PackedTruncateCodec(
			version,
			params.intOr("payload_bytes", 0),
			params.intOr("window_W", 1),
			params.floatOr("accel_scale", 1000.0),
			params.floatOr("gyro_scale", 10.0),
			params.floatOr("rpy_scale", 10.0),
		)
	})
}

// Sensor12PackedTruncateCodec is a deterministic lossy baseline: it slices
// or zero-pads the sensor12_packed byte stream to a fixed on-air length,
// for comparing naive truncation against learned compression.
type Sensor12PackedTruncateCodec struct {
	version      string
	payloadBytes int
	windowW      int
	inner        *Sensor12PackedCodec
}

// NewSensor12PackedTruncateCodec constructs a fixed-length truncating codec.
func NewSensor12PackedTruncateCodec(version string, payloadBytes, windowW int, accelScale, gyroScale, rpyScale float64) (*Sensor12PackedTruncateCodec, error) {
	if payloadBytes <= 0 || payloadBytes > 255 {
		return nil, newError("codec: sensor12_packed_truncate payload_bytes must be 1..255")
	}
	if windowW <= 0 {
		return nil, newError("codec: sensor12_packed_truncate window_W must be > 0")
	}
	inner, err := NewSensor12PackedCodec(version, accelScale, gyroScale, rpyScale)
	if err != nil {
		return nil, err
	}
	return &Sensor12PackedTruncateCodec{version: version, payloadBytes: payloadBytes, windowW: windowW, inner: inner}, nil
}

func (c *Sensor12PackedTruncateCodec) ID() string      { return "sensor12_packed_truncate" }
func (c *Sensor12PackedTruncateCodec) Version() string { return c.version }

func (c *Sensor12PackedTruncateCodec) fullLen() int {
	return sensor12StepSize * c.windowW
}

func (c *Sensor12PackedTruncateCodec) Encode(window []float64) ([]byte, error) {
	if len(window)%12 != 0 {
		return nil, newError("codec: sensor12_packed_truncate window length must be a multiple of 12")
	}
	inferredW := len(window) / 12
	if inferredW != c.windowW {
		return nil, newError("codec: window_W %d does not match inferred W %d from input", c.windowW, inferredW)
	}
	full, err := c.inner.Encode(window)
	if err != nil {
		return nil, err
	}
	switch {
	case len(full) > c.payloadBytes:
		return full[:c.payloadBytes], nil
	case len(full) < c.payloadBytes:
		out := make([]byte, c.payloadBytes)
		copy(out, full)
		return out, nil
	default:
		return full, nil
	}
}

func (c *Sensor12PackedTruncateCodec) Decode(payload []byte) ([]float64, error) {
	fullLen := c.fullLen()
	if len(payload) > fullLen {
		payload = payload[:fullLen]
	} else if len(payload) < fullLen {
		padded := make([]byte, fullLen)
		copy(padded, payload)
		payload = padded
	}
	return c.inner.Decode(payload)
}

func (c *Sensor12PackedTruncateCodec) PayloadSchema() string {
	return fmt.Sprintf(
		"sensor12_packed_truncate_v1:payload_bytes=%d:W=%d:inner=%s",
		c.payloadBytes, c.windowW, c.inner.PayloadSchema(),
	)
}
