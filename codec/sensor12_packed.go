package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

func init() {
	Register("sensor12_packed", func(version string, params Params) (Codec, error) {
		return NewSensor12PackedCodec(
			version,
			params.floatOr("accel_scale", 1000.0),
			params.floatOr("gyro_scale", 10.0),
			params.floatOr("rpy_scale", 10.0),
		)
	})
}

// sensor12StepSize is the on-wire size of one 12-channel step: 3 float32
// (lat, lon, alt) plus 9 int16 (accel, gyro, rpy), little-endian.
const sensor12StepSize = 3*4 + 9*2

// Sensor12PackedCodec packs the fixed 12-channel sample
// [lat, lon, alt, ax, ay, az, gx, gy, gz, roll, pitch, yaw] into a compact
// per-step binary record: GPS coordinates at full float32 precision, the
// IMU channels as scaled int16.
type Sensor12PackedCodec struct {
	version    string
	accelScale float64
	gyroScale  float64
	rpyScale   float64
}

// NewSensor12PackedCodec constructs a codec with the given per-channel
// quantization scales.
func NewSensor12PackedCodec(version string, accelScale, gyroScale, rpyScale float64) (*Sensor12PackedCodec, error) {
	if accelScale <= 0 || gyroScale <= 0 || rpyScale <= 0 {
		return nil, newError("codec: sensor12_packed scales must be > 0")
	}
	return &Sensor12PackedCodec{version: version, accelScale: accelScale, gyroScale: gyroScale, rpyScale: rpyScale}, nil
}

func (c *Sensor12PackedCodec) ID() string      { return "sensor12_packed" }
func (c *Sensor12PackedCodec) Version() string { return c.version }

func clampInt16(v float64) int16 {
	if v < -32768 {
		return -32768
	}
	if v > 32767 {
		return 32767
	}
	return int16(v)
}

func (c *Sensor12PackedCodec) Encode(window []float64) ([]byte, error) {
	if len(window)%12 != 0 {
		return nil, newError("codec: sensor12_packed window length must be a multiple of 12")
	}
	if len(window) == 0 {
		return []byte{}, nil
	}
	out := make([]byte, 0, (len(window)/12)*sensor12StepSize)
	for i := 0; i < len(window); i += 12 {
		buf := make([]byte, sensor12StepSize)
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(window[i+0])))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(window[i+1])))
		binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(float32(window[i+2])))

		ax := clampInt16(math.Round(window[i+3] * c.accelScale))
		ay := clampInt16(math.Round(window[i+4] * c.accelScale))
		az := clampInt16(math.Round(window[i+5] * c.accelScale))
		gx := clampInt16(math.Round(window[i+6] * c.gyroScale))
		gy := clampInt16(math.Round(window[i+7] * c.gyroScale))
		gz := clampInt16(math.Round(window[i+8] * c.gyroScale))
		roll := clampInt16(math.Round(window[i+9] * c.rpyScale))
		pitch := clampInt16(math.Round(window[i+10] * c.rpyScale))
		yaw := clampInt16(math.Round(window[i+11] * c.rpyScale))

		vals := []int16{ax, ay, az, gx, gy, gz, roll, pitch, yaw}
		for j, v := range vals {
			binary.LittleEndian.PutUint16(buf[12+2*j:], uint16(v))
		}
		out = append(out, buf...)
	}
	return out, nil
}

func (c *Sensor12PackedCodec) Decode(payload []byte) ([]float64, error) {
	if len(payload)%sensor12StepSize != 0 {
		return nil, newError("codec: sensor12_packed payload length mismatch")
	}
	if len(payload) == 0 {
		return []float64{}, nil
	}
	out := make([]float64, 0, (len(payload)/sensor12StepSize)*12)
	for i := 0; i < len(payload); i += sensor12StepSize {
		step := payload[i : i+sensor12StepSize]
		lat := math.Float32frombits(binary.LittleEndian.Uint32(step[0:4]))
		lon := math.Float32frombits(binary.LittleEndian.Uint32(step[4:8]))
		alt := math.Float32frombits(binary.LittleEndian.Uint32(step[8:12]))

		readInt16 := func(off int) int16 { return int16(binary.LittleEndian.Uint16(step[off:])) }
		ax, ay, az := readInt16(12), readInt16(14), readInt16(16)
		gx, gy, gz := readInt16(18), readInt16(20), readInt16(22)
		roll, pitch, yaw := readInt16(24), readInt16(26), readInt16(28)

		out = append(out,
			float64(lat), float64(lon), float64(alt),
			float64(ax)/c.accelScale, float64(ay)/c.accelScale, float64(az)/c.accelScale,
			float64(gx)/c.gyroScale, float64(gy)/c.gyroScale, float64(gz)/c.gyroScale,
			float64(roll)/c.rpyScale, float64(pitch)/c.rpyScale, float64(yaw)/c.rpyScale,
		)
	}
	return out, nil
}

func (c *Sensor12PackedCodec) PayloadSchema() string {
	return fmt.Sprintf(
		"sensor12_packed_v1:le:gps=f32,f32,f32:accel=i16@%v:gyro=i16@%v:rpy=i16@%v",
		c.accelScale, c.gyroScale, c.rpyScale,
	)
}
