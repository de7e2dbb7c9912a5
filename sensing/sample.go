// Package sensing turns raw sensor records into the fixed 12-channel
// sample vector the rest of the link operates on, and batches samples into
// fixed-size windows for the codec layer.
package sensing

import (
	"fmt"
	"strings"
	"time"
)

// ChannelOrder is the canonical flat ordering shared by ingest, codecs, and
// logging: GPS position, accelerometer, gyroscope, then attitude.
var ChannelOrder = [12]string{
	"lat", "lon", "alt",
	"ax", "ay", "az",
	"gx", "gy", "gz",
	"roll", "pitch", "yaw",
}

// ChannelUnits documents each channel's physical unit, carried through to
// dataset logs for downstream analysis.
var ChannelUnits = map[string]string{
	"lat": "deg", "lon": "deg", "alt": "m",
	"ax": "m/s^2", "ay": "m/s^2", "az": "m/s^2",
	"gx": "deg/s", "gy": "deg/s", "gz": "deg/s",
	"roll": "deg", "pitch": "deg", "yaw": "deg",
}

// ParseError reports a malformed sensor record: a missing field, a value
// that doesn't coerce to float64, or an unparseable timestamp.
type ParseError struct {
	msg string
}

func (e *ParseError) Error() string { return e.msg }

func parseErrorf(format string, args ...any) *ParseError {
	return &ParseError{msg: fmt.Sprintf("sensing: "+format, args...)}
}

// Sample is one fully-resolved 12-channel sensor reading.
type Sample struct {
	TSMillis         int64
	Lat, Lon, Alt    float64
	AX, AY, AZ       float64
	GX, GY, GZ       float64
	Roll, Pitch, Yaw float64
}

// Vector returns the sample as a flat slice in ChannelOrder.
func (s Sample) Vector() []float64 {
	return []float64{
		s.Lat, s.Lon, s.Alt,
		s.AX, s.AY, s.AZ,
		s.GX, s.GY, s.GZ,
		s.Roll, s.Pitch, s.Yaw,
	}
}

func coerceFloat(v any, field string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err != nil {
			return 0, parseErrorf("invalid %s value: %q", field, n)
		}
		return f, nil
	default:
		return 0, parseErrorf("invalid %s value: %v", field, v)
	}
}

func coerceTSMillis(data map[string]any) (int64, error) {
	if v, ok := data["ts_ms"]; ok {
		f, err := coerceFloat(v, "ts_ms")
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}
	if v, ok := data["ts"]; ok {
		f, err := coerceFloat(v, "ts")
		if err != nil {
			return 0, err
		}
		return int64(f * 1000), nil
	}
	if v, ok := data["timestamp"]; ok {
		text, ok := v.(string)
		if !ok {
			return 0, parseErrorf("invalid timestamp: %v", v)
		}
		text = strings.TrimSuffix(text, "Z")
		if !strings.Contains(text, "+") && strings.Count(text, "-") <= 2 {
			text += "+00:00"
		}
		t, err := time.Parse("2006-01-02T15:04:05Z07:00", text)
		if err != nil {
			t, err = time.Parse(time.RFC3339, text)
			if err != nil {
				return 0, parseErrorf("invalid timestamp: %q", v)
			}
		}
		return t.UnixMilli(), nil
	}
	return 0, parseErrorf("missing ts_ms/ts/timestamp field")
}

func nested(data map[string]any, key string) map[string]any {
	v, ok := data[key]
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

// extractFlatFields flattens the three nested record shapes (gps,
// accel/gyro, attitude/angle) into the canonical flat field set, letting
// top-level flat fields override nested ones.
func extractFlatFields(data map[string]any) map[string]any {
	flat := map[string]any{}
	if gps := nested(data, "gps"); gps != nil {
		if v, ok := gps["lat"]; ok {
			flat["lat"] = v
		}
		if v, ok := gps["lon"]; ok {
			flat["lon"] = v
		}
		if v, ok := gps["alt"]; ok {
			flat["alt"] = v
		} else if v, ok := gps["altitude"]; ok {
			flat["alt"] = v
		}
	}
	if accel := nested(data, "accel"); accel != nil {
		for _, k := range []string{"ax", "ay", "az"} {
			if v, ok := accel[k]; ok {
				flat[k] = v
			}
		}
	}
	if gyro := nested(data, "gyro"); gyro != nil {
		for _, k := range []string{"gx", "gy", "gz"} {
			if v, ok := gyro[k]; ok {
				flat[k] = v
			}
		}
	}
	if attitude := nested(data, "attitude"); attitude != nil {
		for _, k := range []string{"roll", "pitch", "yaw"} {
			if v, ok := attitude[k]; ok {
				flat[k] = v
			}
		}
	}
	if angle := nested(data, "angle"); angle != nil {
		for _, k := range []string{"roll", "pitch", "yaw"} {
			if v, ok := angle[k]; ok {
				flat[k] = v
			}
		}
	}
	for _, key := range ChannelOrder {
		if v, ok := data[key]; ok {
			flat[key] = v
		}
	}
	return flat
}

// ParseSample converts a raw decoded record (flat, or nested under gps/
// accel/gyro/attitude/angle) into a Sample, coercing every channel to
// float64 and resolving a timestamp from ts_ms, ts, or timestamp.
func ParseSample(data map[string]any) (Sample, error) {
	tsMillis, err := coerceTSMillis(data)
	if err != nil {
		return Sample{}, err
	}
	flat := extractFlatFields(data)

	var missing []string
	for _, field := range ChannelOrder {
		if flat[field] == nil {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return Sample{}, parseErrorf("missing sensor fields: %s", strings.Join(missing, ", "))
	}

	values := make(map[string]float64, 12)
	for _, field := range ChannelOrder {
		v, err := coerceFloat(flat[field], field)
		if err != nil {
			return Sample{}, err
		}
		values[field] = v
	}

	return Sample{
		TSMillis: tsMillis,
		Lat:      values["lat"], Lon: values["lon"], Alt: values["alt"],
		AX: values["ax"], AY: values["ay"], AZ: values["az"],
		GX: values["gx"], GY: values["gy"], GZ: values["gz"],
		Roll: values["roll"], Pitch: values["pitch"], Yaw: values["yaw"],
	}, nil
}
