package sensing

import "testing"

func flatRecord() map[string]any {
	return map[string]any{
		"ts_ms": 1000.0,
		"lat":   1.0, "lon": 2.0, "alt": 3.0,
		"ax": 0.1, "ay": 0.2, "az": 9.8,
		"gx": 0.0, "gy": 0.0, "gz": 0.0,
		"roll": 1.0, "pitch": 2.0, "yaw": 3.0,
	}
}

func TestParseSampleFlat(t *testing.T) {
	s, err := ParseSample(flatRecord())
	if err != nil {
		t.Fatalf("ParseSample: %v", err)
	}
	if s.TSMillis != 1000 || s.Lat != 1.0 || s.Yaw != 3.0 {
		t.Fatalf("unexpected sample: %+v", s)
	}
}

func TestParseSampleNested(t *testing.T) {
	data := map[string]any{
		"ts": 1.0,
		"gps": map[string]any{"lat": 1.0, "lon": 2.0, "altitude": 3.0},
		"accel": map[string]any{"ax": 0.1, "ay": 0.2, "az": 9.8},
		"gyro":  map[string]any{"gx": 0.0, "gy": 0.0, "gz": 0.0},
		"attitude": map[string]any{"roll": 1.0, "pitch": 2.0, "yaw": 3.0},
	}
	s, err := ParseSample(data)
	if err != nil {
		t.Fatalf("ParseSample: %v", err)
	}
	if s.TSMillis != 1000 || s.Alt != 3.0 {
		t.Fatalf("unexpected sample: %+v", s)
	}
}

func TestParseSampleAngleOverridesAttitude(t *testing.T) {
	data := flatRecord()
	delete(data, "roll")
	delete(data, "pitch")
	delete(data, "yaw")
	data["attitude"] = map[string]any{"roll": 9.0, "pitch": 9.0, "yaw": 9.0}
	data["angle"] = map[string]any{"roll": 1.0, "pitch": 2.0, "yaw": 3.0}
	s, err := ParseSample(data)
	if err != nil {
		t.Fatalf("ParseSample: %v", err)
	}
	if s.Roll != 1.0 || s.Yaw != 3.0 {
		t.Fatalf("expected angle to override attitude, got %+v", s)
	}
}

func TestParseSampleMissingField(t *testing.T) {
	data := flatRecord()
	delete(data, "az")
	if _, err := ParseSample(data); err == nil {
		t.Fatal("expected an error for a missing channel")
	}
}

func TestParseSampleMissingTimestamp(t *testing.T) {
	data := flatRecord()
	delete(data, "ts_ms")
	if _, err := ParseSample(data); err == nil {
		t.Fatal("expected an error for a missing timestamp")
	}
}

func TestParseSampleISOTimestamp(t *testing.T) {
	data := flatRecord()
	delete(data, "ts_ms")
	data["timestamp"] = "1970-01-01T00:00:01Z"
	s, err := ParseSample(data)
	if err != nil {
		t.Fatalf("ParseSample: %v", err)
	}
	if s.TSMillis != 1000 {
		t.Fatalf("expected 1000ms, got %d", s.TSMillis)
	}
}

func TestSampleVectorOrder(t *testing.T) {
	s, err := ParseSample(flatRecord())
	if err != nil {
		t.Fatalf("ParseSample: %v", err)
	}
	v := s.Vector()
	if len(v) != 12 || v[0] != s.Lat || v[11] != s.Yaw {
		t.Fatalf("unexpected vector: %v", v)
	}
}
