package codec

import "testing"

func sampleWindow() []float64 {
	return []float64{
		37.7749, -122.4194, 15.2, // lat, lon, alt
		0.12, -0.34, 9.81, // accel
		1.5, -2.5, 0.0, // gyro
		10.0, -10.0, 180.0, // roll, pitch, yaw
	}
}

func TestSensor12PackedRoundTrip(t *testing.T) {
	c, err := NewSensor12PackedCodec("1", 1000.0, 10.0, 10.0)
	if err != nil {
		t.Fatalf("NewSensor12PackedCodec: %v", err)
	}
	window := sampleWindow()
	payload, err := c.Encode(window)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) != sensor12StepSize {
		t.Fatalf("payload length = %d, want %d", len(payload), sensor12StepSize)
	}
	got, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("decoded length = %d, want 12", len(got))
	}
	// GPS channels round-trip at float32 precision.
	for i := 0; i < 3; i++ {
		if diff := got[i] - window[i]; diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("gps channel %d: got %f, want %f", i, got[i], window[i])
		}
	}
	// IMU channels round-trip within 0.1 (the coarsest scale's step, 1/10).
	for i := 3; i < 12; i++ {
		if diff := got[i] - window[i]; diff > 0.1 || diff < -0.1 {
			t.Fatalf("imu channel %d: got %f, want %f", i, got[i], window[i])
		}
	}
}

func TestSensor12PackedRejectsNonMultipleOf12(t *testing.T) {
	c, _ := NewSensor12PackedCodec("1", 1000.0, 10.0, 10.0)
	if _, err := c.Encode([]float64{1, 2, 3}); err == nil {
		t.Fatal("expected an error for a non-multiple-of-12 window")
	}
}

func TestSensor12PackedEmptyWindow(t *testing.T) {
	c, _ := NewSensor12PackedCodec("1", 1000.0, 10.0, 10.0)
	payload, err := c.Encode(nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) != 0 {
		t.Fatalf("expected an empty payload, got %d bytes", len(payload))
	}
	got, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected an empty decode, got %v", got)
	}
}

func TestSensor12PackedMultiStep(t *testing.T) {
	c, _ := NewSensor12PackedCodec("1", 1000.0, 10.0, 10.0)
	window := append(sampleWindow(), sampleWindow()...)
	payload, err := c.Encode(window)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) != 2*sensor12StepSize {
		t.Fatalf("payload length = %d, want %d", len(payload), 2*sensor12StepSize)
	}
	got, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 24 {
		t.Fatalf("decoded length = %d, want 24", len(got))
	}
}
