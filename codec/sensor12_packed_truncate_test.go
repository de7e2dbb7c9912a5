package codec

import "testing"

func TestSensor12PackedTruncateExactLength(t *testing.T) {
	c, err := NewSensor12PackedTruncateCodec("1", 16, 1, 1000.0, 10.0, 10.0)
	if err != nil {
		t.Fatalf("NewSensor12PackedTruncateCodec: %v", err)
	}
	payload, err := c.Encode(sampleWindow())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) != 16 {
		t.Fatalf("payload length = %d, want 16 (truncated from %d)", len(payload), sensor12StepSize)
	}
	got, err := c.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("decoded length = %d, want 12", len(got))
	}
}

func TestSensor12PackedTruncatePadsShortPayload(t *testing.T) {
	c, err := NewSensor12PackedTruncateCodec("1", 40, 1, 1000.0, 10.0, 10.0)
	if err != nil {
		t.Fatalf("NewSensor12PackedTruncateCodec: %v", err)
	}
	payload, err := c.Encode(sampleWindow())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(payload) != 40 {
		t.Fatalf("payload length = %d, want 40 (padded from %d)", len(payload), sensor12StepSize)
	}
	if _, err := c.Decode(payload); err != nil {
		t.Fatalf("Decode: %v", err)
	}
}

func TestSensor12PackedTruncateRejectsWindowWMismatch(t *testing.T) {
	c, _ := NewSensor12PackedTruncateCodec("1", 16, 2, 1000.0, 10.0, 10.0)
	if _, err := c.Encode(sampleWindow()); err == nil {
		t.Fatal("expected an error when window_W does not match the inferred W")
	}
}

func TestSensor12PackedTruncateRejectsBadPayloadBytes(t *testing.T) {
	if _, err := NewSensor12PackedTruncateCodec("1", 0, 1, 1000.0, 10.0, 10.0); err == nil {
		t.Fatal("expected an error for payload_bytes=0")
	}
	if _, err := NewSensor12PackedTruncateCodec("1", 300, 1, 1000.0, 10.0, 10.0); err == nil {
		t.Fatal("expected an error for payload_bytes=300")
	}
}
