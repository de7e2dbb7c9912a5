package experiments

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEventLines(t *testing.T, path string, lines []string) {
	t.Helper()
	var data string
	for _, l := range lines {
		data += l + "\n"
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadEventsFlattensEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")
	writeEventLines(t, path, []string{
		`{"fields":{"ts_ms":0,"run_id":"r1","seq":1,"window_id":0,"attempt":1,"payload_bytes":10,"toa_ms_est":5.0},"level":"info","message":"tx_sent"}`,
		`{"fields":{"ts_ms":10,"run_id":"r1","ack_seq":1,"window_id":0,"rtt_ms":10.0},"level":"info","message":"ack_received"}`,
	})

	events, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("LoadEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].name() != "tx_sent" {
		t.Fatalf("events[0].name() = %q", events[0].name())
	}
	if events[0]["run_id"] != "r1" {
		t.Fatalf("events[0][run_id] = %v", events[0]["run_id"])
	}
	if events[1].name() != "ack_received" {
		t.Fatalf("events[1].name() = %q", events[1].name())
	}
}

func TestComputeMetricsBasic(t *testing.T) {
	events := []Event{
		{"event": "tx_sent", "seq": 0, "window_id": 0, "attempt": 1, "payload_bytes": 10.0, "toa_ms_est": 5.0},
		{"event": "tx_sent", "seq": 1, "window_id": 1, "attempt": 1, "payload_bytes": 10.0, "toa_ms_est": 5.0},
		{"event": "rx_ok", "seq": 0},
		{"event": "rx_ok", "seq": 1},
		{"event": "ack_received", "ack_seq": 0, "window_id": 0, "rtt_ms": 12.0},
		{"event": "ack_received", "ack_seq": 1, "window_id": 1, "rtt_ms": 14.0},
		{"event": "recon_done", "seq": 0, "mae": 0.1, "mse": 0.02},
	}

	m := ComputeMetrics(events)
	if m.SentCount != 2 {
		t.Fatalf("sent_count = %d, want 2", m.SentCount)
	}
	if m.RxOkCount != 2 {
		t.Fatalf("rx_ok_count = %d, want 2", m.RxOkCount)
	}
	if m.AckedCount != 2 {
		t.Fatalf("acked_count = %d, want 2", m.AckedCount)
	}
	if m.PDR != 1.0 {
		t.Fatalf("pdr = %v, want 1.0", m.PDR)
	}
	if m.UniqueWindowsSent == nil || *m.UniqueWindowsSent != 2 {
		t.Fatalf("unique_windows_sent = %v, want 2", m.UniqueWindowsSent)
	}
	if m.DeliveredWindows == nil || *m.DeliveredWindows != 2 {
		t.Fatalf("delivered_windows = %v, want 2", m.DeliveredWindows)
	}
	if m.DeliveryRatio == nil || *m.DeliveryRatio != 1.0 {
		t.Fatalf("delivery_ratio = %v, want 1.0", m.DeliveryRatio)
	}
	if m.ToAMsEst == nil || m.ToAMsEst.Count != 2 {
		t.Fatalf("toa_ms_est = %+v", m.ToAMsEst)
	}
	if m.ReconMAE == nil || m.ReconMAE.Count != 1 {
		t.Fatalf("recon_mae = %+v", m.ReconMAE)
	}
}

func TestComputeMetricsAggregatesTimingFields(t *testing.T) {
	events := []Event{
		{"event": "tx_sent", "seq": 0, "window_id": 0, "attempt": 1, "payload_bytes": 10.0,
			"frame_bytes": 12.0, "ack_timeout_ms": 300.0, "age_ms": 4.0, "codec_encode_ms": 0.5, "toa_ms_est": 5.0},
		{"event": "ack_received", "ack_seq": 0, "window_id": 0, "rtt_ms": 12.0,
			"queue_ms": 4.0, "e2e_ms": 16.0, "codec_encode_ms": 0.5},
	}

	m := ComputeMetrics(events)
	if m.FrameBytes == nil || m.FrameBytes.Count != 1 || m.FrameBytes.Mean != 12.0 {
		t.Fatalf("frame_bytes = %+v", m.FrameBytes)
	}
	if m.AckTimeoutMs == nil || m.AckTimeoutMs.Mean != 300.0 {
		t.Fatalf("ack_timeout_ms = %+v", m.AckTimeoutMs)
	}
	if m.AgeMs == nil || m.AgeMs.Mean != 4.0 {
		t.Fatalf("age_ms = %+v", m.AgeMs)
	}
	if m.CodecEncodeMs == nil || m.CodecEncodeMs.Mean != 0.5 {
		t.Fatalf("codec_encode_ms = %+v", m.CodecEncodeMs)
	}
	if m.QueueMs == nil || m.QueueMs.Mean != 4.0 {
		t.Fatalf("queue_ms = %+v", m.QueueMs)
	}
	if m.E2EMs == nil || m.E2EMs.Mean != 16.0 {
		t.Fatalf("e2e_ms = %+v", m.E2EMs)
	}
}

func TestComputeMetricsEmpty(t *testing.T) {
	m := ComputeMetrics(nil)
	if m.SentCount != 0 || m.PDR != 0 {
		t.Fatalf("expected zero metrics, got %+v", m)
	}
	if m.ToAMsEst != nil {
		t.Fatalf("expected nil ToAMsEst for no events")
	}
}
