package experiments

import "testing"

func TestComputeEnergyReport(t *testing.T) {
	record := EnergyRecord{
		Method: "bench-psu",
		Runs: []EnergyRun{
			{RunID: "run-a", AvgPowerW: 0.1, DurationS: 10},
			{RunID: "run-missing", AvgPowerW: 0.2, DurationS: 5},
		},
	}
	metricsByRunID := map[string]RunMetrics{
		"run-a": {SentCount: 20, AckedCount: 18, RxOkCount: 18},
	}

	report := ComputeEnergyReport(record, metricsByRunID)
	if report.Method != "bench-psu" {
		t.Fatalf("method = %q", report.Method)
	}
	if len(report.Runs) != 2 {
		t.Fatalf("expected 2 run reports, got %d", len(report.Runs))
	}

	a := report.Runs[0]
	if a.EnergyJ != 1.0 {
		t.Fatalf("energy_j = %v, want 1.0", a.EnergyJ)
	}
	if a.DeliveredCount != 18 || a.SentCount != 20 {
		t.Fatalf("unexpected counts: %+v", a)
	}
	if a.EnergyPerDeliveredWindowJ == nil || *a.EnergyPerDeliveredWindowJ != 1.0/18.0 {
		t.Fatalf("energy_per_delivered_window_j = %v", a.EnergyPerDeliveredWindowJ)
	}
	if a.EnergyPerTxAttemptJ == nil || *a.EnergyPerTxAttemptJ != 1.0/20.0 {
		t.Fatalf("energy_per_tx_attempt_j = %v", a.EnergyPerTxAttemptJ)
	}

	missing := report.Runs[1]
	if missing.Error == "" {
		t.Fatalf("expected error for missing run_id")
	}
}

func TestComputeEnergyReportFallsBackToAckedCount(t *testing.T) {
	record := EnergyRecord{Runs: []EnergyRun{{RunID: "run-b", AvgPowerW: 1, DurationS: 1}}}
	metricsByRunID := map[string]RunMetrics{
		"run-b": {SentCount: 5, AckedCount: 3, RxOkCount: 0},
	}
	report := ComputeEnergyReport(record, metricsByRunID)
	if report.Runs[0].DeliveredCount != 3 {
		t.Fatalf("expected fallback to acked_count, got %d", report.Runs[0].DeliveredCount)
	}
}
