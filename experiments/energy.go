package experiments

// EnergyRun is one manually-measured power/duration sample for a run_id,
// the input half of an energy report.
type EnergyRun struct {
	RunID     string  `json:"run_id" yaml:"run_id"`
	AvgPowerW float64 `json:"avg_power_w" yaml:"avg_power_w"`
	DurationS float64 `json:"duration_s" yaml:"duration_s"`
	Notes     string  `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// EnergyRecord is a batch of EnergyRun measurements sharing a measurement
// method, loaded from a YAML/JSON file via LoadSpecFile.
type EnergyRecord struct {
	Method string      `json:"method,omitempty" yaml:"method,omitempty"`
	Runs   []EnergyRun `json:"runs" yaml:"runs"`
}

// EnergyRunReport is one run's combined power measurement and delivery
// metrics, with the derived energy-per-delivered-window figure.
type EnergyRunReport struct {
	RunID                     string   `json:"run_id"`
	AvgPowerW                 float64  `json:"avg_power_w"`
	DurationS                 float64  `json:"duration_s"`
	EnergyJ                   float64  `json:"energy_j"`
	DeliveredCount            int      `json:"delivered_count"`
	SentCount                 int      `json:"sent_count"`
	EnergyPerDeliveredWindowJ *float64 `json:"energy_per_delivered_window_j"`
	EnergyPerTxAttemptJ       *float64 `json:"energy_per_tx_attempt_j"`
	Notes                     string   `json:"notes,omitempty"`
	Error                     string   `json:"error,omitempty"`
}

// EnergyReport is phase4's output: one EnergyRunReport per measured run.
type EnergyReport struct {
	Method string            `json:"method,omitempty"`
	Runs   []EnergyRunReport `json:"runs"`
}

// ComputeEnergyReport joins record against a metrics report keyed by
// run_id (as produced by ComputeMetrics, one entry per run), computing
// energy-per-delivered-window and energy-per-tx-attempt for every
// measured run. A run_id in record with no matching metrics entry is
// reported with an Error instead of being dropped, mirroring the
// original tool's behaviour of surfacing every measurement it was asked
// to join.
func ComputeEnergyReport(record EnergyRecord, metricsByRunID map[string]RunMetrics) EnergyReport {
	report := EnergyReport{Method: record.Method}
	for _, run := range record.Runs {
		if run.RunID == "" {
			continue
		}
		metrics, ok := metricsByRunID[run.RunID]
		if !ok {
			report.Runs = append(report.Runs, EnergyRunReport{
				RunID: run.RunID,
				Error: "run_id not found in metrics report",
			})
			continue
		}

		energyJ := run.AvgPowerW * run.DurationS
		delivered := metrics.RxOkCount
		if delivered == 0 {
			delivered = metrics.AckedCount
		}
		sent := metrics.SentCount

		out := EnergyRunReport{
			RunID:          run.RunID,
			AvgPowerW:      run.AvgPowerW,
			DurationS:      run.DurationS,
			EnergyJ:        energyJ,
			DeliveredCount: delivered,
			SentCount:      sent,
			Notes:          run.Notes,
		}
		if delivered > 0 {
			v := energyJ / float64(delivered)
			out.EnergyPerDeliveredWindowJ = &v
		}
		if sent > 0 {
			v := energyJ / float64(sent)
			out.EnergyPerTxAttemptJ = &v
		}
		report.Runs = append(report.Runs, out)
	}
	return report
}
