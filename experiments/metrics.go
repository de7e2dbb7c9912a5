// Package experiments loads event logs produced by runtime nodes and
// aggregates them into run metrics, and drives the phase0/phase1 offline
// experiments used to calibrate a link before a field deployment.
package experiments

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/montanaflynn/stats"
)

// Event is one decoded line from a JSONL event log, keyed the same way
// runtime/eventlog writes it (ts_ms/run_id/role/mode/phy_profile_id plus
// event-specific fields, all flattened into one map).
type Event map[string]any

func (e Event) name() string {
	s, _ := e["event"].(string)
	if s == "" {
		s, _ = e["message"].(string)
	}
	return s
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// LoadEvents reads a JSONL event log, flattening runtime/eventlog's
// apex/log envelope ({"fields": {...}, "message": "..."}) into one flat
// map per event, under an "event" key equal to the original message.
func LoadEvents(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw struct {
			Fields  map[string]any `json:"fields"`
			Message string         `json:"message"`
		}
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, err
		}
		event := Event{}
		for k, v := range raw.Fields {
			event[k] = v
		}
		event["event"] = raw.Message
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// SummaryStats is the min/p50/p90/max/mean summary of one metric's
// observed values across a run.
type SummaryStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

func summaryStats(values []float64) *SummaryStats {
	if len(values) == 0 {
		return nil
	}
	min, _ := stats.Min(values)
	max, _ := stats.Max(values)
	mean, _ := stats.Mean(values)
	p50, _ := stats.Percentile(values, 50)
	p90, _ := stats.Percentile(values, 90)
	return &SummaryStats{
		Count: len(values), Min: min, P50: p50, P90: p90, Max: max, Mean: mean,
	}
}

// RunMetrics is the aggregated view of one run's combined TX+RX event log.
type RunMetrics struct {
	SentCount         int           `json:"sent_count"`
	AckedCount        int           `json:"acked_count"`
	FailedCount       int           `json:"failed_count"`
	RxOkCount         int           `json:"rx_ok_count"`
	RxParseFailCount  int           `json:"rx_parse_fail_count"`
	AckSentCount      int           `json:"ack_sent_count"`
	AckRecvEventCount int           `json:"ack_recv_event_count"`
	UniqueWindowsSent *int          `json:"unique_windows_sent"`
	DeliveredWindows  *int          `json:"delivered_windows"`
	DeliveryRatio     *float64      `json:"delivery_ratio"`
	Retries           int           `json:"retries"`
	PDR               float64       `json:"pdr"`
	ETX               float64       `json:"etx"`
	TotalToAMs        float64       `json:"total_toa_ms"`
	ToAMsEst          *SummaryStats `json:"toa_ms_est"`
	PayloadBytes      *SummaryStats `json:"payload_bytes"`
	FrameBytes        *SummaryStats `json:"frame_bytes"`
	AckTimeoutMs      *SummaryStats `json:"ack_timeout_ms"`
	AgeMs             *SummaryStats `json:"age_ms"`
	CodecEncodeMs     *SummaryStats `json:"codec_encode_ms"`
	QueueMs           *SummaryStats `json:"queue_ms"`
	E2EMs             *SummaryStats `json:"e2e_ms"`
	AckRTTMs          *SummaryStats `json:"ack_rtt_ms"`
	RSSIDBm           *SummaryStats `json:"rssi_dbm"`
	ReconMAE          *SummaryStats `json:"recon_mae"`
	ReconMSE          *SummaryStats `json:"recon_mse"`
}

func filterEvent(events []Event, name string) []Event {
	var out []Event
	for _, e := range events {
		if e.name() == name {
			out = append(out, e)
		}
	}
	return out
}

// ComputeMetrics aggregates one run's combined TX+RX event stream into a
// RunMetrics, mirroring compute_metrics from the original experiments
// tooling.
func ComputeMetrics(events []Event) RunMetrics {
	txSent := filterEvent(events, "tx_sent")
	rxOk := filterEvent(events, "rx_ok")
	ackRecv := filterEvent(events, "ack_received")
	txFailed := filterEvent(events, "tx_failed")
	rxParseFail := filterEvent(events, "rx_parse_fail")
	ackSent := filterEvent(events, "ack_sent")
	reconDone := filterEvent(events, "recon_done")

	sentCount := len(txSent)
	rxOkCount := len(rxOk)
	ackedCount := len(ackRecv)

	firstAttemptWindows := map[int]bool{}
	for _, e := range txSent {
		attempt, ok := toInt(e["attempt"])
		windowID, wok := toInt(e["window_id"])
		if ok && attempt == 1 && wok {
			firstAttemptWindows[windowID] = true
		}
	}
	var uniqueWindowsSent *int
	if len(firstAttemptWindows) > 0 {
		n := len(firstAttemptWindows)
		uniqueWindowsSent = &n
	}

	deliveredWindowIDs := map[int]bool{}
	for _, e := range ackRecv {
		if windowID, ok := toInt(e["window_id"]); ok {
			deliveredWindowIDs[windowID] = true
		}
	}
	var deliveredWindows *int
	if len(deliveredWindowIDs) > 0 {
		n := len(deliveredWindowIDs)
		deliveredWindows = &n
	}

	var deliveryRatio *float64
	if deliveredWindows != nil && uniqueWindowsSent != nil && *uniqueWindowsSent > 0 {
		r := float64(*deliveredWindows) / float64(*uniqueWindowsSent)
		deliveryRatio = &r
	}

	var pdr float64
	if sentCount > 0 && rxOkCount > 0 {
		pdr = float64(rxOkCount) / float64(sentCount)
	} else if sentCount > 0 {
		pdr = float64(ackedCount) / float64(sentCount)
	}
	denom := ackedCount
	if denom < 1 {
		denom = 1
	}
	etx := float64(sentCount) / float64(denom)

	var toaValues, payloadValues, frameValues, ackTimeoutValues, ageValues, codecEncodeValues []float64
	retries := 0
	for _, e := range txSent {
		if v, ok := toFloat(e["toa_ms_est"]); ok {
			toaValues = append(toaValues, v)
		}
		if v, ok := toFloat(e["payload_bytes"]); ok {
			payloadValues = append(payloadValues, v)
		}
		if v, ok := toFloat(e["frame_bytes"]); ok {
			frameValues = append(frameValues, v)
		}
		if v, ok := toFloat(e["ack_timeout_ms"]); ok {
			ackTimeoutValues = append(ackTimeoutValues, v)
		}
		if v, ok := toFloat(e["age_ms"]); ok {
			ageValues = append(ageValues, v)
		}
		if v, ok := toFloat(e["codec_encode_ms"]); ok {
			codecEncodeValues = append(codecEncodeValues, v)
		}
		attempt, ok := toInt(e["attempt"])
		if !ok {
			attempt = 1
		}
		if attempt > 1 {
			retries++
		}
	}
	var totalToAMs float64
	for _, v := range toaValues {
		totalToAMs += v
	}

	var rttValues, queueValues, e2eValues []float64
	for _, e := range ackRecv {
		if v, ok := toFloat(e["rtt_ms"]); ok {
			rttValues = append(rttValues, v)
		}
		if v, ok := toFloat(e["queue_ms"]); ok {
			queueValues = append(queueValues, v)
		}
		if v, ok := toFloat(e["e2e_ms"]); ok {
			e2eValues = append(e2eValues, v)
		}
	}

	var rssiValues []float64
	for _, e := range append(append([]Event{}, rxOk...), ackRecv...) {
		if v, ok := toFloat(e["rssi_dbm"]); ok {
			rssiValues = append(rssiValues, v)
		}
	}

	var maeValues, mseValues []float64
	for _, e := range reconDone {
		if v, ok := toFloat(e["mae"]); ok {
			maeValues = append(maeValues, v)
		}
		if v, ok := toFloat(e["mse"]); ok {
			mseValues = append(mseValues, v)
		}
	}

	return RunMetrics{
		SentCount:         sentCount,
		AckedCount:        ackedCount,
		FailedCount:       len(txFailed),
		RxOkCount:         rxOkCount,
		RxParseFailCount:  len(rxParseFail),
		AckSentCount:      len(ackSent),
		AckRecvEventCount: len(ackRecv),
		UniqueWindowsSent: uniqueWindowsSent,
		DeliveredWindows:  deliveredWindows,
		DeliveryRatio:     deliveryRatio,
		Retries:           retries,
		PDR:               pdr,
		ETX:               etx,
		TotalToAMs:        totalToAMs,
		ToAMsEst:          summaryStats(toaValues),
		PayloadBytes:      summaryStats(payloadValues),
		FrameBytes:        summaryStats(frameValues),
		AckTimeoutMs:      summaryStats(ackTimeoutValues),
		AgeMs:             summaryStats(ageValues),
		CodecEncodeMs:     summaryStats(codecEncodeValues),
		QueueMs:           summaryStats(queueValues),
		E2EMs:             summaryStats(e2eValues),
		AckRTTMs:          summaryStats(rttValues),
		RSSIDBm:           summaryStats(rssiValues),
		ReconMAE:          summaryStats(maeValues),
		ReconMSE:          summaryStats(mseValues),
	}
}
