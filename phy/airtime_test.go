package phy

import "testing"

func TestEstimateToAMsMonotonicPayload(t *testing.T) {
	spec := Spec{SF: 7, BWHz: 125_000, CR: 5, Preamble: 8, CRCOn: true, ExplicitHeader: true}

	small, err := EstimateToAMs(spec, 5)
	if err != nil {
		t.Fatalf("EstimateToAMs(5): %v", err)
	}
	large, err := EstimateToAMs(spec, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(20): %v", err)
	}
	if !(small < large) {
		t.Fatalf("expected ToA to grow with payload length: %f >= %f", small, large)
	}
}

func TestEstimateToAMsMonotonicSF(t *testing.T) {
	base := Spec{BWHz: 125_000, CR: 5, Preamble: 8, CRCOn: true, ExplicitHeader: true}

	sf7 := base
	sf7.SF = 7
	toaSF7, err := EstimateToAMs(sf7, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(sf7): %v", err)
	}

	sf10 := base
	sf10.SF = 10
	toaSF10, err := EstimateToAMs(sf10, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(sf10): %v", err)
	}

	if !(toaSF7 < toaSF10) {
		t.Fatalf("expected ToA to grow with SF: %f >= %f", toaSF7, toaSF10)
	}
}

func TestEstimateToAMsMonotonicBandwidth(t *testing.T) {
	base := Spec{SF: 7, CR: 5, Preamble: 8, CRCOn: true, ExplicitHeader: true}

	bw500 := base
	bw500.BWHz = 500_000
	toaWide, err := EstimateToAMs(bw500, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(bw500k): %v", err)
	}

	bw125 := base
	bw125.BWHz = 125_000
	toaNarrow, err := EstimateToAMs(bw125, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(bw125k): %v", err)
	}

	if !(toaWide < toaNarrow) {
		t.Fatalf("expected wider bandwidth to reduce ToA: %f >= %f", toaWide, toaNarrow)
	}
}

func TestEstimateToAMsAutoLDRO(t *testing.T) {
	// SF12/BW125k: symbol period is long enough that auto-LDRO should
	// match the explicit ldro=on result.
	auto := Spec{SF: 12, BWHz: 125_000, CR: 5, Preamble: 8, CRCOn: true, ExplicitHeader: true}
	on := true
	explicitOn := auto
	explicitOn.LDRO = &on

	toaAuto, err := EstimateToAMs(auto, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(auto sf12): %v", err)
	}
	toaOn, err := EstimateToAMs(explicitOn, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(ldro=on sf12): %v", err)
	}
	if toaAuto != toaOn {
		t.Fatalf("auto-LDRO on sf12/bw125k = %f, want %f (ldro=on)", toaAuto, toaOn)
	}

	// SF10/BW250k: symbol period is short, auto-LDRO should match ldro=off.
	autoOff := Spec{SF: 10, BWHz: 250_000, CR: 5, Preamble: 8, CRCOn: true, ExplicitHeader: true}
	off := false
	explicitOff := autoOff
	explicitOff.LDRO = &off

	toaAutoOff, err := EstimateToAMs(autoOff, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(auto sf10): %v", err)
	}
	toaOff, err := EstimateToAMs(explicitOff, 20)
	if err != nil {
		t.Fatalf("EstimateToAMs(ldro=off sf10): %v", err)
	}
	if toaAutoOff != toaOff {
		t.Fatalf("auto-LDRO on sf10/bw250k = %f, want %f (ldro=off)", toaAutoOff, toaOff)
	}
}

func TestEstimateAckTimeoutMs(t *testing.T) {
	spec := Spec{SF: 7, BWHz: 125_000, CR: 5, Preamble: 8, CRCOn: true, ExplicitHeader: true}
	timeout, err := EstimateAckTimeoutMs(spec, 24, DefaultAckFrameBytes, DefaultAckMarginMs)
	if err != nil {
		t.Fatalf("EstimateAckTimeoutMs: %v", err)
	}
	if timeout <= DefaultAckMarginMs {
		t.Fatalf("expected timeout to exceed the bare margin, got %d", timeout)
	}
}

func TestEstimateAckTimeoutMsRejectsNegativeMargin(t *testing.T) {
	spec := Spec{SF: 7, BWHz: 125_000, CR: 5, Preamble: 8}
	if _, err := EstimateAckTimeoutMs(spec, 24, DefaultAckFrameBytes, -1); err == nil {
		t.Fatal("expected an error for a negative margin")
	}
}

func TestSpecIdentity(t *testing.T) {
	spec := Spec{SF: 7, BWHz: 125_000, CR: 5, Preamble: 8, CRCOn: true, ExplicitHeader: true, TxPowerDBm: 14}
	want := "sf7_bw125000_cr5_pre8_crc1_hdr1_pwr14"
	if got := spec.Identity(); got != want {
		t.Fatalf("Identity() = %q, want %q", got, want)
	}
}
