package sensing

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWindowBuilderEmitsAfterFullBuffer(t *testing.T) {
	b := NewWindowBuilder(2, 3, 1)
	for i := 0; i < 2; i++ {
		w, err := b.Feed([]float64{float64(i), float64(i)})
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if w != nil {
			t.Fatalf("expected no window before buffer fills, got %v", w)
		}
	}
	w, err := b.Feed([]float64{2, 2})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	want := []float64{0, 0, 1, 1, 2, 2}
	if diff := cmp.Diff(want, w); diff != "" {
		t.Fatalf("window mismatch (-want +got):\n%s", diff)
	}
}

func TestWindowBuilderRespectsStride(t *testing.T) {
	b := NewWindowBuilder(1, 2, 2)
	emitted := 0
	for i := 0; i < 6; i++ {
		w, err := b.Feed([]float64{float64(i)})
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
		if w != nil {
			emitted++
		}
	}
	if emitted != 3 {
		t.Fatalf("expected 3 emissions over 6 samples with stride 2, got %d", emitted)
	}
}

func TestWindowBuilderRejectsWrongDims(t *testing.T) {
	b := NewWindowBuilder(2, 1, 1)
	if _, err := b.Feed([]float64{1}); err == nil {
		t.Fatal("expected a dims mismatch error")
	}
}

func TestNormParamsApplyZeroStd(t *testing.T) {
	n := NormParams{Mean: []float64{1, 2}, Std: []float64{0, 2}}
	out, err := n.Apply([]float64{5, 4})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out[0] != 0 || out[1] != 1 {
		t.Fatalf("unexpected normalized output: %v", out)
	}
}

func TestPreprocessorIdentityWithNilNorm(t *testing.T) {
	p := NewPreprocessor(nil)
	in := []float64{1, 2, 3}
	out, err := p.Apply(in)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("expected identity (-in +out):\n%s", diff)
	}
}
