package sensing

// WindowBuilder accumulates samples into a sliding window of W steps and
// emits a flattened window every stride samples once the buffer has filled.
type WindowBuilder struct {
	dims        int
	w           int
	stride      int
	buffer      [][]float64
	samplesSeen int
}

// NewWindowBuilder constructs a builder for windows of w steps of dims
// channels each, emitting every stride samples.
func NewWindowBuilder(dims, w, stride int) *WindowBuilder {
	return &WindowBuilder{dims: dims, w: w, stride: stride}
}

// Feed appends one sample's channel vector to the ring buffer. It returns
// the flattened window (oldest step first) once the buffer has W steps and
// the stride boundary is reached; otherwise it returns nil.
func (b *WindowBuilder) Feed(sample []float64) ([]float64, error) {
	if len(sample) != b.dims {
		return nil, parseErrorf("sample dims do not match window dims")
	}
	row := append([]float64{}, sample...)
	b.buffer = append(b.buffer, row)
	if len(b.buffer) > b.w {
		b.buffer = b.buffer[len(b.buffer)-b.w:]
	}
	b.samplesSeen++

	if len(b.buffer) < b.w {
		return nil, nil
	}
	if (b.samplesSeen-b.w)%b.stride != 0 {
		return nil, nil
	}

	window := make([]float64, 0, b.dims*b.w)
	for _, r := range b.buffer {
		window = append(window, r...)
	}
	return window, nil
}

// NormParams is a per-channel z-score normalization (mean/std) applied to a
// window before it is handed to the codec.
type NormParams struct {
	Mean []float64
	Std  []float64
}

// Apply z-scores window in place order, mapping a zero-std channel to 0
// rather than dividing by zero.
func (n NormParams) Apply(window []float64) ([]float64, error) {
	if len(window) != len(n.Mean) || len(window) != len(n.Std) {
		return nil, parseErrorf("norm params length mismatch")
	}
	out := make([]float64, len(window))
	for i, v := range window {
		if n.Std[i] == 0 {
			out[i] = 0
			continue
		}
		out[i] = (v - n.Mean[i]) / n.Std[i]
	}
	return out, nil
}

// Preprocessor optionally z-score normalizes a window; with no norm
// configured it passes the window through unchanged.
type Preprocessor struct {
	norm *NormParams
}

// NewPreprocessor constructs a Preprocessor. A nil norm is the identity.
func NewPreprocessor(norm *NormParams) *Preprocessor {
	return &Preprocessor{norm: norm}
}

// Apply runs the configured normalization, if any.
func (p *Preprocessor) Apply(window []float64) ([]float64, error) {
	if p.norm == nil {
		return append([]float64{}, window...), nil
	}
	return p.norm.Apply(window)
}
