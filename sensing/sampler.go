package sensing

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strings"
)

// ErrNoMoreSamples is returned by Sampler.Sample when a non-looping source
// is exhausted.
var ErrNoMoreSamples = parseErrorf("no more samples")

// Sampler produces one channel vector per call, in ChannelOrder unless
// constructed with a custom order.
type Sampler interface {
	Sample() ([]float64, error)
}

// TimestampedSampler is an optional Sampler capability for sources that
// carry a genuine sensor timestamp (JSONL/CSV records parsed via
// ParseSample). Callers that want sensor_ts_ms alongside the window it
// produced type-assert for this rather than requiring every Sampler to
// fabricate one.
type TimestampedSampler interface {
	SampleWithTS() (tsMillis int64, vector []float64, err error)
}

// DummySampler generates a synthetic, monotonically increasing vector —
// useful for smoke-testing a run without a real sensor feed.
type DummySampler struct {
	dims  int
	value float64
}

// NewDummySampler constructs a DummySampler seeded at seed.
func NewDummySampler(dims int, seed float64) *DummySampler {
	return &DummySampler{dims: dims, value: seed}
}

func (s *DummySampler) Sample() ([]float64, error) {
	out := make([]float64, s.dims)
	for i := range out {
		out[i] = s.value + float64(i)
	}
	s.value++
	return out, nil
}

// JSONLSampler reads sensor records from a JSONL file, one object per line.
type JSONLSampler struct {
	order []string
	loop  bool
	file  *os.File
	rd    *bufio.Reader
}

// NewJSONLSampler opens path for reading. When loop is true, reaching EOF
// rewinds to the start instead of returning ErrNoMoreSamples.
func NewJSONLSampler(path string, order []string, loop bool) (*JSONLSampler, error) {
	if order == nil {
		order = ChannelOrder[:]
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, parseErrorf("opening %s: %v", path, err)
	}
	return &JSONLSampler{order: order, loop: loop, file: f, rd: bufio.NewReader(f)}, nil
}

func (s *JSONLSampler) nextRecord() (Sample, error) {
	for {
		line, err := s.rd.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				return Sample{}, parseErrorf("reading sample: %v", err)
			}
			if strings.TrimSpace(line) == "" {
				if !s.loop {
					return Sample{}, ErrNoMoreSamples
				}
				if _, serr := s.file.Seek(0, io.SeekStart); serr != nil {
					return Sample{}, parseErrorf("rewinding: %v", serr)
				}
				s.rd = bufio.NewReader(s.file)
				continue
			}
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		var data map[string]any
		if jerr := json.Unmarshal([]byte(trimmed), &data); jerr != nil {
			return Sample{}, parseErrorf("parsing sample line: %v", jerr)
		}
		return ParseSample(data)
	}
}

func (s *JSONLSampler) Sample() ([]float64, error) {
	sample, err := s.nextRecord()
	if err != nil {
		return nil, err
	}
	return vectorInOrder(sample, s.order), nil
}

// SampleWithTS returns the record's parsed ts_ms/ts/timestamp field
// alongside its channel vector.
func (s *JSONLSampler) SampleWithTS() (int64, []float64, error) {
	sample, err := s.nextRecord()
	if err != nil {
		return 0, nil, err
	}
	return sample.TSMillis, vectorInOrder(sample, s.order), nil
}

// Close releases the underlying file handle.
func (s *JSONLSampler) Close() error { return s.file.Close() }

// CSVSampler reads sensor records from a header-delimited CSV file, one
// record per row.
type CSVSampler struct {
	order  []string
	loop   bool
	file   *os.File
	rd     *csv.Reader
	header []string
}

// NewCSVSampler opens path for reading.
func NewCSVSampler(path string, order []string, loop bool) (*CSVSampler, error) {
	if order == nil {
		order = ChannelOrder[:]
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, parseErrorf("opening %s: %v", path, err)
	}
	return &CSVSampler{order: order, loop: loop, file: f, rd: csv.NewReader(f)}, nil
}

func (s *CSVSampler) nextRow() (map[string]string, error) {
	if s.header == nil {
		header, err := s.rd.Read()
		if err != nil {
			return nil, parseErrorf("reading CSV header: %v", err)
		}
		s.header = header
	}
	row, err := s.rd.Read()
	if err == io.EOF {
		if !s.loop {
			return nil, ErrNoMoreSamples
		}
		if _, serr := s.file.Seek(0, io.SeekStart); serr != nil {
			return nil, parseErrorf("rewinding: %v", serr)
		}
		s.rd = csv.NewReader(s.file)
		if _, herr := s.rd.Read(); herr != nil {
			return nil, ErrNoMoreSamples
		}
		row, err = s.rd.Read()
		if err != nil {
			return nil, ErrNoMoreSamples
		}
		return rowToMap(s.header, row), nil
	}
	if err != nil {
		return nil, parseErrorf("reading CSV row: %v", err)
	}
	return rowToMap(s.header, row), nil
}

func (s *CSVSampler) nextRecord() (Sample, error) {
	row, err := s.nextRow()
	if err != nil {
		return Sample{}, err
	}
	data := make(map[string]any, len(row))
	for k, v := range row {
		data[k] = v
	}
	return ParseSample(data)
}

func (s *CSVSampler) Sample() ([]float64, error) {
	sample, err := s.nextRecord()
	if err != nil {
		return nil, err
	}
	return vectorInOrder(sample, s.order), nil
}

// SampleWithTS returns the row's parsed ts_ms/ts/timestamp field alongside
// its channel vector.
func (s *CSVSampler) SampleWithTS() (int64, []float64, error) {
	sample, err := s.nextRecord()
	if err != nil {
		return 0, nil, err
	}
	return sample.TSMillis, vectorInOrder(sample, s.order), nil
}

func rowToMap(header, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(row) {
			m[h] = row[i]
		}
	}
	return m
}

func vectorInOrder(s Sample, order []string) []float64 {
	out := make([]float64, len(order))
	fields := map[string]float64{
		"lat": s.Lat, "lon": s.Lon, "alt": s.Alt,
		"ax": s.AX, "ay": s.AY, "az": s.AZ,
		"gx": s.GX, "gy": s.GY, "gz": s.GZ,
		"roll": s.Roll, "pitch": s.Pitch, "yaw": s.Yaw,
	}
	for i, f := range order {
		out[i] = fields[f]
	}
	return out
}

// Close releases the underlying file handle.
func (s *CSVSampler) Close() error { return s.file.Close() }
