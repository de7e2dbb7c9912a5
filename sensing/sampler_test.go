package sensing

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDummySamplerIncrements(t *testing.T) {
	s := NewDummySampler(3, 0)
	first, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	second, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if first[0] == second[0] {
		t.Fatal("expected successive samples to differ")
	}
}

func writeJSONL(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestJSONLSamplerReadsRecords(t *testing.T) {
	line := `{"ts_ms":1,"lat":1,"lon":2,"alt":3,"ax":0,"ay":0,"az":9.8,"gx":0,"gy":0,"gz":0,"roll":0,"pitch":0,"yaw":0}`
	path := writeJSONL(t, []string{line})
	s, err := NewJSONLSampler(path, nil, false)
	if err != nil {
		t.Fatalf("NewJSONLSampler: %v", err)
	}
	defer s.Close()
	v, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(v) != 12 || v[2] != 3 {
		t.Fatalf("unexpected vector: %v", v)
	}
	if _, err := s.Sample(); err != ErrNoMoreSamples {
		t.Fatalf("expected ErrNoMoreSamples, got %v", err)
	}
}

func TestJSONLSamplerSampleWithTS(t *testing.T) {
	line := `{"ts_ms":12345,"lat":1,"lon":2,"alt":3,"ax":0,"ay":0,"az":9.8,"gx":0,"gy":0,"gz":0,"roll":0,"pitch":0,"yaw":0}`
	path := writeJSONL(t, []string{line})
	s, err := NewJSONLSampler(path, nil, false)
	if err != nil {
		t.Fatalf("NewJSONLSampler: %v", err)
	}
	defer s.Close()
	var ts TimestampedSampler = s
	gotTS, v, err := ts.SampleWithTS()
	if err != nil {
		t.Fatalf("SampleWithTS: %v", err)
	}
	if gotTS != 12345 {
		t.Fatalf("expected ts_ms 12345, got %d", gotTS)
	}
	if len(v) != 12 || v[2] != 3 {
		t.Fatalf("unexpected vector: %v", v)
	}
}

func TestJSONLSamplerLoops(t *testing.T) {
	line := `{"ts_ms":1,"lat":1,"lon":2,"alt":3,"ax":0,"ay":0,"az":9.8,"gx":0,"gy":0,"gz":0,"roll":0,"pitch":0,"yaw":0}`
	path := writeJSONL(t, []string{line})
	s, err := NewJSONLSampler(path, nil, true)
	if err != nil {
		t.Fatalf("NewJSONLSampler: %v", err)
	}
	defer s.Close()
	for i := 0; i < 3; i++ {
		if _, err := s.Sample(); err != nil {
			t.Fatalf("Sample iteration %d: %v", i, err)
		}
	}
}

func TestCSVSamplerReadsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "samples.csv")
	content := "ts_ms,lat,lon,alt,ax,ay,az,gx,gy,gz,roll,pitch,yaw\n1,1,2,3,0,0,9.8,0,0,0,0,0,0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := NewCSVSampler(path, nil, false)
	if err != nil {
		t.Fatalf("NewCSVSampler: %v", err)
	}
	defer s.Close()
	v, err := s.Sample()
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(v) != 12 || v[2] != 3 {
		t.Fatalf("unexpected vector: %v", v)
	}
	if _, err := s.Sample(); err != ErrNoMoreSamples {
		t.Fatalf("expected ErrNoMoreSamples, got %v", err)
	}
}
