package siti

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-siti/config"
)

func sampleResult() *Result {
	return &Result{
		SI:        []float64{12.3456, 20, 7.0004},
		TI:        []float64{1.23449, 0},
		Settings:  config.NewSnapshot(config.DefaultSettings()),
		InputFile: "/videos/clip.y4m",
	}
}

func TestResultMarshalLeadingNull(t *testing.T) {
	data, err := json.Marshal(sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"si", "ti", "settings", "input_file"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing key %q in %s", key, data)
		}
	}
	if got := string(raw["ti"]); got != "[null,1.23449,0]" {
		t.Errorf("ti = %s, want [null,1.23449,0]", got)
	}

	var settings map[string]any
	if err := json.Unmarshal(raw["settings"], &settings); err != nil {
		t.Fatal(err)
	}
	if settings["version"] != config.Version || settings["calculation_domain"] != string(config.DomainPQ) {
		t.Errorf("unexpected settings block %v", settings)
	}
}

func TestResultMarshalEmpty(t *testing.T) {
	data, err := json.Marshal(Result{})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte(`"si":[]`)) || !bytes.Contains(data, []byte(`"ti":[]`)) {
		t.Fatalf("empty result should encode empty arrays: %s", data)
	}
}

func TestResultUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantTI  []float64
		wantErr bool
	}{
		{"leading null", `{"si":[1,2,3],"ti":[null,4,5],"input_file":"a"}`, []float64{4, 5}, false},
		{"bare", `{"si":[1,2,3],"ti":[4,5],"input_file":"a"}`, []float64{4, 5}, false},
		{"single frame", `{"si":[1],"ti":[null]}`, []float64{}, false},
		{"too short", `{"si":[1,2,3],"ti":[4]}`, nil, true},
		{"inner null", `{"si":[1,2,3],"ti":[null,null,5]}`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Result
			err := json.Unmarshal([]byte(tt.doc), &r)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(r.TI) != len(tt.wantTI) {
				t.Fatalf("ti = %v, want %v", r.TI, tt.wantTI)
			}
			for i := range r.TI {
				if r.TI[i] != tt.wantTI[i] {
					t.Errorf("ti[%d] = %v, want %v", i, r.TI[i], tt.wantTI[i])
				}
			}
		})
	}
}

func TestResultJSONRoundTripKeepsSettings(t *testing.T) {
	in := sampleResult()
	in.Settings = config.NewSnapshot(mustSettings(t,
		config.WithHDRMode(config.ModeHLG),
		config.WithBitDepth(10),
		config.WithLMax(1000),
		config.WithCalculationDomain(config.DomainPU21),
	))

	var buf bytes.Buffer
	if err := WriteJSON(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := ReadResultJSON(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if out.Settings.Settings != in.Settings.Settings {
		t.Fatalf("settings changed: %+v != %+v", out.Settings.Settings, in.Settings.Settings)
	}
	if out.InputFile != in.InputFile || len(out.SI) != 3 || len(out.TI) != 2 {
		t.Fatalf("unexpected result %+v", out)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult()); err != nil {
		t.Fatal(err)
	}

	want := strings.Join([]string{
		"input_file,n,si,ti",
		"clip.y4m,1,12.346,",
		"clip.y4m,2,20,1.234",
		"clip.y4m,3,7,0",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("csv mismatch\ngot:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, sampleResult(), "xml"); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}

func TestJSONToCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "result.json")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteJSON(f, sampleResult()); err != nil {
		t.Fatal(err)
	}
	f.Close()

	loaded, err := LoadResult(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.NumFrames() != 3 {
		t.Fatalf("NumFrames = %d, want 3", loaded.NumFrames())
	}

	in, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	var csvOut, direct bytes.Buffer
	if err := JSONToCSV(in, &csvOut); err != nil {
		t.Fatal(err)
	}
	if err := WriteCSV(&direct, sampleResult()); err != nil {
		t.Fatal(err)
	}
	if csvOut.String() != direct.String() {
		t.Fatalf("converted csv differs:\n%s\n%s", csvOut.String(), direct.String())
	}
}

func TestTIAt(t *testing.T) {
	r := sampleResult()
	if _, ok := r.TIAt(0); ok {
		t.Error("frame 0 must not have TI")
	}
	if v, ok := r.TIAt(2); !ok || v != 0 {
		t.Errorf("TIAt(2) = %v, %v", v, ok)
	}
	if _, ok := r.TIAt(3); ok {
		t.Error("TIAt past the end must report false")
	}
}

func TestSummarize(t *testing.T) {
	r := &Result{SI: []float64{1, 2, 3, 4}, TI: []float64{5, 5, 5}}
	s := Summarize(r)

	if s.SI.Count != 4 || s.SI.Min != 1 || s.SI.Max != 4 || s.SI.Mean != 2.5 {
		t.Errorf("unexpected SI summary %+v", s.SI)
	}
	if math.Abs(s.SI.StdDev-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("SI std = %v, want %v", s.SI.StdDev, math.Sqrt(1.25))
	}
	if s.TI.StdDev != 0 || s.TI.P95 != 5 || s.TI.P50 != 5 {
		t.Errorf("unexpected TI summary %+v", s.TI)
	}

	empty := Summarize(&Result{SI: []float64{3}})
	if empty.TI.Count != 0 || empty.SI.Max != 3 {
		t.Errorf("unexpected single frame summary %+v", empty)
	}
	if !strings.HasPrefix(s.SI.String(), "n=4 min=1.000 max=4.000") {
		t.Errorf("String() = %q", s.SI.String())
	}
}
