package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-siti/siti"
)

// writeY4M writes an 8-bit 4:2:0 stream where luma(frame, x, y) gives each sample
func writeY4M(t *testing.T, dir string, w, h, frames int, luma func(i, x, y int) byte) string {
	t.Helper()
	var b bytes.Buffer
	fmt.Fprintf(&b, "YUV4MPEG2 W%d H%d F25:1 Ip A1:1 C420jpeg\n", w, h)
	for i := 0; i < frames; i++ {
		b.WriteString("FRAME\n")
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				b.WriteByte(luma(i, x, y))
			}
		}
		b.Write(bytes.Repeat([]byte{128}, 2*(w/2)*(h/2)))
	}

	path := filepath.Join(dir, "input.y4m")
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func black(int, int, int) byte { return 16 }

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunJSONOutput(t *testing.T) {
	input := writeY4M(t, t.TempDir(), 32, 24, 3, black)

	code, stdout, stderr := runCLI("-q", input)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	var doc struct {
		SI       []float64  `json:"si"`
		TI       []*float64 `json:"ti"`
		Settings struct {
			BitDepth   int    `json:"bit_depth"`
			ColorRange string `json:"color_range"`
			Version    string `json:"version"`
		} `json:"settings"`
		InputFile string `json:"input_file"`
	}
	if err := json.Unmarshal([]byte(stdout), &doc); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, stdout)
	}
	if len(doc.SI) != 3 || len(doc.TI) != 3 || doc.TI[0] != nil {
		t.Fatalf("unexpected series si=%v ti=%v", doc.SI, doc.TI)
	}
	if doc.Settings.BitDepth != 8 || doc.Settings.ColorRange != "limited" || doc.InputFile != input {
		t.Fatalf("unexpected settings %+v", doc.Settings)
	}
}

func TestRunCSVAndConversion(t *testing.T) {
	dir := t.TempDir()
	input := writeY4M(t, dir, 32, 24, 4, black)
	csvPath := filepath.Join(dir, "out.csv")
	jsonPath := filepath.Join(dir, "out.json")

	if code, _, stderr := runCLI("-q", "-n", "2", "-o", csvPath, input); code != exitOK {
		t.Fatalf("csv run: exit code %d, stderr: %s", code, stderr)
	}
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	want := "input_file,n,si,ti\ninput.y4m,1,0,\ninput.y4m,2,0,0\n"
	if string(data) != want {
		t.Fatalf("csv output %q, want %q", data, want)
	}

	if code, _, stderr := runCLI("-q", "-n", "2", "-o", jsonPath, input); code != exitOK {
		t.Fatalf("json run: exit code %d, stderr: %s", code, stderr)
	}
	converted := filepath.Join(dir, "converted.csv")
	if code, _, stderr := runCLI("json-to-csv", jsonPath, converted); code != exitOK {
		t.Fatalf("json-to-csv: exit code %d, stderr: %s", code, stderr)
	}
	got, err := os.ReadFile(converted)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Fatalf("converted csv %q, want %q", got, want)
	}
}

func TestRunSettingsLayering(t *testing.T) {
	dir := t.TempDir()
	input := writeY4M(t, dir, 32, 24, 2, black)

	cfgPath := filepath.Join(dir, "run.yaml")
	cfg := "calculation_domain: pu21\nl_max: 500\nformat: json\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, stderr := runCLI("-q", "--config", cfgPath, "--l-max", "400", input)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	res, err := siti.ReadResultJSON(strings.NewReader(stdout))
	if err != nil {
		t.Fatal(err)
	}
	if res.Settings.CalculationDomain != "pu21" || res.Settings.LMax != 400 {
		t.Fatalf("config file or flag not applied: %+v", res.Settings)
	}

	// a previous result reproduces its settings even against conflicting flags
	prev := filepath.Join(dir, "prev.json")
	if err := os.WriteFile(prev, []byte(stdout), 0o644); err != nil {
		t.Fatal(err)
	}
	code, stdout, stderr = runCLI("-q", "-s", prev, "-c", "pq", input)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	again, err := siti.ReadResultJSON(strings.NewReader(stdout))
	if err != nil {
		t.Fatal(err)
	}
	if again.Settings.Settings != res.Settings.Settings {
		t.Fatalf("snapshot settings not reused: %+v", again.Settings)
	}
}

func TestRunExitCodes(t *testing.T) {
	dir := t.TempDir()
	ramp := writeY4M(t, dir, 16, 16, 2, func(_, x, y int) byte { return byte(y*16 + x) })

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"--no-such-flag", ramp}, exitInvalidSettings},
		{"missing input", []string{"-q"}, exitInvalidSettings},
		{"one frame", []string{"-q", "-n", "1", ramp}, exitInvalidSettings},
		{"bad domain", []string{"-q", "-c", "hsv", ramp}, exitInvalidSettings},
		{"range mismatch", []string{"-q", ramp}, exitRangeMismatch},
		{"bit depth override", []string{"-q", "-b", "10", ramp}, exitUnsupportedFrameFormat},
		{"full range ok", []string{"-q", "-r", "full", ramp}, exitOK},
		{"missing file", []string{"-q", filepath.Join(dir, "missing.y4m")}, exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, stderr := runCLI(tt.args...); code != tt.want {
				t.Fatalf("exit code %d, want %d; stderr: %s", code, tt.want, stderr)
			}
		})
	}
}

func TestRunLogLevel(t *testing.T) {
	input := writeY4M(t, t.TempDir(), 16, 16, 2, black)

	if code, _, stderr := runCLI("--log-level", "chatty", input); code != exitInvalidSettings {
		t.Fatalf("exit code %d, want %d; stderr: %s", code, exitInvalidSettings, stderr)
	}

	// an explicit level wins over -q
	code, _, stderr := runCLI("-q", "--log-level", "debug", input)
	if code != exitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stderr, "[DEBUG] Resolved settings") {
		t.Fatalf("debug output missing from stderr: %s", stderr)
	}

	code, _, stderr = runCLI("--log-level", "error", input)
	if code != exitOK || strings.Contains(stderr, "[INFO]") {
		t.Fatalf("error level must hide info logs, code %d, stderr: %s", code, stderr)
	}
}

func TestRunSmallFrame(t *testing.T) {
	input := writeY4M(t, t.TempDir(), 2, 2, 2, black)
	if code, _, stderr := runCLI("-q", input); code != exitUnsupportedFrameSize {
		t.Fatalf("exit code %d, want %d; stderr: %s", code, exitUnsupportedFrameSize, stderr)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{fmt.Errorf("wrapped: %w", siti.ErrInvalidSettings), exitInvalidSettings},
		{siti.ErrUnsupportedFrameFormat, exitUnsupportedFrameFormat},
		{fmt.Errorf("frame 3: %w", siti.ErrRangeMismatch), exitRangeMismatch},
		{siti.ErrDimensionMismatch, exitDimensionMismatch},
		{siti.ErrUnsupportedFrameSize, exitUnsupportedFrameSize},
		{errors.New("boom"), exitFailure},
		{context.Canceled, exitFailure},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestVersionFlag(t *testing.T) {
	code, stdout, _ := runCLI("--version")
	if code != exitOK || strings.TrimSpace(stdout) == "" {
		t.Fatalf("--version: code %d, output %q", code, stdout)
	}
}
