package siti

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-siti/config"
)

// Result holds per-frame SI and TI for one run. TI[k] compares frame k+1
// with frame k, so len(TI) == len(SI)-1 once a frame has been processed.
type Result struct {
	SI        []float64
	TI        []float64
	Settings  config.Snapshot
	InputFile string
}

// resultJSON is the on-disk shape. ti carries a leading null for frame 0.
type resultJSON struct {
	SI        []float64       `json:"si"`
	TI        []*float64      `json:"ti"`
	Settings  config.Snapshot `json:"settings"`
	InputFile string          `json:"input_file"`
}

// NumFrames returns the number of processed frames
func (r *Result) NumFrames() int { return len(r.SI) }

// TIAt returns the TI of frame n (zero-based) and false for frame 0
func (r *Result) TIAt(n int) (float64, bool) {
	if n <= 0 || n > len(r.TI) {
		return 0, false
	}
	return r.TI[n-1], true
}

func (r *Result) clone() *Result {
	return &Result{
		SI:        slices.Clone(r.SI),
		TI:        slices.Clone(r.TI),
		Settings:  r.Settings,
		InputFile: r.InputFile,
	}
}

// MarshalJSON writes {"si":[…],"ti":[null,…],"settings":{…},"input_file":…}
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		SI:        r.SI,
		TI:        make([]*float64, 0, len(r.TI)+1),
		Settings:  r.Settings,
		InputFile: r.InputFile,
	}
	if out.SI == nil {
		out.SI = []float64{}
	}
	if len(r.SI) > 0 {
		out.TI = append(out.TI, nil)
	}
	for i := range r.TI {
		out.TI = append(out.TI, &r.TI[i])
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts ti with a leading null (len(si) entries) as well as
// the bare form with len(si)-1 entries.
func (r *Result) UnmarshalJSON(data []byte) error {
	var in resultJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	ti := in.TI
	if len(ti) > 0 && len(ti) == len(in.SI) && ti[0] == nil {
		ti = ti[1:]
	}
	if len(in.SI) > 0 && len(ti) != len(in.SI)-1 {
		return fmt.Errorf("result has %d si values but %d ti values", len(in.SI), len(ti))
	}

	values := make([]float64, len(ti))
	for i, v := range ti {
		if v == nil {
			return fmt.Errorf("ti[%d] is null", i+1)
		}
		values[i] = *v
	}

	*r = Result{
		SI:        in.SI,
		TI:        values,
		Settings:  in.Settings,
		InputFile: in.InputFile,
	}
	return nil
}
