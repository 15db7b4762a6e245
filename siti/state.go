package siti

import "github.com/RyanBlaney/sonido-siti/algorithms/common"

// State is the lifecycle stage of a Calculator
type State int

const (
	// StateInit means no frame has been processed yet
	StateInit State = iota
	// StateStreaming means at least one frame has been processed
	StateStreaming
	// StateDone means the source is exhausted, the frame limit was hit, or a
	// stage failed
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateStreaming:
		return "STREAMING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// StreamState is the one-frame lookback carried between processing steps.
// It is replaced exactly once per processed frame and never reset.
type StreamState struct {
	previous   *common.Plane
	frameIndex int
}

// Previous returns the last processed frame, nil before the first frame.
// The plane is recycled once the next frame is processed.
func (s *StreamState) Previous() *common.Plane { return s.previous }

// FrameIndex returns the number of frames processed so far
func (s *StreamState) FrameIndex() int { return s.frameIndex }

// advance installs p as the lookback frame and returns the one it replaces
func (s *StreamState) advance(p *common.Plane) *common.Plane {
	old := s.previous
	s.previous = p
	s.frameIndex++
	return old
}
